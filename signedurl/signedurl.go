// Package signedurl issues and validates HMAC-SHA256 time-bounded upload
// URLs, with optional single-use replay prevention.
package signedurl

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/streamforge/uploadengine/uploaderr"
)

// SignOptions describes the constraints to embed in a signed URL.
type SignOptions struct {
	ExpiresIn    time.Duration
	MaxFileSize  int64
	MaxFiles     int
	AllowedTypes []string
	UserID       string
	Metadata     map[string]string
}

// Constraints is the subset of SignOptions a validated URL carries forward.
type Constraints struct {
	MaxFileSize  int64
	MaxFiles     int
	AllowedTypes []string
	UserID       string
}

// ValidationResult is returned by Validate on success.
type ValidationResult struct {
	Constraints   Constraints
	Metadata      map[string]string
	TimeRemaining time.Duration
}

// Signer signs and validates URLs with a shared secret.
type Signer struct {
	secret        []byte
	defaultExpiry time.Duration
	replay        *ReplayCache // nil disables replay prevention
}

// Config configures a Signer.
type Config struct {
	Secret         []byte
	DefaultExpiry  time.Duration
	ReplayCache    *ReplayCache // leave nil to disable replay prevention
}

// New builds a Signer. Secret must be non-empty.
func New(cfg Config) *Signer {
	expiry := cfg.DefaultExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Signer{
		secret:        cfg.Secret,
		defaultExpiry: expiry,
		replay:        cfg.ReplayCache,
	}
}

// Sign computes expires = now + opts.ExpiresIn (or the Signer's default
// when ExpiresIn is zero) and returns base with every constraint parameter
// plus a signature appended to its query string.
func (s *Signer) Sign(base string, opts SignOptions) (string, error) {
	expiresIn := opts.ExpiresIn
	if expiresIn == 0 {
		expiresIn = s.defaultExpiry
	}
	expires := time.Now().Add(expiresIn).Unix()

	params := map[string]string{
		"expires": strconv.FormatInt(expires, 10),
	}
	if opts.MaxFileSize > 0 {
		params["max_size"] = strconv.FormatInt(opts.MaxFileSize, 10)
	}
	if opts.MaxFiles > 0 {
		params["max_files"] = strconv.Itoa(opts.MaxFiles)
	}
	if len(opts.AllowedTypes) > 0 {
		params["allowed_types"] = strings.Join(opts.AllowedTypes, ",")
	}
	if opts.UserID != "" {
		params["user_id"] = opts.UserID
	}
	for k, v := range opts.Metadata {
		params["meta_"+k] = v
	}

	signature := s.sign(base, params)

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("signedurl: invalid base URL: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("signature", signature)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sign computes the hex HMAC-SHA256 over base + "?" + the sorted,
// ampersand-joined "key=value" list of params.
func (s *Signer) sign(base string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	canonical := base + "?" + strings.Join(pairs, "&")

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate parses rawURL, recomputes the expected signature over every
// parameter except signature, and checks it in order: signature present,
// signature matches, not expired, not replayed. On success it records the
// signature in the replay cache (if configured) and returns the parsed
// constraints and metadata.
func (s *Signer) Validate(rawURL string) (*ValidationResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, uploaderr.SignedURLInvalid("malformed URL")
	}
	q := u.Query()

	signature := q.Get("signature")
	if signature == "" {
		return nil, uploaderr.SignedURLMissingSignature()
	}

	params := map[string]string{}
	for k, vs := range q {
		if k == "signature" || len(vs) == 0 {
			continue
		}
		params[k] = vs[0]
	}

	base := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
	expected := s.sign(base, params)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, uploaderr.SignedURLInvalid("signature mismatch")
	}

	expiresStr, ok := params["expires"]
	if !ok {
		return nil, uploaderr.SignedURLInvalid("missing expires parameter")
	}
	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return nil, uploaderr.SignedURLInvalid("expires is not a valid timestamp")
	}
	now := time.Now().Unix()
	if now > expires {
		return nil, uploaderr.SignedURLExpired()
	}

	if s.replay != nil && s.replay.Seen(signature) {
		return nil, uploaderr.SignedURLReplayed()
	}
	if s.replay != nil {
		s.replay.Record(signature, expires)
	}

	result := &ValidationResult{
		Metadata:      map[string]string{},
		TimeRemaining: time.Duration(expires-now) * time.Second,
	}
	if v, ok := params["max_size"]; ok {
		result.Constraints.MaxFileSize, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := params["max_files"]; ok {
		result.Constraints.MaxFiles, _ = strconv.Atoi(v)
	}
	if v, ok := params["allowed_types"]; ok && v != "" {
		result.Constraints.AllowedTypes = strings.Split(v, ",")
	}
	result.Constraints.UserID = params["user_id"]
	for k, v := range params {
		if strings.HasPrefix(k, "meta_") {
			result.Metadata[strings.TrimPrefix(k, "meta_")] = v
		}
	}

	return result, nil
}
