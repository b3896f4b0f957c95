// Package uploaderr defines the typed error taxonomy shared by every layer
// of the upload engine: the multipart parser, the plugin pipeline, the
// coordinator, signed URLs and the rate limiter. Every error carries a
// stable Code and a recommended HTTP StatusCode so that callers at the
// HTTP boundary never have to string-match error messages.
package uploaderr

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeMissingBoundary           Code = "MISSING_BOUNDARY"
	CodeMalformedHeader           Code = "MALFORMED_HEADER"
	CodeMissingContentDisposition Code = "MISSING_CONTENT_DISPOSITION"
	CodeUnexpectedEnd             Code = "UNEXPECTED_END"
	CodeLimitExceeded             Code = "LIMIT_EXCEEDED"
	CodeRateLimitExceeded         Code = "RATE_LIMIT_EXCEEDED"
	CodeSignedURLMissingSignature Code = "SIGNED_URL_MISSING_SIGNATURE"
	CodeSignedURLInvalid          Code = "SIGNED_URL_INVALID"
	CodeSignedURLExpired          Code = "SIGNED_URL_EXPIRED"
	CodeSignedURLReplayed         Code = "SIGNED_URL_REPLAYED"
	CodeTypeNotAllowed            Code = "TYPE_NOT_ALLOWED"
	CodeMagicByteMismatch         Code = "MAGIC_BYTE_MISMATCH"
	CodeStorageWriteFailed        Code = "STORAGE_WRITE_FAILED"
	CodeStorageUnavailable        Code = "STORAGE_UNAVAILABLE"
	CodePluginMisbehavior         Code = "PLUGIN_MISBEHAVIOR"
)

// Error is the single typed-error shape used across the engine.
type Error struct {
	Code       Code
	StatusCode int
	Message    string
	Cause      error

	// RetryAfter is only meaningful for CodeRateLimitExceeded.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, status int, message string) *Error {
	return &Error{Code: code, StatusCode: status, Message: message}
}

func Wrap(code Code, status int, message string, cause error) *Error {
	return &Error{Code: code, StatusCode: status, Message: message, Cause: cause}
}

func MissingBoundary() *Error {
	return New(CodeMissingBoundary, 400, "Content-Type has no multipart boundary")
}

func MissingContentDisposition() *Error {
	return New(CodeMissingContentDisposition, 400, "part is missing a Content-Disposition header")
}

func MalformedHeader(detail string) *Error {
	return New(CodeMalformedHeader, 400, "malformed part header: "+detail)
}

func UnexpectedEnd() *Error {
	return New(CodeUnexpectedEnd, 400, "request body ended before the final boundary")
}

// LimitExceeded reports a limit violation. limit and value are formatted in
// human-readable byte units when kind denotes a byte-bound limit.
func LimitExceeded(kind string, limit, value int64) *Error {
	status := 400
	var msg string
	switch kind {
	case "file_size", "field_size", "header_size":
		status = 413
		msg = fmt.Sprintf("%s limit exceeded: %s received, limit is %s",
			kind, humanize.IBytes(uint64(value)), humanize.IBytes(uint64(limit)))
	default:
		msg = fmt.Sprintf("%s limit exceeded: %d received, limit is %d", kind, value, limit)
	}
	return &Error{Code: CodeLimitExceeded, StatusCode: status, Message: msg}
}

func RateLimitExceeded(limit, remaining int, retryAfter time.Duration) *Error {
	return &Error{
		Code:       CodeRateLimitExceeded,
		StatusCode: 429,
		Message:    fmt.Sprintf("rate limit exceeded (limit=%d remaining=%d)", limit, remaining),
		RetryAfter: retryAfter,
	}
}

func SignedURLMissingSignature() *Error {
	return New(CodeSignedURLMissingSignature, 403, "signed URL has no signature parameter")
}

func SignedURLInvalid(reason string) *Error {
	return New(CodeSignedURLInvalid, 403, "signed URL is invalid: "+reason)
}

func SignedURLExpired() *Error {
	return New(CodeSignedURLExpired, 403, "signed URL has expired")
}

func SignedURLReplayed() *Error {
	return New(CodeSignedURLReplayed, 403, "signed URL has already been used")
}

func TypeNotAllowed(mimeType string) *Error {
	return New(CodeTypeNotAllowed, 415, "content type not allowed: "+mimeType)
}

func MagicByteMismatch(declared, detected string) *Error {
	return New(CodeMagicByteMismatch, 400, fmt.Sprintf("declared type %q does not match detected type %q", declared, detected))
}

func StorageWriteFailed(cause error) *Error {
	return Wrap(CodeStorageWriteFailed, 500, "storage write failed", cause)
}

func StorageUnavailable(cause error) *Error {
	return Wrap(CodeStorageUnavailable, 503, "storage backend unavailable", cause)
}

func PluginMisbehavior(pluginName string) *Error {
	return New(CodePluginMisbehavior, 500, "plugin "+pluginName+" did not return a new stream")
}
