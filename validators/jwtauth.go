package validators

import (
	"context"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/streamforge/uploadengine/pipeline"
	"github.com/streamforge/uploadengine/uploaderr"
)

type contextKey int

const bearerTokenKey contextKey = iota

// WithBearerToken attaches the raw Authorization header value (without the
// "Bearer " prefix) to ctx, where JWTAuthValidator can find it. The HTTP
// layer is responsible for extracting it from the incoming request.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey, token)
}

func bearerTokenFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(bearerTokenKey).(string)
	return v, ok
}

// JWTAuthValidator verifies a bearer JWT against a JWKS before any file
// bytes are accepted, stashing the token's claims onto Metadata.
type JWTAuthValidator struct {
	keySet            jwk.Set
	requiredAudience  string
}

// NewJWTAuthValidator builds a validator that verifies tokens against
// keySet. requiredAudience, if non-empty, must appear in the token's "aud"
// claim.
func NewJWTAuthValidator(keySet jwk.Set, requiredAudience string) *JWTAuthValidator {
	return &JWTAuthValidator{keySet: keySet, requiredAudience: requiredAudience}
}

func (v *JWTAuthValidator) Name() string                     { return "jwt-auth" }
func (v *JWTAuthValidator) Kind() pipeline.Kind               { return pipeline.KindValidator }
func (v *JWTAuthValidator) Initialize(context.Context) error { return nil }
func (v *JWTAuthValidator) Shutdown(context.Context) error   { return nil }
func (v *JWTAuthValidator) Cleanup(context.Context, *pipeline.UploadContext, error) {}

func (v *JWTAuthValidator) Process(ctx context.Context, uc *pipeline.UploadContext) (*pipeline.UploadContext, error) {
	raw, ok := bearerTokenFromContext(ctx)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, uploaderr.SignedURLMissingSignature()
	}

	opts := []jwt.ParseOption{jwt.WithKeySet(v.keySet)}
	if v.requiredAudience != "" {
		opts = append(opts, jwt.WithAudience(v.requiredAudience))
	}

	token, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return nil, uploaderr.SignedURLInvalid("bearer token: " + err.Error())
	}

	if uc.Metadata == nil {
		uc.Metadata = map[string]any{}
	}
	uc.Metadata["jwt_subject"] = token.Subject()
	uc.Metadata["jwt_claims"] = token.PrivateClaims()

	return uc, nil
}
