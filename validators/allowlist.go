package validators

import (
	"context"
	"slices"

	"github.com/streamforge/uploadengine/pipeline"
	"github.com/streamforge/uploadengine/uploaderr"
)

// AllowlistValidator rejects files whose declared MIME type is not in a
// configured allowlist. A signed URL's own allowed_types constraint, when
// present in AuthConstraints, narrows the check further for that request.
type AllowlistValidator struct {
	allowed []string
}

// NewAllowlistValidator builds a validator that only accepts the given MIME
// types. An empty allowed list accepts everything.
func NewAllowlistValidator(allowed []string) *AllowlistValidator {
	return &AllowlistValidator{allowed: allowed}
}

func (v *AllowlistValidator) Name() string                     { return "allowlist" }
func (v *AllowlistValidator) Kind() pipeline.Kind               { return pipeline.KindValidator }
func (v *AllowlistValidator) Initialize(context.Context) error { return nil }
func (v *AllowlistValidator) Shutdown(context.Context) error   { return nil }
func (v *AllowlistValidator) Cleanup(context.Context, *pipeline.UploadContext, error) {}

func (v *AllowlistValidator) Process(ctx context.Context, uc *pipeline.UploadContext) (*pipeline.UploadContext, error) {
	mimeType := uc.FileInfo.MIMEType

	if len(v.allowed) > 0 && !slices.Contains(v.allowed, mimeType) {
		return nil, uploaderr.TypeNotAllowed(mimeType)
	}

	if uc.AuthConstraints != nil {
		if perRequest, ok := uc.AuthConstraints["allowed_types"].([]string); ok && len(perRequest) > 0 {
			if !slices.Contains(perRequest, mimeType) {
				return nil, uploaderr.TypeNotAllowed(mimeType)
			}
		}
	}

	return uc, nil
}
