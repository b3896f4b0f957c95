package signedurl

import (
	"context"

	"github.com/streamforge/uploadengine/pipeline"
	"github.com/streamforge/uploadengine/uploaderr"
)

type contextKey int

const requestURLKey contextKey = iota

// WithRequestURL attaches the reconstructed request URL (scheme, host, path
// and query reassembled by the HTTP layer from x-forwarded-proto, Host and
// the request path) to ctx, where ValidatorPlugin can find it.
func WithRequestURL(ctx context.Context, rawURL string) context.Context {
	return context.WithValue(ctx, requestURLKey, rawURL)
}

func requestURLFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestURLKey).(string)
	return v, ok
}

// ValidatorPlugin is a pipeline validator that checks the request's signed
// URL before any file bytes are accepted, stashing the parsed constraints
// and metadata onto the UploadContext for downstream plugins.
type ValidatorPlugin struct {
	signer *Signer
}

// NewValidatorPlugin builds a ValidatorPlugin backed by signer.
func NewValidatorPlugin(signer *Signer) *ValidatorPlugin {
	return &ValidatorPlugin{signer: signer}
}

func (v *ValidatorPlugin) Name() string          { return "signed-url" }
func (v *ValidatorPlugin) Kind() pipeline.Kind    { return pipeline.KindValidator }
func (v *ValidatorPlugin) Initialize(context.Context) error { return nil }
func (v *ValidatorPlugin) Shutdown(context.Context) error   { return nil }
func (v *ValidatorPlugin) Cleanup(context.Context, *pipeline.UploadContext, error) {}

func (v *ValidatorPlugin) Process(ctx context.Context, uc *pipeline.UploadContext) (*pipeline.UploadContext, error) {
	rawURL, ok := requestURLFromContext(ctx)
	if !ok {
		return nil, uploaderr.SignedURLInvalid("no request URL available to validate")
	}

	result, err := v.signer.Validate(rawURL)
	if err != nil {
		return nil, err
	}

	if uc.Metadata == nil {
		uc.Metadata = map[string]any{}
	}
	uc.Metadata["signed_url_metadata"] = result.Metadata

	uc.AuthConstraints = map[string]any{
		"max_file_size": result.Constraints.MaxFileSize,
		"max_files":     result.Constraints.MaxFiles,
		"allowed_types": result.Constraints.AllowedTypes,
		"user_id":       result.Constraints.UserID,
	}
	return uc, nil
}
