// Package validators provides pipeline validators that run before any file
// bytes are accepted: field/metadata schema checks and bearer-token auth.
package validators

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qri-io/jsonschema"
	"github.com/streamforge/uploadengine/pipeline"
	"github.com/streamforge/uploadengine/uploaderr"
)

// SchemaValidator checks the upload's Metadata against a JSON Schema,
// rejecting the file if the metadata the caller attached doesn't conform.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles schemaJSON (a JSON Schema document) into a
// SchemaValidator.
func NewSchemaValidator(schemaJSON []byte) (*SchemaValidator, error) {
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(schemaJSON, schema); err != nil {
		return nil, fmt.Errorf("validators: compiling schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

func (v *SchemaValidator) Name() string                     { return "schema" }
func (v *SchemaValidator) Kind() pipeline.Kind               { return pipeline.KindValidator }
func (v *SchemaValidator) Initialize(context.Context) error { return nil }
func (v *SchemaValidator) Shutdown(context.Context) error   { return nil }
func (v *SchemaValidator) Cleanup(context.Context, *pipeline.UploadContext, error) {}

func (v *SchemaValidator) Process(ctx context.Context, uc *pipeline.UploadContext) (*pipeline.UploadContext, error) {
	metaJSON, err := json.Marshal(uc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("validators: marshalling metadata: %w", err)
	}

	valErrors, err := v.schema.ValidateBytes(ctx, metaJSON)
	if err != nil {
		return nil, fmt.Errorf("validators: running schema validation: %w", err)
	}
	if len(valErrors) > 0 {
		return nil, uploaderr.New(
			uploaderr.CodeMalformedHeader, 400,
			fmt.Sprintf("metadata failed schema validation: %s", valErrors[0].Error()),
		)
	}
	return uc, nil
}
