package upload

import "github.com/streamforge/uploadengine/pipeline"

// FileResult is the coordinator's public record of one completed file.
type FileResult struct {
	FieldName string
	Filename  string
	MIMEType  string

	// Descriptor is the primary sink's storage descriptor.
	Descriptor *pipeline.Descriptor

	// AdditionalStorage holds one descriptor per secondary sink, in
	// configuration order, when more than one sink is configured.
	AdditionalStorage []*pipeline.Descriptor
}

// Result is what Coordinator.Handle resolves with on success.
type Result struct {
	Fields map[string]any
	Files  []FileResult
}
