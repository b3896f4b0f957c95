// Package pipeline runs a single file stream through an ordered chain of
// validators, transformers and a storage sink, propagating errors and
// running compensating cleanup in reverse order on failure.
package pipeline

import "context"

// Kind distinguishes the three roles a Plugin can play. Validators,
// transformers and sinks share one interface and are dispatched by Kind
// rather than by separate Go interfaces, matching how the pipeline stores
// them as a single ordered, boxed sequence.
type Kind int

const (
	KindValidator Kind = iota
	KindTransformer
	KindSink
)

func (k Kind) String() string {
	switch k {
	case KindValidator:
		return "validator"
	case KindTransformer:
		return "transformer"
	case KindSink:
		return "sink"
	default:
		return "unknown"
	}
}

// Plugin is the single variant type for validators, transformers and sinks.
// Instances are shared across requests and must be safe for concurrent use;
// Process is invoked once per file.
type Plugin interface {
	Name() string
	Kind() Kind

	// Initialize runs once, before the plugin processes any file.
	Initialize(ctx context.Context) error

	// Process inspects or transforms ctx and returns the context to use for
	// the next stage. A validator may return ctx unchanged or with a
	// wrapped Stream (e.g. a magic-byte sniffer that peeks then replays). A
	// transformer MUST return a ctx with a new Stream. A sink consumes
	// Stream to completion and sets ctx.Result.
	Process(ctx context.Context, uc *UploadContext) (*UploadContext, error)

	// Cleanup is invoked on every plugin that successfully ran Process, in
	// reverse order, when a later stage fails. cause is the error that
	// triggered cleanup. Cleanup errors are logged by the caller and never
	// override cause.
	Cleanup(ctx context.Context, uc *UploadContext, cause error)

	// Shutdown runs once at process teardown.
	Shutdown(ctx context.Context) error
}
