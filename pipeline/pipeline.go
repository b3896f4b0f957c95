package pipeline

import (
	"context"
	"io"

	"github.com/streamforge/uploadengine/logger"
	"github.com/streamforge/uploadengine/uploaderr"
)

// Pipeline runs validators, then transformers, then a single storage sink
// over one file stream.
type Pipeline struct {
	validators   []Plugin
	transformers []Plugin
	sink         Plugin
	log          logger.Logger
}

// New builds a Pipeline. sink must not be nil.
func New(validators, transformers []Plugin, sink Plugin, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Discard
	}
	return &Pipeline{
		validators:   validators,
		transformers: transformers,
		sink:         sink,
		log:          log,
	}
}

func (p *Pipeline) stages() []Plugin {
	all := make([]Plugin, 0, len(p.validators)+len(p.transformers)+1)
	all = append(all, p.validators...)
	all = append(all, p.transformers...)
	all = append(all, p.sink)
	return all
}

// Initialize fans out to every plugin in registration order.
func (p *Pipeline) Initialize(ctx context.Context) error {
	for _, pl := range p.stages() {
		if err := pl.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown fans out to every plugin in registration order.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	var first error
	for _, pl := range p.stages() {
		if err := pl.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Execute runs source through the configured validators, transformers and
// sink for one file, returning the sink's descriptor on success.
func (p *Pipeline) Execute(ctx context.Context, source io.Reader, info FileInfo) (*Descriptor, error) {
	uc, _, err := p.runStages(ctx, source, info, p.stages())
	if err != nil {
		return nil, err
	}
	return uc.Result, nil
}

// ExecuteMultiSink runs validators and transformers once, then fans the
// transformed stream out to the primary sink plus every sink in
// additional, concurrently. Failure of any sink rolls back the validators
// and transformers that ran. The first return value is the primary sink's
// descriptor; the second holds one descriptor per entry in additional, in
// the same order.
func (p *Pipeline) ExecuteMultiSink(ctx context.Context, source io.Reader, info FileInfo, additional []Plugin) (*Descriptor, []*Descriptor, error) {
	preSinkStages := make([]Plugin, 0, len(p.validators)+len(p.transformers))
	preSinkStages = append(preSinkStages, p.validators...)
	preSinkStages = append(preSinkStages, p.transformers...)

	uc, ran, err := p.runStages(ctx, source, info, preSinkStages)
	if err != nil {
		return nil, nil, err
	}

	allSinks := append([]Plugin{p.sink}, additional...)
	descriptors, err := ExecuteParallel(ctx, uc.Stream, allSinks, uc)
	if err != nil {
		p.rollback(ctx, uc, ran, err)
		return nil, nil, err
	}
	return descriptors[0], descriptors[1:], nil
}

// runStages drives uc through stages in order, rolling back (and returning
// the triggering error) the moment one fails.
func (p *Pipeline) runStages(ctx context.Context, source io.Reader, info FileInfo, stages []Plugin) (*UploadContext, []Plugin, error) {
	uc := NewUploadContext(source, info)

	var ran []Plugin
	for _, pl := range stages {
		next, err := pl.Process(ctx, uc)
		if err != nil {
			p.rollback(ctx, uc, ran, err)
			return nil, nil, err
		}
		if pl.Kind() == KindTransformer && (next == nil || next.Stream == nil || next.Stream == uc.Stream) {
			misbehavior := uploaderr.PluginMisbehavior(pl.Name())
			p.rollback(ctx, uc, ran, misbehavior)
			return nil, nil, misbehavior
		}
		if next == nil {
			next = uc
		}
		next.track(next.Stream)
		uc = next
		ran = append(ran, pl)
	}

	return uc, ran, nil
}

// rollback destroys every stream the context has seen, then calls Cleanup
// on each plugin that successfully ran, in reverse order. Cleanup errors
// are logged and swallowed: cleanup must attempt to run on all plugins.
func (p *Pipeline) rollback(ctx context.Context, uc *UploadContext, ran []Plugin, cause error) {
	uc.destroyAll(cause)

	for i := len(ran) - 1; i >= 0; i-- {
		pl := ran[i]
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("plugin %s panicked during cleanup: %v", pl.Name(), r)
				}
			}()
			pl.Cleanup(ctx, uc, cause)
		}()
	}
}
