// Package upload bridges an HTTP request body to the multipart parser and
// the plugin pipeline, aggregating per-file pipeline completions into a
// single result.
package upload

import (
	"context"
	"io"
	"sync"

	"github.com/streamforge/uploadengine/logger"
	"github.com/streamforge/uploadengine/multipart"
	"github.com/streamforge/uploadengine/pipeline"
)

// Config configures a Coordinator. Sinks must contain at least one plugin;
// when more than one is given, the first is primary (runs through the
// validator/transformer chain) and the rest receive the already-transformed
// byte stream via the multiplexer.
type Config struct {
	Limits       multipart.Limits
	Validators   []pipeline.Plugin
	Transformers []pipeline.Plugin
	Sinks        []pipeline.Plugin
	Log          logger.Logger

	OnField  func(name, value string)
	OnFile   func(result FileResult)
	OnError  func(err error)
	OnFinish func(result *Result)
}

// Coordinator accepts an HTTP request body plus its Content-Type and
// resolves to the aggregated {fields, files[]} record.
type Coordinator struct {
	cfg        Config
	pipeline   *pipeline.Pipeline
	additional []pipeline.Plugin
}

// New builds a Coordinator from cfg.
func New(cfg Config) *Coordinator {
	var additional []pipeline.Plugin
	if len(cfg.Sinks) > 1 {
		additional = cfg.Sinks[1:]
	}
	primary := cfg.Sinks[0]

	return &Coordinator{
		cfg:        cfg,
		pipeline:   pipeline.New(cfg.Validators, cfg.Transformers, primary, cfg.Log),
		additional: additional,
	}
}

// Initialize fans out to every configured plugin.
func (c *Coordinator) Initialize(ctx context.Context) error {
	return c.pipeline.Initialize(ctx)
}

// Shutdown fans out to every configured plugin.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	return c.pipeline.Shutdown(ctx)
}

type fileTask struct {
	info       multipart.FileInfo
	desc       *pipeline.Descriptor
	additional []*pipeline.Descriptor
	err        error
}

// Handle reads body as a multipart/form-data stream, runs every file part
// through the configured pipeline, and returns the aggregated result.
// files[] preserves the byte order file parts appeared in, not the order
// their pipelines completed.
func (c *Coordinator) Handle(ctx context.Context, body io.Reader, contentType string) (*Result, error) {
	boundaryToken, err := multipart.ExtractBoundary(contentType)
	if err != nil {
		c.reportError(err)
		return nil, err
	}

	fields := newFieldSet()

	var (
		mu        sync.Mutex
		fileOrder []*fileTask
		wg        sync.WaitGroup
		errOnce   sync.Once
		firstErr  error
	)

	recordErr := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	onField := func(name, value string) {
		mu.Lock()
		fields.add(name, value)
		mu.Unlock()
	}

	onFile := func(info multipart.FileInfo, r io.Reader) {
		task := &fileTask{info: info}
		mu.Lock()
		fileOrder = append(fileOrder, task)
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			desc, additional, err := c.runFile(ctx, r, info)
			if err != nil {
				recordErr(err)
				task.err = err
				return
			}
			task.desc = desc
			task.additional = additional
		}()
	}

	onLimit := func(kind string, limit, value int64) {
		if c.cfg.Log != nil {
			c.cfg.Log.Warn("upload limit exceeded: %s limit=%d value=%d", kind, limit, value)
		}
	}

	parser := multipart.NewParser(boundaryToken, c.cfg.Limits, onField, onFile, onLimit)

	buf := make([]byte, 32*1024)
	for firstErr == nil {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := parser.Write(buf[:n]); werr != nil {
				recordErr(werr)
				break
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			recordErr(rerr)
			break
		}
	}

	if firstErr == nil {
		if err := parser.End(); err != nil {
			recordErr(err)
		}
	}

	wg.Wait()

	if firstErr != nil {
		c.reportError(firstErr)
		return nil, firstErr
	}

	result := &Result{Fields: fields.toMap()}
	for _, task := range fileOrder {
		fr := FileResult{
			FieldName:         task.info.FieldName,
			Filename:          task.info.Filename,
			MIMEType:          task.info.MIMEType,
			Descriptor:        task.desc,
			AdditionalStorage: task.additional,
		}
		result.Files = append(result.Files, fr)
		if c.cfg.OnFile != nil {
			c.cfg.OnFile(fr)
		}
	}

	if c.cfg.OnFinish != nil {
		c.cfg.OnFinish(result)
	}
	return result, nil
}

func (c *Coordinator) runFile(ctx context.Context, r io.Reader, info multipart.FileInfo) (*pipeline.Descriptor, []*pipeline.Descriptor, error) {
	pinfo := pipeline.FileInfo{
		FieldName: info.FieldName,
		Filename:  info.Filename,
		MIMEType:  info.MIMEType,
	}

	if len(c.additional) == 0 {
		desc, err := c.pipeline.Execute(ctx, r, pinfo)
		return desc, nil, err
	}
	return c.pipeline.ExecuteMultiSink(ctx, r, pinfo, c.additional)
}

func (c *Coordinator) reportError(err error) {
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}
