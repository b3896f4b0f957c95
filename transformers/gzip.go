// Package transformers provides pipeline transformers that rewrite a file's
// byte stream in flight (compression today; encryption or checksumming
// could follow the same shape).
package transformers

import (
	"context"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/streamforge/uploadengine/pipeline"
)

// GzipTransformer compresses the file stream before it reaches the sink.
// It always returns a new Stream, per the Plugin contract for transformers.
type GzipTransformer struct {
	level int
}

// NewGzipTransformer builds a transformer compressing at level (gzip.DefaultCompression if 0).
func NewGzipTransformer(level int) *GzipTransformer {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	return &GzipTransformer{level: level}
}

func (g *GzipTransformer) Name() string                     { return "gzip" }
func (g *GzipTransformer) Kind() pipeline.Kind               { return pipeline.KindTransformer }
func (g *GzipTransformer) Initialize(context.Context) error { return nil }
func (g *GzipTransformer) Shutdown(context.Context) error   { return nil }
func (g *GzipTransformer) Cleanup(context.Context, *pipeline.UploadContext, error) {}

func (g *GzipTransformer) Process(ctx context.Context, uc *pipeline.UploadContext) (*pipeline.UploadContext, error) {
	pr, pw := io.Pipe()

	go func() {
		zw, err := gzip.NewWriterLevel(pw, g.level)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(zw, uc.Stream); err != nil {
			zw.Close()
			pw.CloseWithError(err)
			return
		}
		if err := zw.Close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	next := uc.Clone(pr)
	next.FileInfo.Filename += ".gz"
	next.FileInfo.MIMEType = "application/gzip"
	return next, nil
}
