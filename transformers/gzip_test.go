package transformers

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/streamforge/uploadengine/pipeline"
)

func TestGzipTransformerCompressesStream(t *testing.T) {
	original := bytes.Repeat([]byte("hello world "), 1000)
	uc := pipeline.NewUploadContext(bytes.NewReader(original), pipeline.FileInfo{
		FieldName: "file",
		Filename:  "data.txt",
		MIMEType:  "text/plain",
	})

	g := NewGzipTransformer(0)
	out, err := g.Process(context.Background(), uc)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if out.FileInfo.Filename != "data.txt.gz" {
		t.Fatalf("Filename = %q, want data.txt.gz", out.FileInfo.Filename)
	}

	zr, err := gzip.NewReader(out.Stream)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer zr.Close()

	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("reading decompressed stream: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Fatalf("decompressed content mismatch: got %d bytes, want %d", len(got), len(original))
	}
}
