package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/buildkite/interpolate"
	"github.com/google/uuid"
	"github.com/streamforge/uploadengine/pipeline"
	"github.com/streamforge/uploadengine/uploaderr"
)

// Disk is a sink that writes completed files under BaseDir, with the
// relative path expanded from PathTemplate using interpolate, so operators
// can lay files out by upload id, field name or filename without the engine
// hardcoding a layout.
type Disk struct {
	BaseDir      string
	PathTemplate string
}

// NewDisk returns a Disk sink rooted at baseDir. pathTemplate defaults to
// "${upload_id}/${filename}" when empty.
func NewDisk(baseDir, pathTemplate string) *Disk {
	if pathTemplate == "" {
		pathTemplate = "${upload_id}/${filename}"
	}
	return &Disk{BaseDir: baseDir, PathTemplate: pathTemplate}
}

func (d *Disk) Name() string                       { return "disk" }
func (d *Disk) Kind() pipeline.Kind                { return pipeline.KindSink }
func (d *Disk) Initialize(context.Context) error   { return os.MkdirAll(d.BaseDir, 0o755) }
func (d *Disk) Shutdown(context.Context) error     { return nil }

// Cleanup removes the file Process wrote, if any, using the path Process
// stored in Metadata. The pipeline's rollback calls Cleanup only on the
// validators and transformers that ran; it does not call a sink's Cleanup
// when a sibling sink fails.
func (d *Disk) Cleanup(_ context.Context, uc *pipeline.UploadContext, _ error) {
	path, ok := uc.Metadata["disk_sink_path"].(string)
	if !ok {
		return
	}
	os.Remove(path)
}

func (d *Disk) Process(ctx context.Context, uc *pipeline.UploadContext) (*pipeline.UploadContext, error) {
	uploadID, _ := uc.Metadata["upload_id"].(string)
	if uploadID == "" {
		uploadID = uuid.NewString()
		uc.Metadata["upload_id"] = uploadID
	}

	env := interpolate.NewSliceEnv([]string{
		"upload_id=" + uploadID,
		"field_name=" + uc.FileInfo.FieldName,
		"filename=" + filepath.Base(uc.FileInfo.Filename),
		"mime_type=" + uc.FileInfo.MIMEType,
	})

	relPath, err := interpolate.Interpolate(env, d.PathTemplate)
	if err != nil {
		return nil, uploaderr.StorageWriteFailed(fmt.Errorf("expanding path template: %w", err))
	}

	fullPath := filepath.Join(d.BaseDir, filepath.Clean(string(filepath.Separator)+relPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, uploaderr.StorageWriteFailed(err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return nil, uploaderr.StorageWriteFailed(err)
	}
	defer f.Close()

	n, err := io.Copy(f, uc.Stream)
	if err != nil {
		os.Remove(fullPath)
		return nil, uploaderr.StorageWriteFailed(err)
	}

	uc.Metadata["disk_sink_path"] = fullPath
	uc.Result = &pipeline.Descriptor{
		Driver: d.Name(),
		Fields: map[string]any{
			"path": fullPath,
			"size": n,
		},
	}
	return uc, nil
}
