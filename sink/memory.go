// Package sink provides reference storage backends for completed uploads.
// Concrete cloud object stores are out of scope; these two drivers exist so
// the pipeline's sink contract has a real, testable terminus.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/streamforge/uploadengine/pipeline"
	"github.com/streamforge/uploadengine/uploaderr"
)

// StoredObject is what Memory keeps for each completed file.
type StoredObject struct {
	Key      string
	Data     []byte
	FileInfo pipeline.FileInfo
}

// Memory is a sink that buffers completed files in a map, for tests and demo
// deployments. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	objects map[string]StoredObject
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{objects: map[string]StoredObject{}}
}

func (m *Memory) Name() string             { return "memory" }
func (m *Memory) Kind() pipeline.Kind      { return pipeline.KindSink }
func (m *Memory) Initialize(context.Context) error { return nil }
func (m *Memory) Shutdown(context.Context) error   { return nil }

// Cleanup removes the object Process stored, if any. The key was stashed in
// Metadata by Process, since generating it again here would not match what
// was actually stored. The pipeline's rollback calls Cleanup only on the
// validators and transformers that ran; it does not call a sink's Cleanup
// when a sibling sink fails.
func (m *Memory) Cleanup(_ context.Context, uc *pipeline.UploadContext, _ error) {
	key, ok := uc.Metadata["memory_sink_key"].(string)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
}

func (m *Memory) Process(ctx context.Context, uc *pipeline.UploadContext) (*pipeline.UploadContext, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, uc.Stream); err != nil {
		return nil, uploaderr.StorageWriteFailed(err)
	}

	key := fmt.Sprintf("%s/%s", uc.FileInfo.FieldName, uuid.NewString())
	obj := StoredObject{Key: key, Data: buf.Bytes(), FileInfo: uc.FileInfo}

	m.mu.Lock()
	m.objects[key] = obj
	m.mu.Unlock()

	uc.Metadata["memory_sink_key"] = key
	uc.Result = &pipeline.Descriptor{
		Driver: m.Name(),
		Fields: map[string]any{
			"key":  key,
			"size": len(obj.Data),
		},
	}
	return uc, nil
}

// Get returns the object stored under key, if any.
func (m *Memory) Get(key string) (StoredObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}
