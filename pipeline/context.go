package pipeline

import "io"

// FileInfo is the immutable identity of the file a pipeline run processes.
type FileInfo struct {
	FieldName string
	Filename  string
	MIMEType  string
}

// Descriptor is what a sink returns once it has fully consumed a stream:
// the name of the driver that stored it, plus whatever backend-specific
// keys (path, url, etag, checksum, ...) describe where it landed.
type Descriptor struct {
	Driver string
	Fields map[string]any
}

// UploadContext is the mutable state threaded through a pipeline run. It is
// not safe for concurrent use by more than one goroutine at a time; the
// multiplexer clones it per sibling sink.
type UploadContext struct {
	Stream          io.Reader
	FileInfo        FileInfo
	Metadata        map[string]any
	AuthConstraints map[string]any
	Result          *Descriptor

	tracked []io.Reader
}

// NewUploadContext seeds a context for a fresh file stream.
func NewUploadContext(stream io.Reader, info FileInfo) *UploadContext {
	uc := &UploadContext{
		Stream:   stream,
		FileInfo: info,
		Metadata: map[string]any{},
	}
	uc.track(stream)
	return uc
}

// Clone returns a shallow copy sharing Metadata and AuthConstraints but with
// its own Stream and tracked-stream list, for use as one sibling of a
// multiplexer fan-out.
func (uc *UploadContext) Clone(stream io.Reader) *UploadContext {
	clone := &UploadContext{
		Stream:          stream,
		FileInfo:        uc.FileInfo,
		Metadata:        uc.Metadata,
		AuthConstraints: uc.AuthConstraints,
	}
	clone.track(stream)
	return clone
}

func (uc *UploadContext) track(stream io.Reader) {
	if stream == nil {
		return
	}
	for _, s := range uc.tracked {
		if s == stream {
			return
		}
	}
	uc.tracked = append(uc.tracked, stream)
}

// destroyer is implemented by streams (such as *io.PipeReader) that can be
// torn down with a terminal error rather than a plain close.
type destroyer interface {
	CloseWithError(error) error
}

// destroyAll tears down every stream tracked by uc, preferring
// CloseWithError when a stream supports it so downstream readers observe
// cause rather than a generic closed-pipe error.
func (uc *UploadContext) destroyAll(cause error) {
	for _, s := range uc.tracked {
		if d, ok := s.(destroyer); ok {
			d.CloseWithError(cause)
			continue
		}
		if c, ok := s.(io.Closer); ok {
			c.Close()
		}
	}
}
