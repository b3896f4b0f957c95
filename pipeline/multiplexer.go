package pipeline

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Split fans a single reader out into n independent readers, each
// delivering the same bytes. Source is read by one background goroutine;
// if it errors, every reader is closed with that error. Readers must all be
// drained at roughly the same pace: the slowest reader determines how fast
// io.Copy can pull from source, since unbuffered pipes apply backpressure.
func Split(source io.Reader, n int) []io.Reader {
	readers := make([]io.Reader, n)
	writers := make([]io.Writer, n)
	pipeWriters := make([]*io.PipeWriter, n)

	for i := 0; i < n; i++ {
		pr, pw := io.Pipe()
		readers[i] = pr
		writers[i] = pw
		pipeWriters[i] = pw
	}

	go func() {
		_, err := io.Copy(io.MultiWriter(writers...), source)
		for _, pw := range pipeWriters {
			if err != nil {
				pw.CloseWithError(err)
			} else {
				pw.Close()
			}
		}
	}()

	return readers
}

// ExecuteParallel splits source into one reader per sink and runs every
// sink's Process concurrently against a per-sink clone of uc. If any sink
// fails, the remaining siblings are aborted by closing their readers with
// that error, and the first error observed is returned.
func ExecuteParallel(ctx context.Context, source io.Reader, sinks []Plugin, uc *UploadContext) ([]*Descriptor, error) {
	readers := Split(source, len(sinks))

	var abortOnce sync.Once
	abort := func(cause error) {
		abortOnce.Do(func() {
			for _, r := range readers {
				if d, ok := r.(destroyer); ok {
					d.CloseWithError(cause)
				}
			}
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	descriptors := make([]*Descriptor, len(sinks))

	for i, sink := range sinks {
		i, sink := i, sink
		g.Go(func() error {
			childCtx := uc.Clone(readers[i])
			next, err := sink.Process(gctx, childCtx)
			if err != nil {
				abort(err)
				return err
			}
			if next != nil {
				descriptors[i] = next.Result
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		abort(err)
		return nil, err
	}
	return descriptors, nil
}
