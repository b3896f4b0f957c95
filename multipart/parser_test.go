package multipart

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/streamforge/uploadengine/uploaderr"
)

type collector struct {
	mu     sync.Mutex
	fields map[string]string
	files  []collectedFile
	drains []func()
}

type collectedFile struct {
	info FileInfo
	body []byte
	err  error
}

func newCollector() *collector {
	return &collector{fields: map[string]string{}}
}

func (c *collector) onField(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields[name] = value
}

// onFile drains the reader on a separate goroutine so the parser's
// synchronous pipe write never deadlocks against the test.
func (c *collector) onFile(info FileInfo, r io.Reader) {
	c.mu.Lock()
	idx := len(c.files)
	c.files = append(c.files, collectedFile{info: info})
	c.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		body, err := io.ReadAll(r)
		c.mu.Lock()
		c.files[idx].body = body
		c.files[idx].err = err
		c.mu.Unlock()
	}()
	c.drains = append(c.drains, wg.Wait)
}

// waitDrains blocks until every onFile goroutine has finished copying its
// file body, so tests can safely inspect collected results afterward.
func (c *collector) waitDrains() {
	for _, wait := range c.drains {
		wait()
	}
}

func feed(t *testing.T, body []byte, boundaryToken string, limits Limits, chunkSize int) (*collector, error) {
	t.Helper()
	c := newCollector()
	p := NewParser(boundaryToken, limits, c.onField, c.onFile, nil)

	var writeErr error
	for i := 0; i < len(body); i += chunkSize {
		end := i + chunkSize
		if end > len(body) {
			end = len(body)
		}
		if _, err := p.Write(body[i:end]); err != nil {
			writeErr = err
			break
		}
	}
	if writeErr == nil {
		writeErr = p.End()
	}
	c.waitDrains()
	return c, writeErr
}

func TestParserMinimalField(t *testing.T) {
	body := []byte("--B\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\n1\r\n--B--\r\n")
	c, err := feed(t, body, "B", Limits{}, len(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.fields["a"] != "1" {
		t.Fatalf("fields[a] = %q, want %q", c.fields["a"], "1")
	}
	if len(c.files) != 0 {
		t.Fatalf("expected no files, got %d", len(c.files))
	}
}

func buildSingleFileBody() []byte {
	return []byte("--B\r\n" +
		"Content-Disposition: form-data; name=\"f\"; filename=\"h.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"hello\r\n" +
		"--B--\r\n")
}

func TestParserSingleFileSingleChunk(t *testing.T) {
	body := buildSingleFileBody()
	c, err := feed(t, body, "B", Limits{}, len(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(c.files))
	}
	f := c.files[0]
	if f.info.FieldName != "f" || f.info.Filename != "h.txt" || f.info.MIMEType != "text/plain" {
		t.Fatalf("unexpected file info: %+v", f.info)
	}
	if string(f.body) != "hello" {
		t.Fatalf("body = %q, want %q", f.body, "hello")
	}
}

func TestParserSingleFileChunkedByteAtATime(t *testing.T) {
	body := buildSingleFileBody()
	c, err := feed(t, body, "B", Limits{}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(c.files))
	}
	if string(c.files[0].body) != "hello" {
		t.Fatalf("body = %q, want %q", c.files[0].body, "hello")
	}
}

func TestParserFileSizeLimitExceeded(t *testing.T) {
	body := buildSingleFileBody()
	_, err := feed(t, body, "B", Limits{FileSize: 4}, len(body))
	if err == nil {
		t.Fatal("expected an error")
	}
	var uerr *uploaderr.Error
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *uploaderr.Error, got %T: %v", err, err)
	}
	if uerr.Code != uploaderr.CodeLimitExceeded {
		t.Fatalf("code = %v, want %v", uerr.Code, uploaderr.CodeLimitExceeded)
	}
}

func TestParserMissingContentDisposition(t *testing.T) {
	body := []byte("--B\r\nContent-Type: text/plain\r\n\r\nx\r\n--B--\r\n")
	_, err := feed(t, body, "B", Limits{}, len(body))
	var uerr *uploaderr.Error
	if !errors.As(err, &uerr) || uerr.Code != uploaderr.CodeMissingContentDisposition {
		t.Fatalf("expected MissingContentDisposition, got %v", err)
	}
}

func TestParserUnexpectedEnd(t *testing.T) {
	body := []byte("--B\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\n1")
	_, err := feed(t, body, "B", Limits{}, len(body))
	var uerr *uploaderr.Error
	if !errors.As(err, &uerr) || uerr.Code != uploaderr.CodeUnexpectedEnd {
		t.Fatalf("expected UnexpectedEnd, got %v", err)
	}
}

func TestParserMultipleFieldsAndFiles(t *testing.T) {
	body := []byte("--B\r\n" +
		"Content-Disposition: form-data; name=\"a\"\r\n\r\n1\r\n" +
		"--B\r\n" +
		"Content-Disposition: form-data; name=\"f1\"; filename=\"one.txt\"\r\n\r\n" +
		"one-body\r\n" +
		"--B\r\n" +
		"Content-Disposition: form-data; name=\"b\"\r\n\r\n2\r\n" +
		"--B\r\n" +
		"Content-Disposition: form-data; name=\"f2\"; filename=\"two.txt\"\r\n\r\n" +
		"two-body\r\n" +
		"--B--\r\n")

	c, err := feed(t, body, "B", Limits{}, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.fields["a"] != "1" || c.fields["b"] != "2" {
		t.Fatalf("unexpected fields: %+v", c.fields)
	}
	if len(c.files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(c.files))
	}
	if c.files[0].info.Filename != "one.txt" || string(c.files[0].body) != "one-body" {
		t.Fatalf("file 0 mismatch: %+v body=%q", c.files[0].info, c.files[0].body)
	}
	if c.files[1].info.Filename != "two.txt" || string(c.files[1].body) != "two-body" {
		t.Fatalf("file 1 mismatch: %+v body=%q", c.files[1].info, c.files[1].body)
	}
}
