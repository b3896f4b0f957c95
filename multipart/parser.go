// Package multipart drives a push-based state machine over RFC 7578
// multipart/form-data bytes, emitting completed fields and streaming file
// parts to callers without ever buffering a whole file in memory.
package multipart

import (
	"bytes"
	stdmime "mime"
	"strings"

	"io"

	"github.com/streamforge/uploadengine/boundary"
	"github.com/streamforge/uploadengine/uploaderr"
)

type state int

const (
	statePreamble state = iota
	stateHeader
	stateBody
	stateEnd
)

var headerTerminator = []byte("\r\n\r\n")

// ExtractBoundary pulls the boundary parameter out of a multipart
// Content-Type header value, rejecting anything that is not
// multipart/form-data.
func ExtractBoundary(contentType string) (string, error) {
	mediatype, params, err := stdmime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediatype, "multipart/form-data") {
		return "", uploaderr.MissingBoundary()
	}
	b, ok := params["boundary"]
	if !ok || b == "" {
		return "", uploaderr.MissingBoundary()
	}
	return b, nil
}

// Parser turns a byte stream plus a boundary into a sequence of field and
// file emissions. Bytes are supplied via Write; End signals end-of-input.
type Parser struct {
	delim   []byte
	scanner *boundary.Scanner
	limits  Limits

	onField FieldFunc
	onFile  FileFunc
	onLimit LimitFunc

	state state

	headerBuf bytes.Buffer

	fieldCount int
	fileCount  int

	current     partHeader
	fieldBuf    bytes.Buffer
	bytesInPart int64
	pendingTail []byte

	pw *io.PipeWriter

	err error
}

// NewParser constructs a Parser for the given boundary token (without the
// leading "--"). onLimit may be nil if the caller does not need limit
// notifications.
func NewParser(boundaryToken string, limits Limits, onField FieldFunc, onFile FileFunc, onLimit LimitFunc) *Parser {
	delim := []byte("--" + boundaryToken)
	return &Parser{
		delim:   delim,
		scanner: boundary.New(delim),
		limits:  limits.WithDefaults(),
		onField: onField,
		onFile:  onFile,
		onLimit: onLimit,
		state:   statePreamble,
	}
}

// Write feeds the parser the next chunk of the request body. It satisfies
// io.Writer so the coordinator can io.Copy the request body directly into
// the parser.
func (p *Parser) Write(chunk []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	n := len(chunk)
	if p.state == stateEnd {
		return n, nil
	}

	matches, pending := p.scanner.Scan(chunk)

	for _, m := range matches {
		if err := p.consume(m.Data, true); err != nil {
			return n, p.fail(err)
		}
		if err := p.onBoundary(m.Final); err != nil {
			return n, p.fail(err)
		}
		if p.state == stateEnd {
			return n, nil
		}
	}

	if len(pending) > 0 {
		if err := p.consume(pending, false); err != nil {
			return n, p.fail(err)
		}
	}

	return n, nil
}

// End signals that no further bytes will arrive. It resolves any boundary
// match the scanner was holding back for lookahead purposes and reports
// UnexpectedEnd if the body did not reach a final boundary.
func (p *Parser) End() error {
	if p.err != nil {
		return p.err
	}
	if p.state == stateEnd {
		return nil
	}

	tail := p.scanner.Flush()
	if idx := bytes.Index(tail, p.delim); idx >= 0 {
		afterDelim := idx + len(p.delim)
		final := bytes.HasPrefix(tail[afterDelim:], []byte("--"))
		if err := p.consume(tail[:idx], true); err != nil {
			return p.fail(err)
		}
		if err := p.onBoundary(final); err != nil {
			return p.fail(err)
		}
		if p.state == stateEnd {
			return nil
		}
	}

	return p.fail(uploaderr.UnexpectedEnd())
}

func (p *Parser) fail(err error) error {
	if p.err == nil {
		p.err = err
	}
	if p.pw != nil {
		p.pw.CloseWithError(err)
		p.pw = nil
	}
	p.state = stateEnd
	return err
}

// consume processes data against the current state. atBoundary is true when
// data is the final segment of a Scan match, i.e. immediately followed by a
// boundary occurrence.
func (p *Parser) consume(data []byte, atBoundary bool) error {
	switch p.state {
	case statePreamble:
		return nil

	case stateHeader:
		p.headerBuf.Write(data)
		idx := bytes.Index(p.headerBuf.Bytes(), headerTerminator)
		headerLen := idx
		if idx < 0 {
			headerLen = p.headerBuf.Len()
		}
		if int64(headerLen) > p.limits.HeaderSize {
			p.notifyLimit("header_size", p.limits.HeaderSize, int64(headerLen))
			return uploaderr.LimitExceeded("header_size", p.limits.HeaderSize, int64(headerLen))
		}
		if idx < 0 {
			if atBoundary {
				return uploaderr.MalformedHeader("boundary encountered before end of part headers")
			}
			return nil
		}
		block := append([]byte(nil), p.headerBuf.Bytes()[:idx]...)
		remainder := append([]byte(nil), p.headerBuf.Bytes()[idx+len(headerTerminator):]...)
		p.headerBuf.Reset()
		if err := p.startPart(block); err != nil {
			return err
		}
		return p.consume(remainder, atBoundary)

	case stateBody:
		return p.appendBody(data, atBoundary)

	default:
		return nil
	}
}

func (p *Parser) startPart(block []byte) error {
	ph, err := parseHeaderBlock(block)
	if err != nil {
		return err
	}
	if len(ph.fieldName) > p.limits.FieldNameSize {
		p.notifyLimit("field_name_size", int64(p.limits.FieldNameSize), int64(len(ph.fieldName)))
		return uploaderr.LimitExceeded("field_name_size", int64(p.limits.FieldNameSize), int64(len(ph.fieldName)))
	}

	if ph.isFile {
		p.fileCount++
		if p.fileCount > p.limits.Files {
			p.notifyLimit("files", int64(p.limits.Files), int64(p.fileCount))
			return uploaderr.LimitExceeded("files", int64(p.limits.Files), int64(p.fileCount))
		}
	} else {
		p.fieldCount++
		if p.fieldCount > p.limits.Fields {
			p.notifyLimit("fields", int64(p.limits.Fields), int64(p.fieldCount))
			return uploaderr.LimitExceeded("fields", int64(p.limits.Fields), int64(p.fieldCount))
		}
	}

	p.current = ph
	p.bytesInPart = 0
	p.pendingTail = nil
	p.fieldBuf.Reset()

	if ph.isFile {
		pr, pw := io.Pipe()
		p.pw = pw
		p.onFile(FileInfo{
			FieldName: ph.fieldName,
			Filename:  ph.filename,
			MIMEType:  ph.contentType,
			Encoding:  ph.encoding,
		}, pr)
	}

	p.state = stateBody
	return nil
}

// appendBody forwards body bytes downstream, holding back up to two bytes
// so that the CRLF immediately preceding the next boundary is never
// delivered to a consumer. atBoundary means data is the part's last
// segment; the two held-back bytes (the CRLF) are then discarded
// unconditionally, matching every known producer even when that means a
// body that intentionally ends in CRLF loses those two bytes.
func (p *Parser) appendBody(data []byte, atBoundary bool) error {
	combined := make([]byte, 0, len(p.pendingTail)+len(data))
	combined = append(combined, p.pendingTail...)
	combined = append(combined, data...)

	if atBoundary {
		strip := 2
		if strip > len(combined) {
			strip = len(combined)
		}
		p.pendingTail = nil
		if err := p.writeBodyBytes(combined[:len(combined)-strip]); err != nil {
			return err
		}
		return p.finishPart()
	}

	if len(combined) <= 2 {
		p.pendingTail = combined
		return nil
	}

	forward := combined[:len(combined)-2]
	p.pendingTail = append([]byte(nil), combined[len(combined)-2:]...)
	return p.writeBodyBytes(forward)
}

func (p *Parser) writeBodyBytes(b []byte) error {
	if len(b) == 0 {
		return nil
	}

	newTotal := p.bytesInPart + int64(len(b))

	if p.current.isFile {
		if newTotal > p.limits.FileSize {
			p.notifyLimit("file_size", p.limits.FileSize, newTotal)
			return uploaderr.LimitExceeded("file_size", p.limits.FileSize, newTotal)
		}
		p.bytesInPart = newTotal
		if _, err := p.pw.Write(b); err != nil {
			return err
		}
		return nil
	}

	if newTotal > p.limits.FieldSize {
		p.notifyLimit("field_size", p.limits.FieldSize, newTotal)
		return uploaderr.LimitExceeded("field_size", p.limits.FieldSize, newTotal)
	}
	p.bytesInPart = newTotal
	p.fieldBuf.Write(b)
	return nil
}

func (p *Parser) finishPart() error {
	if p.current.isFile {
		p.pw.Close()
		p.pw = nil
	} else {
		p.onField(p.current.fieldName, p.fieldBuf.String())
	}
	p.current = partHeader{}
	p.fieldBuf.Reset()
	p.bytesInPart = 0
	p.state = stateHeader
	return nil
}

func (p *Parser) onBoundary(final bool) error {
	if p.state == statePreamble {
		p.state = stateHeader
	}
	if final {
		p.state = stateEnd
	}
	return nil
}

func (p *Parser) notifyLimit(kind string, limit, value int64) {
	if p.onLimit != nil {
		p.onLimit(kind, limit, value)
	}
}
