package multipart

import "io"

// FileInfo describes a file part as it is emitted to the caller. The
// readable that accompanies it streams exactly the part's body bytes, with
// the trailing CRLF before the boundary removed.
type FileInfo struct {
	FieldName   string
	Filename    string
	MIMEType    string
	Encoding    string
}

// FieldFunc is invoked once per completed text field, in the order the
// fields appear in the request body.
type FieldFunc func(name, value string)

// FileFunc is invoked once a file part's headers have been parsed. r
// streams the part body and must be fully drained (or explicitly closed via
// the pipe's reader Close) before the parser can make further progress,
// since writes into the pipe block until read.
type FileFunc func(info FileInfo, r io.Reader)

// LimitFunc is invoked when a configured limit is exceeded, naming the
// limit category and the value that triggered the rejection.
type LimitFunc func(kind string, limit, value int64)
