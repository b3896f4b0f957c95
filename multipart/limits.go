package multipart

// Limits bounds the resources a single multipart request may consume. Every
// field has a sane default so a zero-value Limits is usable as-is via
// WithDefaults.
type Limits struct {
	// FileSize is the maximum number of bytes a single file part may carry.
	FileSize int64
	// Files is the maximum number of file parts a request may contain.
	Files int
	// Fields is the maximum number of non-file parts a request may contain.
	Fields int
	// FieldSize is the maximum number of bytes a single field value may carry.
	FieldSize int64
	// FieldNameSize is the maximum length of a field or file's name parameter.
	FieldNameSize int
	// HeaderSize is the maximum size of a single part's header block.
	HeaderSize int64
}

// DefaultLimits returns the limits the parser uses when none are supplied.
func DefaultLimits() Limits {
	return Limits{
		FileSize:      100 << 20, // 100 MiB
		Files:         10,
		Fields:        100,
		FieldSize:     1 << 20, // 1 MiB
		FieldNameSize: 100,
		HeaderSize:    8 << 10, // 8 KiB
	}
}

// WithDefaults fills any zero-valued field of l with the corresponding
// default, returning the result.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.FileSize == 0 {
		l.FileSize = d.FileSize
	}
	if l.Files == 0 {
		l.Files = d.Files
	}
	if l.Fields == 0 {
		l.Fields = d.Fields
	}
	if l.FieldSize == 0 {
		l.FieldSize = d.FieldSize
	}
	if l.FieldNameSize == 0 {
		l.FieldNameSize = d.FieldNameSize
	}
	if l.HeaderSize == 0 {
		l.HeaderSize = d.HeaderSize
	}
	return l
}
