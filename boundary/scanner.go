// Package boundary implements a cross-chunk scanner for the multipart
// boundary delimiter "--" + token. It is fed arbitrarily sized byte chunks
// (down to one byte at a time) and reports every boundary occurrence as if
// the whole body had arrived in a single call.
package boundary

import "bytes"

// Match describes one boundary occurrence found by a Scan call.
type Match struct {
	// Data holds the bytes preceding this boundary that have not already been
	// returned: it starts after the previous match, or after the last pending
	// bytes an earlier Scan call returned, whichever is later.
	Data []byte

	// Final is true when the boundary is immediately followed by "--",
	// marking the end of the multipart body.
	Final bool
}

// Scanner locates occurrences of a fixed delimiter across an arbitrary
// sequence of chunk writes, holding back just enough trailing bytes that a
// delimiter split across two chunks is never missed.
type Scanner struct {
	delim []byte
	carry []byte
}

// New returns a Scanner that searches for delim, which must be non-empty.
func New(delim []byte) *Scanner {
	d := make([]byte, len(delim))
	copy(d, delim)
	return &Scanner{delim: d}
}

// tailLen is the number of trailing bytes a Scan call must retain when no
// complete delimiter is held back: enough for a partial delimiter
// (len(delim)-1). A complete delimiter still missing the two lookahead
// bytes needed to classify it as Final is held back whole by Scan.
func (s *Scanner) tailLen() int {
	return len(s.delim) - 1
}

// Scan prepends any carryover from the previous call to chunk, searches for
// every complete occurrence of the delimiter, and returns the matches found
// together with any trailing bytes that are safe to emit immediately (bytes
// that cannot be the start of a delimiter instance still pending more data).
//
// Bytes not returned in matches or pending are retained internally and
// reconsidered on the next Scan call.
func (s *Scanner) Scan(chunk []byte) (matches []Match, pending []byte) {
	buf := chunk
	if len(s.carry) > 0 {
		buf = make([]byte, 0, len(s.carry)+len(chunk))
		buf = append(buf, s.carry...)
		buf = append(buf, chunk...)
	}
	s.carry = nil

	if len(buf) == 0 {
		return nil, nil
	}

	start := 0   // start of the unmatched region
	pos := 0     // search cursor
	held := -1   // start of a match held back for lookahead, if any
	for {
		idx := bytes.Index(buf[pos:], s.delim)
		if idx < 0 {
			break
		}
		matchStart := pos + idx
		afterDelim := matchStart + len(s.delim)

		// Need two lookahead bytes beyond the delimiter to know whether it
		// is final ("--" suffix). If they are not yet available, hold this
		// candidate match back for the next Scan call.
		if afterDelim+2 > len(buf) {
			held = matchStart
			break
		}

		final := buf[afterDelim] == '-' && buf[afterDelim+1] == '-'

		data := buf[start:matchStart]
		matches = append(matches, Match{Data: data, Final: final})

		start = afterDelim
		pos = afterDelim
	}

	rest := buf[start:]
	tail := s.tailLen()
	if held >= 0 {
		tail = len(buf) - held
	}
	if len(rest) <= tail {
		s.carry = append(s.carry, rest...)
		return matches, nil
	}

	emitLen := len(rest) - tail
	pending = rest[:emitLen]
	s.carry = append(s.carry, rest[emitLen:]...)
	return matches, pending
}

// Flush returns and clears any remaining carryover. Callers invoke this at
// end-of-input; the returned bytes belong to whatever state the consumer
// was in when input ended (normally an UnexpectedEnd condition, since a
// well-formed body ends with a final boundary consumed by Scan).
func (s *Scanner) Flush() []byte {
	out := s.carry
	s.carry = nil
	return out
}

// Reset clears any retained carryover, discarding it.
func (s *Scanner) Reset() {
	s.carry = nil
}
