package boundary

import (
	"bytes"
	"math/rand"
	"testing"
)

// collect feeds chunks through a Scanner and rebuilds each match's full
// segment: the pending bytes emitted since the previous match followed by the
// match's own Data. emitted holds the bytes after the last match (pending
// plus Flush).
func collect(t *testing.T, delim []byte, chunks [][]byte) (matches []Match, emitted []byte) {
	t.Helper()
	s := New(delim)
	var segment []byte
	for _, c := range chunks {
		m, pending := s.Scan(c)
		for _, match := range m {
			match.Data = append(segment, match.Data...)
			segment = nil
			matches = append(matches, match)
		}
		segment = append(segment, pending...)
	}
	emitted = append(segment, s.Flush()...)
	return matches, emitted
}

func TestScanSingleChunk(t *testing.T) {
	body := []byte("hello--Bworld--B--tail")
	matches, emitted := collect(t, []byte("--B"), [][]byte{body})

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matches), matches)
	}
	if !bytes.Equal(matches[0].Data, []byte("hello")) {
		t.Errorf("match 0 data = %q, want %q", matches[0].Data, "hello")
	}
	if matches[0].Final {
		t.Errorf("match 0 should not be final")
	}
	if !bytes.Equal(matches[1].Data, []byte("world")) {
		t.Errorf("match 1 data = %q, want %q", matches[1].Data, "world")
	}
	if !matches[1].Final {
		t.Errorf("match 1 should be final")
	}
	if !bytes.Equal(emitted, []byte("--tail")) {
		t.Errorf("emitted = %q, want %q", emitted, "--tail")
	}
}

func TestScanOneByteAtATime(t *testing.T) {
	body := []byte("hello--Bworld--B--tail")
	chunks := make([][]byte, len(body))
	for i, b := range body {
		chunks[i] = []byte{b}
	}

	matches, emitted := collect(t, []byte("--B"), chunks)

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matches), matches)
	}
	if !bytes.Equal(matches[0].Data, []byte("hello")) {
		t.Errorf("match 0 data = %q, want %q", matches[0].Data, "hello")
	}
	if !bytes.Equal(matches[1].Data, []byte("world")) {
		t.Errorf("match 1 data = %q, want %q", matches[1].Data, "world")
	}
	if !matches[1].Final {
		t.Errorf("match 1 should be final")
	}
	if !bytes.Equal(emitted, []byte("--tail")) {
		t.Errorf("emitted = %q, want %q", emitted, "--tail")
	}
}

// TestScanEquivalentToIndexOf checks invariant 4 from the design notes:
// scanning is equivalent, over any chunking, to indexOf(D) over the
// concatenation, modulo the retained carryover which Flush exposes.
func TestScanEquivalentToIndexOf(t *testing.T) {
	delim := []byte("--boundary123")
	body := []byte("preamble" + string(delim) + "fieldbodyhere" + string(delim) + "moredata" + string(delim) + "--trailing")

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		chunks := randomChunks(rng, body)
		matches, emitted := collect(t, delim, chunks)

		var want [][]byte
		rest := body
		for {
			idx := bytes.Index(rest, delim)
			if idx < 0 {
				break
			}
			want = append(want, rest[:idx])
			rest = rest[idx+len(delim):]
		}

		if len(matches) != len(want) {
			t.Fatalf("trial %d: got %d matches, want %d", trial, len(matches), len(want))
		}
		for i := range want {
			if !bytes.Equal(matches[i].Data, want[i]) {
				t.Fatalf("trial %d: match %d = %q, want %q", trial, i, matches[i].Data, want[i])
			}
		}
		if !matches[len(matches)-1].Final {
			t.Fatalf("trial %d: last match should be final", trial)
		}

		var all []byte
		for _, m := range matches {
			all = append(all, m.Data...)
		}
		all = append(all, emitted...)
		// rest (after the final matched boundary) should equal emitted.
		if !bytes.Equal(rest, emitted) {
			t.Fatalf("trial %d: emitted tail = %q, want %q", trial, emitted, rest)
		}
		_ = all
	}
}

func TestScanNoBoundaryPresent(t *testing.T) {
	s := New([]byte("--B"))
	matches, pending := s.Scan([]byte("just some plain bytes with no delimiter"))
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %+v", matches)
	}
	want := []byte("just some plain bytes with no delimit")
	if !bytes.Equal(pending, want) {
		t.Fatalf("pending = %q, want %q", pending, want)
	}
}

func TestScanEmptyChunk(t *testing.T) {
	s := New([]byte("--B"))
	matches, pending := s.Scan(nil)
	if matches != nil || pending != nil {
		t.Fatalf("expected nil/nil for empty input, got %+v / %q", matches, pending)
	}
}

func randomChunks(rng *rand.Rand, body []byte) [][]byte {
	var chunks [][]byte
	for len(body) > 0 {
		n := rng.Intn(4) + 1
		if n > len(body) {
			n = len(body)
		}
		chunks = append(chunks, body[:n])
		body = body[n:]
	}
	return chunks
}
