package subst

import (
	"bytes"
	"io"
)

// LineSource supplies a template one line at a time from an arbitrary backing
// store. It is the sole extension point for new storage backends: anything
// that can rewind to the start and hand out one line per call can feed the
// engine.
//
// The slice returned by NextLine is a borrowed view that is only valid until
// the next call on the source; implementations are free to reuse internal
// buffers or alias caller-owned memory.
type LineSource interface {
	// Reset repositions the source to the beginning of the template. It is
	// idempotent, so the same template can be rendered repeatedly with
	// different value tables.
	Reset() error

	// NextLine returns the next line of the template, or io.EOF once all
	// bytes have been consumed. A line is delimited by the next '\n' or by
	// the end of the template; a final line without a trailing terminator is
	// still returned. An empty template yields io.EOF immediately.
	NextLine() ([]byte, error)

	// KeepLineEnds controls whether the '\n' terminator is included in the
	// spans returned by NextLine. Retention is off by default, which lets
	// long logical lines be split across template lines transparently;
	// turning it on matters when the destination protocol treats an empty
	// chunk as an end-of-stream marker.
	KeepLineEnds(keep bool)
}

// MemorySource is a LineSource over a caller-owned, read-only byte buffer,
// e.g. an embedded asset or a template blob loaded from a database. It never
// copies the template; it tracks only a byte offset, and the lines it returns
// alias the underlying buffer directly.
type MemorySource struct {
	data     []byte
	off      int
	keepEnds bool
}

// NewMemorySource returns a MemorySource reading from data. The caller must
// not mutate data while the source is in use.
func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data}
}

// Reset rewinds the source to the start of the buffer. It never fails.
func (s *MemorySource) Reset() error {
	s.off = 0
	return nil
}

// KeepLineEnds implements LineSource.
func (s *MemorySource) KeepLineEnds(keep bool) {
	s.keepEnds = keep
}

// NextLine implements LineSource. The returned slice aliases the source
// buffer and must not be modified.
func (s *MemorySource) NextLine() ([]byte, error) {
	if s.off >= len(s.data) {
		return nil, io.EOF
	}
	rest := s.data[s.off:]
	i := bytes.IndexByte(rest, '\n')
	if i < 0 {
		// Final line without a trailing terminator.
		s.off = len(s.data)
		return rest, nil
	}
	s.off += i + 1
	if s.keepEnds {
		return rest[:i+1], nil
	}
	return rest[:i], nil
}
