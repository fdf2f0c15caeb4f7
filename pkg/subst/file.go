package subst

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// FileSource is a LineSource over an io.ReadSeeker, typically an *os.File.
// It reads through a bufio.Reader and accumulates each line into a single
// reusable buffer, so peak memory is bounded by the longest line in the
// template rather than the template size.
type FileSource struct {
	rs       io.ReadSeeker
	r        *bufio.Reader
	buf      []byte
	keepEnds bool
	done     bool
	closer   io.Closer
}

// NewFileSource returns a FileSource reading from rs. The source takes no
// ownership of rs; use OpenFile when the source should manage the file
// lifetime itself.
func NewFileSource(rs io.ReadSeeker) *FileSource {
	return &FileSource{
		rs: rs,
		r:  bufio.NewReader(rs),
	}
}

// OpenFile opens the template file at path and returns a FileSource that owns
// the file handle. The caller must call Close when done.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template file: %w", err)
	}
	s := NewFileSource(f)
	s.closer = f
	return s, nil
}

// Close releases the underlying file if the source was created with OpenFile,
// and is a no-op otherwise.
func (s *FileSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// KeepLineEnds implements LineSource.
func (s *FileSource) KeepLineEnds(keep bool) {
	s.keepEnds = keep
}

// Reset implements LineSource by seeking back to the start of the reader.
func (s *FileSource) Reset() error {
	if _, err := s.rs.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind template source: %w", err)
	}
	s.r.Reset(s.rs)
	s.done = false
	return nil
}

// NextLine implements LineSource. The returned slice is the source's internal
// buffer and is overwritten by the next call.
func (s *FileSource) NextLine() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	s.buf = s.buf[:0]
	for {
		chunk, err := s.r.ReadSlice('\n')
		s.buf = append(s.buf, chunk...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			// Line longer than the bufio window, keep accumulating.
			continue
		}
		if errors.Is(err, io.EOF) {
			s.done = true
			if len(s.buf) == 0 {
				return nil, io.EOF
			}
			// Final line without a trailing terminator.
			return s.buf, nil
		}
		return nil, fmt.Errorf("failed to read template line: %w", err)
	}
	if s.keepEnds {
		return s.buf, nil
	}
	return s.buf[:len(s.buf)-1], nil
}
