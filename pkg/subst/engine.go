package subst

import (
	"bytes"
	"io"
	"math"
)

// Engine drives a LineSource and produces one rendered line at a time, with
// every well-formed ${N} placeholder replaced by the corresponding entry of
// the value table captured at Start.
//
// The engine owns a single output buffer. The slice returned by NextLine is a
// read-only view of that buffer and is only valid until the next NextLine or
// End call; producing a line invalidates the previous one. An Engine is meant
// for one linear consumer loop and is not safe for concurrent use.
type Engine struct {
	src    LineSource
	values Values
	out    []byte
	active bool
}

// NewEngine returns an Engine reading its template from src. Line-ending
// retention is whatever the source is configured to; the engine copies lines
// through as the source hands them out.
func NewEngine(src LineSource) *Engine {
	return &Engine{src: src}
}

// Start begins a render session: it rewinds the source and captures the value
// table. Calling Start mid-session restarts the template from the beginning,
// which is how the same template is re-rendered with different values.
func (e *Engine) Start(values Values) error {
	if err := e.src.Reset(); err != nil {
		return err
	}
	if e.out == nil {
		e.out = make([]byte, 0, 64)
	}
	e.values = values
	e.active = true
	return nil
}

// NextLine renders and returns the next line of the template, or io.EOF once
// the source is exhausted. Calling it before Start or after End also returns
// io.EOF rather than faulting. Any other error comes from the underlying
// source and means the line could not be produced.
//
// The returned slice is owned by the engine and overwritten by the next call.
func (e *Engine) NextLine() ([]byte, error) {
	if !e.active {
		return nil, io.EOF
	}
	// Reusing the buffer here is what invalidates the previously returned
	// line: at most one rendered line is ever alive per engine.
	e.out = e.out[:0]
	raw, err := e.src.NextLine()
	if err != nil {
		return nil, err
	}
	if n := e.renderedLen(raw); cap(e.out) < n {
		e.out = make([]byte, 0, n)
	}
	e.expand(raw)
	return e.out, nil
}

// End finishes the session, dropping the value table reference and the
// outstanding rendered line. It is a no-op when the engine is already idle.
// Callers that leave the consumer loop early must still call End.
func (e *Engine) End() {
	e.values = nil
	e.out = nil
	e.active = false
}

// renderedLen computes the exact length of the rendered line, so expand can
// run against a buffer that never needs to grow. Two passes trade a second
// scan for a single right-sized allocation.
func (e *Engine) renderedLen(raw []byte) int {
	n, i := 0, 0
	for {
		tok, ok := nextToken(raw, i)
		if !ok {
			return n + len(raw) - i
		}
		n += tok.start - i + len(e.values.lookup(tok.index))
		i = tok.end
	}
}

// expand appends the rendered form of raw to the output buffer: literal spans
// verbatim, placeholders replaced by their looked-up values.
func (e *Engine) expand(raw []byte) {
	i := 0
	for {
		tok, ok := nextToken(raw, i)
		if !ok {
			e.out = append(e.out, raw[i:]...)
			return
		}
		e.out = append(e.out, raw[i:tok.start]...)
		e.out = append(e.out, e.values.lookup(tok.index)...)
		i = tok.end
	}
}

// token is one well-formed ${N} placeholder located in a raw line.
type token struct {
	start int // offset of '$'
	end   int // offset just past '}'
	index int // parsed N; -1 when the digit run overflows int
}

// nextToken scans b from offset i for the next well-formed placeholder. A '$'
// not followed by '{', an empty ${}, a non-digit inside the braces, or a ${
// left unterminated at end of line are all ordinary text: the scan simply
// moves past the '$' and keeps looking.
func nextToken(b []byte, i int) (token, bool) {
	for {
		j := bytes.IndexByte(b[i:], '$')
		if j < 0 {
			return token{}, false
		}
		i += j
		if i+1 >= len(b) || b[i+1] != '{' {
			i++
			continue
		}
		idx, overflow := 0, false
		d := i + 2
		for d < len(b) && b[d] >= '0' && b[d] <= '9' {
			if idx > (math.MaxInt-9)/10 {
				overflow = true
			} else {
				idx = idx*10 + int(b[d]-'0')
			}
			d++
		}
		if d == i+2 || d >= len(b) || b[d] != '}' {
			i++
			continue
		}
		if overflow {
			// Still a recognized token, but it can never name a value.
			idx = -1
		}
		return token{start: i, end: d + 1, index: idx}, true
	}
}
