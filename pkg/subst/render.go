package subst

import (
	"errors"
	"io"
)

// Render runs a complete session over src and writes every rendered line to
// w. It turns line-ending retention on for the duration, so the output is the
// template itself with placeholders substituted, byte for byte. The session
// is always ended, even when a write fails partway through.
func Render(w io.Writer, src LineSource, values Values) error {
	src.KeepLineEnds(true)
	e := NewEngine(src)
	if err := e.Start(values); err != nil {
		return err
	}
	defer e.End()

	for {
		line, err := e.NextLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err = w.Write(line); err != nil {
			return err
		}
	}
}
