package subst

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// drainEngine collects every rendered line until io.EOF, copying each line
// before the next call invalidates it.
func drainEngine(t *testing.T, e *Engine) []string {
	t.Helper()
	var lines []string
	for {
		line, err := e.NextLine()
		if errors.Is(err, io.EOF) {
			return lines
		}
		if err != nil {
			t.Fatalf("NextLine() error = %v", err)
		}
		lines = append(lines, string(line))
	}
}

func TestEngineSubstitution(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   Values
		want     string
	}{
		{
			name:     "basic substitution",
			template: "a${0}b",
			values:   Values{"X"},
			want:     "aXb",
		},
		{
			name:     "index out of range",
			template: "${5}",
			values:   Values{"A", "B"},
			want:     "",
		},
		{
			name:     "unterminated token is literal",
			template: "${",
			values:   Values{"A"},
			want:     "${",
		},
		{
			name:     "dollar without braces is literal",
			template: "$5",
			values:   Values{"A"},
			want:     "$5",
		},
		{
			name:     "empty braces are literal",
			template: "${}",
			values:   Values{"A"},
			want:     "${}",
		},
		{
			name:     "non-digit in braces is literal",
			template: "${1x}",
			values:   Values{"A", "B"},
			want:     "${1x}",
		},
		{
			name:     "adjacent placeholders",
			template: "${0}${1}",
			values:   Values{"A", "B"},
			want:     "AB",
		},
		{
			name:     "leading zeros",
			template: "${00}",
			values:   Values{"A"},
			want:     "A",
		},
		{
			name:     "trailing dollar",
			template: "price: 5$",
			values:   Values{"A"},
			want:     "price: 5$",
		},
		{
			name:     "overflowing index is out of range",
			template: "x${99999999999999999999999}y",
			values:   Values{"A"},
			want:     "xy",
		},
		{
			name:     "empty value table",
			template: "a${0}b",
			values:   nil,
			want:     "ab",
		},
		{
			name:     "value longer than token",
			template: "${0}",
			values:   Values{"a rather long replacement"},
			want:     "a rather long replacement",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(NewMemorySource([]byte(tt.template)))
			if err := e.Start(tt.values); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			defer e.End()

			line, err := e.NextLine()
			if err != nil {
				t.Fatalf("NextLine() error = %v", err)
			}
			if got := string(line); got != tt.want {
				t.Errorf("NextLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEngineMultiLine(t *testing.T) {
	e := NewEngine(NewMemorySource([]byte("Hi ${0}\nBye ${1}\n")))
	if err := e.Start(Values{"Ann", "Bob"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer e.End()

	got := drainEngine(t, e)
	want := []string{"Hi Ann", "Bye Bob"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rendered lines mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineRestart(t *testing.T) {
	e := NewEngine(NewMemorySource([]byte("Hi ${0}\nBye ${1}\n")))

	if err := e.Start(Values{"Ann", "Bob"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	first := drainEngine(t, e)

	// Start mid-session rewinds the source; the second drain must replay the
	// whole template, here with a different value table.
	if err := e.Start(Values{"Cid", "Dee"}); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	second := drainEngine(t, e)
	e.End()

	if diff := cmp.Diff([]string{"Hi Ann", "Bye Bob"}, first); diff != "" {
		t.Errorf("first pass mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Hi Cid", "Bye Dee"}, second); diff != "" {
		t.Errorf("second pass mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineLifecycle(t *testing.T) {
	e := NewEngine(NewMemorySource([]byte("hello\n")))

	t.Run("next before start", func(t *testing.T) {
		if _, err := e.NextLine(); !errors.Is(err, io.EOF) {
			t.Errorf("NextLine() before Start error = %v, want io.EOF", err)
		}
	})

	t.Run("end is idempotent", func(t *testing.T) {
		e.End()
		e.End()
	})

	t.Run("next after end", func(t *testing.T) {
		if err := e.Start(Values{}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if _, err := e.NextLine(); err != nil {
			t.Fatalf("NextLine() error = %v", err)
		}
		e.End()
		if _, err := e.NextLine(); !errors.Is(err, io.EOF) {
			t.Errorf("NextLine() after End error = %v, want io.EOF", err)
		}
	})
}

func TestEngineBufferOwnership(t *testing.T) {
	e := NewEngine(NewMemorySource([]byte("Hello ${0}\nBye\n")))
	if err := e.Start(Values{"Ann"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer e.End()

	first, err := e.NextLine()
	if err != nil {
		t.Fatalf("NextLine() error = %v", err)
	}
	if string(first) != "Hello Ann" {
		t.Fatalf("first line = %q, want %q", first, "Hello Ann")
	}

	// Producing the next line reuses the output buffer, invalidating the
	// previously returned view.
	if _, err = e.NextLine(); err != nil {
		t.Fatalf("second NextLine() error = %v", err)
	}
	if string(first) == "Hello Ann" {
		t.Error("previous line view still intact after next produce; expected it to be invalidated")
	}
}

func TestEngineRetention(t *testing.T) {
	const template = "Hi ${0}\nBye ${1}\n"

	t.Run("retention off strips terminators", func(t *testing.T) {
		src := NewMemorySource([]byte(template))
		e := NewEngine(src)
		if err := e.Start(Values{"Ann", "Bob"}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer e.End()
		for _, line := range drainEngine(t, e) {
			if strings.ContainsRune(line, '\n') {
				t.Errorf("line %q contains a terminator with retention off", line)
			}
		}
	})

	t.Run("retention on reproduces the template", func(t *testing.T) {
		var out bytes.Buffer
		src := NewMemorySource([]byte(template))
		if err := Render(&out, src, Values{"Ann", "Bob"}); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if got, want := out.String(), "Hi Ann\nBye Bob\n"; got != want {
			t.Errorf("Render() = %q, want %q", got, want)
		}
	})

	t.Run("empty template renders nothing", func(t *testing.T) {
		var out bytes.Buffer
		if err := Render(&out, NewMemorySource(nil), Values{"Ann"}); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("Render() of empty template wrote %q", out.String())
		}
	})
}

func TestEngineSourceErrorPropagates(t *testing.T) {
	src := &failingSource{err: errors.New("flash read fault")}
	e := NewEngine(src)
	if err := e.Start(Values{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer e.End()

	if _, err := e.NextLine(); !errors.Is(err, src.err) {
		t.Errorf("NextLine() error = %v, want %v", err, src.err)
	}
}

// failingSource is a LineSource whose reads always fail, standing in for a
// broken storage backend.
type failingSource struct {
	err error
}

func (s *failingSource) Reset() error              { return nil }
func (s *failingSource) KeepLineEnds(bool)         {}
func (s *failingSource) NextLine() ([]byte, error) { return nil, s.err }

func BenchmarkEngineNextLine(b *testing.B) {
	template := bytes.Repeat([]byte("some literal text ${0} more text ${1} tail\n"), 100)
	values := Values{"first", "second"}
	e := NewEngine(NewMemorySource(template))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.Start(values); err != nil {
			b.Fatal(err)
		}
		for {
			_, err := e.NextLine()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				b.Fatal(err)
			}
		}
	}
	e.End()
}
