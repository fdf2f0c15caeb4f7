package subst

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileSourceLines(t *testing.T) {
	src := NewFileSource(strings.NewReader("one\ntwo\nthree"))

	got := drainSource(t, src)
	want := []string{"one", "two", "three"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSourceKeepLineEnds(t *testing.T) {
	src := NewFileSource(strings.NewReader("one\ntwo\n"))
	src.KeepLineEnds(true)

	got := drainSource(t, src)
	want := []string{"one\n", "two\n"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSourceLongLine(t *testing.T) {
	// Longer than the default bufio window, forcing the ErrBufferFull path.
	long := strings.Repeat("x", 10000)
	src := NewFileSource(strings.NewReader(long + "\nshort\n"))

	got := drainSource(t, src)
	want := []string{long, "short"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSourceReset(t *testing.T) {
	src := NewFileSource(strings.NewReader("a\nb\nc\n"))

	// Read partway, then rewind.
	if _, err := src.NextLine(); err != nil {
		t.Fatalf("NextLine() error = %v", err)
	}
	if err := src.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	got := drainSource(t, src)
	want := []string{"a", "b", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines after reset mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSourceEmpty(t *testing.T) {
	src := NewFileSource(strings.NewReader(""))
	if _, err := src.NextLine(); !errors.Is(err, io.EOF) {
		t.Fatalf("NextLine() on empty source error = %v, want io.EOF", err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greeting.tmpl")
	if err := os.WriteFile(path, []byte("Hi ${0}\nBye ${1}\n"), 0644); err != nil {
		t.Fatalf("failed to write template file: %v", err)
	}

	src, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })

	got := drainSource(t, src)
	want := []string{"Hi ${0}", "Bye ${1}"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenFileMissing(t *testing.T) {
	if _, err := OpenFile(filepath.Join(t.TempDir(), "nope.tmpl")); err == nil {
		t.Fatal("OpenFile() on a missing file succeeded, want error")
	}
}
