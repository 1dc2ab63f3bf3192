package upload

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func assertEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected temp dir to be empty, found %d entries", len(entries))
	}
}

func TestWithTempFile_Success(t *testing.T) {
	dir := t.TempDir()
	var seen string

	err := WithTempFile(dir, "upload-*.pdf", strings.NewReader("%PDF-1.7"), func(path string) error {
		seen = path
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if string(data) != "%PDF-1.7" {
			t.Errorf("got content %q", data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(seen) != dir || !strings.HasSuffix(seen, ".pdf") {
		t.Errorf("unexpected path %q", seen)
	}
	assertEmpty(t, dir)
}

func TestWithTempFile_Error(t *testing.T) {
	dir := t.TempDir()
	want := errors.New("invalid PDF")

	err := WithTempFile(dir, "upload-*.pdf", strings.NewReader("x"), func(string) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("got %v, want %v", err, want)
	}
	assertEmpty(t, dir)
}

func TestWithTempFile_Panic(t *testing.T) {
	dir := t.TempDir()

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Errorf("expected panic to propagate, got %v", r)
			}
		}()
		_ = WithTempFile(dir, "upload-*.pdf", strings.NewReader("x"), func(string) error { panic("boom") })
	}()
	assertEmpty(t, dir)
}

func TestWithTempFile_CallbackRemoves(t *testing.T) {
	dir := t.TempDir()
	err := WithTempFile(dir, "upload-*.pdf", strings.NewReader("x"), func(path string) error {
		return os.Remove(path)
	})
	if err != nil {
		t.Errorf("already-removed file should not be an error: %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWithTempFile_CopyError(t *testing.T) {
	dir := t.TempDir()
	called := false
	err := WithTempFile(dir, "upload-*.pdf", failingReader{}, func(string) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Errorf("expected copy error before callback, err=%v called=%v", err, called)
	}
	assertEmpty(t, dir)
}

func TestWithTempFile_BadDir(t *testing.T) {
	err := WithTempFile(filepath.Join(t.TempDir(), "missing"), "upload-*.pdf", strings.NewReader("x"), func(string) error { return nil })
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
