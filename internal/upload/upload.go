// Package upload manages the on-disk lifetime of uploaded artifacts.
package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// WithTempFile copies r into a new file in dir and calls fn with its path.
// The file is removed when WithTempFile returns, including when fn panics;
// the panic is re-raised after cleanup.
func WithTempFile(dir, pattern string, r io.Reader, fn func(path string) error) (err error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Error("failed to remove temp file", "path", path, "error", rmErr)
			if err == nil {
				err = fmt.Errorf("remove temp file: %w", rmErr)
			}
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	return fn(path)
}
