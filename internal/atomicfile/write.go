// Package atomicfile writes files through a temporary sibling and a rename so
// readers never observe a partially written page or config.
package atomicfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Write atomically replaces path with data.
func Write(path string, data []byte, perm os.FileMode) error {
	return WriteFrom(path, bytes.NewReader(data), perm)
}

// WriteFrom atomically replaces path with everything read from r. The temp
// file lives in the target's directory so the final rename stays on one
// filesystem; it is removed on any failure.
func WriteFrom(path string, r io.Reader, perm os.FileMode) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(f, r); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// WriteIfChanged writes data only when it differs from the current contents
// of path, and reports whether a write happened. A missing file counts as
// changed.
func WriteIfChanged(path string, data []byte, perm os.FileMode) (bool, error) {
	cur, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(cur, data):
		return false, nil
	case err != nil && !os.IsNotExist(err):
		return false, fmt.Errorf("read current file: %w", err)
	}
	if err := Write(path, data, perm); err != nil {
		return false, err
	}
	return true, nil
}
