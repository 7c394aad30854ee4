// Package fileutil holds the temp-file-and-rename write used for every
// output file.
package fileutil

import (
	"os"
	"path/filepath"
)

// WriteAtomic creates an empty temp file next to path, lets fill write it by
// name, then renames it over path with mode 0644. On failure the temp file is
// removed and path is untouched.
func WriteAtomic(path string, fill func(tmp string) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := fill(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	return WriteAtomic(path, func(tmp string) error {
		return os.WriteFile(tmp, data, 0o644)
	})
}
