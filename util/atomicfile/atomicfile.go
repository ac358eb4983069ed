// Package atomicfile provides crash-atomic file replacement: writes go to a
// temporary file in the target directory, are fsynced, and then renamed into
// place, so readers observe either the old content or the new content and
// never a partial write.
package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Write atomically replaces the file at path with the given data. The
// containing directory must already exist.
func Write(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return errors.Wrapf(err, "couldn't create temp file for %s", path)
	}
	tmpName := tmp.Name()
	defer func() {
		// Best effort cleanup of the temp file on any failure path.
		if tmpName != "" {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "couldn't write temp file for %s", path)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "couldn't chmod temp file for %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "couldn't fsync temp file for %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "couldn't close temp file for %s", path)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "couldn't rename temp file into %s", path)
	}
	tmpName = ""

	// Sync the directory so the rename itself is durable.
	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrapf(err, "couldn't open directory of %s", path)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return errors.Wrapf(err, "couldn't fsync directory of %s", path)
	}
	return nil
}
