package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// writeFileAtomic writes data next to path and renames it into place, so a
// concurrent reader sees either the old or the new content.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return eris.Wrapf(err, "atomic: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "atomic: create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "atomic: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "atomic: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "atomic: close temp file")
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return eris.Wrap(err, "atomic: chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "atomic: rename into %s", path)
	}
	return nil
}

// WriteJSON atomically replaces path with the indented JSON form of v.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "json: encode %s", path)
	}
	return writeFileAtomic(path, append(data, '\n'), 0644)
}
