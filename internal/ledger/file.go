package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// File stores the set as a JSON array of ids in a single file. Each save
// rewrites the whole file through a temp file and rename.
type File struct {
	path string
}

// NewFile returns a ledger backed by path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the ledger file location.
func (f *File) Path() string { return f.path }

// Load reads the file. A missing file is an empty set; a malformed file is
// an error so a batch never runs against a ledger it could not read.
func (f *File) Load(_ context.Context) (Set, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewSet(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: read %s", f.path)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, eris.Wrapf(err, "ledger: parse %s", f.path)
	}
	return NewSet(ids...), nil
}

// Save writes the sorted set atomically.
func (f *File) Save(_ context.Context, s Set) error {
	data, err := json.MarshalIndent(s.Sorted(), "", "  ")
	if err != nil {
		return eris.Wrap(err, "ledger: marshal")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "ledger: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "ledger: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "ledger: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "ledger: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "ledger: close temp file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return eris.Wrapf(err, "ledger: replace %s", f.path)
	}
	return nil
}
