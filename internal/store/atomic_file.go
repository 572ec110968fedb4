package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// ErrFinished is returned by writes after Commit or Abort.
var ErrFinished = errors.New("store: file already committed or aborted")

// AtomicFile is an io.Writer whose content replaces path only on Commit.
type AtomicFile struct {
	path string
	mode os.FileMode
	f    *os.File
	done bool
}

var _ io.Writer = (*AtomicFile)(nil)

// CreateAtomic stages a new version of path, to be given mode on Commit.
func CreateAtomic(path string, mode os.FileMode) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", path, err)
	}
	return &AtomicFile{path: path, mode: mode, f: f}, nil
}

// Path returns the target path.
func (a *AtomicFile) Path() string { return a.path }

// Write appends p to the staged file.
func (a *AtomicFile) Write(p []byte) (int, error) {
	if a.done {
		return 0, ErrFinished
	}
	return a.f.Write(p)
}

// Commit syncs the staged file and renames it over the target.
func (a *AtomicFile) Commit() error {
	if a.done {
		return ErrFinished
	}
	a.done = true
	tmp := a.f.Name()

	if err := a.f.Chmod(a.mode); err != nil {
		return multierr.Combine(err, a.f.Close(), os.Remove(tmp))
	}
	if err := a.f.Sync(); err != nil {
		return multierr.Combine(err, a.f.Close(), os.Remove(tmp))
	}
	if err := a.f.Close(); err != nil {
		return multierr.Append(err, os.Remove(tmp))
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return multierr.Append(fmt.Errorf("commit %s: %w", a.path, err), os.Remove(tmp))
	}
	return nil
}

// Abort discards the staged content. It is a no-op after Commit.
func (a *AtomicFile) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	tmp := a.f.Name()
	return multierr.Combine(a.f.Truncate(0), a.f.Close(), os.Remove(tmp))
}
