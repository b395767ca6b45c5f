// Package tmpout writes output files through a temporary file that is
// renamed into place on success and removed otherwise.
//
//	f, err := tmpout.Acquire(dir, "out-*.pdf")
//	if err != nil {
//	    return err
//	}
//	defer f.Release()
//	// write to f
//	return f.Commit(finalPath)
package tmpout

import (
	"errors"
	"fmt"
	"os"
)

// Mode is the permission of committed files, the same as os.Create under
// the usual 022 umask.
const Mode os.FileMode = 0o644

// ErrClosed is returned when a File is used after Commit or Release.
var ErrClosed = errors.New("tmpout: file already committed or released")

// File is a temporary output file.
type File struct {
	f         *os.File
	committed bool
	released  bool
}

// Acquire creates a temporary file in dir (the system temporary directory
// if dir is empty) whose name follows pattern as in os.CreateTemp.
func Acquire(dir, pattern string) (*File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("tmpout: %w", err)
	}
	return &File{f: f}, nil
}

// Name returns the path of the temporary file.
func (t *File) Name() string { return t.f.Name() }

// Write implements io.Writer.
func (t *File) Write(p []byte) (int, error) {
	if t.committed || t.released {
		return 0, ErrClosed
	}
	return t.f.Write(p)
}

// Commit syncs and closes the file, sets its permission to Mode and renames
// it to path. Rename is atomic when path is on the same file system as the
// temporary file.
func (t *File) Commit(path string) error {
	if t.committed || t.released {
		return ErrClosed
	}
	if err := t.f.Chmod(Mode); err != nil {
		return fmt.Errorf("tmpout: %w", err)
	}
	if err := t.f.Sync(); err != nil {
		return fmt.Errorf("tmpout: %w", err)
	}
	if err := t.f.Close(); err != nil {
		return fmt.Errorf("tmpout: %w", err)
	}
	if err := os.Rename(t.f.Name(), path); err != nil {
		return fmt.Errorf("tmpout: %w", err)
	}
	t.committed = true
	return nil
}

// Release closes and removes the temporary file unless it was committed.
// It may be called any number of times.
func (t *File) Release() {
	if t.released {
		return
	}
	t.released = true
	if t.committed {
		return
	}
	t.f.Close()
	os.Remove(t.f.Name())
}
