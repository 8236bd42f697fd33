package atomicfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Some references:
// - https://www.slideshare.net/nan1nan1/eat-my-data
// - https://lwn.net/Articles/457667/

var (
	// ErrCancelled is returned by calls subsequent to Cancel()
	ErrCancelled = errors.New("cancelled")

	_ io.Writer = &File{}
)

// File is a file that only appears at its destination after Commit()
type File struct {
	// permissions of the destination file, 0644 if 0
	Perm os.FileMode

	dstPath string
	dir     string
	tmpFile *os.File
	tmpPath string
	err     error
}

// New creates a temporary file next to path
func New(path string) (*File, error) {
	dir, name := filepath.Split(path)
	if name == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	// fails early if dir doesn't exist
	tmpFile, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &File{
		dstPath: path,
		dir:     dir,
		tmpFile: tmpFile,
		tmpPath: tmpFile.Name(),
	}, nil
}

// TempPath returns path of the temporary file
func (f *File) TempPath() string {
	return f.tmpPath
}

func (f *File) done() bool {
	return f.tmpFile == nil
}

// fail remembers the first error and removes the temporary file
func (f *File) fail(err error) error {
	if f.err == nil {
		f.err = err
	}
	if !f.done() {
		_ = f.tmpFile.Close()
		_ = os.Remove(f.tmpPath)
		f.tmpFile = nil
	}
	return err
}

func (f *File) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.tmpFile.Write(d)
	if err != nil {
		return n, f.fail(err)
	}
	return n, nil
}

// Cancel removes the temporary file. Destination is not touched.
// No-op after Commit(), so it's meant to be used with defer.
func (f *File) Cancel() {
	if f == nil || f.done() {
		return
	}
	f.fail(ErrCancelled)
}

// Commit syncs the data and renames temporary file to destination.
// Calling it again returns the result of the first call.
func (f *File) Commit() error {
	if f.done() {
		return f.err
	}
	if f.err != nil {
		return f.fail(f.err)
	}

	perm := f.Perm
	if perm == 0 {
		perm = 0644
	}
	tmpFile := f.tmpFile
	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	err := tmpFile.Chmod(perm)
	if err == nil {
		err = tmpFile.Sync()
	}
	errClose := tmpFile.Close()
	f.tmpFile = nil
	if err == nil {
		err = errClose
	}
	if err == nil {
		// this will over-write dstPath (if it exists)
		err = os.Rename(f.tmpPath, f.dstPath)
	}
	if err != nil {
		_ = os.Remove(f.tmpPath)
		f.err = err
		return err
	}

	// make the rename durable
	fdir, _ := os.Open(f.dir)
	if fdir != nil {
		// ignore errors as those are a nice have, not must have
		_ = fdir.Sync()
		_ = fdir.Close()
	}
	return nil
}

// WriteFile writes d to path atomically
func WriteFile(path string, d []byte) error {
	f, err := New(path)
	if err != nil {
		return err
	}
	defer f.Cancel()
	if _, err = f.Write(d); err != nil {
		return err
	}
	return f.Commit()
}
