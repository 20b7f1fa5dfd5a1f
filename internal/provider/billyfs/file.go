package billyfs

import (
	"errors"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"

	"github.com/cloudfs/mountfs/internal/provider"
)

// File wraps billy.File to implement provider.File.
// It keeps the filesystem for Size() since billy.File has no Stat().
type File struct {
	file    billy.File
	fs      billy.Basic
	mount   *Mount
	name    string // path inside the mount
	path    string // full path as given by the caller
	written bool
	closed  bool
}

// Read reads up to len(p) bytes. End of file is reported as (0, nil).
func (f *File) Read(p []byte) (int, error) {
	n, err := f.file.Read(p)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, provider.Classify(err, f.path)
}

// Write writes p and classifies any failure.
func (f *File) Write(p []byte) (int, error) {
	n, err := f.file.Write(p)
	if n > 0 {
		f.written = true
	}
	if err == nil && n < len(p) {
		return n, provider.ErrShortWrite(f.path, n, len(p))
	}
	return n, provider.Classify(err, f.path)
}

// Size returns the current size of the file.
func (f *File) Size() (int64, error) {
	info, err := f.fs.Stat(f.name)
	if err != nil {
		return 0, provider.Classify(err, f.path)
	}
	return info.Size(), nil
}

// Close releases the handle. Closing twice is an error.
func (f *File) Close() error {
	if f.closed {
		return provider.Classify(os.ErrClosed, f.path)
	}
	f.closed = true
	if f.written && f.mount != nil {
		f.mount.touch(f.name)
	}
	return provider.Classify(f.file.Close(), f.path)
}

var _ provider.File = (*File)(nil)
