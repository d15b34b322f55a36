package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/grokify/omnibatch"
)

// File is a regular file or block device on the local filesystem.
type File struct {
	path        string
	compression omnibatch.Compression
	memoryMap   bool
}

// NewFile creates a file source for path.
func NewFile(path string, opts ...Option) *File {
	o := applyOptions(opts)
	return &File{
		path:        path,
		compression: o.compression,
		memoryMap:   o.memoryMap,
	}
}

// ID returns the file path.
func (f *File) ID() string { return f.path }

// Compression returns the compression kind of the file.
func (f *File) Compression() omnibatch.Compression { return f.compression }

// MemoryMap reports whether the file is memory-mapped when opened.
func (f *File) MemoryMap() bool { return f.memoryMap }

// Open opens the file for reading.
func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		rc  io.ReadCloser
		err error
	)
	if f.memoryMap {
		rc, err = openMapped(f.path)
	} else {
		rc, err = os.Open(f.path)
	}
	if err != nil {
		return nil, translateError(err, f.path)
	}
	return rc, nil
}

func (f *File) String() string { return f.path }

func translateError(err error, path string) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", omnibatch.ErrNotFound, path)
	}
	if os.IsPermission(err) {
		return fmt.Errorf("%w: %s", omnibatch.ErrPermissionDenied, path)
	}
	return fmt.Errorf("opening file %s: %w", path, err)
}

// Ensure File implements omnibatch.Source
var _ omnibatch.Source = (*File)(nil)
