//go:build unix

package source

import (
	"bytes"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// mappedFile serves reads from a read-only shared mapping.
type mappedFile struct {
	r      *bytes.Reader
	data   []byte
	closed bool
	mu     sync.Mutex
}

// openMapped maps a regular file into memory. Empty files and anything
// that is not a regular file (block devices) fall back to a plain open.
func openMapped(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !fi.Mode().IsRegular() || fi.Size() == 0 {
		return f, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	// The mapping stays valid after the descriptor is closed.
	_ = f.Close()
	if err != nil {
		return nil, &os.PathError{Op: "mmap", Path: path, Err: err}
	}

	return &mappedFile{r: bytes.NewReader(data), data: data}, nil
}

func (m *mappedFile) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, os.ErrClosed
	}
	return m.r.Read(p)
}

func (m *mappedFile) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return unix.Munmap(m.data)
}
