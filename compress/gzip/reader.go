// Package gzip decodes gzip-compressed sources.
//
// It uses the klauspost/compress implementation, which is a drop-in
// replacement for compress/gzip with faster decoding. Concatenated gzip
// members are read as one stream, matching what gunzip produces.
package gzip

import (
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Reader wraps an io.ReadCloser with gzip decompression.
type Reader struct {
	gr     *gzip.Reader
	closer io.Closer
	closed bool
	mu     sync.Mutex
}

// NewReader creates a new gzip reader that decompresses data from the underlying reader.
// The header is read eagerly, so a stream that is not gzip fails here.
func NewReader(r io.ReadCloser) (*Reader, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &Reader{
		gr:     gr,
		closer: r,
	}, nil
}

// Read reads decompressed data from the underlying reader.
func (r *Reader) Read(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, io.ErrClosedPipe
	}

	return r.gr.Read(p)
}

// Close closes both the gzip reader and the underlying reader.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	if err := r.gr.Close(); err != nil {
		_ = r.closer.Close()
		return err
	}

	return r.closer.Close()
}

// Name returns the original file name stored in the gzip header, if any.
func (r *Reader) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gr.Name
}

// Ensure Reader implements io.ReadCloser
var _ io.ReadCloser = (*Reader)(nil)
