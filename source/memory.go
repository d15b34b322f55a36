package source

import (
	"bytes"
	"context"
	"io"

	"github.com/grokify/omnibatch"
)

// Memory is a source backed by an in-memory buffer. The buffer must not be
// modified after the source is created.
type Memory struct {
	id          string
	data        []byte
	compression omnibatch.Compression
}

// NewMemory creates an in-memory source.
func NewMemory(id string, data []byte, opts ...Option) *Memory {
	o := applyOptions(opts)
	return &Memory{
		id:          id,
		data:        data,
		compression: o.compression,
	}
}

// ID returns the identifier given at creation.
func (m *Memory) ID() string { return m.id }

// Compression returns the compression kind of the buffer.
func (m *Memory) Compression() omnibatch.Compression { return m.compression }

// Open returns a reader over the buffer.
func (m *Memory) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

// Ensure Memory implements omnibatch.Source
var _ omnibatch.Source = (*Memory)(nil)
