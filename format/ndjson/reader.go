// Package ndjson provides NDJSON (newline-delimited JSON) decoding for omnibatch.
//
// Each non-empty line of a source is one instance. Lines can be checked for
// JSON validity and for required top-level fields as they are read:
//
//	dec := ndjson.Decoder(ndjson.WithRequiredFields("text", "label"))
//	core := reader.NewSourceReader(sources, dec)
package ndjson

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/grokify/omnibatch"
	"github.com/grokify/omnibatch/source"
)

const (
	// DefaultBufferSize is the default maximum line length.
	DefaultBufferSize = 64 * 1024 // 64KB
)

// Option configures a Reader.
type Option func(*options)

type options struct {
	bufferSize int
	validate   bool
	required   []string
	name       string
}

// WithBufferSize sets the maximum line length the reader accepts.
func WithBufferSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.bufferSize = size
		}
	}
}

// WithValidation rejects lines that are not well-formed JSON with
// omnibatch.ErrInvalidInstance.
func WithValidation(enabled bool) Option {
	return func(o *options) {
		o.validate = enabled
	}
}

// WithRequiredFields rejects lines that are not JSON objects carrying
// every named top-level field with omnibatch.ErrSchema.
func WithRequiredFields(fields ...string) Option {
	return func(o *options) {
		o.required = append(o.required, fields...)
	}
}

// withName labels errors with the source the reader belongs to.
func withName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Reader implements omnibatch.RecordReader for NDJSON format.
// Each record is read as a single line (delimited by newlines).
//
// A line that fails validation is reported once; the following Read
// continues with the next line. A framing error (a line longer than the
// buffer, a failing underlying reader) is reported once and ends the
// stream.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	opts    options
	line    int
	failed  bool
	closed  bool
	mu      sync.Mutex
}

// NewReader creates a new NDJSON reader that reads from the given io.ReadCloser.
// The reader will be closed when the NDJSON reader is closed.
func NewReader(r io.ReadCloser, opts ...Option) *Reader {
	o := options{bufferSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(o.bufferSize, 4096)), o.bufferSize)
	return &Reader{
		scanner: scanner,
		closer:  r,
		opts:    o,
	}
}

// Read reads the next record (JSON line) from the reader.
// Returns io.EOF when no more records are available.
// Empty lines are skipped.
// The returned slice is a copy owned by the caller.
func (r *Reader) Read() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, omnibatch.ErrReaderClosed
	}
	if r.failed {
		return nil, io.EOF
	}

	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := r.check(line); err != nil {
			return nil, err
		}
		// Return a copy since scanner reuses the buffer
		result := make([]byte, len(line))
		copy(result, line)
		return result, nil
	}

	if err := r.scanner.Err(); err != nil {
		// The scanner cannot advance past a framing error.
		r.failed = true
		return nil, fmt.Errorf("%w: %s line %d: %v", omnibatch.ErrInvalidInstance, r.opts.name, r.line+1, err)
	}

	return nil, io.EOF
}

func (r *Reader) check(line []byte) error {
	if len(r.opts.required) > 0 {
		var obj map[string]any
		if err := sonic.Unmarshal(line, &obj); err != nil {
			if !sonic.Valid(line) {
				return fmt.Errorf("%w: %s line %d: malformed JSON", omnibatch.ErrInvalidInstance, r.opts.name, r.line)
			}
			return fmt.Errorf("%w: %s line %d: not a JSON object", omnibatch.ErrSchema, r.opts.name, r.line)
		}
		for _, field := range r.opts.required {
			if _, ok := obj[field]; !ok {
				return fmt.Errorf("%w: %s line %d: missing field %q", omnibatch.ErrSchema, r.opts.name, r.line, field)
			}
		}
		return nil
	}

	if r.opts.validate && !sonic.Valid(line) {
		return fmt.Errorf("%w: %s line %d: malformed JSON", omnibatch.ErrInvalidInstance, r.opts.name, r.line)
	}
	return nil
}

// Close releases any resources held by the reader.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	return r.closer.Close()
}

// Decoder returns an omnibatch.Decoder that opens a source, strips its
// compression and reads it as NDJSON.
func Decoder(opts ...Option) omnibatch.Decoder {
	return func(ctx context.Context, src omnibatch.Source) (omnibatch.RecordReader, error) {
		rc, err := source.OpenDecoded(ctx, src)
		if err != nil {
			return nil, err
		}
		return NewReader(rc, append([]Option{withName(src.ID())}, opts...)...), nil
	}
}

// Ensure Reader implements omnibatch.RecordReader
var _ omnibatch.RecordReader = (*Reader)(nil)
