// Package omnibatch turns enumerated byte sources into a deterministic,
// shardable, resumable sequence of instance batches for distributed
// training jobs.
//
// Every worker recomputes the same source order and the same shard
// assignment on its own, so no coordination is needed between workers.
// The pipeline is pull-based and single-threaded:
//
//	sources, _ := enumerate.List([]string{"/data/train"}, enumerate.Options{
//	    Pattern: "*.ndjson.gz",
//	})
//	params, _ := omnibatch.NewParams(256,
//	    omnibatch.WithShard(rank, worldSize),
//	    omnibatch.WithNumInstancesToSkip(checkpoint),
//	)
//	core := reader.NewSourceReader(sources, ndjson.Decoder())
//	br, _ := reader.NewDataReader(params, core)
//	for {
//	    batch, err := br.ReadBatch(ctx)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
package omnibatch

import (
	"context"
	"io"
)

// Store represents a read-side storage backend (memory, S3, SFTP).
// Enumerated store keys become Sources that open through NewReader.
//
// Stores are safe for concurrent use by multiple goroutines.
type Store interface {
	// NewReader creates a reader for the given path/key.
	// Returns ErrNotFound if the path does not exist.
	// The returned reader must be closed after use.
	NewReader(ctx context.Context, path string, opts ...ReaderOption) (io.ReadCloser, error)

	// Exists checks if a path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List lists paths with the given prefix.
	// Returns an empty slice if no paths match.
	// The returned paths are relative to the store root.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	// After Close, all other methods return ErrStoreClosed.
	Close() error
}

// Source is an immutable handle to a byte-bearing origin: a regular file,
// a block device, an in-memory buffer or an object in a Store.
//
// Sources carry no read state. Any number of readers may open the same
// Source, each getting an independent byte stream.
type Source interface {
	// ID returns the canonical path or identifier of the source.
	ID() string

	// Compression returns the compression kind the bytes are stored with.
	Compression() Compression

	// Open returns the raw (still compressed) bytes of the source.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// RecordReader reads framed records from an underlying reader.
// Implementations handle record parsing (newlines, length-prefix, etc.).
type RecordReader interface {
	// Read reads the next record.
	// Returns io.EOF when no more records are available.
	// The returned slice is valid until the next call to Read.
	Read() ([]byte, error)

	// Close releases any resources held by the reader.
	Close() error
}

// Decoder opens a Source and returns a reader over its records.
// Concrete formats (NDJSON, lines, ...) provide Decoders.
type Decoder func(ctx context.Context, src Source) (RecordReader, error)

// InstanceReader pulls one decoded instance at a time.
//
// ReadInstance returns io.EOF at the end of the stream. Errors from inner
// readers are returned unchanged. Reset rewinds to the logical beginning,
// re-deriving any skip or shard state from the Params the reader was
// built with.
//
// InstanceReaders are not safe for concurrent use.
type InstanceReader interface {
	ReadInstance(ctx context.Context) (Instance, error)
	Reset()
}
