// Package source provides the concrete omnibatch.Source kinds: local files,
// in-memory buffers and objects held in an omnibatch.Store.
//
// Sources are immutable. Open returns the stored bytes; OpenDecoded
// additionally strips the compression layer so decoders always see the
// logical byte stream.
package source

import "github.com/grokify/omnibatch"

// Option configures a Source.
type Option func(*options)

type options struct {
	compression omnibatch.Compression
	memoryMap   bool
}

// WithCompression sets the compression kind of the source.
func WithCompression(c omnibatch.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMemoryMap asks file sources to memory-map regular files instead of
// streaming them. Other source kinds ignore it.
func WithMemoryMap(enabled bool) Option {
	return func(o *options) {
		o.memoryMap = enabled
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
