package source

import (
	"context"
	"io"

	"github.com/grokify/omnibatch"
)

// Object is a source stored under a key in an omnibatch.Store.
// The store must stay open for as long as the source is read.
type Object struct {
	store       omnibatch.Store
	key         string
	compression omnibatch.Compression
}

// NewObject creates a source for key in store.
func NewObject(store omnibatch.Store, key string, opts ...Option) *Object {
	o := applyOptions(opts)
	return &Object{
		store:       store,
		key:         key,
		compression: o.compression,
	}
}

// ID returns the object key.
func (o *Object) ID() string { return o.key }

// Compression returns the compression kind of the object.
func (o *Object) Compression() omnibatch.Compression { return o.compression }

// Open opens the object through the store.
func (o *Object) Open(ctx context.Context) (io.ReadCloser, error) {
	return o.store.NewReader(ctx, o.key)
}

// Ensure Object implements omnibatch.Source
var _ omnibatch.Source = (*Object)(nil)
