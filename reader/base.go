// Package reader assembles instance streams into batches.
//
// A pipeline is a chain of omnibatch.InstanceReaders:
//
//	SourceReader -> Ranged -> Sharded -> BatchReader
//
// SourceReader decodes the enumerated sources one after another. Ranged
// applies the global skip and read bounds, Sharded keeps every n-th
// instance for this worker and BatchReader groups what is left. Every
// stage is single-threaded and pulls from the stage below it on demand.
// NewDataReader builds the chain from omnibatch.Params.
package reader

import (
	"context"
	"errors"
	"io"

	"github.com/grokify/omnibatch"
)

// readerCore is the variant part of an instance reader. The base calls
// readInstanceCore only while the stream is not exhausted.
type readerCore interface {
	readInstanceCore(ctx context.Context) (omnibatch.Instance, error)
	resetCore()
}

type lifecycle int

const (
	stateFresh lifecycle = iota
	stateStreaming
	stateExhausted
)

// base implements omnibatch.InstanceReader on top of a readerCore.
// Once the core reports io.EOF it is not called again until Reset.
type base struct {
	core  readerCore
	state lifecycle
}

func newBase(core readerCore) *base {
	return &base{core: core}
}

// ReadInstance returns the next instance or io.EOF at the end of the
// stream. Errors other than io.EOF leave the reader usable.
func (b *base) ReadInstance(ctx context.Context) (omnibatch.Instance, error) {
	if b.state == stateExhausted {
		return omnibatch.Instance{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return omnibatch.Instance{}, err
	}

	inst, err := b.core.readInstanceCore(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			b.state = stateExhausted
			return omnibatch.Instance{}, io.EOF
		}
		return omnibatch.Instance{}, err
	}
	b.state = stateStreaming
	return inst, nil
}

// Reset rewinds the reader to its logical beginning.
func (b *base) Reset() {
	b.core.resetCore()
	b.state = stateFresh
}
