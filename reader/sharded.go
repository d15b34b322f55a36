package reader

import (
	"context"

	"github.com/grokify/omnibatch"
)

// Sharded keeps the instances at positions i of the inner stream with
// i mod count == index and drops the rest.
type Sharded struct {
	*base

	inner    omnibatch.InstanceReader
	index    int64
	count    int64
	position int64
}

// NewSharded creates a shard decorator over inner. It fails with
// omnibatch.ErrInvalidConfig unless 0 <= index < count.
func NewSharded(inner omnibatch.InstanceReader, index, count int) (*Sharded, error) {
	if err := omnibatch.ValidateShard(index, count); err != nil {
		return nil, err
	}
	r := &Sharded{
		inner: inner,
		index: int64(index),
		count: int64(count),
	}
	r.base = newBase(r)
	return r, nil
}

func (r *Sharded) readInstanceCore(ctx context.Context) (omnibatch.Instance, error) {
	for {
		inst, err := r.inner.ReadInstance(ctx)
		if err != nil {
			return omnibatch.Instance{}, err
		}
		pos := r.position
		r.position++
		if pos%r.count == r.index {
			return inst, nil
		}
	}
}

func (r *Sharded) resetCore() {
	r.position = 0
	r.inner.Reset()
}

var _ omnibatch.InstanceReader = (*Sharded)(nil)
