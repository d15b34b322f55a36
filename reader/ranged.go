package reader

import (
	"context"
	"io"
	"log/slog"

	"github.com/grokify/omnibatch"
)

// Ranged bounds an instance stream. It discards a prefix of skip
// instances on the first read after construction or Reset, then returns
// at most limit instances.
type Ranged struct {
	*base

	inner    omnibatch.InstanceReader
	logger   *slog.Logger
	observer Observer
	skip     int64
	limit    int64
	hasLimit bool

	skipped int64
	read    int64
}

// NewRanged creates a range decorator over inner. A negative limit means
// the stream is unbounded. A completed skip is logged and reported to the
// observers given in opts.
func NewRanged(inner omnibatch.InstanceReader, skip, limit int64, opts ...Option) *Ranged {
	o := applyOptions(opts)
	r := &Ranged{
		inner:    inner,
		logger:   o.logger,
		observer: o.observer,
		skip:     max(skip, 0),
		limit:    limit,
		hasLimit: limit >= 0,
	}
	r.base = newBase(r)
	return r
}

func (r *Ranged) readInstanceCore(ctx context.Context) (omnibatch.Instance, error) {
	if r.hasLimit && r.read >= r.limit {
		return omnibatch.Instance{}, io.EOF
	}

	if r.skipped < r.skip {
		// An error mid-skip keeps the progress made so far.
		for r.skipped < r.skip {
			if _, err := r.inner.ReadInstance(ctx); err != nil {
				return omnibatch.Instance{}, err
			}
			r.skipped++
		}
		r.logger.Info("skipped instances", slog.Int64("skipped", r.skipped))
		r.observer.InstancesSkipped(r.skipped)
	}

	inst, err := r.inner.ReadInstance(ctx)
	if err != nil {
		return omnibatch.Instance{}, err
	}
	r.read++
	return inst, nil
}

func (r *Ranged) resetCore() {
	r.skipped = 0
	r.read = 0
	r.inner.Reset()
}

var _ omnibatch.InstanceReader = (*Ranged)(nil)
