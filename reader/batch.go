package reader

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/grokify/omnibatch"
)

// BatchReader groups the instances of an inner reader into batches of
// params.BatchSize().
//
// With omnibatch.SkipScopeShard the reader discards
// params.NumInstancesToSkip() instances of its inner stream before the
// first batch; with omnibatch.SkipScopeGlobal the skip is left to a Ranged
// reader below it. The skip runs lazily on the first ReadBatch after
// construction or Reset.
//
// Instances read before an inner error are kept and returned by the next
// ReadBatch, so a caller that chooses to continue loses nothing.
type BatchReader struct {
	inner    omnibatch.InstanceReader
	params   *omnibatch.Params
	logger   *slog.Logger
	observer Observer

	skip      int64
	skipped   int64
	pending   []omnibatch.Instance
	index     int
	exhausted bool
}

// NewBatchReader creates a batch reader over inner. Neither inner nor
// params is owned by the batch reader.
func NewBatchReader(inner omnibatch.InstanceReader, params *omnibatch.Params, opts ...Option) *BatchReader {
	o := applyOptions(opts)

	var skip int64
	if params.SkipScope() == omnibatch.SkipScopeShard {
		skip = params.NumInstancesToSkip()
	}

	return &BatchReader{
		inner:    inner,
		params:   params,
		logger:   o.logger,
		observer: o.observer,
		skip:     skip,
	}
}

// ReadBatch returns the next batch, or io.EOF once the stream is
// exhausted. Further calls keep returning io.EOF until Reset.
func (r *BatchReader) ReadBatch(ctx context.Context) (*omnibatch.Batch, error) {
	if r.exhausted {
		return nil, io.EOF
	}

	if r.skipped < r.skip {
		if err := r.skipInstances(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				r.exhausted = true
				return nil, io.EOF
			}
			return nil, r.fail(err)
		}
	}

	size := r.params.BatchSize()
	if r.pending == nil {
		r.pending = make([]omnibatch.Instance, 0, size)
	}

	for len(r.pending) < size {
		inst, err := r.inner.ReadInstance(ctx)
		if errors.Is(err, io.EOF) {
			return r.finish()
		}
		if err != nil {
			return nil, r.fail(err)
		}
		r.pending = append(r.pending, inst)
	}

	return r.emit(0), nil
}

func (r *BatchReader) skipInstances(ctx context.Context) error {
	for r.skipped < r.skip {
		if _, err := r.inner.ReadInstance(ctx); err != nil {
			return err
		}
		r.skipped++
	}
	r.logger.Info("skipped instances", slog.Int64("skipped", r.skipped))
	r.observer.InstancesSkipped(r.skipped)
	return nil
}

// finish handles the end of the inner stream with a partial or empty
// pending batch.
func (r *BatchReader) finish() (*omnibatch.Batch, error) {
	r.exhausted = true

	if len(r.pending) == 0 {
		r.logger.Debug("batch stream exhausted", slog.Int("batch_index", r.index))
		return nil, io.EOF
	}

	switch r.params.LastBatchHandling() {
	case omnibatch.LastBatchDrop:
		r.logger.Debug("dropped partial batch",
			slog.Int("batch_index", r.index),
			slog.Int("size", len(r.pending)))
		r.pending = nil
		return nil, io.EOF
	case omnibatch.LastBatchPad:
		padder := r.params.Padder()
		last := r.pending[len(r.pending)-1]
		n := r.params.BatchSize() - len(r.pending)
		for i := len(r.pending); i < r.params.BatchSize(); i++ {
			r.pending = append(r.pending, padder(i, last))
		}
		return r.emit(n), nil
	default:
		return r.emit(0), nil
	}
}

func (r *BatchReader) emit(padding int) *omnibatch.Batch {
	b := &omnibatch.Batch{
		Index:      r.index,
		Instances:  r.pending,
		Padded:     padding > 0,
		NumPadding: padding,
	}
	r.pending = nil
	r.index++
	r.observer.BatchRead(b)
	return b
}

func (r *BatchReader) fail(err error) error {
	r.logger.Error("batch read failed",
		slog.Int("batch_index", r.index),
		slog.Any("error", err))
	r.observer.ReadFailed(err)
	return err
}

// Reset rewinds the pipeline. The next ReadBatch repeats the skip and
// returns batch 0 again.
func (r *BatchReader) Reset() {
	r.inner.Reset()
	r.skipped = 0
	r.pending = nil
	r.index = 0
	r.exhausted = false
}

// Params returns the parameters the reader was built with.
func (r *BatchReader) Params() *omnibatch.Params {
	return r.params
}
