package reader

import "github.com/grokify/omnibatch"

// Checkpoint tracks how many real instances a worker has consumed and
// turns that into the skip count that resumes the same run.
//
// With omnibatch.SkipScopeGlobal the resume point is a global stream
// position. It is exact when every shard has consumed the same number of
// instances, which is the case for workers that step in lockstep.
// Padding instances are never counted.
type Checkpoint struct {
	params   *omnibatch.Params
	consumed int64
}

// NewCheckpoint starts tracking a run configured by params.
func NewCheckpoint(params *omnibatch.Params) *Checkpoint {
	return &Checkpoint{params: params}
}

// BatchRead records a consumed batch.
func (c *Checkpoint) BatchRead(b *omnibatch.Batch) {
	c.consumed += int64(len(b.Real()))
}

// InstancesSkipped is part of Observer; skipped instances are already in
// the params' skip count.
func (c *Checkpoint) InstancesSkipped(int64) {}

// ReadFailed is part of Observer.
func (c *Checkpoint) ReadFailed(error) {}

// Consumed returns the number of real instances recorded so far.
func (c *Checkpoint) Consumed() int64 {
	return c.consumed
}

// Reset forgets the recorded batches, matching a BatchReader.Reset.
func (c *Checkpoint) Reset() {
	c.consumed = 0
}

// NumInstancesToSkip returns the skip count, in the params' skip scope,
// that resumes right after the last recorded batch.
func (c *Checkpoint) NumInstancesToSkip() int64 {
	return c.params.NumInstancesToSkip() + c.advance()
}

// Params returns params for resuming the run. In the global scope the
// read limit shrinks by the positions already consumed.
func (c *Checkpoint) Params() (*omnibatch.Params, error) {
	opts := []omnibatch.ParamOption{omnibatch.WithNumInstancesToSkip(c.NumInstancesToSkip())}
	if limit, ok := c.params.NumInstancesToRead(); ok && c.params.SkipScope() == omnibatch.SkipScopeGlobal {
		opts = append(opts, omnibatch.WithNumInstancesToRead(max(limit-c.advance(), 0)))
	}
	return c.params.With(opts...)
}

// advance converts consumed shard instances to positions in the skip
// scope's stream.
func (c *Checkpoint) advance() int64 {
	if c.params.SkipScope() == omnibatch.SkipScopeShard {
		return c.consumed
	}
	return c.consumed * int64(c.params.ShardCount())
}

var _ Observer = (*Checkpoint)(nil)
