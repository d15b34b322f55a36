package reader

import "github.com/grokify/omnibatch"

// NewDataReader builds the decorator chain described by params on top of
// core and returns the batch reader at its head.
//
// A Ranged reader is added when the skip applies to the global stream or a
// read limit is set, and a Sharded reader when there is more than one
// shard. The result for a single unbounded shard is a BatchReader directly
// over core.
func NewDataReader(params *omnibatch.Params, core omnibatch.InstanceReader, opts ...Option) (*BatchReader, error) {
	var r omnibatch.InstanceReader = core

	var skip int64
	if params.SkipScope() == omnibatch.SkipScopeGlobal {
		skip = params.NumInstancesToSkip()
	}
	limit, hasLimit := params.NumInstancesToRead()
	if !hasLimit {
		limit = -1
	}
	if skip > 0 || hasLimit {
		r = NewRanged(r, skip, limit, opts...)
	}

	if params.ShardCount() > 1 {
		sharded, err := NewSharded(r, params.ShardIndex(), params.ShardCount())
		if err != nil {
			return nil, err
		}
		r = sharded
	}

	return NewBatchReader(r, params, opts...), nil
}
