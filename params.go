package omnibatch

import "fmt"

// LastBatchHandling selects what happens to a batch that is shorter than
// the batch size when the stream ends.
type LastBatchHandling int

const (
	// LastBatchKeep returns the short batch as is.
	LastBatchKeep LastBatchHandling = iota

	// LastBatchDrop discards the short batch and ends the stream.
	LastBatchDrop

	// LastBatchPad fills the short batch up to the batch size using the
	// configured Padder and flags it as padded.
	LastBatchPad
)

// String returns the configuration name of the policy.
func (h LastBatchHandling) String() string {
	switch h {
	case LastBatchKeep:
		return "keep"
	case LastBatchDrop:
		return "drop"
	case LastBatchPad:
		return "pad"
	default:
		return fmt.Sprintf("LastBatchHandling(%d)", int(h))
	}
}

// ParseLastBatchHandling parses "keep", "drop" or "pad".
// An empty string selects LastBatchKeep.
func ParseLastBatchHandling(s string) (LastBatchHandling, error) {
	switch s {
	case "", "keep":
		return LastBatchKeep, nil
	case "drop":
		return LastBatchDrop, nil
	case "pad":
		return LastBatchPad, nil
	default:
		return 0, fmt.Errorf("%w: unknown last batch handling %q", ErrInvalidConfig, s)
	}
}

// SkipScope selects which stream NumInstancesToSkip counts positions in.
type SkipScope int

const (
	// SkipScopeGlobal skips a prefix of the global instance order, before
	// shard partitioning. Resume offsets stay valid when the shard count
	// changes between checkpoints.
	SkipScopeGlobal SkipScope = iota

	// SkipScopeShard skips a prefix of this worker's shard, after
	// partitioning. Offsets are only meaningful for the same shard layout.
	SkipScopeShard
)

// String returns the configuration name of the scope.
func (s SkipScope) String() string {
	switch s {
	case SkipScopeGlobal:
		return "global"
	case SkipScopeShard:
		return "shard"
	default:
		return fmt.Sprintf("SkipScope(%d)", int(s))
	}
}

// ParseSkipScope parses "global" or "shard". An empty string selects
// SkipScopeGlobal.
func ParseSkipScope(s string) (SkipScope, error) {
	switch s {
	case "", "global":
		return SkipScopeGlobal, nil
	case "shard":
		return SkipScopeShard, nil
	default:
		return 0, fmt.Errorf("%w: unknown skip scope %q", ErrInvalidConfig, s)
	}
}

// Padder produces the filler instance for slot i (0-based within the
// batch) of a padded batch. last is the final real instance of the batch.
type Padder func(i int, last Instance) Instance

// RepeatLast is a Padder that repeats the last real instance.
func RepeatLast(_ int, last Instance) Instance {
	return last
}

// Params is the immutable configuration shared by every stage of one
// reader pipeline. Build it with NewParams; the zero value is not usable.
type Params struct {
	batchSize          int
	numInstancesToSkip int64
	numInstancesToRead int64
	hasReadLimit       bool
	shardIndex         int
	shardCount         int
	lastBatch          LastBatchHandling
	padder             Padder
	skipScope          SkipScope
}

// ParamOption configures Params created by NewParams.
type ParamOption func(*Params)

// WithNumInstancesToSkip sets the number of instances discarded from the
// front of the stream before the first batch. This is the resume point.
func WithNumInstancesToSkip(n int64) ParamOption {
	return func(p *Params) {
		p.numInstancesToSkip = n
	}
}

// WithNumInstancesToRead bounds the stream to n instances after the skip.
func WithNumInstancesToRead(n int64) ParamOption {
	return func(p *Params) {
		p.numInstancesToRead = n
		p.hasReadLimit = true
	}
}

// WithShard assigns this pipeline to shard index out of count shards.
func WithShard(index, count int) ParamOption {
	return func(p *Params) {
		p.shardIndex = index
		p.shardCount = count
	}
}

// WithLastBatchHandling sets the short last batch policy.
func WithLastBatchHandling(h LastBatchHandling) ParamOption {
	return func(p *Params) {
		p.lastBatch = h
	}
}

// WithPadder sets the fill policy used by LastBatchPad.
func WithPadder(f Padder) ParamOption {
	return func(p *Params) {
		p.padder = f
	}
}

// WithSkipScope sets which stream the skip count is expressed in.
func WithSkipScope(s SkipScope) ParamOption {
	return func(p *Params) {
		p.skipScope = s
	}
}

// NewParams creates validated Params. Defaults: no skip, no read limit,
// a single shard, LastBatchKeep, SkipScopeGlobal.
func NewParams(batchSize int, opts ...ParamOption) (*Params, error) {
	p := &Params{
		batchSize:  batchSize,
		shardCount: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// With returns a copy of p with opts applied on top, validated like
// NewParams. p itself is not modified.
func (p *Params) With(opts ...ParamOption) (*Params, error) {
	cp := *p
	for _, opt := range opts {
		opt(&cp)
	}
	if err := cp.validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (p *Params) validate() error {
	if p.batchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, p.batchSize)
	}
	if p.numInstancesToSkip < 0 {
		return fmt.Errorf("%w: number of instances to skip must be non-negative, got %d", ErrInvalidConfig, p.numInstancesToSkip)
	}
	if p.hasReadLimit && p.numInstancesToRead < 0 {
		return fmt.Errorf("%w: number of instances to read must be non-negative, got %d", ErrInvalidConfig, p.numInstancesToRead)
	}
	if err := ValidateShard(p.shardIndex, p.shardCount); err != nil {
		return err
	}
	switch p.lastBatch {
	case LastBatchKeep, LastBatchDrop:
	case LastBatchPad:
		if p.padder == nil {
			p.padder = RepeatLast
		}
	default:
		return fmt.Errorf("%w: unknown last batch handling %d", ErrInvalidConfig, int(p.lastBatch))
	}
	if p.skipScope != SkipScopeGlobal && p.skipScope != SkipScopeShard {
		return fmt.Errorf("%w: unknown skip scope %d", ErrInvalidConfig, int(p.skipScope))
	}
	return nil
}

// ValidateShard checks 0 <= index < count.
func ValidateShard(index, count int) error {
	if count < 1 {
		return fmt.Errorf("%w: shard count must be positive, got %d", ErrInvalidConfig, count)
	}
	if index < 0 || index >= count {
		return fmt.Errorf("%w: shard index %d out of range [0, %d)", ErrInvalidConfig, index, count)
	}
	return nil
}

// BatchSize returns the number of instances per batch.
func (p *Params) BatchSize() int { return p.batchSize }

// NumInstancesToSkip returns the resume offset.
func (p *Params) NumInstancesToSkip() int64 { return p.numInstancesToSkip }

// NumInstancesToRead returns the read bound and whether one is set.
func (p *Params) NumInstancesToRead() (int64, bool) {
	return p.numInstancesToRead, p.hasReadLimit
}

// ShardIndex returns this pipeline's shard.
func (p *Params) ShardIndex() int { return p.shardIndex }

// ShardCount returns the total number of shards.
func (p *Params) ShardCount() int { return p.shardCount }

// LastBatchHandling returns the short last batch policy.
func (p *Params) LastBatchHandling() LastBatchHandling { return p.lastBatch }

// Padder returns the fill policy; nil unless LastBatchPad is selected.
func (p *Params) Padder() Padder { return p.padder }

// SkipScope returns the stream the skip count is expressed in.
func (p *Params) SkipScope() SkipScope { return p.skipScope }
