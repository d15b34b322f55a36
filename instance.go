package omnibatch

// Instance is one decoded logical record.
type Instance struct {
	// Source is the ID of the source the instance was decoded from.
	Source string

	// Position is the 0-based index of the instance inside its source.
	Position int64

	// Ordinal is the 0-based index of the instance in the concatenated
	// stream of all sources, before any range or shard decoration.
	Ordinal int64

	// Data is the raw record payload.
	Data []byte
}

// Batch is an ordered group of consecutive instances.
type Batch struct {
	// Index counts batches returned in this pipeline run, starting at 0
	// after the skip phase.
	Index int

	// Instances holds the batch contents, padding included.
	Instances []Instance

	// Padded is true when the batch was filled by a Padder.
	Padded bool

	// NumPadding is the number of trailing filler instances.
	NumPadding int
}

// Size returns the number of instances in the batch, padding included.
func (b *Batch) Size() int {
	return len(b.Instances)
}

// Real returns the instances that were read from the stream.
func (b *Batch) Real() []Instance {
	return b.Instances[:len(b.Instances)-b.NumPadding]
}
