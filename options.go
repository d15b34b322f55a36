package omnibatch

// ReaderOption configures a reader created by Store.NewReader.
type ReaderOption func(*ReaderConfig)

// ReaderConfig holds configuration for creating a store reader.
type ReaderConfig struct {
	// Offset is the byte offset to start reading from.
	Offset int64

	// Limit is the maximum number of bytes to read.
	// 0 means no limit.
	Limit int64
}

// WithOffset sets the byte offset to start reading from.
func WithOffset(offset int64) ReaderOption {
	return func(c *ReaderConfig) {
		c.Offset = offset
	}
}

// WithLimit sets the maximum number of bytes to read.
func WithLimit(limit int64) ReaderOption {
	return func(c *ReaderConfig) {
		c.Limit = limit
	}
}

// ApplyReaderOptions applies options to a ReaderConfig.
func ApplyReaderOptions(opts ...ReaderOption) *ReaderConfig {
	config := &ReaderConfig{}
	for _, opt := range opts {
		opt(config)
	}
	return config
}
