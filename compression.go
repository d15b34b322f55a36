package omnibatch

import (
	"fmt"
	"path"
	"strings"
)

// Compression is the compression kind a source's bytes are stored with.
type Compression int

const (
	// CompressionNone reads the bytes as is.
	CompressionNone Compression = iota

	// CompressionInfer picks the kind from the source ID's extension.
	CompressionInfer

	// CompressionDetect sniffs the first bytes of the stream.
	CompressionDetect

	// CompressionGzip decodes gzip.
	CompressionGzip

	// CompressionZstd decodes Zstandard.
	CompressionZstd
)

var compressionNames = map[Compression]string{
	CompressionNone:   "none",
	CompressionInfer:  "infer",
	CompressionDetect: "detect",
	CompressionGzip:   "gzip",
	CompressionZstd:   "zstd",
}

// String returns the configuration name of the compression kind.
func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// ParseCompression parses a compression name. An empty string selects
// CompressionNone.
func ParseCompression(s string) (Compression, error) {
	if s == "" {
		return CompressionNone, nil
	}
	for c, name := range compressionNames {
		if strings.EqualFold(name, s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown compression %q", ErrInvalidConfig, s)
}

// InferCompression maps a path extension to a concrete compression kind.
// Unknown extensions map to CompressionNone.
func InferCompression(p string) Compression {
	switch strings.ToLower(path.Ext(p)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}
