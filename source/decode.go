package source

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"github.com/grokify/omnibatch"
	"github.com/grokify/omnibatch/compress/gzip"
	"github.com/grokify/omnibatch/compress/zstd"
)

// sniffSize is the number of leading bytes inspected by CompressionDetect.
const sniffSize = 3072

// OpenDecoded opens src and removes its compression layer.
func OpenDecoded(ctx context.Context, src omnibatch.Source) (io.ReadCloser, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}

	kind := src.Compression()
	switch kind {
	case omnibatch.CompressionInfer:
		kind = omnibatch.InferCompression(src.ID())
	case omnibatch.CompressionDetect:
		br := bufio.NewReaderSize(rc, sniffSize)
		// Peek returns what is available on short input along with an
		// error; a short header is still enough to sniff.
		head, _ := br.Peek(sniffSize)
		kind = Detect(head)
		rc = &bufferedReadCloser{Reader: br, closer: rc}
	}

	dec, err := Decompress(rc, kind)
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("%w: %s: %v", omnibatch.ErrInvalidInstance, src.ID(), err)
	}
	return dec, nil
}

// Decompress wraps rc with a decoder for a concrete compression kind.
// CompressionNone returns rc unchanged.
func Decompress(rc io.ReadCloser, kind omnibatch.Compression) (io.ReadCloser, error) {
	switch kind {
	case omnibatch.CompressionNone:
		return rc, nil
	case omnibatch.CompressionGzip:
		return gzip.NewReader(rc)
	case omnibatch.CompressionZstd:
		return zstd.NewReader(rc)
	default:
		return nil, fmt.Errorf("compression %s cannot be decoded directly", kind)
	}
}

// Detect returns the compression kind of a stream from its leading bytes.
func Detect(head []byte) omnibatch.Compression {
	mtype := mimetype.Detect(head)
	switch {
	case mtype.Is("application/gzip"):
		return omnibatch.CompressionGzip
	case mtype.Is("application/zstd"):
		return omnibatch.CompressionZstd
	default:
		return omnibatch.CompressionNone
	}
}

type bufferedReadCloser struct {
	*bufio.Reader
	closer io.Closer
}

func (b *bufferedReadCloser) Close() error {
	return b.closer.Close()
}
