package reader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/grokify/omnibatch"
)

// SourceReader decodes a list of sources in order and concatenates their
// records into one instance stream. Sources are opened lazily, one at a
// time, when the previous one is exhausted.
type SourceReader struct {
	*base

	sources []omnibatch.Source
	decoder omnibatch.Decoder
	logger  *slog.Logger

	next     int
	current  omnibatch.RecordReader
	id       string
	position int64
	ordinal  int64
}

// NewSourceReader creates a reader over sources using decoder for each.
// The sources slice is not copied and must not be modified.
func NewSourceReader(sources []omnibatch.Source, decoder omnibatch.Decoder, opts ...Option) *SourceReader {
	o := applyOptions(opts)
	r := &SourceReader{
		sources: sources,
		decoder: decoder,
		logger:  o.logger,
	}
	r.base = newBase(r)
	return r
}

func (r *SourceReader) readInstanceCore(ctx context.Context) (omnibatch.Instance, error) {
	for {
		if r.current == nil {
			if r.next >= len(r.sources) {
				return omnibatch.Instance{}, io.EOF
			}
			if err := ctx.Err(); err != nil {
				return omnibatch.Instance{}, err
			}

			src := r.sources[r.next]
			r.next++
			rr, err := r.decoder(ctx, src)
			if err != nil {
				// The failing source is skipped if the caller keeps reading.
				r.logger.Error("failed to open source",
					slog.String("source", src.ID()),
					slog.Any("error", err))
				return omnibatch.Instance{}, err
			}
			r.logger.Debug("opened source", slog.String("source", src.ID()))
			r.current = rr
			r.id = src.ID()
			r.position = 0
		}

		data, err := r.current.Read()
		if errors.Is(err, io.EOF) {
			r.closeCurrent()
			continue
		}
		if err != nil {
			return omnibatch.Instance{}, err
		}

		inst := omnibatch.Instance{
			Source:   r.id,
			Position: r.position,
			Ordinal:  r.ordinal,
			Data:     bytes.Clone(data),
		}
		r.position++
		r.ordinal++
		return inst, nil
	}
}

func (r *SourceReader) resetCore() {
	r.closeCurrent()
	r.next = 0
	r.position = 0
	r.ordinal = 0
}

func (r *SourceReader) closeCurrent() {
	if r.current == nil {
		return
	}
	if err := r.current.Close(); err != nil {
		r.logger.Warn("failed to close source",
			slog.String("source", r.id),
			slog.Any("error", err))
	}
	r.current = nil
	r.id = ""
}

// NumSources returns the number of sources the reader concatenates.
func (r *SourceReader) NumSources() int {
	return len(r.sources)
}

// Close releases the source being read, if any. The reader can be Reset
// and read again after Close.
func (r *SourceReader) Close() error {
	r.closeCurrent()
	return nil
}

var _ omnibatch.InstanceReader = (*SourceReader)(nil)
