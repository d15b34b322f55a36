package reader_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grokify/omnibatch"
	"github.com/grokify/omnibatch/enumerate"
	"github.com/grokify/omnibatch/format/ndjson"
	"github.com/grokify/omnibatch/reader"
	"github.com/grokify/omnibatch/source"
)

func lines(from, to int) []byte {
	var b strings.Builder
	for i := from; i < to; i++ {
		fmt.Fprintf(&b, "{\"id\":%d,\"label\":%d}\n", i, i%2)
	}
	return []byte(b.String())
}

func readAll(t *testing.T, r omnibatch.InstanceReader) []omnibatch.Instance {
	t.Helper()
	var out []omnibatch.Instance
	for {
		inst, err := r.ReadInstance(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, inst)
	}
}

func TestSourceReaderConcatenates(t *testing.T) {
	sources := []omnibatch.Source{
		source.NewMemory("a", lines(0, 3)),
		source.NewMemory("empty", nil),
		source.NewMemory("b", lines(3, 5)),
	}
	r := reader.NewSourceReader(sources, ndjson.Decoder())
	assert.Equal(t, 3, r.NumSources())

	insts := readAll(t, r)
	require.Len(t, insts, 5)

	wantSource := []string{"a", "a", "a", "b", "b"}
	wantPos := []int64{0, 1, 2, 0, 1}
	for i, inst := range insts {
		assert.Equal(t, wantSource[i], inst.Source)
		assert.Equal(t, wantPos[i], inst.Position)
		assert.Equal(t, int64(i), inst.Ordinal)
		assert.Equal(t, fmt.Sprintf("{\"id\":%d,\"label\":%d}", i, i%2), string(inst.Data))
	}

	r.Reset()
	again := readAll(t, r)
	assert.Equal(t, insts, again)
	require.NoError(t, r.Close())
}

func TestSourceReaderOpenError(t *testing.T) {
	sources := []omnibatch.Source{
		source.NewMemory("a", lines(0, 2)),
		source.NewMemory("broken.gz", []byte("not gzip"), source.WithCompression(omnibatch.CompressionGzip)),
		source.NewMemory("c", lines(2, 4)),
	}
	r := reader.NewSourceReader(sources, ndjson.Decoder())

	var ids []int64
	var errs []error
	for {
		inst, err := r.ReadInstance(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, inst.Ordinal)
	}

	require.Len(t, errs, 1)
	assert.True(t, omnibatch.IsInvalidInstance(errs[0]))
	assert.Equal(t, []int64{0, 1, 2, 3}, ids)
}

func TestPipelineSchemaErrorOnFifthPull(t *testing.T) {
	data := string(lines(0, 4)) + "{\"id\":4}\n" + string(lines(5, 8))
	sources := []omnibatch.Source{source.NewMemory("train.ndjson", []byte(data))}

	params, err := omnibatch.NewParams(3)
	require.NoError(t, err)
	core := reader.NewSourceReader(sources, ndjson.Decoder(ndjson.WithRequiredFields("id", "label")))
	br, err := reader.NewDataReader(params, core)
	require.NoError(t, err)

	b, err := br.ReadBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, b.Size())

	_, err = br.ReadBatch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, omnibatch.ErrSchema)
	assert.Contains(t, err.Error(), "train.ndjson line 5")

	// The caller may continue past the bad record.
	b, err = br.ReadBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"train.ndjson", "train.ndjson", "train.ndjson"},
		[]string{b.Instances[0].Source, b.Instances[1].Source, b.Instances[2].Source})
	assert.Equal(t, []int64{3, 4, 5}, []int64{b.Instances[0].Position, b.Instances[1].Position, b.Instances[2].Position})
}

func TestPipelineFromDisk(t *testing.T) {
	root := t.TempDir()
	for i, name := range []string{"part-10.ndjson", "part-2.ndjson", "part-1.ndjson"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), lines(i*10, i*10+10), 0o644))
	}

	sources, err := enumerate.List([]string{root}, enumerate.Options{Pattern: "*.ndjson"})
	require.NoError(t, err)

	var shards [][]omnibatch.Instance
	for index := 0; index < 2; index++ {
		params, err := omnibatch.NewParams(4,
			omnibatch.WithShard(index, 2),
			omnibatch.WithLastBatchHandling(omnibatch.LastBatchDrop))
		require.NoError(t, err)

		br, err := reader.NewDataReader(params, reader.NewSourceReader(sources, ndjson.Decoder()))
		require.NoError(t, err)

		var got []omnibatch.Instance
		for {
			b, err := br.ReadBatch(context.Background())
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			got = append(got, b.Instances...)
		}
		shards = append(shards, got)
	}

	// 30 instances, 15 per shard, 3 full batches of 4 each.
	require.Len(t, shards[0], 12)
	require.Len(t, shards[1], 12)
	assert.Equal(t, filepath.Join(root, "part-1.ndjson"), shards[0][0].Source)
	assert.Equal(t, int64(0), shards[0][0].Ordinal)
	assert.Equal(t, int64(1), shards[1][0].Ordinal)
	assert.Equal(t, filepath.Join(root, "part-2.ndjson"), shards[1][5].Source)
}
