package enumerate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grokify/omnibatch"
	"github.com/grokify/omnibatch/backend/file"
	"github.com/grokify/omnibatch/backend/memory"
	"github.com/grokify/omnibatch/source"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
	}
}

func ids(sources []omnibatch.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.ID()
	}
	return out
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestListNaturalOrder(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"part-10.ndjson", "part-2.ndjson", "part-1.ndjson",
		"b/x.ndjson", "a10/x.ndjson", "a2/x.ndjson",
	)

	sources, err := List([]string{root}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"a2/x.ndjson", "a10/x.ndjson", "b/x.ndjson",
		"part-1.ndjson", "part-2.ndjson", "part-10.ndjson",
	}, rel(t, root, ids(sources)))
}

func TestListDeterministic(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 50; i++ {
		writeFiles(t, root, filepath.Join("d", string(rune('a'+i%7)), "f"+string(rune('0'+i%10))+".bin"))
	}

	first, err := List([]string{root}, Options{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := List([]string{root}, Options{})
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(again))
		assert.Equal(t, Fingerprint(first), Fingerprint(again))
	}
}

func TestListPattern(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "train/a.ndjson", "train/b.csv", "eval/c.ndjson", "d.ndjson.gz")

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"base name", "*.ndjson", []string{"eval/c.ndjson", "train/a.ndjson"}},
		{"extension set", "*.{csv,gz}", []string{"d.ndjson.gz", "train/b.csv"}},
		{"full path", filepath.ToSlash(root) + "/train/*", []string{"train/a.ndjson", "train/b.csv"}},
		{"star stays in one segment", filepath.ToSlash(root) + "/*", []string{"d.ndjson.gz"}},
		{"double star crosses segments", filepath.ToSlash(root) + "/**/*.ndjson", []string{"eval/c.ndjson", "train/a.ndjson"}},
		{"no match", "*.parquet", []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sources, err := List([]string{root}, Options{Pattern: tc.pattern})
			require.NoError(t, err)
			assert.Equal(t, tc.want, rel(t, root, ids(sources)))
		})
	}
}

func TestListPredicate(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "keep-1.txt", "drop-1.txt", "keep-2.txt")

	var seen []string
	sources, err := List([]string{root}, Options{
		Pattern: "*.txt",
		Predicate: func(p string) bool {
			seen = append(seen, filepath.Base(p))
			return strings.HasPrefix(filepath.Base(p), "keep")
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep-1.txt", "keep-2.txt"}, rel(t, root, ids(sources)))
	assert.Equal(t, []string{"drop-1.txt", "keep-1.txt", "keep-2.txt"}, seen, "predicate runs in enumeration order")
}

func TestListPredicateRunsSequentially(t *testing.T) {
	root := t.TempDir()
	var names []string
	for d := 0; d < 8; d++ {
		for f := 0; f < 50; f++ {
			names = append(names, fmt.Sprintf("dir-%d/file-%d.bin", d, f))
		}
	}
	writeFiles(t, root, names...)

	// Unsynchronised on purpose: go test -race flags concurrent calls.
	var seen []string
	sources, err := List([]string{root}, Options{
		Predicate: func(p string) bool {
			seen = append(seen, p)
			return true
		},
	})
	require.NoError(t, err)
	assert.Len(t, sources, len(names))
	assert.Equal(t, ids(sources), seen)
}

func TestListPatternShortCircuits(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.txt", "b.csv")

	calls := 0
	_, err := List([]string{root}, Options{
		Pattern:   "*.txt",
		Predicate: func(string) bool { calls++; return true },
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestListInvalidPattern(t *testing.T) {
	_, err := List([]string{"/does/not/exist"}, Options{Pattern: "[abc"})
	require.Error(t, err)

	var perr *omnibatch.PatternError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "[abc", perr.Pattern)
	assert.ErrorIs(t, err, omnibatch.ErrInvalidPattern)
	assert.False(t, omnibatch.IsTraversal(err))
}

func TestListMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")

	sources, err := List([]string{root}, Options{})
	require.Error(t, err)
	assert.Nil(t, sources)

	var terr *omnibatch.TraversalError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, root, terr.Path)
	assert.Equal(t, syscall.ENOENT, terr.Errno())
	assert.True(t, omnibatch.IsTraversal(err))
}

func TestListUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	writeFiles(t, root, "ok/a.txt", "locked/b.txt")
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	sources, err := List([]string{root}, Options{})
	require.Error(t, err)
	assert.Nil(t, sources)

	var terr *omnibatch.TraversalError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, syscall.EACCES, terr.Errno())
	assert.Equal(t, locked, terr.Path)
}

func TestListErrorNamesEntry(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "sub/a.txt")
	loop := filepath.Join(root, "sub", "loop")
	require.NoError(t, os.Symlink(loop, loop))

	sources, err := List([]string{root}, Options{})
	require.Error(t, err)
	assert.Nil(t, sources)

	var terr *omnibatch.TraversalError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, loop, terr.Path)
	assert.Equal(t, syscall.ELOOP, terr.Errno())
}

func TestListSkipsDanglingSymlinks(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.txt", "sub/b.txt")
	require.NoError(t, os.Symlink(filepath.Join(root, "gone"), filepath.Join(root, "broken.txt")))
	require.NoError(t, os.Symlink(filepath.Join(root, "sub", "gone"), filepath.Join(root, "sub", "broken.txt")))

	sources, err := List([]string{root}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, rel(t, root, ids(sources)))
}

func TestListFollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	data := t.TempDir()
	writeFiles(t, data, "linked/x.bin")
	writeFiles(t, root, "real.bin")
	require.NoError(t, os.Symlink(filepath.Join(data, "linked"), filepath.Join(root, "dir-link")))
	require.NoError(t, os.Symlink(filepath.Join(root, "real.bin"), filepath.Join(root, "file-link.bin")))

	sources, err := List([]string{root}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"dir-link/x.bin", "file-link.bin", "real.bin"}, rel(t, root, ids(sources)))
}

func TestListFileRootsAndDuplicates(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a/1.txt", "a/2.txt", "b/3.txt")

	sources, err := List([]string{
		filepath.Join(root, "b", "3.txt"),
		filepath.Join(root, "a"),
		root,
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1.txt", "a/2.txt", "b/3.txt"}, rel(t, root, ids(sources)))
}

func TestListSourceOptions(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "x.gz")

	sources, err := List([]string{root}, Options{
		SourceOptions: []source.Option{source.WithCompression(omnibatch.CompressionInfer)},
	})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, omnibatch.CompressionInfer, sources[0].Compression())
}

func TestListStore(t *testing.T) {
	store := memory.New()
	defer func() { _ = store.Close() }()
	for _, key := range []string{"train/part-10.ndjson", "train/part-9.ndjson", "train/notes.md", "eval/part-1.ndjson"} {
		require.NoError(t, store.Put(key, []byte("{}\n")))
	}

	sources, err := ListStore(context.Background(), store, "train/", Options{Pattern: "*.ndjson"})
	require.NoError(t, err)
	assert.Equal(t, []string{"train/part-9.ndjson", "train/part-10.ndjson"}, ids(sources))

	rc, err := sources[0].Open(context.Background())
	require.NoError(t, err)
	_ = rc.Close()
}

func TestListStoreError(t *testing.T) {
	store := memory.New()
	_ = store.Close()

	_, err := ListStore(context.Background(), store, "x/", Options{})
	assert.True(t, omnibatch.IsTraversal(err))
	assert.ErrorIs(t, err, omnibatch.ErrStoreClosed)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"a/2", "a/10", -1},
		{"a/10", "a/2", 1},
		{"a", "a/b", -1},
		{"a2/z", "a10/a", -1},
		{"same", "same", 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Compare(tc.a, tc.b), "Compare(%q, %q)", tc.a, tc.b)
	}
}

func TestFingerprint(t *testing.T) {
	a := []omnibatch.Source{source.NewMemory("a", nil), source.NewMemory("b", nil)}
	b := []omnibatch.Source{source.NewMemory("b", nil), source.NewMemory("a", nil)}
	c := []omnibatch.Source{source.NewMemory("ab", nil)}

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
	assert.Equal(t, Fingerprint(a), Fingerprint([]omnibatch.Source{source.NewMemory("a", nil), source.NewMemory("b", nil)}))
}

func TestListStoreAllOrNothing(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "data/a.ndjson")
	loop := filepath.Join(root, "data", "loop")
	require.NoError(t, os.Symlink(loop, loop))

	store := file.New(file.Config{Root: root})
	defer func() { _ = store.Close() }()

	sources, err := ListStore(context.Background(), store, "data/", Options{})
	require.Error(t, err)
	assert.Nil(t, sources)

	var terr *omnibatch.TraversalError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "data/", terr.Path)
	assert.ErrorIs(t, err, syscall.ELOOP)
}
