// Package enumerate produces the ordered list of data sources a pipeline
// reads from.
//
// Every worker of a distributed job calls List with the same roots and
// gets back the same sources in the same order, which is what makes shard
// assignment consistent without coordination. The order is a natural sort
// over paths, compared component by component, so "part-2" sorts before
// "part-10".
package enumerate

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/grokify/omnibatch"
	"github.com/grokify/omnibatch/source"
)

// Options configures an enumeration.
type Options struct {
	// Pattern is a doublestar glob. A pattern without a path separator is
	// matched against the base name, any other pattern against the whole
	// slash-separated path. Unlike fnmatch without FNM_PATHNAME, "*" never
	// crosses a "/"; use "**" for that. Empty accepts everything.
	Pattern string

	// Predicate is called for paths that passed Pattern, one at a time and
	// in enumeration order, after the walk has finished. Nil accepts
	// everything.
	Predicate func(path string) bool

	// SourceOptions are applied to every returned source.
	SourceOptions []source.Option
}

// List walks roots, following symbolic links, and returns every regular
// file and block device that passes the filters, in natural order.
//
// A root may be a directory or a single file. Any root or entry that
// cannot be read fails the whole call with a *omnibatch.TraversalError;
// partial results are never returned. A malformed pattern fails with a
// *omnibatch.PatternError before anything is walked.
func List(roots []string, opts Options) ([]omnibatch.Source, error) {
	match, err := newMatcher(opts)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		found []string
	)
	add := func(p string) {
		mu.Lock()
		found = append(found, p)
		mu.Unlock()
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, &omnibatch.TraversalError{Path: root, Err: err}
		}
		if !info.IsDir() {
			if isDataFile(info.Mode()) {
				add(root)
			}
			continue
		}
		if err := walk(root, add); err != nil {
			return nil, err
		}
	}

	// The walk runs on several goroutines; filters run here, sequentially.
	var paths []string
	for _, p := range dedup(found) {
		if match(p) {
			paths = append(paths, p)
		}
	}
	return newSources(paths, opts.SourceOptions), nil
}

// walk collects every data file under root. add is called concurrently.
func walk(root string, add func(string)) error {
	conf := fastwalk.Config{Follow: true}

	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// fastwalk hands an entry's error back to its parent directory.
			var terr *omnibatch.TraversalError
			if errors.As(err, &terr) {
				return err
			}
			if isDangling(d, err) {
				return nil
			}
			return &omnibatch.TraversalError{Path: p, Err: err}
		}
		if d.IsDir() {
			return nil
		}

		// Symlinks are resolved here; followed directories are walked by fastwalk.
		info, err := os.Stat(p)
		if err != nil {
			if isDangling(d, err) {
				return nil
			}
			return &omnibatch.TraversalError{Path: p, Err: err}
		}
		if info.IsDir() || !isDataFile(info.Mode()) {
			return nil
		}
		add(p)
		return nil
	})
	if err == nil {
		return nil
	}

	var terr *omnibatch.TraversalError
	if errors.As(err, &terr) {
		return terr
	}
	return &omnibatch.TraversalError{Path: root, Err: err}
}

// isDangling reports whether d is a symbolic link whose target is missing.
// Such links are skipped, not treated as traversal failures.
func isDangling(d fs.DirEntry, err error) bool {
	return d != nil && d.Type()&fs.ModeSymlink != 0 && errors.Is(err, fs.ErrNotExist)
}

// ListStore enumerates the keys of store under prefix with the same
// filtering and ordering rules as List. Store errors are wrapped in a
// *omnibatch.TraversalError naming the prefix.
func ListStore(ctx context.Context, store omnibatch.Store, prefix string, opts Options) ([]omnibatch.Source, error) {
	match, err := newMatcher(opts)
	if err != nil {
		return nil, err
	}

	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, &omnibatch.TraversalError{Path: prefix, Err: err}
	}

	var paths []string
	for _, key := range keys {
		if match(key) {
			paths = append(paths, key)
		}
	}

	paths = dedup(paths)
	sources := make([]omnibatch.Source, len(paths))
	for i, key := range paths {
		sources[i] = source.NewObject(store, key, opts.SourceOptions...)
	}
	return sources, nil
}

func newMatcher(opts Options) (func(string) bool, error) {
	pattern := opts.Pattern
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, &omnibatch.PatternError{Pattern: pattern, Err: doublestar.ErrBadPattern}
	}
	baseOnly := !strings.Contains(pattern, "/")

	return func(p string) bool {
		if pattern != "" {
			name := filepath.ToSlash(p)
			if baseOnly {
				name = path.Base(name)
			}
			if ok, _ := doublestar.Match(pattern, name); !ok {
				return false
			}
		}
		if opts.Predicate != nil && !opts.Predicate(p) {
			return false
		}
		return true
	}, nil
}

// isDataFile reports whether mode describes a regular file or a block device.
func isDataFile(mode fs.FileMode) bool {
	if mode.IsRegular() {
		return true
	}
	return mode&fs.ModeDevice != 0 && mode&fs.ModeCharDevice == 0
}

// dedup sorts paths in natural order and drops exact duplicates, which
// appear when roots overlap.
func dedup(paths []string) []string {
	slices.SortFunc(paths, Compare)
	return slices.Compact(paths)
}

func newSources(paths []string, opts []source.Option) []omnibatch.Source {
	sources := make([]omnibatch.Source, len(paths))
	for i, p := range paths {
		sources[i] = source.NewFile(p, opts...)
	}
	return sources
}
