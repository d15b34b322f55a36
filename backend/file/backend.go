// Package file provides a local filesystem store for omnibatch.
//
// Most pipelines read local data through enumerate.List and source.NewFile
// directly. The file store exists so a local directory can be addressed
// through the same registry as remote stores ("file", {"root": "/data"}).
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/grokify/omnibatch"
)

func init() {
	omnibatch.Register("file", NewFromConfig)
}

// Config holds configuration for the file store.
type Config struct {
	// Root is the root directory for all operations.
	// All paths are relative to this directory.
	Root string

	// FollowSymlinks makes List descend into symlinked directories.
	// Symlinked files are always listed.
	FollowSymlinks bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Root: ".",
	}
}

// Store implements omnibatch.Store for a local directory tree.
type Store struct {
	config Config
	closed bool
	mu     sync.RWMutex
}

// New creates a new file store with the given configuration.
func New(config Config) *Store {
	if config.Root == "" {
		config.Root = "."
	}
	return &Store{
		config: config,
	}
}

// NewFromConfig creates a new file store from a config map.
// Supported keys:
//   - root: root directory (default: ".")
//   - follow_symlinks: "true" or "false" (default: "false")
func NewFromConfig(configMap map[string]string) (omnibatch.Store, error) {
	config := DefaultConfig()

	if root, ok := configMap["root"]; ok && root != "" {
		config.Root = root
	}
	if follow, ok := configMap["follow_symlinks"]; ok {
		config.FollowSymlinks = follow == "true"
	}

	info, err := os.Stat(config.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: file root %s: %v", omnibatch.ErrInvalidConfig, config.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: file root %s is not a directory", omnibatch.ErrInvalidConfig, config.Root)
	}

	return New(config), nil
}

// NewReader creates a reader for the given path.
func (s *Store) NewReader(ctx context.Context, p string, opts ...omnibatch.ReaderOption) (io.ReadCloser, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := validatePath(p); err != nil {
		return nil, err
	}

	f, err := os.Open(s.fullPath(p))
	if err != nil {
		return nil, translateError(p, err)
	}

	config := omnibatch.ApplyReaderOptions(opts...)

	if config.Offset > 0 {
		if _, err := f.Seek(config.Offset, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("seeking %s to offset %d: %w", p, config.Offset, err)
		}
	}

	if config.Limit > 0 {
		return &limitedReadCloser{
			r:      io.LimitReader(f, config.Limit),
			closer: f,
		}, nil
	}

	return f, nil
}

// Exists checks if a regular file exists at path.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	if err := s.checkClosed(); err != nil {
		return false, err
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	if err := validatePath(p); err != nil {
		return false, err
	}

	info, err := os.Stat(s.fullPath(p))
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, translateError(p, err)
}

// List returns the slash-separated paths, relative to Root, of every
// regular file whose path starts with prefix. Results are in lexical
// order; enumerate.ListStore applies the natural order on top.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix = strings.TrimPrefix(prefix, "/")

	// Only the directory holding the prefix needs walking.
	dir := prefix
	if !strings.HasSuffix(prefix, "/") {
		dir = path.Dir(prefix)
		if dir == "." {
			dir = ""
		}
	}

	seen := map[string]bool{}
	if root, err := filepath.EvalSymlinks(s.config.Root); err == nil {
		seen[root] = true
	}

	paths := []string{}
	err := s.walk(ctx, s.fullPath(dir)+string(filepath.Separator), seen, func(rel string) {
		if strings.HasPrefix(rel, prefix) {
			paths = append(paths, rel)
		}
	})
	if err != nil {
		return nil, translateError(prefix, err)
	}

	slices.Sort(paths)
	return paths, nil
}

// walk visits regular files under dir. seen holds the resolved targets of
// the symlinked directories currently being walked, so link cycles end.
func (s *Store) walk(ctx context.Context, dir string, seen map[string]bool, visit func(rel string)) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// A missing prefix directory lists nothing; any other failure,
			// an unreadable subtree included, fails the whole listing.
			if p == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.config.Root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(p)
			if err != nil {
				// Dangling links are skipped.
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if info.IsDir() {
				if s.config.FollowSymlinks {
					target, err := filepath.EvalSymlinks(p)
					if err != nil || seen[target] {
						return nil
					}
					seen[target] = true
					defer delete(seen, target)
					// The trailing separator makes Lstat resolve the link.
					return s.walk(ctx, p+string(filepath.Separator), seen, visit)
				}
				return nil
			}
			if info.Mode().IsRegular() {
				visit(rel)
			}
			return nil
		}

		if d.Type().IsRegular() {
			visit(rel)
		}
		return nil
	})
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fullPath returns the filesystem path for a slash-separated relative path.
func (s *Store) fullPath(p string) string {
	return filepath.Join(s.config.Root, filepath.FromSlash(p))
}

func (s *Store) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return omnibatch.ErrStoreClosed
	}
	return nil
}

func validatePath(p string) error {
	if p == "" {
		return omnibatch.ErrInvalidPath
	}

	cleaned := path.Clean(filepath.ToSlash(p))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return omnibatch.ErrInvalidPath
	}

	return nil
}

func translateError(p string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", omnibatch.ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", omnibatch.ErrPermissionDenied, err)
	default:
		return fmt.Errorf("file %s: %w", p, err)
	}
}

// limitedReadCloser wraps a limited reader with a closer.
type limitedReadCloser struct {
	r      io.Reader
	closer io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (n int, err error) {
	return l.r.Read(p)
}

func (l *limitedReadCloser) Close() error {
	return l.closer.Close()
}

var _ omnibatch.Store = (*Store)(nil)
