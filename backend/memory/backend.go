// Package memory provides an in-memory store for omnibatch.
//
// The memory store is useful for:
//   - Unit testing pipelines without filesystem access
//   - Feeding small generated datasets through the same code path as S3/SFTP
//   - Development and prototyping
//
// Data is stored in RAM and lost when the store is closed or the process exits.
package memory

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/grokify/omnibatch"
)

func init() {
	omnibatch.Register("memory", NewFromConfig)
}

// Store implements omnibatch.Store for in-memory objects.
type Store struct {
	objects map[string][]byte
	closed  bool
	mu      sync.RWMutex
}

// New creates a new memory store.
func New() *Store {
	return &Store{
		objects: make(map[string][]byte),
	}
}

// NewFromConfig creates a new memory store from a config map.
// The memory store ignores all configuration options.
func NewFromConfig(_ map[string]string) (omnibatch.Store, error) {
	return New(), nil
}

// Put stores a copy of data under path, replacing any existing object.
func (s *Store) Put(p string, data []byte) error {
	if err := validatePath(p); err != nil {
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return omnibatch.ErrStoreClosed
	}
	s.objects[normalizePath(p)] = buf
	return nil
}

// Delete removes a path. Deleting a missing path is not an error.
func (s *Store) Delete(p string) error {
	if err := s.checkClosed(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.objects, normalizePath(p))
	s.mu.Unlock()

	return nil
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

	s.mu.RLock()
	data, exists := s.objects[normalizePath(p)]
	s.mu.RUnlock()

	if !exists {
		return nil, omnibatch.ErrNotFound
	}

	config := omnibatch.ApplyReaderOptions(opts...)

	// Stored buffers are never mutated in place, so slicing is safe.
	if config.Offset > 0 {
		if config.Offset >= int64(len(data)) {
			data = nil
		} else {
			data = data[config.Offset:]
		}
	}
	if config.Limit > 0 && int64(len(data)) > config.Limit {
		data = data[:config.Limit]
	}

	return &memoryReader{
		reader: bytes.NewReader(data),
	}, nil
}

// Exists checks if a path exists.
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

	s.mu.RLock()
	_, exists := s.objects[normalizePath(p)]
	s.mu.RUnlock()

	return exists, nil
}

// List lists paths with the given prefix in lexical order.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalPrefix := normalizePath(prefix)

	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := []string{}
	for p := range s.objects {
		if normalPrefix == "" || strings.HasPrefix(p, normalPrefix) {
			paths = append(paths, p)
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// Count returns the number of objects in the store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.objects = nil
	return nil
}

// checkClosed returns an error if the store is closed.
func (s *Store) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return omnibatch.ErrStoreClosed
	}
	return nil
}

// validatePath checks if a path is valid.
func validatePath(p string) error {
	if p == "" {
		return omnibatch.ErrInvalidPath
	}

	cleaned := path.Clean(p)
	if strings.HasPrefix(cleaned, "..") || strings.Contains(cleaned, "/../") {
		return omnibatch.ErrInvalidPath
	}

	return nil
}

// normalizePath normalizes a path for consistent storage.
func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	// path.Clean("") returns ".", convert back to ""
	if p == "." {
		return ""
	}
	return p
}

// memoryReader implements io.ReadCloser for the memory store.
type memoryReader struct {
	reader *bytes.Reader
	closed bool
	mu     sync.Mutex
}

func (r *memoryReader) Read(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, omnibatch.ErrReaderClosed
	}

	return r.reader.Read(p)
}

func (r *memoryReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	return nil
}

// Ensure Store implements omnibatch.Store
var _ omnibatch.Store = (*Store)(nil)
