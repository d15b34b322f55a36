package omnibatch

import (
	"errors"
	"fmt"
	"syscall"
)

// Common errors returned by omnibatch stores and utilities.
var (
	// ErrNotFound is returned when a path does not exist.
	ErrNotFound = errors.New("omnibatch: not found")

	// ErrPermissionDenied is returned when access to a path is denied.
	ErrPermissionDenied = errors.New("omnibatch: permission denied")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("omnibatch: store closed")

	// ErrReaderClosed is returned when reading from a closed reader.
	ErrReaderClosed = errors.New("omnibatch: reader closed")

	// ErrInvalidPath is returned when a path is invalid (e.g., contains forbidden characters).
	ErrInvalidPath = errors.New("omnibatch: invalid path")

	// ErrUnknownStore is returned by Open when the store name is not registered.
	ErrUnknownStore = errors.New("omnibatch: unknown store")
)

// Pipeline error kinds.
var (
	// ErrTraversal is matched by every *TraversalError.
	ErrTraversal = errors.New("omnibatch: traversal failed")

	// ErrInvalidPattern is matched by every *PatternError.
	ErrInvalidPattern = errors.New("omnibatch: invalid pattern")

	// ErrInvalidConfig is returned when reader parameters are out of range.
	// It is raised at construction time, before any read.
	ErrInvalidConfig = errors.New("omnibatch: invalid configuration")

	// ErrSchema is returned by decoders when an instance violates the
	// expected shape.
	ErrSchema = errors.New("omnibatch: schema violation")

	// ErrInvalidInstance is returned by decoders when a single instance
	// cannot be decoded.
	ErrInvalidInstance = errors.New("omnibatch: invalid instance")
)

// TraversalError records a path that could not be opened or walked
// during enumeration.
type TraversalError struct {
	Path string
	Err  error
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("omnibatch: cannot traverse %q: %v", e.Path, e.Err)
}

func (e *TraversalError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTraversal.
func (e *TraversalError) Is(target error) bool { return target == ErrTraversal }

// Errno returns the OS error code behind the failure, or 0 if the
// underlying error carries none.
func (e *TraversalError) Errno() syscall.Errno {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return errno
	}
	return 0
}

// PatternError records a glob pattern that cannot be used for matching.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("omnibatch: pattern %q cannot be used for comparison: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInvalidPattern.
func (e *PatternError) Is(target error) bool { return target == ErrInvalidPattern }

// IsNotFound returns true if the error indicates a path was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPermissionDenied returns true if the error indicates permission was denied.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsTraversal returns true if the error is an enumeration traversal failure.
func IsTraversal(err error) bool {
	return errors.Is(err, ErrTraversal)
}

// IsInvalidConfig returns true if the error indicates invalid reader parameters.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsSchema returns true if the error is a schema violation.
func IsSchema(err error) bool {
	return errors.Is(err, ErrSchema)
}

// IsInvalidInstance returns true if the error marks an undecodable instance.
func IsInvalidInstance(err error) bool {
	return errors.Is(err, ErrInvalidInstance)
}
