package simplenotes

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error categories. Every error returned by the service that is not a
// StorageError or PersistenceError matches one of these with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// Error types
var (
	// ErrNoteNotFound indicates a note was not found
	ErrNoteNotFound = fmt.Errorf("note %w", ErrNotFound)

	// ErrTagNotFound indicates a tag was not found
	ErrTagNotFound = fmt.Errorf("tag %w", ErrNotFound)

	// ErrImageNotFound indicates an image was not found
	ErrImageNotFound = fmt.Errorf("image %w", ErrNotFound)

	// ErrObjectNotFound indicates a blob was not found in the blob store
	ErrObjectNotFound = fmt.Errorf("object %w", ErrNotFound)

	// ErrTagNameTaken indicates another tag already owns the name
	ErrTagNameTaken = fmt.Errorf("tag name already exists: %w", ErrConflict)

	// ErrShortURLTaken indicates another image already owns the short url
	ErrShortURLTaken = fmt.Errorf("short url already exists: %w", ErrConflict)

	// ErrShortURLExhausted indicates every probed short url candidate was taken
	ErrShortURLExhausted = fmt.Errorf("short url candidates exhausted: %w", ErrConflict)

	// ErrVersionMismatch indicates the note changed since the caller read it
	ErrVersionMismatch = fmt.Errorf("note version mismatch: %w", ErrConflict)

	// ErrCacheMiss is returned by ShortURLCache.Get when the code is not cached
	ErrCacheMiss = errors.New("cache miss")
)

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// StorageError represents an error related to blob store operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// PersistenceError represents a failed repository operation or transaction
type PersistenceError struct {
	Entity string
	ID     uuid.UUID
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.ID == uuid.Nil {
		return fmt.Sprintf("%s operation %s failed: %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("%s operation %s failed for %s %s: %v", e.Entity, e.Op, e.Entity, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persistenceError passes typed outcomes through untouched and wraps anything
// else coming out of the repository.
func persistenceError(entity, op string, id uuid.UUID, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	var persistErr *PersistenceError
	if errors.As(err, &persistErr) {
		return err
	}
	return &PersistenceError{Entity: entity, ID: id, Op: op, Err: err}
}

// storageError wraps a blob store failure. ErrObjectNotFound stays matchable
// through Unwrap.
func storageError(backend, key, op string, err error) error {
	if err == nil {
		return nil
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &StorageError{Backend: backend, Key: key, Op: op, Err: err}
}
