package simplenotes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestErrorCategories(t *testing.T) {
	for _, err := range []error{ErrNoteNotFound, ErrTagNotFound, ErrImageNotFound, ErrObjectNotFound} {
		assert.ErrorIs(t, err, ErrNotFound)
	}
	for _, err := range []error{ErrTagNameTaken, ErrShortURLTaken, ErrShortURLExhausted, ErrVersionMismatch} {
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.ErrorIs(t, &ValidationError{Field: "title", Reason: "is required"}, ErrInvalidInput)
	assert.NotErrorIs(t, ErrCacheMiss, ErrNotFound)
}

func TestPersistenceError(t *testing.T) {
	id := uuid.New()

	assert.Nil(t, persistenceError("note", "get", id, nil))
	assert.Same(t, ErrNoteNotFound, persistenceError("note", "get", id, ErrNoteNotFound))

	wrapped := fmt.Errorf("tx: %w", ErrVersionMismatch)
	assert.Equal(t, wrapped, persistenceError("note", "patch", id, wrapped))

	cause := errors.New("connection refused")
	err := persistenceError("note", "get", id, cause)
	var persistErr *PersistenceError
	assert.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "get", persistErr.Op)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), id.String())

	// Already typed errors are not double wrapped
	assert.Same(t, err, persistenceError("note", "other", id, err))

	storage := &StorageError{Backend: "s3", Key: "k", Op: "put", Err: cause}
	assert.Same(t, error(storage), persistenceError("image", "create", id, storage))
}

func TestStorageError(t *testing.T) {
	assert.Nil(t, storageError("s3", "k", "get", nil))

	err := storageError("s3", "note/a.png", "get", ErrObjectNotFound)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "note/a.png")

	assert.Same(t, err, storageError("fs", "other", "delete", err))
}
