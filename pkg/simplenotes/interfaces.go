package simplenotes

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends holding image bytes
type BlobStore interface {
	// Initialize ensures the backing bucket or directory exists. Safe to call
	// on every start.
	Initialize(ctx context.Context) error

	// Put writes an object, overwriting any existing object with that name.
	// size may be -1 when unknown.
	Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error

	// Get opens an object for reading. Missing objects yield ErrObjectNotFound.
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectName string) error

	// List returns the objects whose names start with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Repository defines transactional persistence for notes, tags and images.
//
// Every mutating call is atomic on its own. WithTx runs fn against a
// repository bound to a single transaction which commits when fn returns nil
// and rolls back otherwise. Calling WithTx on a transaction-bound repository
// nests inside the outer transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	// Note operations
	CreateNote(ctx context.Context, note *Note) error
	GetNote(ctx context.Context, id uuid.UUID) (*Note, error)
	ListNotes(ctx context.Context, filter NoteFilter) ([]*Note, error)
	// UpdateNote applies patch, bumps version and sets updated_at.
	UpdateNote(ctx context.Context, id uuid.UUID, patch NotePatch) (*Note, error)
	// DeleteNote removes the note, its tag links and its image rows.
	DeleteNote(ctx context.Context, id uuid.UUID) (*Note, error)
	// SetNoteTags replaces the note's tag links with tagIDs.
	SetNoteTags(ctx context.Context, noteID uuid.UUID, tagIDs []uuid.UUID) error

	// Tag operations
	CreateTag(ctx context.Context, tag *Tag) error
	GetTag(ctx context.Context, id uuid.UUID) (*Tag, error)
	GetTagByName(ctx context.Context, name string) (*Tag, error)
	// GetTagsByIDs returns the tags that exist among ids, in name order.
	GetTagsByIDs(ctx context.Context, ids []uuid.UUID) ([]*Tag, error)
	ListTags(ctx context.Context, offset, limit int) ([]*Tag, error)
	RenameTag(ctx context.Context, id uuid.UUID, name string) (*Tag, error)
	DeleteTag(ctx context.Context, id uuid.UUID) error

	// Image operations
	CreateImage(ctx context.Context, image *Image) error
	GetImage(ctx context.Context, id uuid.UUID) (*Image, error)
	GetImageByShortURL(ctx context.Context, shortURL string) (*Image, error)
	ListImages(ctx context.Context, filter ImageFilter) ([]*Image, error)
	DeleteImage(ctx context.Context, id uuid.UUID) (*Image, error)
	ShortURLExists(ctx context.Context, shortURL string) (bool, error)
}

// ShortURLChecker reports whether a short url is already assigned.
type ShortURLChecker interface {
	ShortURLExists(ctx context.Context, shortURL string) (bool, error)
}

// URLStrategy computes the public URL stored on an image.
type URLStrategy interface {
	ObjectURL(ctx context.Context, objectName string) (string, error)
}

// ShortURLCache caches short url lookups for redirects.
type ShortURLCache interface {
	// Get returns ErrCacheMiss when shortURL is not cached
	Get(ctx context.Context, shortURL string) (*Image, error)
	Set(ctx context.Context, image *Image) error
	Delete(ctx context.Context, shortURL string) error
}

// EventSink defines the interface for event handling
type EventSink interface {
	// NoteCreated is fired when a note is created
	NoteCreated(ctx context.Context, note *Note) error

	// NoteUpdated is fired when a note is patched or replaced
	NoteUpdated(ctx context.Context, note *Note) error

	// NoteDeleted is fired when a note is deleted
	NoteDeleted(ctx context.Context, noteID uuid.UUID) error

	// ImageUploaded is fired when an image row is committed
	ImageUploaded(ctx context.Context, image *Image) error

	// ImageDeleted is fired when an image and its blob are removed
	ImageDeleted(ctx context.Context, image *Image) error

	// BlobOrphaned is fired when a compensating delete fails and objectName
	// is left in the blob store without a row
	BlobOrphaned(ctx context.Context, objectName string, cause error) error
}
