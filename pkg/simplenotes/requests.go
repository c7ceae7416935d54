package simplenotes

import (
	"io"

	"github.com/google/uuid"
)

// Request DTOs

// CreateNoteRequest creates a note and attaches tags by name, creating
// missing tags on the way.
type CreateNoteRequest struct {
	Title    string   `validate:"required,max=200"`
	Content  string
	TagNames []string `validate:"dive,required,max=50"`
}

// PatchNoteRequest updates the supplied fields of a note. A non-empty TagIDs
// replaces the note's tag set with the tags that exist; an empty TagIDs
// leaves the tag set alone.
type PatchNoteRequest struct {
	ID              uuid.UUID `validate:"required"`
	Title           *string   `validate:"omitempty,min=1,max=200"`
	Content         *string
	TagIDs          []uuid.UUID
	ExpectedVersion *int `validate:"omitempty,min=1"`
}

// ReplaceNoteRequest overwrites a note. The tag set becomes exactly the
// supplied tags that still exist.
type ReplaceNoteRequest struct {
	ID              uuid.UUID `validate:"required"`
	Title           string    `validate:"required,max=200"`
	Content         string
	Tags            []Tag
	ExpectedVersion *int `validate:"omitempty,min=1"`
}

// ListNotesRequest lists notes in creation order, optionally by tag name.
type ListNotesRequest struct {
	Tag    string
	Offset int `validate:"min=0"`
	Limit  int `validate:"min=0"`
}

// ListTagsRequest lists tags by name.
type ListTagsRequest struct {
	Offset int `validate:"min=0"`
	Limit  int `validate:"min=0"`
}

// UploadImageRequest uploads image bytes for a note.
type UploadImageRequest struct {
	NoteID      uuid.UUID `validate:"required"`
	Filename    string
	ContentType string
	Size        int64     `validate:"min=-1"`
	Reader      io.Reader
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
