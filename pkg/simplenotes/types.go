package simplenotes

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field limits shared by validation and storage.
const (
	MaxTitleLength   = 200
	MaxTagNameLength = 50
)

// Pagination defaults.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// DefaultImageExtension is used when an uploaded filename carries no extension.
const DefaultImageExtension = "jpg"

// Note is a titled piece of text with a set of tags and attached images.
type Note struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tags      []Tag     `json:"tags"`
	Images    []Image   `json:"images"`
}

// TagIDs returns the ids of the note's tags.
func (n *Note) TagIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(n.Tags))
	for _, t := range n.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// Tag is a named label. Names are unique and compared exactly.
type Tag struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Image is the metadata row for an uploaded blob owned by a note.
type Image struct {
	ID          uuid.UUID `json:"id"`
	NoteID      uuid.UUID `json:"note_id"`
	Filename    string    `json:"filename"`
	URL         string    `json:"url"`
	ShortURL    string    `json:"short_url"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// ObjectName returns the blob store key holding the image bytes.
func (i *Image) ObjectName() string {
	return ObjectName(i.NoteID, i.Filename)
}

// ObjectName builds the blob store key for a file owned by a note.
func ObjectName(noteID uuid.UUID, filename string) string {
	return noteID.String() + "/" + filename
}

// ParseObjectName splits a key produced by ObjectName.
func ParseObjectName(objectName string) (uuid.UUID, string, bool) {
	noteIDStr, filename, ok := strings.Cut(objectName, "/")
	if !ok || filename == "" || filename == "." || filename == ".." || strings.Contains(filename, "/") {
		return uuid.Nil, "", false
	}
	noteID, err := uuid.Parse(noteIDStr)
	if err != nil {
		return uuid.Nil, "", false
	}
	return noteID, filename, true
}

// GenerateFilename returns a fresh random filename that keeps the lower-cased
// extension of original, or DefaultImageExtension when it has none.
func GenerateFilename(original string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(original)), ".")
	if ext == "" {
		ext = DefaultImageExtension
	}
	return uuid.New().String() + "." + ext
}

// ObjectInfo describes a blob returned by BlobStore.List.
type ObjectInfo struct {
	Name        string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// NotePatch is the field-level update applied by Repository.UpdateNote.
// Nil fields are left unchanged. Version is always bumped.
type NotePatch struct {
	Title           *string
	Content         *string
	ExpectedVersion *int
	UpdatedAt       time.Time
}

// NoteFilter selects notes for Repository.ListNotes.
type NoteFilter struct {
	TagName string
	Offset  int
	Limit   int
}

// ImageFilter selects images for Repository.ListImages. A nil NoteID lists
// images across all notes.
type ImageFilter struct {
	NoteID *uuid.UUID
	Offset int
	Limit  int
}
