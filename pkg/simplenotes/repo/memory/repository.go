package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// Repository implements simplenotes.Repository using in-memory storage.
//
// Writers are serialised. Each write works on a copy of the state which is
// swapped in only on success, so a failed write or a rolled back transaction
// leaves nothing behind.
type Repository struct {
	writer *sync.Mutex // nil on a transaction-bound repository
	mu     sync.RWMutex
	data   *state
}

type state struct {
	notes       map[uuid.UUID]*simplenotes.Note // Tags and Images are kept empty
	tags        map[uuid.UUID]*simplenotes.Tag
	tagsByName  map[string]uuid.UUID
	noteTags    map[uuid.UUID]map[uuid.UUID]struct{} // note_id -> tag ids
	images      map[uuid.UUID]*simplenotes.Image
	imagesByURL map[string]uuid.UUID
}

// New creates a new in-memory repository
func New() simplenotes.Repository {
	return &Repository{
		writer: &sync.Mutex{},
		data:   newState(),
	}
}

func newState() *state {
	return &state{
		notes:       make(map[uuid.UUID]*simplenotes.Note),
		tags:        make(map[uuid.UUID]*simplenotes.Tag),
		tagsByName:  make(map[string]uuid.UUID),
		noteTags:    make(map[uuid.UUID]map[uuid.UUID]struct{}),
		images:      make(map[uuid.UUID]*simplenotes.Image),
		imagesByURL: make(map[string]uuid.UUID),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, n := range s.notes {
		noteCopy := *n
		c.notes[id] = &noteCopy
	}
	for id, t := range s.tags {
		tagCopy := *t
		c.tags[id] = &tagCopy
	}
	for name, id := range s.tagsByName {
		c.tagsByName[name] = id
	}
	for noteID, set := range s.noteTags {
		setCopy := make(map[uuid.UUID]struct{}, len(set))
		for tagID := range set {
			setCopy[tagID] = struct{}{}
		}
		c.noteTags[noteID] = setCopy
	}
	for id, img := range s.images {
		imgCopy := *img
		c.images[id] = &imgCopy
	}
	for code, id := range s.imagesByURL {
		c.imagesByURL[code] = id
	}
	return c
}

// WithTx runs fn against a private copy of the state and publishes the copy
// when fn succeeds. Transactions are serialised with every other writer.
func (r *Repository) WithTx(ctx context.Context, fn func(tx simplenotes.Repository) error) error {
	if r.writer == nil {
		return fn(r)
	}

	r.writer.Lock()
	defer r.writer.Unlock()

	r.mu.RLock()
	working := r.data.clone()
	r.mu.RUnlock()

	if err := fn(&Repository{data: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.data = working
	r.mu.Unlock()
	return nil
}

func (r *Repository) read(fn func(s *state) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(r.data)
}

func (r *Repository) write(ctx context.Context, fn func(s *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.writer == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		return fn(r.data)
	}
	return r.WithTx(ctx, func(tx simplenotes.Repository) error {
		return fn(tx.(*Repository).data)
	})
}

func (s *state) loadNote(id uuid.UUID) (*simplenotes.Note, bool) {
	n, ok := s.notes[id]
	if !ok {
		return nil, false
	}
	note := *n
	note.Tags = s.tagsOf(id)
	note.Images = s.imagesOf(id)
	return &note, true
}

func (s *state) tagsOf(noteID uuid.UUID) []simplenotes.Tag {
	tags := make([]simplenotes.Tag, 0, len(s.noteTags[noteID]))
	for tagID := range s.noteTags[noteID] {
		if t, ok := s.tags[tagID]; ok {
			tags = append(tags, *t)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags
}

func (s *state) imagesOf(noteID uuid.UUID) []simplenotes.Image {
	images := make([]simplenotes.Image, 0)
	for _, img := range s.images {
		if img.NoteID == noteID {
			images = append(images, *img)
		}
	}
	sort.Slice(images, func(i, j int) bool { return imageLess(&images[i], &images[j]) })
	return images
}

func imageLess(a, b *simplenotes.Image) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID.String() < b.ID.String()
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
