package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// Note operations

func (r *Repository) CreateNote(ctx context.Context, note *simplenotes.Note) error {
	return r.write(ctx, func(s *state) error {
		if _, exists := s.notes[note.ID]; exists {
			return simplenotes.ErrConflict
		}
		noteCopy := *note
		noteCopy.Tags = nil
		noteCopy.Images = nil
		s.notes[note.ID] = &noteCopy
		return nil
	})
}

func (r *Repository) GetNote(ctx context.Context, id uuid.UUID) (*simplenotes.Note, error) {
	var note *simplenotes.Note
	err := r.read(func(s *state) error {
		n, ok := s.loadNote(id)
		if !ok {
			return simplenotes.ErrNoteNotFound
		}
		note = n
		return nil
	})
	return note, err
}

func (r *Repository) ListNotes(ctx context.Context, filter simplenotes.NoteFilter) ([]*simplenotes.Note, error) {
	var notes []*simplenotes.Note
	err := r.read(func(s *state) error {
		var tagID uuid.UUID
		if filter.TagName != "" {
			id, ok := s.tagsByName[filter.TagName]
			if !ok {
				notes = []*simplenotes.Note{}
				return nil
			}
			tagID = id
		}

		all := make([]*simplenotes.Note, 0, len(s.notes))
		for id := range s.notes {
			if filter.TagName != "" {
				if _, ok := s.noteTags[id][tagID]; !ok {
					continue
				}
			}
			n, _ := s.loadNote(id)
			all = append(all, n)
		}

		// Sort by creation time
		sort.Slice(all, func(i, j int) bool {
			if all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].ID.String() < all[j].ID.String()
			}
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		})
		notes = page(all, filter.Offset, filter.Limit)
		return nil
	})
	return notes, err
}

func (r *Repository) UpdateNote(ctx context.Context, id uuid.UUID, patch simplenotes.NotePatch) (*simplenotes.Note, error) {
	var updated *simplenotes.Note
	err := r.write(ctx, func(s *state) error {
		n, ok := s.notes[id]
		if !ok {
			return simplenotes.ErrNoteNotFound
		}
		if patch.ExpectedVersion != nil && *patch.ExpectedVersion != n.Version {
			return simplenotes.ErrVersionMismatch
		}
		if patch.Title != nil {
			n.Title = *patch.Title
		}
		if patch.Content != nil {
			n.Content = *patch.Content
		}
		n.Version++
		n.UpdatedAt = patch.UpdatedAt
		updated, _ = s.loadNote(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repository) DeleteNote(ctx context.Context, id uuid.UUID) (*simplenotes.Note, error) {
	var deleted *simplenotes.Note
	err := r.write(ctx, func(s *state) error {
		n, ok := s.loadNote(id)
		if !ok {
			return simplenotes.ErrNoteNotFound
		}
		deleted = n

		delete(s.notes, id)
		delete(s.noteTags, id)
		for imgID, img := range s.images {
			if img.NoteID == id {
				delete(s.imagesByURL, img.ShortURL)
				delete(s.images, imgID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *Repository) SetNoteTags(ctx context.Context, noteID uuid.UUID, tagIDs []uuid.UUID) error {
	return r.write(ctx, func(s *state) error {
		if _, ok := s.notes[noteID]; !ok {
			return simplenotes.ErrNoteNotFound
		}
		set := make(map[uuid.UUID]struct{}, len(tagIDs))
		for _, tagID := range tagIDs {
			if _, ok := s.tags[tagID]; !ok {
				return simplenotes.ErrTagNotFound
			}
			set[tagID] = struct{}{}
		}
		s.noteTags[noteID] = set
		return nil
	})
}
