package simplenotes

import (
	"context"

	"github.com/google/uuid"
)

// NoteService runs the note lifecycle and tag reconciliation. Every mutating
// call is one repository transaction.
//
// Tag policy, shared by patch and replace: the resolved tags replace the
// note's tag set and ids that no longer exist are dropped. Patch leaves the
// tag set alone when no ids are supplied; replace clears it.
type NoteService struct {
	core   *core
	images *ImageService
}

// CreateNote creates a note with version 1 and attaches the named tags,
// creating missing ones. Either everything is committed or nothing is.
func (n *NoteService) CreateNote(ctx context.Context, req CreateNoteRequest) (*Note, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, cancel := n.core.withTimeout(ctx)
	defer cancel()

	now := n.core.now()
	note := &Note{
		ID:        uuid.New(),
		Title:     req.Title,
		Content:   req.Content,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Images:    []Image{},
	}

	err := n.core.repo.WithTx(ctx, func(tx Repository) error {
		tags, err := n.core.registry(tx).ResolveByNames(ctx, req.TagNames)
		if err != nil {
			return err
		}
		if err := tx.CreateNote(ctx, note); err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(tags))
		for _, t := range tags {
			ids = append(ids, t.ID)
		}
		if err := tx.SetNoteTags(ctx, note.ID, ids); err != nil {
			return err
		}
		note.Tags = derefTags(tags)
		return nil
	})
	if err != nil {
		return nil, persistenceError("note", "create", note.ID, err)
	}

	n.core.emit(ctx, "note_created", func(s EventSink) error { return s.NoteCreated(ctx, note) })
	return note, nil
}

// GetNote returns a note with its tags and images.
func (n *NoteService) GetNote(ctx context.Context, id uuid.UUID) (*Note, error) {
	ctx, cancel := n.core.withTimeout(ctx)
	defer cancel()

	note, err := n.core.repo.GetNote(ctx, id)
	if err != nil {
		return nil, persistenceError("note", "get", id, err)
	}
	return note, nil
}

// ListNotes returns notes in creation order, restricted to a tag name when
// one is given.
func (n *NoteService) ListNotes(ctx context.Context, req ListNotesRequest) ([]*Note, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, cancel := n.core.withTimeout(ctx)
	defer cancel()

	notes, err := n.core.repo.ListNotes(ctx, NoteFilter{
		TagName: req.Tag,
		Offset:  req.Offset,
		Limit:   normalizeLimit(req.Limit),
	})
	if err != nil {
		return nil, persistenceError("note", "list", uuid.Nil, err)
	}
	return notes, nil
}

// PatchNote updates the supplied fields. With TagIDs present the resolved
// tags replace the tag set; without, tags are untouched.
func (n *NoteService) PatchNote(ctx context.Context, req PatchNoteRequest) (*Note, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, cancel := n.core.withTimeout(ctx)
	defer cancel()

	var updated *Note
	err := n.core.repo.WithTx(ctx, func(tx Repository) error {
		if _, err := tx.GetNote(ctx, req.ID); err != nil {
			return err
		}

		if len(req.TagIDs) > 0 {
			if err := n.replaceTags(ctx, tx, req.ID, req.TagIDs); err != nil {
				return err
			}
		}

		if _, err := tx.UpdateNote(ctx, req.ID, NotePatch{
			Title:           req.Title,
			Content:         req.Content,
			ExpectedVersion: req.ExpectedVersion,
			UpdatedAt:       n.core.now(),
		}); err != nil {
			return err
		}

		var err error
		updated, err = tx.GetNote(ctx, req.ID)
		return err
	})
	if err != nil {
		return nil, persistenceError("note", "patch", req.ID, err)
	}

	n.core.emit(ctx, "note_updated", func(s EventSink) error { return s.NoteUpdated(ctx, updated) })
	return updated, nil
}

// ReplaceNote overwrites title and content and sets the tag set to exactly
// the supplied tags that still exist, resolved by id.
func (n *NoteService) ReplaceNote(ctx context.Context, req ReplaceNoteRequest) (*Note, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, cancel := n.core.withTimeout(ctx)
	defer cancel()

	ids := make([]uuid.UUID, 0, len(req.Tags))
	for _, t := range req.Tags {
		ids = append(ids, t.ID)
	}

	var updated *Note
	err := n.core.repo.WithTx(ctx, func(tx Repository) error {
		if _, err := tx.GetNote(ctx, req.ID); err != nil {
			return err
		}

		if err := n.replaceTags(ctx, tx, req.ID, ids); err != nil {
			return err
		}

		title, content := req.Title, req.Content
		if _, err := tx.UpdateNote(ctx, req.ID, NotePatch{
			Title:           &title,
			Content:         &content,
			ExpectedVersion: req.ExpectedVersion,
			UpdatedAt:       n.core.now(),
		}); err != nil {
			return err
		}

		var err error
		updated, err = tx.GetNote(ctx, req.ID)
		return err
	})
	if err != nil {
		return nil, persistenceError("note", "replace", req.ID, err)
	}

	n.core.emit(ctx, "note_updated", func(s EventSink) error { return s.NoteUpdated(ctx, updated) })
	return updated, nil
}

// DeleteNote removes every image blob of the note, then the note row with its
// image rows and tag links. A blob that cannot be deleted aborts before any
// row is touched. Blobs that appear under the note while it is deleted are
// swept after the rows are gone.
func (n *NoteService) DeleteNote(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := n.core.withTimeout(ctx)
	defer cancel()

	if _, err := n.core.repo.GetNote(ctx, id); err != nil {
		return persistenceError("note", "delete", id, err)
	}

	images, err := n.images.purgeNoteBlobs(ctx, id)
	if err != nil {
		return err
	}

	if _, err := n.core.repo.DeleteNote(ctx, id); err != nil {
		return persistenceError("note", "delete", id, err)
	}
	n.images.sweepNoteBlobs(ctx, id)

	for _, img := range images {
		n.images.evict(ctx, img.ShortURL)
	}

	n.core.emit(ctx, "note_deleted", func(s EventSink) error { return s.NoteDeleted(ctx, id) })
	return nil
}

func (n *NoteService) replaceTags(ctx context.Context, tx Repository, noteID uuid.UUID, ids []uuid.UUID) error {
	tags, err := n.core.registry(tx).ResolveByIDs(ctx, ids)
	if err != nil {
		return err
	}
	resolved := make([]uuid.UUID, 0, len(tags))
	for _, t := range tags {
		resolved = append(resolved, t.ID)
	}
	return tx.SetNoteTags(ctx, noteID, resolved)
}

func derefTags(tags []*Tag) []Tag {
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, *t)
	}
	return out
}
