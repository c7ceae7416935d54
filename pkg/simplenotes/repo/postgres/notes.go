package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

const noteColumns = `id, title, content, version, created_at, updated_at`

// Note operations

func (r *Repository) CreateNote(ctx context.Context, note *simplenotes.Note) error {
	query := `
		INSERT INTO notes (id, title, content, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		note.ID, note.Title, note.Content, note.Version, note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create note", err)
	}
	return nil
}

func (r *Repository) GetNote(ctx context.Context, id uuid.UUID) (*simplenotes.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1`

	note, err := scanNote(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplenotes.ErrNoteNotFound
		}
		return nil, r.handlePostgresError("get note", err)
	}

	if err := r.attach(ctx, []*simplenotes.Note{note}); err != nil {
		return nil, err
	}
	return note, nil
}

func (r *Repository) ListNotes(ctx context.Context, filter simplenotes.NoteFilter) ([]*simplenotes.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes n
		WHERE $1::text = '' OR EXISTS (
			SELECT 1 FROM note_tags nt
			JOIN tags t ON t.id = nt.tag_id
			WHERE nt.note_id = n.id AND t.name = $1
		)
		ORDER BY created_at, id
		OFFSET $2 LIMIT NULLIF($3, 0)`

	rows, err := r.db.Query(ctx, query, filter.TagName, filter.Offset, filter.Limit)
	if err != nil {
		return nil, r.handlePostgresError("list notes", err)
	}
	defer rows.Close()

	notes := make([]*simplenotes.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, r.handlePostgresError("list notes", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list notes", err)
	}
	rows.Close()

	if err := r.attach(ctx, notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *Repository) UpdateNote(ctx context.Context, id uuid.UUID, patch simplenotes.NotePatch) (*simplenotes.Note, error) {
	query := `
		UPDATE notes SET
			title = COALESCE($2, title),
			content = COALESCE($3, content),
			version = version + 1,
			updated_at = $4
		WHERE id = $1 AND ($5::integer IS NULL OR version = $5)
		RETURNING ` + noteColumns

	note, err := scanNote(r.db.QueryRow(ctx, query, id, patch.Title, patch.Content, patch.UpdatedAt, patch.ExpectedVersion))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, r.handlePostgresError("update note", err)
		}
		if exists, existsErr := r.noteExists(ctx, id); existsErr != nil {
			return nil, existsErr
		} else if exists {
			return nil, simplenotes.ErrVersionMismatch
		}
		return nil, simplenotes.ErrNoteNotFound
	}

	if err := r.attach(ctx, []*simplenotes.Note{note}); err != nil {
		return nil, err
	}
	return note, nil
}

// DeleteNote relies on ON DELETE CASCADE for tag links and image rows.
func (r *Repository) DeleteNote(ctx context.Context, id uuid.UUID) (*simplenotes.Note, error) {
	note, err := r.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return nil, r.handlePostgresError("delete note", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, simplenotes.ErrNoteNotFound
	}
	return note, nil
}

func (r *Repository) SetNoteTags(ctx context.Context, noteID uuid.UUID, tagIDs []uuid.UUID) error {
	return r.WithTx(ctx, func(tx simplenotes.Repository) error {
		db := tx.(*Repository).db

		// Lock the note so concurrent tag replacements serialise.
		var locked uuid.UUID
		err := db.QueryRow(ctx, `SELECT id FROM notes WHERE id = $1 FOR UPDATE`, noteID).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return simplenotes.ErrNoteNotFound
			}
			return r.handlePostgresError("set note tags", err)
		}

		if _, err := db.Exec(ctx, `DELETE FROM note_tags WHERE note_id = $1`, noteID); err != nil {
			return r.handlePostgresError("set note tags", err)
		}
		if len(tagIDs) == 0 {
			return nil
		}

		query := `
			INSERT INTO note_tags (note_id, tag_id)
			SELECT $1, tag_id FROM unnest($2::uuid[]) AS tag_id
			ON CONFLICT DO NOTHING`
		if _, err := db.Exec(ctx, query, noteID, uuidStrings(tagIDs)); err != nil {
			return r.handlePostgresError("set note tags", err)
		}
		return nil
	})
}

func (r *Repository) noteExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM notes WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, r.handlePostgresError("check note", err)
	}
	return exists, nil
}

// attach loads tags and images for notes with one query each.
func (r *Repository) attach(ctx context.Context, notes []*simplenotes.Note) error {
	if len(notes) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*simplenotes.Note, len(notes))
	ids := make([]uuid.UUID, 0, len(notes))
	for _, n := range notes {
		n.Tags = []simplenotes.Tag{}
		n.Images = []simplenotes.Image{}
		byID[n.ID] = n
		ids = append(ids, n.ID)
	}

	tagQuery := `
		SELECT nt.note_id, t.id, t.name
		FROM note_tags nt
		JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id = ANY($1::uuid[])
		ORDER BY t.name COLLATE "C"`

	rows, err := r.db.Query(ctx, tagQuery, uuidStrings(ids))
	if err != nil {
		return r.handlePostgresError("load note tags", err)
	}
	for rows.Next() {
		var noteID uuid.UUID
		var tag simplenotes.Tag
		if err := rows.Scan(&noteID, &tag.ID, &tag.Name); err != nil {
			rows.Close()
			return r.handlePostgresError("load note tags", err)
		}
		byID[noteID].Tags = append(byID[noteID].Tags, tag)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return r.handlePostgresError("load note tags", err)
	}

	imageQuery := `SELECT ` + imageColumns + `
		FROM images
		WHERE note_id = ANY($1::uuid[])
		ORDER BY created_at, id`

	rows, err = r.db.Query(ctx, imageQuery, uuidStrings(ids))
	if err != nil {
		return r.handlePostgresError("load note images", err)
	}
	defer rows.Close()
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return r.handlePostgresError("load note images", err)
		}
		byID[img.NoteID].Images = append(byID[img.NoteID].Images, *img)
	}
	if err := rows.Err(); err != nil {
		return r.handlePostgresError("load note images", err)
	}
	return nil
}

func scanNote(row pgx.Row) (*simplenotes.Note, error) {
	var note simplenotes.Note
	err := row.Scan(&note.ID, &note.Title, &note.Content, &note.Version, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return nil, err
	}
	note.CreatedAt = note.CreatedAt.UTC()
	note.UpdatedAt = note.UpdatedAt.UTC()
	return &note, nil
}
