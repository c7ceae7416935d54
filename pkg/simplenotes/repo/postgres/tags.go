package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// Tag operations

// CreateTag inserts with ON CONFLICT DO NOTHING so a duplicate name is
// reported without aborting an enclosing transaction.
func (r *Repository) CreateTag(ctx context.Context, tag *simplenotes.Tag) error {
	query := `INSERT INTO tags (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`

	result, err := r.db.Exec(ctx, query, tag.ID, tag.Name)
	if err != nil {
		return r.handlePostgresError("create tag", err)
	}
	if result.RowsAffected() == 0 {
		return simplenotes.ErrTagNameTaken
	}
	return nil
}

func (r *Repository) GetTag(ctx context.Context, id uuid.UUID) (*simplenotes.Tag, error) {
	var tag simplenotes.Tag
	err := r.db.QueryRow(ctx, `SELECT id, name FROM tags WHERE id = $1`, id).Scan(&tag.ID, &tag.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplenotes.ErrTagNotFound
		}
		return nil, r.handlePostgresError("get tag", err)
	}
	return &tag, nil
}

func (r *Repository) GetTagByName(ctx context.Context, name string) (*simplenotes.Tag, error) {
	var tag simplenotes.Tag
	err := r.db.QueryRow(ctx, `SELECT id, name FROM tags WHERE name = $1`, name).Scan(&tag.ID, &tag.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplenotes.ErrTagNotFound
		}
		return nil, r.handlePostgresError("get tag by name", err)
	}
	return &tag, nil
}

func (r *Repository) GetTagsByIDs(ctx context.Context, ids []uuid.UUID) ([]*simplenotes.Tag, error) {
	if len(ids) == 0 {
		return []*simplenotes.Tag{}, nil
	}
	query := `SELECT id, name FROM tags WHERE id = ANY($1::uuid[]) ORDER BY name COLLATE "C"`
	return r.queryTags(ctx, "get tags", query, uuidStrings(ids))
}

func (r *Repository) ListTags(ctx context.Context, offset, limit int) ([]*simplenotes.Tag, error) {
	query := `SELECT id, name FROM tags ORDER BY name COLLATE "C" OFFSET $1 LIMIT NULLIF($2, 0)`
	return r.queryTags(ctx, "list tags", query, offset, limit)
}

func (r *Repository) RenameTag(ctx context.Context, id uuid.UUID, name string) (*simplenotes.Tag, error) {
	var tag simplenotes.Tag
	err := r.db.QueryRow(ctx, `UPDATE tags SET name = $2 WHERE id = $1 RETURNING id, name`, id, name).
		Scan(&tag.ID, &tag.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplenotes.ErrTagNotFound
		}
		return nil, r.handlePostgresError("rename tag", err)
	}
	return &tag, nil
}

// DeleteTag relies on ON DELETE CASCADE to detach the tag from notes.
func (r *Repository) DeleteTag(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete tag", err)
	}
	if result.RowsAffected() == 0 {
		return simplenotes.ErrTagNotFound
	}
	return nil
}

func (r *Repository) queryTags(ctx context.Context, op, query string, args ...interface{}) ([]*simplenotes.Tag, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(op, err)
	}
	defer rows.Close()

	tags := make([]*simplenotes.Tag, 0)
	for rows.Next() {
		var tag simplenotes.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, r.handlePostgresError(op, err)
		}
		tags = append(tags, &tag)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError(op, err)
	}
	return tags, nil
}
