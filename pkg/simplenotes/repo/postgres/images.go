package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

const imageColumns = `id, note_id, filename, url, short_url, content_type, created_at`

// Image operations

// CreateImage inserts with ON CONFLICT DO NOTHING on short_url so a lost race
// for a code is reported as ErrShortURLTaken.
func (r *Repository) CreateImage(ctx context.Context, image *simplenotes.Image) error {
	query := `
		INSERT INTO images (id, note_id, filename, url, short_url, content_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (short_url) DO NOTHING`

	result, err := r.db.Exec(ctx, query,
		image.ID, image.NoteID, image.Filename, image.URL, image.ShortURL, image.ContentType, image.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create image", err)
	}
	if result.RowsAffected() == 0 {
		return simplenotes.ErrShortURLTaken
	}
	return nil
}

func (r *Repository) GetImage(ctx context.Context, id uuid.UUID) (*simplenotes.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`
	return r.getImage(ctx, "get image", query, id)
}

func (r *Repository) GetImageByShortURL(ctx context.Context, shortURL string) (*simplenotes.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE short_url = $1`
	return r.getImage(ctx, "get image by short url", query, shortURL)
}

func (r *Repository) ListImages(ctx context.Context, filter simplenotes.ImageFilter) ([]*simplenotes.Image, error) {
	query := `
		SELECT ` + imageColumns + `
		FROM images
		WHERE $1::uuid IS NULL OR note_id = $1::uuid
		ORDER BY created_at, id
		OFFSET $2 LIMIT NULLIF($3, 0)`

	var noteID interface{}
	if filter.NoteID != nil {
		noteID = filter.NoteID.String()
	}

	rows, err := r.db.Query(ctx, query, noteID, filter.Offset, filter.Limit)
	if err != nil {
		return nil, r.handlePostgresError("list images", err)
	}
	defer rows.Close()

	images := make([]*simplenotes.Image, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, r.handlePostgresError("list images", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list images", err)
	}
	return images, nil
}

func (r *Repository) DeleteImage(ctx context.Context, id uuid.UUID) (*simplenotes.Image, error) {
	query := `DELETE FROM images WHERE id = $1 RETURNING ` + imageColumns
	return r.getImage(ctx, "delete image", query, id)
}

func (r *Repository) ShortURLExists(ctx context.Context, shortURL string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM images WHERE short_url = $1)`, shortURL).Scan(&exists)
	if err != nil {
		return false, r.handlePostgresError("check short url", err)
	}
	return exists, nil
}

func (r *Repository) getImage(ctx context.Context, op, query string, arg interface{}) (*simplenotes.Image, error) {
	img, err := scanImage(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplenotes.ErrImageNotFound
		}
		return nil, r.handlePostgresError(op, err)
	}
	return img, nil
}

func scanImage(row pgx.Row) (*simplenotes.Image, error) {
	var img simplenotes.Image
	err := row.Scan(&img.ID, &img.NoteID, &img.Filename, &img.URL, &img.ShortURL, &img.ContentType, &img.CreatedAt)
	if err != nil {
		return nil, err
	}
	img.CreatedAt = img.CreatedAt.UTC()
	return &img, nil
}
