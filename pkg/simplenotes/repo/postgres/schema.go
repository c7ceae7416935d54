package postgres

import (
	"context"
	"fmt"
)

// Schema is the table layout used by Repository. It is idempotent and meant
// for bootstrapping a fresh database, not for migrating an existing one.
const Schema = `
CREATE TABLE IF NOT EXISTS notes (
	id         UUID PRIMARY KEY,
	title      VARCHAR(200) NOT NULL,
	content    TEXT NOT NULL DEFAULT '',
	version    INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes (created_at, id);

CREATE TABLE IF NOT EXISTS tags (
	id   UUID PRIMARY KEY,
	name VARCHAR(50) NOT NULL,
	CONSTRAINT tags_name_key UNIQUE (name)
);

CREATE TABLE IF NOT EXISTS note_tags (
	note_id UUID NOT NULL,
	tag_id  UUID NOT NULL,
	PRIMARY KEY (note_id, tag_id),
	CONSTRAINT note_tags_note_id_fkey FOREIGN KEY (note_id) REFERENCES notes (id) ON DELETE CASCADE,
	CONSTRAINT note_tags_tag_id_fkey FOREIGN KEY (tag_id) REFERENCES tags (id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_note_tags_tag_id ON note_tags (tag_id);

CREATE TABLE IF NOT EXISTS images (
	id           UUID PRIMARY KEY,
	filename     VARCHAR(255) NOT NULL,
	url          TEXT NOT NULL,
	short_url    VARCHAR(64) NOT NULL,
	content_type VARCHAR(255) NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	note_id      UUID NOT NULL,
	CONSTRAINT images_short_url_key UNIQUE (short_url),
	CONSTRAINT images_note_id_fkey FOREIGN KEY (note_id) REFERENCES notes (id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_images_note_id ON images (note_id, created_at);
`

// EnsureSchema creates the tables when they are missing.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
