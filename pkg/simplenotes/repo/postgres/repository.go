package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// beginner is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx. A Tx begins
// a savepoint.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository implements simplenotes.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// WithTx runs fn inside a transaction, or a savepoint when r is already
// bound to one. Without a way to begin, fn runs directly against r.
func (r *Repository) WithTx(ctx context.Context, fn func(tx simplenotes.Repository) error) error {
	b, ok := r.db.(beginner)
	if !ok {
		return fn(r)
	}
	return pgx.BeginFunc(ctx, b, func(tx pgx.Tx) error {
		return fn(&Repository{db: tx})
	})
}

// EnsureSchema creates the tables when they are missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	return EnsureSchema(ctx, r.db)
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch {
			case strings.Contains(pgErr.ConstraintName, "name"):
				return simplenotes.ErrTagNameTaken
			case strings.Contains(pgErr.ConstraintName, "short_url"):
				return simplenotes.ErrShortURLTaken
			}
			return fmt.Errorf("duplicate entry in %s: %w", operation, simplenotes.ErrConflict)
		case "23503": // foreign_key_violation
			switch {
			case strings.Contains(pgErr.ConstraintName, "note_id"):
				return simplenotes.ErrNoteNotFound
			case strings.Contains(pgErr.ConstraintName, "tag_id"):
				return simplenotes.ErrTagNotFound
			}
			return fmt.Errorf("referenced record in %s: %w", operation, simplenotes.ErrNotFound)
		case "23502": // not_null_violation
			return &simplenotes.ValidationError{Field: pgErr.ColumnName, Reason: "is required"}
		case "22001": // string_data_right_truncation
			return &simplenotes.ValidationError{Field: "value", Reason: "too long"}
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - run schema setup: %w", err)
		default:
			return fmt.Errorf("database error in %s: %w", operation, err)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
