package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-notes/pkg/simplenotes/repo/postgres"
)

// TestDB represents a test database connection
type TestDB struct {
	Pool *pgxpool.Pool
}

// NewTestDB connects to TEST_DATABASE_URL, skipping the test when it is unset.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping database test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")

	err = pool.Ping(ctx)
	require.NoError(t, err, "Failed to ping test database")

	db := &TestDB{Pool: pool}
	t.Cleanup(pool.Close)
	return db
}

// Setup creates the schema used by the repository
func (db *TestDB) Setup(t *testing.T) {
	t.Helper()
	err := postgres.EnsureSchema(context.Background(), db.Pool)
	require.NoError(t, err, "Failed to create schema")
}

// Cleanup removes all test data from the database
func (db *TestDB) Cleanup(t *testing.T) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(), "TRUNCATE images, note_tags, tags, notes CASCADE")
	require.NoError(t, err, "Failed to truncate tables")
}
