// Package repotest holds the behaviour every simplenotes.Repository must show.
// Backends run it from their own tests.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) simplenotes.Repository

// Run executes the repository contract against repositories from newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("NoteLifecycle", func(t *testing.T) { testNoteLifecycle(t, newRepo(t)) })
	t.Run("VersionMismatch", func(t *testing.T) { testVersionMismatch(t, newRepo(t)) })
	t.Run("ListNotesByTag", func(t *testing.T) { testListNotesByTag(t, newRepo(t)) })
	t.Run("TagUniqueness", func(t *testing.T) { testTagUniqueness(t, newRepo(t)) })
	t.Run("ConcurrentTagCreate", func(t *testing.T) { testConcurrentTagCreate(t, newRepo(t)) })
	t.Run("DeleteTagDetaches", func(t *testing.T) { testDeleteTagDetaches(t, newRepo(t)) })
	t.Run("ImageShortURLUniqueness", func(t *testing.T) { testImageShortURL(t, newRepo(t)) })
	t.Run("DeleteNoteCascades", func(t *testing.T) { testDeleteNoteCascades(t, newRepo(t)) })
	t.Run("TransactionRollback", func(t *testing.T) { testTransactionRollback(t, newRepo(t)) })
	t.Run("TransactionCommit", func(t *testing.T) { testTransactionCommit(t, newRepo(t)) })
}

// NewNote builds a note ready for CreateNote.
func NewNote(title string, createdAt time.Time) *simplenotes.Note {
	return &simplenotes.Note{
		ID:        uuid.New(),
		Title:     title,
		Content:   title + " content",
		Version:   1,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// NewImage builds an image row for noteID.
func NewImage(noteID uuid.UUID, shortURL string, createdAt time.Time) *simplenotes.Image {
	filename := uuid.New().String() + ".png"
	return &simplenotes.Image{
		ID:          uuid.New(),
		NoteID:      noteID,
		Filename:    filename,
		URL:         "http://blobs/" + simplenotes.ObjectName(noteID, filename),
		ShortURL:    shortURL,
		ContentType: "image/png",
		CreatedAt:   createdAt,
	}
}

func baseTime() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func createTag(t *testing.T, repo simplenotes.Repository, name string) *simplenotes.Tag {
	t.Helper()
	tag := &simplenotes.Tag{ID: uuid.New(), Name: name}
	require.NoError(t, repo.CreateTag(context.Background(), tag))
	return tag
}

func testNoteLifecycle(t *testing.T, repo simplenotes.Repository) {
	ctx := context.Background()

	note := NewNote("Groceries", baseTime())
	require.NoError(t, repo.CreateNote(ctx, note))

	home := createTag(t, repo, "home")
	errands := createTag(t, repo, "errands")
	require.NoError(t, repo.SetNoteTags(ctx, note.ID, []uuid.UUID{home.ID, errands.ID}))

	got, err := repo.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Title)
	assert.Equal(t, 1, got.Version)
	require.Len(t, got.Tags, 2)
	assert.Equal(t, "errands", got.Tags[0].Name)
	assert.Equal(t, "home", got.Tags[1].Name)
	assert.Empty(t, got.Images)

	title := "Groceries (weekly)"
	later := baseTime().Add(time.Hour)
	updated, err := repo.UpdateNote(ctx, note.ID, simplenotes.NotePatch{Title: &title, UpdatedAt: later})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, "Groceries content", updated.Content)
	assert.Equal(t, 2, updated.Version)
	assert.True(t, updated.UpdatedAt.Equal(later))

	_, err = repo.UpdateNote(ctx, uuid.New(), simplenotes.NotePatch{Title: &title})
	assert.ErrorIs(t, err, simplenotes.ErrNoteNotFound)

	_, err = repo.GetNote(ctx, uuid.New())
	assert.ErrorIs(t, err, simplenotes.ErrNoteNotFound)
}

func testVersionMismatch(t *testing.T, repo simplenotes.Repository) {
	ctx := context.Background()
	note := NewNote("Versioned", baseTime())
	require.NoError(t, repo.CreateNote(ctx, note))

	stale := 3
	content := "changed"
	_, err := repo.UpdateNote(ctx, note.ID, simplenotes.NotePatch{Content: &content, ExpectedVersion: &stale})
	assert.ErrorIs(t, err, simplenotes.ErrVersionMismatch)

	got, err := repo.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "Versioned content", got.Content)

	current := 1
	updated, err := repo.UpdateNote(ctx, note.ID, simplenotes.NotePatch{Content: &content, ExpectedVersion: &current, UpdatedAt: baseTime()})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
}

func testListNotesByTag(t *testing.T, repo simplenotes.Repository) {
	ctx := context.Background()
	work := createTag(t, repo, "work")

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		note := NewNote(fmt.Sprintf("note %d", i), baseTime().Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.CreateNote(ctx, note))
		ids = append(ids, note.ID)
		if i%2 == 0 {
			require.NoError(t, repo.SetNoteTags(ctx, note.ID, []uuid.UUID{work.ID}))
		}
	}

	all, err := repo.ListNotes(ctx, simplenotes.NoteFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, n := range all {
		assert.Equal(t, ids[i], n.ID, "creation order")
	}

	paged, err := repo.ListNotes(ctx, simplenotes.NoteFilter{Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, ids[1], paged[0].ID)
	assert.Equal(t, ids[2], paged[1].ID)

	tagged, err := repo.ListNotes(ctx, simplenotes.NoteFilter{TagName: "work", Limit: 10})
	require.NoError(t, err)
	require.Len(t, tagged, 3)
	assert.Equal(t, ids[0], tagged[0].ID)
	assert.Equal(t, ids[2], tagged[1].ID)
	assert.Equal(t, ids[4], tagged[2].ID)
	assert.Len(t, tagged[0].Tags, 1)

	none, err := repo.ListNotes(ctx, simplenotes.NoteFilter{TagName: "missing", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testTagUniqueness(t *testing.T, repo simplenotes.Repository) {
	ctx := context.Background()
	home := createTag(t, repo, "home")

	err := repo.CreateTag(ctx, &simplenotes.Tag{ID: uuid.New(), Name: "home"})
	assert.ErrorIs(t, err, simplenotes.ErrTagNameTaken)

	// exact match: a different case is a different tag
	createTag(t, repo, "Home")

	got, err := repo.GetTagByName(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, home.ID, got.ID)

	work := createTag(t, repo, "work")
	_, err = repo.RenameTag(ctx, work.ID, "home")
	assert.ErrorIs(t, err, simplenotes.ErrTagNameTaken)

	renamed, err := repo.RenameTag(ctx, work.ID, "office")
	require.NoError(t, err)
	assert.Equal(t, "office", renamed.Name)

	_, err = repo.GetTagByName(ctx, "work")
	assert.ErrorIs(t, err, simplenotes.ErrTagNotFound)

	_, err = repo.RenameTag(ctx, uuid.New(), "nobody")
	assert.ErrorIs(t, err, simplenotes.ErrTagNotFound)

	found, err := repo.GetTagsByIDs(ctx, []uuid.UUID{home.ID, uuid.New(), work.ID})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "home", found[0].Name)
	assert.Equal(t, "office", found[1].Name)

	listed, err := repo.ListTags(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "Home", listed[0].Name)
}

func testConcurrentTagCreate(t *testing.T, repo simplenotes.Repository) {
	ctx := context.Background()
	const workers = 8

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.CreateTag(ctx, &simplenotes.Tag{ID: uuid.New(), Name: "race"})
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, simplenotes.ErrTagNameTaken)
	}
	assert.Equal(t, 1, wins)
}

func testDeleteTagDetaches(t *testing.T, repo simplenotes.Repository) {
	ctx := context.Background()
	note := NewNote("Tagged", baseTime())
	require.NoError(t, repo.CreateNote(ctx, note))
	tag := createTag(t, repo, "temp")
	require.NoError(t, repo.SetNoteTags(ctx, note.ID, []uuid.UUID{tag.ID}))

	require.NoError(t, repo.DeleteTag(ctx, tag.ID))
	assert.ErrorIs(t, repo.DeleteTag(ctx, tag.ID), simplenotes.ErrTagNotFound)

	got, err := repo.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}

func testImageShortURL(t *testing.T, repo simplenotes.Repository) {
	ctx := context.Background()
	note := NewNote("Photos", baseTime())
	require.NoError(t, repo.CreateNote(ctx, note))

	first := NewImage(note.ID, "abcdefgh", baseTime())
	require.NoError(t, repo.CreateImage(ctx, first))

	exists, err := repo.ShortURLExists(ctx, "abcdefgh")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ShortURLExists(ctx, "abcdefgh_1")
	require.NoError(t, err)
	assert.False(t, exists)

	dup := NewImage(note.ID, "abcdefgh", baseTime())
	assert.ErrorIs(t, repo.CreateImage(ctx, dup), simplenotes.ErrShortURLTaken)

	orphan := NewImage(uuid.New(), "zzzzzzzz", baseTime())
	assert.ErrorIs(t, repo.CreateImage(ctx, orphan), simplenotes.ErrNoteNotFound)

	got, err := repo.GetImageByShortURL(ctx, "abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.Filename, got.Filename)

	deleted, err := repo.DeleteImage(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, deleted.ID)

	_, err = repo.DeleteImage(ctx, first.ID)
	assert.ErrorIs(t, err, simplenotes.ErrImageNotFound)

	_, err = repo.GetImageByShortURL(ctx, "abcdefgh")
	assert.ErrorIs(t, err, simplenotes.ErrImageNotFound)
}

func testDeleteNoteCascades(t *testing.T, repo simplenotes.Repository) {
	ctx := context.Background()
	note := NewNote("Doomed", baseTime())
	require.NoError(t, repo.CreateNote(ctx, note))
	other := NewNote("Survivor", baseTime())
	require.NoError(t, repo.CreateNote(ctx, other))

	img1 := NewImage(note.ID, "code0001", baseTime())
	img2 := NewImage(note.ID, "code0002", baseTime().Add(time.Second))
	kept := NewImage(other.ID, "code0003", baseTime())
	for _, img := range []*simplenotes.Image{img1, img2, kept} {
		require.NoError(t, repo.CreateImage(ctx, img))
	}

	listed, err := repo.ListImages(ctx, simplenotes.ImageFilter{NoteID: &note.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, img1.ID, listed[0].ID)

	got, err := repo.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Len(t, got.Images, 2)

	deleted, err := repo.DeleteNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.ID, deleted.ID)

	_, err = repo.GetImage(ctx, img1.ID)
	assert.ErrorIs(t, err, simplenotes.ErrImageNotFound)
	_, err = repo.GetImage(ctx, kept.ID)
	assert.NoError(t, err)

	_, err = repo.DeleteNote(ctx, note.ID)
	assert.ErrorIs(t, err, simplenotes.ErrNoteNotFound)

	all, err := repo.ListImages(ctx, simplenotes.ImageFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testTransactionRollback(t *testing.T, repo simplenotes.Repository) {
	ctx := context.Background()
	note := NewNote("Rolled back", baseTime())
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(tx simplenotes.Repository) error {
		if err := tx.CreateNote(ctx, note); err != nil {
			return err
		}
		if err := tx.CreateTag(ctx, &simplenotes.Tag{ID: uuid.New(), Name: "ghost"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetNote(ctx, note.ID)
	assert.ErrorIs(t, err, simplenotes.ErrNoteNotFound)
	_, err = repo.GetTagByName(ctx, "ghost")
	assert.ErrorIs(t, err, simplenotes.ErrTagNotFound)
}

func testTransactionCommit(t *testing.T, repo simplenotes.Repository) {
	ctx := context.Background()
	note := NewNote("Committed", baseTime())
	tag := &simplenotes.Tag{ID: uuid.New(), Name: "kept"}

	err := repo.WithTx(ctx, func(tx simplenotes.Repository) error {
		if err := tx.CreateNote(ctx, note); err != nil {
			return err
		}
		if err := tx.CreateTag(ctx, tag); err != nil {
			return err
		}
		// a name conflict inside the transaction is reported without
		// poisoning it
		if err := tx.CreateTag(ctx, &simplenotes.Tag{ID: uuid.New(), Name: "kept"}); !errors.Is(err, simplenotes.ErrTagNameTaken) {
			return fmt.Errorf("expected name conflict, got %v", err)
		}
		return tx.SetNoteTags(ctx, note.ID, []uuid.UUID{tag.ID})
	})
	require.NoError(t, err)

	got, err := repo.GetNote(ctx, note.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "kept", got.Tags[0].Name)
}
