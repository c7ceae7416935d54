package simplenotes_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// faultyFixture is a fixture whose service talks to faulty wrappers around
// the memory backends
func faultyFixture(t *testing.T, opts ...simplenotes.Option) (*fixture, *faultyRepo, *faultyStore) {
	t.Helper()
	f := newFixture(t)
	repo := &faultyRepo{Repository: f.repo}
	store := &faultyStore{BlobStore: f.store}

	base := []simplenotes.Option{
		simplenotes.WithRepository(repo),
		simplenotes.WithBlobStore("faulty", store),
		simplenotes.WithEventSink(f.events),
	}
	svc, err := simplenotes.New(append(base, opts...)...)
	require.NoError(t, err)
	f.svc = svc
	return f, repo, store
}

func TestUploadImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.createNote(t, "pics")

	image := f.upload(t, note.ID, "Holiday.PNG", "png-bytes")
	assert.Equal(t, note.ID, image.NoteID)
	assert.Regexp(t, `^[0-9a-f-]{36}\.png$`, image.Filename)
	assert.Equal(t, "image/png", image.ContentType)
	assert.Equal(t, simplenotes.BaseShortURL(image.URL, note.ID), image.ShortURL)
	assert.True(t, f.blobExists(t, note.ID.String()+"/"+image.Filename))

	rc, err := f.svc.OpenImage(ctx, note.ID, image.Filename)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	got, err := f.svc.GetNote(ctx, note.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 1)
	assert.Equal(t, image.ID, got.Images[0].ID)

	assert.Equal(t, []string{"note_created", "image_uploaded"}, f.events.Events())
}

func TestUploadImage_Defaults(t *testing.T) {
	f := newFixture(t)
	note := f.createNote(t, "pics")

	image, err := f.svc.UploadImage(context.Background(), simplenotes.UploadImageRequest{
		NoteID: note.ID,
		Reader: uploadRequest(note.ID, "", "raw").Reader,
	})
	require.NoError(t, err)
	assert.Regexp(t, `\.jpg$`, image.Filename)
	assert.Equal(t, "application/octet-stream", image.ContentType)
}

func TestUploadImage_SameNameTwice(t *testing.T) {
	f := newFixture(t)
	note := f.createNote(t, "pics")

	a := f.upload(t, note.ID, "same.png", "one")
	b := f.upload(t, note.ID, "same.png", "two")
	assert.NotEqual(t, a.Filename, b.Filename)
	assert.NotEqual(t, a.ShortURL, b.ShortURL)
	assert.Equal(t, 2, f.blobCount(t))
}

func TestUploadImage_MissingNote(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UploadImage(context.Background(), uploadRequest(uuid.New(), "a.png", "x"))
	assert.ErrorIs(t, err, simplenotes.ErrNoteNotFound)
	assert.Zero(t, f.blobCount(t), "no blob is written for a missing note")
}

func TestUploadImage_NilReader(t *testing.T) {
	f := newFixture(t)
	note := f.createNote(t, "pics")

	_, err := f.svc.UploadImage(context.Background(), simplenotes.UploadImageRequest{NoteID: note.ID, Filename: "a.png"})
	assert.ErrorIs(t, err, simplenotes.ErrInvalidInput)
}

func TestUploadImage_PutFailure(t *testing.T) {
	f, repo, store := faultyFixture(t)
	note := f.createNote(t, "pics")
	store.failPut = true

	_, err := f.svc.UploadImage(context.Background(), uploadRequest(note.ID, "a.png", "x"))
	require.Error(t, err)

	var storageErr *simplenotes.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "put", storageErr.Op)
	assert.Equal(t, "faulty", storageErr.Backend)
	assert.ErrorIs(t, err, errInjected)
	assert.Zero(t, repo.createImages)
}

func TestUploadImage_RowFailureRemovesBlob(t *testing.T) {
	f, repo, store := faultyFixture(t)
	ctx := context.Background()
	note := f.createNote(t, "pics")
	repo.createImageErrs = []error{errInjected}

	_, err := f.svc.UploadImage(ctx, uploadRequest(note.ID, "a.png", "x"))
	require.Error(t, err)

	var persistErr *simplenotes.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "image", persistErr.Entity)
	assert.ErrorIs(t, err, errInjected)

	assert.Equal(t, 1, store.deletes)
	assert.Zero(t, f.blobCount(t), "blob was compensated")
	images, err := f.svc.ListImages(ctx, note.ID)
	require.NoError(t, err)
	assert.Empty(t, images)
	assert.Empty(t, f.events.Orphaned())
}

func TestUploadImage_CompensationSurvivesCancel(t *testing.T) {
	f, repo, _ := faultyFixture(t)
	note := f.createNote(t, "pics")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo.beforeCreateImage = cancel

	_, err := f.svc.UploadImage(ctx, uploadRequest(note.ID, "a.png", "x"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.blobCount(t), "cleanup runs detached from the cancelled request")
}

func TestUploadImage_CompensationFailureReportsOrphan(t *testing.T) {
	f, repo, store := faultyFixture(t)
	note := f.createNote(t, "pics")
	repo.createImageErrs = []error{errInjected}
	store.failDelete = true

	_, err := f.svc.UploadImage(context.Background(), uploadRequest(note.ID, "a.png", "x"))
	require.ErrorIs(t, err, errInjected)

	orphaned := f.events.Orphaned()
	require.Len(t, orphaned, 1)
	assert.True(t, f.blobExists(t, orphaned[0]))
	assert.NotContains(t, f.events.Events(), "image_uploaded")
}

func TestUploadImage_ShortURLRaceRetries(t *testing.T) {
	f, repo, _ := faultyFixture(t)
	note := f.createNote(t, "pics")
	repo.createImageErrs = []error{simplenotes.ErrShortURLTaken}

	image, err := f.svc.UploadImage(context.Background(), uploadRequest(note.ID, "a.png", "x"))
	require.NoError(t, err)
	assert.Equal(t, 2, repo.createImages)
	assert.NotEmpty(t, image.ShortURL)
	assert.Equal(t, 1, f.blobCount(t))
}

func TestUploadImage_ShortURLRaceGivesUp(t *testing.T) {
	f, repo, _ := faultyFixture(t, simplenotes.WithMaxInsertAttempts(2))
	note := f.createNote(t, "pics")
	repo.createImageErrs = []error{simplenotes.ErrShortURLTaken, simplenotes.ErrShortURLTaken, simplenotes.ErrShortURLTaken}

	_, err := f.svc.UploadImage(context.Background(), uploadRequest(note.ID, "a.png", "x"))
	require.ErrorIs(t, err, simplenotes.ErrShortURLTaken)
	assert.ErrorIs(t, err, simplenotes.ErrConflict)
	assert.Equal(t, 2, repo.createImages)
	assert.Zero(t, f.blobCount(t))
}

func TestDeleteImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.createNote(t, "pics")
	image := f.upload(t, note.ID, "a.png", "x")
	keep := f.upload(t, note.ID, "b.png", "y")

	require.NoError(t, f.svc.DeleteImage(ctx, image.ID))
	assert.False(t, f.blobExists(t, image.ObjectName()))
	assert.True(t, f.blobExists(t, keep.ObjectName()))

	_, err := f.svc.GetImage(ctx, image.ID)
	assert.ErrorIs(t, err, simplenotes.ErrImageNotFound)

	err = f.svc.DeleteImage(ctx, image.ID)
	assert.ErrorIs(t, err, simplenotes.ErrImageNotFound)

	images, err := f.svc.ListImages(ctx, note.ID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, keep.ID, images[0].ID)
	assert.Contains(t, f.events.Events(), "image_deleted")
}

func TestDeleteImage_BlobFailureKeepsRow(t *testing.T) {
	f, _, store := faultyFixture(t)
	ctx := context.Background()
	note := f.createNote(t, "pics")
	image := f.upload(t, note.ID, "a.png", "x")
	store.failDelete = true

	err := f.svc.DeleteImage(ctx, image.ID)
	var storageErr *simplenotes.StorageError
	require.ErrorAs(t, err, &storageErr)

	_, err = f.svc.GetImage(ctx, image.ID)
	assert.NoError(t, err)
}

func TestDeleteImage_MissingBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.createNote(t, "pics")
	image := f.upload(t, note.ID, "a.png", "x")
	require.NoError(t, f.store.Delete(ctx, image.ObjectName()))

	require.NoError(t, f.svc.DeleteImage(ctx, image.ID), "a missing blob does not block the row delete")
	_, err := f.svc.GetImage(ctx, image.ID)
	assert.ErrorIs(t, err, simplenotes.ErrImageNotFound)
}

func TestListImages_MissingNote(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListImages(context.Background(), uuid.New())
	assert.ErrorIs(t, err, simplenotes.ErrNoteNotFound)
}

func TestListImages_PagesPastListLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note := f.createNote(t, "album")

	total := simplenotes.MaxListLimit + 5
	created := time.Now()
	for i := 0; i < total; i++ {
		require.NoError(t, f.repo.CreateImage(ctx, &simplenotes.Image{
			ID:        uuid.New(),
			NoteID:    note.ID,
			Filename:  fmt.Sprintf("%04d.png", i),
			ShortURL:  fmt.Sprintf("s%04d", i),
			CreatedAt: created.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	images, err := f.svc.ListImages(ctx, note.ID)
	require.NoError(t, err)
	require.Len(t, images, total)
	assert.Equal(t, "0000.png", images[0].Filename)
	assert.Equal(t, fmt.Sprintf("%04d.png", total-1), images[total-1].Filename)
}

func TestGetImageByShortURL_Cache(t *testing.T) {
	cache := newFakeCache()
	f := newFixture(t, simplenotes.WithShortURLCache(cache))
	ctx := context.Background()
	note := f.createNote(t, "pics")
	image := f.upload(t, note.ID, "a.png", "x")

	got, err := f.svc.GetImageByShortURL(ctx, image.ShortURL)
	require.NoError(t, err)
	assert.Equal(t, image.ID, got.ID)
	assert.Equal(t, 1, cache.sets)
	assert.Zero(t, cache.hits)

	got, err = f.svc.GetImageByShortURL(ctx, image.ShortURL)
	require.NoError(t, err)
	assert.Equal(t, image.ID, got.ID)
	assert.Equal(t, 1, cache.hits)

	require.NoError(t, f.svc.DeleteImage(ctx, image.ID))
	_, err = f.svc.GetImageByShortURL(ctx, image.ShortURL)
	assert.ErrorIs(t, err, simplenotes.ErrImageNotFound, "deletion evicts the cached entry")

	_, err = f.svc.GetImageByShortURL(ctx, "")
	assert.ErrorIs(t, err, simplenotes.ErrInvalidInput)
}

func TestOpenImage_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.OpenImage(ctx, uuid.New(), "missing.png")
	assert.ErrorIs(t, err, simplenotes.ErrObjectNotFound)

	_, err = f.svc.OpenImage(ctx, uuid.New(), "../escape.png")
	assert.ErrorIs(t, err, simplenotes.ErrInvalidInput)
}
