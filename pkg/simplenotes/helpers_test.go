package simplenotes_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-notes/pkg/simplenotes"
	"github.com/tendant/simple-notes/pkg/simplenotes/repo/memory"
	memorystorage "github.com/tendant/simple-notes/pkg/simplenotes/storage/memory"
)

var errInjected = errors.New("injected failure")

// fixture bundles a service with the backends behind it
type fixture struct {
	svc    simplenotes.Service
	repo   simplenotes.Repository
	store  *memorystorage.Backend
	events *recordingSink
}

func newFixture(t *testing.T, opts ...simplenotes.Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:   memory.New(),
		store:  memorystorage.New(),
		events: &recordingSink{},
	}
	base := []simplenotes.Option{
		simplenotes.WithRepository(f.repo),
		simplenotes.WithBlobStore("memory", f.store),
		simplenotes.WithEventSink(f.events),
	}
	svc, err := simplenotes.New(append(base, opts...)...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) createNote(t *testing.T, title string, tags ...string) *simplenotes.Note {
	t.Helper()
	note, err := f.svc.CreateNote(context.Background(), simplenotes.CreateNoteRequest{
		Title:    title,
		Content:  "about " + title,
		TagNames: tags,
	})
	require.NoError(t, err)
	return note
}

func (f *fixture) upload(t *testing.T, noteID uuid.UUID, filename, body string) *simplenotes.Image {
	t.Helper()
	image, err := f.svc.UploadImage(context.Background(), uploadRequest(noteID, filename, body))
	require.NoError(t, err)
	return image
}

func (f *fixture) blobExists(t *testing.T, objectName string) bool {
	t.Helper()
	rc, err := f.store.Get(context.Background(), objectName)
	if errors.Is(err, simplenotes.ErrObjectNotFound) {
		return false
	}
	require.NoError(t, err)
	rc.Close()
	return true
}

func (f *fixture) blobCount(t *testing.T) int {
	t.Helper()
	objects, err := f.store.List(context.Background(), "")
	require.NoError(t, err)
	return len(objects)
}

func uploadRequest(noteID uuid.UUID, filename, body string) simplenotes.UploadImageRequest {
	return simplenotes.UploadImageRequest{
		NoteID:      noteID,
		Filename:    filename,
		ContentType: "image/png",
		Size:        int64(len(body)),
		Reader:      strings.NewReader(body),
	}
}

// recordingSink records every event it receives
type recordingSink struct {
	mu       sync.Mutex
	events   []string
	orphaned []string
}

func (s *recordingSink) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
}

func (s *recordingSink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *recordingSink) Orphaned() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.orphaned...)
}

func (s *recordingSink) NoteCreated(ctx context.Context, note *simplenotes.Note) error {
	s.record("note_created")
	return nil
}

func (s *recordingSink) NoteUpdated(ctx context.Context, note *simplenotes.Note) error {
	s.record("note_updated")
	return nil
}

func (s *recordingSink) NoteDeleted(ctx context.Context, noteID uuid.UUID) error {
	s.record("note_deleted")
	return nil
}

func (s *recordingSink) ImageUploaded(ctx context.Context, image *simplenotes.Image) error {
	s.record("image_uploaded")
	return nil
}

func (s *recordingSink) ImageDeleted(ctx context.Context, image *simplenotes.Image) error {
	s.record("image_deleted")
	return nil
}

func (s *recordingSink) BlobOrphaned(ctx context.Context, objectName string, cause error) error {
	s.mu.Lock()
	s.orphaned = append(s.orphaned, objectName)
	s.mu.Unlock()
	s.record("blob_orphaned")
	return nil
}

// faultyStore wraps a BlobStore and fails selected operations
type faultyStore struct {
	simplenotes.BlobStore
	failPut    bool
	failDelete bool
	deletes    int

	beforeDelete func()
}

func (s *faultyStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if s.failPut {
		return errInjected
	}
	return s.BlobStore.Put(ctx, name, r, size, contentType)
}

func (s *faultyStore) Delete(ctx context.Context, name string) error {
	s.deletes++
	if hook := s.beforeDelete; hook != nil {
		s.beforeDelete = nil
		hook()
	}
	if s.failDelete {
		return errInjected
	}
	return s.BlobStore.Delete(ctx, name)
}

// faultyRepo wraps a Repository outside transactions. createImageErrs are
// returned by successive CreateImage calls before delegating.
type faultyRepo struct {
	simplenotes.Repository
	createImageErrs []error
	createImages    int
	tagLookupMisses int

	beforeCreateImage func()
}

func (r *faultyRepo) CreateImage(ctx context.Context, image *simplenotes.Image) error {
	r.createImages++
	if r.beforeCreateImage != nil {
		r.beforeCreateImage()
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if len(r.createImageErrs) > 0 {
		err := r.createImageErrs[0]
		r.createImageErrs = r.createImageErrs[1:]
		if err != nil {
			return err
		}
	}
	return r.Repository.CreateImage(ctx, image)
}

// GetTagByName misses tagLookupMisses times, as if a concurrent writer
// committed the tag right after the lookup.
func (r *faultyRepo) GetTagByName(ctx context.Context, name string) (*simplenotes.Tag, error) {
	if r.tagLookupMisses > 0 {
		r.tagLookupMisses--
		return nil, simplenotes.ErrTagNotFound
	}
	return r.Repository.GetTagByName(ctx, name)
}

// txFaultyRepo fails SetNoteTags inside transactions, after the note and any
// new tags have been written.
type txFaultyRepo struct {
	simplenotes.Repository
	setNoteTagsErr error
}

func (r *txFaultyRepo) WithTx(ctx context.Context, fn func(tx simplenotes.Repository) error) error {
	return r.Repository.WithTx(ctx, func(tx simplenotes.Repository) error {
		return fn(&txFaultyRepo{Repository: tx, setNoteTagsErr: r.setNoteTagsErr})
	})
}

func (r *txFaultyRepo) SetNoteTags(ctx context.Context, noteID uuid.UUID, tagIDs []uuid.UUID) error {
	if r.setNoteTagsErr != nil {
		return r.setNoteTagsErr
	}
	return r.Repository.SetNoteTags(ctx, noteID, tagIDs)
}

// listHookRepo runs afterList once, after the first ListImages call returns.
type listHookRepo struct {
	simplenotes.Repository
	afterList func(batch []*simplenotes.Image)
}

func (r *listHookRepo) ListImages(ctx context.Context, filter simplenotes.ImageFilter) ([]*simplenotes.Image, error) {
	batch, err := r.Repository.ListImages(ctx, filter)
	if hook := r.afterList; hook != nil && err == nil {
		r.afterList = nil
		hook(batch)
	}
	return batch, err
}

// recordingTagRepo records the names passed to CreateTag
type recordingTagRepo struct {
	simplenotes.Repository
	created []string
}

func (r *recordingTagRepo) CreateTag(ctx context.Context, tag *simplenotes.Tag) error {
	r.created = append(r.created, tag.Name)
	return r.Repository.CreateTag(ctx, tag)
}

// fakeCache is an in-process ShortURLCache
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]simplenotes.Image
	hits    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]simplenotes.Image)}
}

func (c *fakeCache) Get(ctx context.Context, shortURL string) (*simplenotes.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.entries[shortURL]
	if !ok {
		return nil, simplenotes.ErrCacheMiss
	}
	c.hits++
	return &img, nil
}

func (c *fakeCache) Set(ctx context.Context, image *simplenotes.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[image.ShortURL] = *image
	c.sets++
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, shortURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, shortURL)
	return nil
}
