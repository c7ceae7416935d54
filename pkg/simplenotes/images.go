package simplenotes

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// Image service defaults.
const (
	DefaultMaxInsertAttempts   = 3
	DefaultCompensationTimeout = 10 * time.Second
)

// ImageService keeps image rows and blobs in step.
//
// Upload writes the blob, allocates a short url and inserts the row; if
// anything after the blob write fails the blob is deleted again before the
// error is returned. Delete removes the blob before the row.
type ImageService struct {
	core                *core
	store               BlobStore
	storeName           string
	urls                URLStrategy
	cache               ShortURLCache
	maxProbes           int
	maxInsertAttempts   int
	compensationTimeout time.Duration
}

// UploadImage stores the bytes under {note_id}/{generated filename} and
// records the image row.
func (s *ImageService) UploadImage(ctx context.Context, req UploadImageRequest) (*Image, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Reader == nil {
		return nil, &ValidationError{Field: "file", Reason: "is required"}
	}

	ctx, cancel := s.core.withTimeout(ctx)
	defer cancel()

	if _, err := s.core.repo.GetNote(ctx, req.NoteID); err != nil {
		return nil, persistenceError("note", "get", req.NoteID, err)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	size := req.Size
	if size == 0 {
		size = -1
	}

	filename := GenerateFilename(req.Filename)
	objectName := ObjectName(req.NoteID, filename)

	if err := s.store.Put(ctx, objectName, req.Reader, size, contentType); err != nil {
		return nil, storageError(s.storeName, objectName, "put", err)
	}

	image, err := s.record(ctx, req.NoteID, filename, objectName, contentType)
	if err != nil {
		s.compensate(ctx, objectName)
		return nil, err
	}

	s.core.emit(ctx, "image_uploaded", func(sink EventSink) error { return sink.ImageUploaded(ctx, image) })
	return image, nil
}

// record allocates a short url and inserts the row, re-allocating when a
// concurrent upload claims the same code between probe and insert.
func (s *ImageService) record(ctx context.Context, noteID uuid.UUID, filename, objectName, contentType string) (*Image, error) {
	url, err := s.urls.ObjectURL(ctx, objectName)
	if err != nil {
		return nil, storageError(s.storeName, objectName, "url", err)
	}

	allocator := NewShortURLAllocator(s.core.repo, s.maxProbes)
	image := &Image{
		ID:          uuid.New(),
		NoteID:      noteID,
		Filename:    filename,
		URL:         url,
		ContentType: contentType,
		CreatedAt:   s.core.now(),
	}

	for attempt := 1; ; attempt++ {
		code, err := allocator.Allocate(ctx, url, noteID)
		if err != nil {
			return nil, err
		}
		image.ShortURL = code

		err = s.core.repo.CreateImage(ctx, image)
		if err == nil {
			return image, nil
		}
		if !errors.Is(err, ErrShortURLTaken) || attempt >= s.maxInsertAttempts {
			return nil, persistenceError("image", "create", image.ID, err)
		}
		s.core.logger.InfoContext(ctx, "Short url claimed concurrently, retrying", "short_url", code, "attempt", attempt)
	}
}

// compensate deletes a blob whose row could not be written. It runs detached
// from ctx so a cancelled request still cleans up, and never fails the caller.
func (s *ImageService) compensate(ctx context.Context, objectName string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	err := s.store.Delete(cleanupCtx, objectName)
	if err == nil {
		s.core.logger.InfoContext(ctx, "Removed blob after failed upload", "object", objectName)
		return
	}

	s.core.logger.ErrorContext(ctx, "Failed to remove blob after failed upload", "object", objectName, "error", err)
	s.core.emit(cleanupCtx, "blob_orphaned", func(sink EventSink) error { return sink.BlobOrphaned(cleanupCtx, objectName, err) })
}

// GetImage returns an image row.
func (s *ImageService) GetImage(ctx context.Context, id uuid.UUID) (*Image, error) {
	ctx, cancel := s.core.withTimeout(ctx)
	defer cancel()

	image, err := s.core.repo.GetImage(ctx, id)
	if err != nil {
		return nil, persistenceError("image", "get", id, err)
	}
	return image, nil
}

// ListImages returns the images of a note in upload order.
func (s *ImageService) ListImages(ctx context.Context, noteID uuid.UUID) ([]*Image, error) {
	ctx, cancel := s.core.withTimeout(ctx)
	defer cancel()

	if _, err := s.core.repo.GetNote(ctx, noteID); err != nil {
		return nil, persistenceError("note", "get", noteID, err)
	}
	return s.noteImages(ctx, noteID)
}

// DeleteImage removes the blob, then the row. A second delete of the same id
// reports ErrImageNotFound.
func (s *ImageService) DeleteImage(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.core.withTimeout(ctx)
	defer cancel()

	image, err := s.core.repo.GetImage(ctx, id)
	if err != nil {
		return persistenceError("image", "get", id, err)
	}

	objectName := image.ObjectName()
	if err := s.store.Delete(ctx, objectName); err != nil {
		return storageError(s.storeName, objectName, "delete", err)
	}

	if _, err := s.core.repo.DeleteImage(ctx, id); err != nil {
		return persistenceError("image", "delete", id, err)
	}
	s.evict(ctx, image.ShortURL)

	s.core.emit(ctx, "image_deleted", func(sink EventSink) error { return sink.ImageDeleted(ctx, image) })
	return nil
}

// GetImageByShortURL resolves a short url, reading through the cache.
func (s *ImageService) GetImageByShortURL(ctx context.Context, shortURL string) (*Image, error) {
	if shortURL == "" {
		return nil, &ValidationError{Field: "short_url", Reason: "is required"}
	}

	ctx, cancel := s.core.withTimeout(ctx)
	defer cancel()

	image, err := s.cache.Get(ctx, shortURL)
	if err == nil {
		return image, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.core.logger.WarnContext(ctx, "Short url cache read failed", "short_url", shortURL, "error", err)
	}

	image, err = s.core.repo.GetImageByShortURL(ctx, shortURL)
	if err != nil {
		return nil, persistenceError("image", "get_by_short_url", uuid.Nil, err)
	}

	if err := s.cache.Set(ctx, image); err != nil {
		s.core.logger.WarnContext(ctx, "Short url cache write failed", "short_url", shortURL, "error", err)
	}
	return image, nil
}

// OpenImage streams the blob of a note's image. The caller closes the reader.
func (s *ImageService) OpenImage(ctx context.Context, noteID uuid.UUID, filename string) (io.ReadCloser, error) {
	objectName := ObjectName(noteID, filename)
	if _, _, ok := ParseObjectName(objectName); !ok {
		return nil, &ValidationError{Field: "filename", Reason: "is not a valid object name"}
	}

	rc, err := s.store.Get(ctx, objectName)
	if err != nil {
		return nil, storageError(s.storeName, objectName, "get", err)
	}
	return rc, nil
}

// noteImages pages through every image row of noteID.
func (s *ImageService) noteImages(ctx context.Context, noteID uuid.UUID) ([]*Image, error) {
	images := make([]*Image, 0)
	seen := make(map[uuid.UUID]struct{})
	filter := ImageFilter{NoteID: &noteID, Limit: DefaultListLimit}
	for {
		batch, err := s.core.repo.ListImages(ctx, filter)
		if err != nil {
			return nil, persistenceError("image", "list", noteID, err)
		}
		for _, img := range batch {
			if _, ok := seen[img.ID]; ok {
				continue
			}
			seen[img.ID] = struct{}{}
			images = append(images, img)
		}
		if len(batch) < filter.Limit {
			return images, nil
		}
		filter.Offset += len(batch)
	}
}

// purgeNoteBlobs deletes the blobs of every image owned by noteID and returns
// the images it covered.
func (s *ImageService) purgeNoteBlobs(ctx context.Context, noteID uuid.UUID) ([]*Image, error) {
	images, err := s.noteImages(ctx, noteID)
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		objectName := img.ObjectName()
		if err := s.store.Delete(ctx, objectName); err != nil {
			return nil, storageError(s.storeName, objectName, "delete", err)
		}
	}
	return images, nil
}

// sweepNoteBlobs removes whatever is left under the note's prefix once its
// rows are gone, such as a blob uploaded while the note was being deleted.
// Failures are reported as orphans; the note itself is already deleted.
func (s *ImageService) sweepNoteBlobs(ctx context.Context, noteID uuid.UUID) {
	prefix := noteID.String() + "/"
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		s.core.logger.ErrorContext(ctx, "Failed to list leftover blobs", "note_id", noteID, "error", err)
		return
	}
	for _, obj := range objects {
		if err := s.store.Delete(ctx, obj.Name); err != nil {
			s.core.logger.ErrorContext(ctx, "Failed to delete leftover blob", "object", obj.Name, "error", err)
			s.core.emit(ctx, "blob_orphaned", func(sink EventSink) error { return sink.BlobOrphaned(ctx, obj.Name, err) })
		}
	}
}

func (s *ImageService) evict(ctx context.Context, shortURL string) {
	if err := s.cache.Delete(ctx, shortURL); err != nil {
		s.core.logger.WarnContext(ctx, "Short url cache eviction failed", "short_url", shortURL, "error", err)
	}
}
