package simplenotes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReconcileOptions configures a reconciliation scan.
type ReconcileOptions struct {
	// Prefix restricts the blob listing, e.g. one note id. Empty scans all.
	Prefix string

	// BatchSize controls how many image rows to read at once (default: 100)
	BatchSize int

	// MinAge skips blobs newer than this when looking for orphans, so that
	// uploads between blob write and row insert are not reported.
	MinAge time.Duration

	// Fix deletes orphaned blobs and dangling rows. Otherwise the scan only
	// reports.
	Fix bool

	// OnProgress is called after each batch of rows (optional)
	OnProgress func(processed, total int64)
}

// ReconcileResult contains statistics about the scan.
type ReconcileResult struct {
	// ObjectsScanned is the number of blobs listed under the prefix
	ObjectsScanned int64

	// ImagesScanned is the number of image rows checked
	ImagesScanned int64

	// OrphanedBlobs are blobs with no image row
	OrphanedBlobs []string

	// DanglingImages are image rows whose blob is missing
	DanglingImages []uuid.UUID

	// BlobsDeleted and ImagesDeleted count repairs made with Fix
	BlobsDeleted  int64
	ImagesDeleted int64

	// FailedIDs holds the rows or blobs whose repair failed
	FailedIDs []string
}

// Reconcile compares the blob store with the image rows. Rows are paged in
// batches; a failed repair is recorded and the scan continues.
func (s *ImageService) Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultListLimit
	}

	scanStart := s.core.now()
	objects, err := s.store.List(ctx, opts.Prefix)
	if err != nil {
		return result, storageError(s.storeName, opts.Prefix, "list", err)
	}
	result.ObjectsScanned = int64(len(objects))

	pending := make(map[string]ObjectInfo, len(objects))
	for _, obj := range objects {
		pending[obj.Name] = obj
	}

	filter := ImageFilter{Limit: opts.BatchSize}
	if noteID, err := uuid.Parse(strings.TrimSuffix(opts.Prefix, "/")); err == nil {
		filter.NoteID = &noteID
	}

	var dangling []*Image
	seen := make(map[uuid.UUID]struct{})
	for {
		batch, err := s.core.repo.ListImages(ctx, filter)
		if err != nil {
			return result, persistenceError("image", "list", uuid.Nil, err)
		}

		for _, img := range batch {
			name := img.ObjectName()
			if !strings.HasPrefix(name, opts.Prefix) {
				continue
			}
			// Offset paging can return a row twice when rows shift underneath it.
			if _, ok := seen[img.ID]; ok {
				continue
			}
			seen[img.ID] = struct{}{}

			_, listed := pending[name]
			delete(pending, name)
			// Rows newer than the listing may point at blobs written after it.
			if img.CreatedAt.After(scanStart) {
				continue
			}
			result.ImagesScanned++
			if listed {
				continue
			}
			result.DanglingImages = append(result.DanglingImages, img.ID)
			dangling = append(dangling, img)
		}

		if opts.OnProgress != nil {
			opts.OnProgress(result.ImagesScanned, result.ObjectsScanned)
		}

		if len(batch) < opts.BatchSize {
			break
		}
		filter.Offset += len(batch)
	}

	cutoff := scanStart.Add(-opts.MinAge)
	for name, obj := range pending {
		if opts.MinAge > 0 && !obj.UpdatedAt.IsZero() && obj.UpdatedAt.After(cutoff) {
			continue
		}
		// Paging may have skipped the owner when rows were deleted mid-scan.
		owned, err := s.objectOwned(ctx, name)
		if err != nil {
			return result, err
		}
		if owned {
			continue
		}
		result.OrphanedBlobs = append(result.OrphanedBlobs, name)
	}
	sort.Strings(result.OrphanedBlobs)

	if !opts.Fix {
		return result, nil
	}

	// Dangling rows first, then orphaned blobs.
	for _, img := range dangling {
		if _, err := s.core.repo.DeleteImage(ctx, img.ID); err != nil {
			result.FailedIDs = append(result.FailedIDs, img.ID.String())
			s.core.logger.ErrorContext(ctx, "Failed to delete dangling image row", "image_id", img.ID, "error", err)
			continue
		}
		s.evict(ctx, img.ShortURL)
		result.ImagesDeleted++
	}

	for _, name := range result.OrphanedBlobs {
		// An upload may have claimed the name since the scan.
		owned, err := s.objectOwned(ctx, name)
		if err != nil {
			result.FailedIDs = append(result.FailedIDs, name)
			s.core.logger.ErrorContext(ctx, "Failed to re-check orphaned blob", "object", name, "error", err)
			continue
		}
		if owned {
			continue
		}
		if err := s.store.Delete(ctx, name); err != nil {
			result.FailedIDs = append(result.FailedIDs, name)
			s.core.logger.ErrorContext(ctx, "Failed to delete orphaned blob", "object", name, "error", err)
			continue
		}
		result.BlobsDeleted++
	}

	if len(result.FailedIDs) > 0 {
		return result, fmt.Errorf("reconcile: %d repairs failed", len(result.FailedIDs))
	}
	return result, nil
}

// objectOwned reports whether an image row refers to objectName. Names that do
// not follow the note/file layout are never owned.
func (s *ImageService) objectOwned(ctx context.Context, objectName string) (bool, error) {
	noteID, filename, ok := ParseObjectName(objectName)
	if !ok {
		return false, nil
	}
	images, err := s.noteImages(ctx, noteID)
	if err != nil {
		return false, err
	}
	for _, img := range images {
		if img.Filename == filename {
			return true, nil
		}
	}
	return false, nil
}
