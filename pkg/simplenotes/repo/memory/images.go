package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// Image operations

func (r *Repository) CreateImage(ctx context.Context, image *simplenotes.Image) error {
	return r.write(ctx, func(s *state) error {
		if _, ok := s.notes[image.NoteID]; !ok {
			return simplenotes.ErrNoteNotFound
		}
		if _, taken := s.imagesByURL[image.ShortURL]; taken {
			return simplenotes.ErrShortURLTaken
		}
		if _, exists := s.images[image.ID]; exists {
			return simplenotes.ErrConflict
		}
		imgCopy := *image
		s.images[image.ID] = &imgCopy
		s.imagesByURL[image.ShortURL] = image.ID
		return nil
	})
}

func (r *Repository) GetImage(ctx context.Context, id uuid.UUID) (*simplenotes.Image, error) {
	var image *simplenotes.Image
	err := r.read(func(s *state) error {
		img, ok := s.images[id]
		if !ok {
			return simplenotes.ErrImageNotFound
		}
		imgCopy := *img
		image = &imgCopy
		return nil
	})
	return image, err
}

func (r *Repository) GetImageByShortURL(ctx context.Context, shortURL string) (*simplenotes.Image, error) {
	var image *simplenotes.Image
	err := r.read(func(s *state) error {
		id, ok := s.imagesByURL[shortURL]
		if !ok {
			return simplenotes.ErrImageNotFound
		}
		imgCopy := *s.images[id]
		image = &imgCopy
		return nil
	})
	return image, err
}

func (r *Repository) ListImages(ctx context.Context, filter simplenotes.ImageFilter) ([]*simplenotes.Image, error) {
	var images []*simplenotes.Image
	err := r.read(func(s *state) error {
		all := make([]*simplenotes.Image, 0)
		for _, img := range s.images {
			if filter.NoteID != nil && img.NoteID != *filter.NoteID {
				continue
			}
			imgCopy := *img
			all = append(all, &imgCopy)
		}
		sort.Slice(all, func(i, j int) bool { return imageLess(all[i], all[j]) })
		images = page(all, filter.Offset, filter.Limit)
		return nil
	})
	return images, err
}

func (r *Repository) DeleteImage(ctx context.Context, id uuid.UUID) (*simplenotes.Image, error) {
	var deleted *simplenotes.Image
	err := r.write(ctx, func(s *state) error {
		img, ok := s.images[id]
		if !ok {
			return simplenotes.ErrImageNotFound
		}
		deleted = img
		delete(s.imagesByURL, img.ShortURL)
		delete(s.images, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *Repository) ShortURLExists(ctx context.Context, shortURL string) (bool, error) {
	var exists bool
	err := r.read(func(s *state) error {
		_, exists = s.imagesByURL[shortURL]
		return nil
	})
	return exists, err
}
