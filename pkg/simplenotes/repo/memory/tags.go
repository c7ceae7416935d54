package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// Tag operations

func (r *Repository) CreateTag(ctx context.Context, tag *simplenotes.Tag) error {
	return r.write(ctx, func(s *state) error {
		if _, taken := s.tagsByName[tag.Name]; taken {
			return simplenotes.ErrTagNameTaken
		}
		if _, exists := s.tags[tag.ID]; exists {
			return simplenotes.ErrConflict
		}
		tagCopy := *tag
		s.tags[tag.ID] = &tagCopy
		s.tagsByName[tag.Name] = tag.ID
		return nil
	})
}

func (r *Repository) GetTag(ctx context.Context, id uuid.UUID) (*simplenotes.Tag, error) {
	var tag *simplenotes.Tag
	err := r.read(func(s *state) error {
		t, ok := s.tags[id]
		if !ok {
			return simplenotes.ErrTagNotFound
		}
		tagCopy := *t
		tag = &tagCopy
		return nil
	})
	return tag, err
}

func (r *Repository) GetTagByName(ctx context.Context, name string) (*simplenotes.Tag, error) {
	var tag *simplenotes.Tag
	err := r.read(func(s *state) error {
		id, ok := s.tagsByName[name]
		if !ok {
			return simplenotes.ErrTagNotFound
		}
		tagCopy := *s.tags[id]
		tag = &tagCopy
		return nil
	})
	return tag, err
}

func (r *Repository) GetTagsByIDs(ctx context.Context, ids []uuid.UUID) ([]*simplenotes.Tag, error) {
	var tags []*simplenotes.Tag
	err := r.read(func(s *state) error {
		tags = make([]*simplenotes.Tag, 0, len(ids))
		seen := make(map[uuid.UUID]struct{}, len(ids))
		for _, id := range ids {
			t, ok := s.tags[id]
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			tagCopy := *t
			tags = append(tags, &tagCopy)
		}
		sortTags(tags)
		return nil
	})
	return tags, err
}

func (r *Repository) ListTags(ctx context.Context, offset, limit int) ([]*simplenotes.Tag, error) {
	var tags []*simplenotes.Tag
	err := r.read(func(s *state) error {
		all := make([]*simplenotes.Tag, 0, len(s.tags))
		for _, t := range s.tags {
			tagCopy := *t
			all = append(all, &tagCopy)
		}
		sortTags(all)
		tags = page(all, offset, limit)
		return nil
	})
	return tags, err
}

func (r *Repository) RenameTag(ctx context.Context, id uuid.UUID, name string) (*simplenotes.Tag, error) {
	var renamed *simplenotes.Tag
	err := r.write(ctx, func(s *state) error {
		t, ok := s.tags[id]
		if !ok {
			return simplenotes.ErrTagNotFound
		}
		if owner, taken := s.tagsByName[name]; taken && owner != id {
			return simplenotes.ErrTagNameTaken
		}
		delete(s.tagsByName, t.Name)
		t.Name = name
		s.tagsByName[name] = id
		tagCopy := *t
		renamed = &tagCopy
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

func (r *Repository) DeleteTag(ctx context.Context, id uuid.UUID) error {
	return r.write(ctx, func(s *state) error {
		t, ok := s.tags[id]
		if !ok {
			return simplenotes.ErrTagNotFound
		}
		delete(s.tagsByName, t.Name)
		delete(s.tags, id)
		for _, set := range s.noteTags {
			delete(set, id)
		}
		return nil
	})
}

func sortTags(tags []*simplenotes.Tag) {
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
}
