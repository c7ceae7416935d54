package simplenotes

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// TagRegistry resolves and creates tags on top of a Repository. Bind it to a
// transaction-scoped repository to make resolution part of a larger write.
type TagRegistry struct {
	repo   Repository
	logger *slog.Logger
}

// NewTagRegistry creates a registry over repo.
func NewTagRegistry(repo Repository, logger *slog.Logger) *TagRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &TagRegistry{repo: repo, logger: logger}
}

// ResolveByName returns the tag called name, creating it if absent.
//
// Two callers racing on a new name both miss the lookup; the store's unique
// constraint lets exactly one insert win and the loser reads the winner's row.
func (r *TagRegistry) ResolveByName(ctx context.Context, name string) (*Tag, error) {
	if err := ValidateTagName(name); err != nil {
		return nil, err
	}

	tag, err := r.repo.GetTagByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, ErrTagNotFound) {
		return nil, persistenceError("tag", "resolve", uuid.Nil, err)
	}

	tag = &Tag{ID: uuid.New(), Name: name}
	err = r.repo.CreateTag(ctx, tag)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, ErrTagNameTaken) {
		return nil, persistenceError("tag", "create", tag.ID, err)
	}

	r.logger.Debug("tag created concurrently, re-reading", "name", name)
	tag, err = r.repo.GetTagByName(ctx, name)
	if err != nil {
		return nil, persistenceError("tag", "resolve", uuid.Nil, err)
	}
	return tag, nil
}

// ResolveByNames resolves every distinct name and returns the tags in name
// order. Names are resolved in that order too, so concurrent writers creating
// an overlapping set of tags lock rows in the same sequence.
func (r *TagRegistry) ResolveByNames(ctx context.Context, names []string) ([]*Tag, error) {
	distinct := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		distinct = append(distinct, name)
	}
	sort.Strings(distinct)

	tags := make([]*Tag, 0, len(distinct))
	for _, name := range distinct {
		tag, err := r.ResolveByName(ctx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// ResolveByIDs returns the tags that exist among ids. Unknown ids are dropped
// and logged, never reported as an error.
func (r *TagRegistry) ResolveByIDs(ctx context.Context, ids []uuid.UUID) ([]*Tag, error) {
	unique := dedupeIDs(ids)
	if len(unique) == 0 {
		return []*Tag{}, nil
	}

	tags, err := r.repo.GetTagsByIDs(ctx, unique)
	if err != nil {
		return nil, persistenceError("tag", "resolve", uuid.Nil, err)
	}

	if len(tags) < len(unique) {
		found := make(map[uuid.UUID]struct{}, len(tags))
		for _, t := range tags {
			found[t.ID] = struct{}{}
		}
		for _, id := range unique {
			if _, ok := found[id]; !ok {
				r.logger.Warn("Dropping unknown tag id", "tag_id", id)
			}
		}
	}
	return tags, nil
}

// Create inserts a new tag. An existing name is a conflict.
func (r *TagRegistry) Create(ctx context.Context, name string) (*Tag, error) {
	if err := ValidateTagName(name); err != nil {
		return nil, err
	}
	tag := &Tag{ID: uuid.New(), Name: name}
	if err := r.repo.CreateTag(ctx, tag); err != nil {
		return nil, persistenceError("tag", "create", tag.ID, err)
	}
	return tag, nil
}

// Rename gives the tag a new name. Fails with ErrTagNameTaken if another tag
// owns newName.
func (r *TagRegistry) Rename(ctx context.Context, id uuid.UUID, newName string) (*Tag, error) {
	if err := ValidateTagName(newName); err != nil {
		return nil, err
	}
	tag, err := r.repo.RenameTag(ctx, id, newName)
	if err != nil {
		return nil, persistenceError("tag", "rename", id, err)
	}
	return tag, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
