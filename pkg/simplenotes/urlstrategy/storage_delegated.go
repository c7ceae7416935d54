package urlstrategy

import (
	"context"
)

// BlobStore interface for URL generation (to avoid circular imports)
type BlobStore interface {
	ObjectURL(ctx context.Context, objectName string) (string, error)
}

// StorageDelegatedStrategy delegates URL generation to the blob store
type StorageDelegatedStrategy struct {
	BlobStore BlobStore
}

// NewStorageDelegated creates a new storage-delegated URL strategy
func NewStorageDelegated(store BlobStore) *StorageDelegatedStrategy {
	return &StorageDelegatedStrategy{BlobStore: store}
}

// ObjectURL delegates to the blob store
func (s *StorageDelegatedStrategy) ObjectURL(ctx context.Context, objectName string) (string, error) {
	return s.BlobStore.ObjectURL(ctx, objectName)
}
