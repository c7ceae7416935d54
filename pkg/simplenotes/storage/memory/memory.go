package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-notes/pkg/simplenotes"
)

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the simplenotes.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// Initialize is a no-op for the memory backend
func (b *Backend) Initialize(ctx context.Context) error {
	return nil
}

// Put stores the object, replacing any previous content
func (b *Backend) Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectName] = object{
		data:        data,
		contentType: contentType,
		updatedAt:   time.Now().UTC(),
	}
	return nil
}

// Get returns a reader over a copy of the stored bytes
func (b *Backend) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectName]
	if !exists {
		return nil, simplenotes.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, objectName)
	return nil
}

// List returns objects under prefix ordered by name
func (b *Backend) List(ctx context.Context, prefix string) ([]simplenotes.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	infos := make([]simplenotes.ObjectInfo, 0)
	for name, obj := range b.objects {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		infos = append(infos, simplenotes.ObjectInfo{
			Name:        name,
			Size:        int64(len(obj.data)),
			ContentType: obj.contentType,
			UpdatedAt:   obj.updatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
