package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

func newBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "blobs")
	b, err := New(Config{BaseDir: tmp})
	require.NoError(t, err)
	require.NoError(t, b.Initialize(context.Background()))
	return b, tmp
}

func TestNew_RequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base directory is required")
}

func TestBackend_PutGetDelete(t *testing.T) {
	b, base := newBackend(t)
	ctx := context.Background()
	key := "note-1/photo.txt"

	require.NoError(t, b.Put(ctx, key, strings.NewReader("hello fs"), 8, "text/plain"))

	rc, err := b.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello fs", string(data))

	require.NoError(t, b.Delete(ctx, key))
	_, err = b.Get(ctx, key)
	assert.ErrorIs(t, err, simplenotes.ErrObjectNotFound)

	// the note directory is removed once empty, the base directory stays
	_, err = os.Stat(filepath.Join(base, "note-1"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(base)
	assert.NoError(t, err)

	assert.NoError(t, b.Delete(ctx, key), "deleting a missing object is not an error")
}

func TestBackend_PutOverwrites(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "n/a.txt", strings.NewReader("first"), -1, ""))
	require.NoError(t, b.Put(ctx, "n/a.txt", strings.NewReader("second"), -1, ""))

	rc, err := b.Get(ctx, "n/a.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "second", string(data))
}

func TestBackend_List(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "b/two.txt", strings.NewReader("22"), -1, ""))
	require.NoError(t, b.Put(ctx, "a/one.txt", strings.NewReader("1"), -1, ""))
	require.NoError(t, b.Put(ctx, "a/three.txt", strings.NewReader("333"), -1, ""))

	all, err := b.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a/one.txt", all[0].Name)
	assert.Equal(t, "a/three.txt", all[1].Name)
	assert.Equal(t, int64(3), all[1].Size)
	assert.Equal(t, "b/two.txt", all[2].Name)

	onlyA, err := b.List(ctx, "a/")
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)
}

func TestBackend_RejectsEscapingNames(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()

	err := b.Put(ctx, "../outside.txt", strings.NewReader("x"), -1, "")
	assert.Error(t, err)

	_, err = b.Get(ctx, "../../etc/passwd")
	assert.Error(t, err)

	assert.Error(t, b.Delete(ctx, ""))
}
