package blob_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"livechat/backend/internal/blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	now := time.UnixMilli(1760692502123)
	assert.Equal(t, "s1/1760692502123.mp4", blob.ObjectPath("s1", now, ".mp4"))
	assert.Equal(t, "s1/1760692502123.webm", blob.ObjectPath("s1", now, "webm"))
	assert.Equal(t, "s1/1760692502123", blob.ObjectPath("s1", now, ""))
}

func TestLocalStore_PutURLDelete(t *testing.T) {
	root := t.TempDir()
	store, err := blob.NewLocalStore(root, "videos", "http://localhost:8080/files/")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "s1/1.mp4", strings.NewReader("data")))

	b, err := os.ReadFile(filepath.Join(root, "videos", "s1", "1.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))
	assert.Equal(t, "http://localhost:8080/files/videos/s1/1.mp4", store.URL("s1/1.mp4"))

	require.NoError(t, store.Delete(ctx, "s1/1.mp4"))
	_, err = os.Stat(filepath.Join(root, "videos", "s1", "1.mp4"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, "s1/1.mp4"), "deleting a missing object is not an error")
}

func TestLocalStore_RejectsEscapes(t *testing.T) {
	store, err := blob.NewLocalStore(t.TempDir(), "videos", "http://x")
	require.NoError(t, err)

	for _, p := range []string{"../x", "s1/../../x", "", "/abs"} {
		assert.ErrorIs(t, store.Put(context.Background(), p, strings.NewReader("x")), blob.ErrInvalidPath, p)
	}
}

func TestLocalStore_CancelledContext(t *testing.T) {
	root := t.TempDir()
	store, err := blob.NewLocalStore(root, "videos", "http://x")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, store.Put(ctx, "s1/1.mp4", strings.NewReader("data")))

	_, err = os.Stat(filepath.Join(root, "videos", "s1", "1.mp4"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewLocalStore_InvalidBucket(t *testing.T) {
	_, err := blob.NewLocalStore(t.TempDir(), "a/b", "http://x")
	assert.Error(t, err)
}
