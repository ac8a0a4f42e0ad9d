package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveOpen(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	content := "fake video bytes"
	written, err := s.Save(ctx, strings.NewReader(content), "job1/clip.mp4", int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), written)

	rc, size, err := s.Open(ctx, "job1/clip.mp4")
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, int64(len(content)), size)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestLocalStoreOpenMissing(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Open(context.Background(), "nope/clip.mp4")
	assert.Error(t, err)
}

func TestLocalStoreDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	_, err = s.Save(ctx, strings.NewReader("x"), "job1/clip.mp4", 1)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "job1/clip.mp4"))

	_, _, err = s.Open(ctx, "job1/clip.mp4")
	assert.Error(t, err)

	// the per-job directory goes with the artifact
	_, err = os.Stat(filepath.Join(dir, "job1"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save(ctx, strings.NewReader("x"), "../escape.mp4", 1)
	assert.Error(t, err)

	_, _, err = s.Open(ctx, "../../etc/passwd")
	assert.Error(t, err)
}

func TestLocalStoreCleanupOlderThan(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	_, err = s.Save(ctx, strings.NewReader("old"), "old/clip.mp4", 3)
	require.NoError(t, err)
	_, err = s.Save(ctx, strings.NewReader("new"), "new/clip.mp4", 3)
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old", "clip.mp4"), stale, stale))

	require.NoError(t, s.CleanupOlderThan(ctx, 24*time.Hour))

	_, _, err = s.Open(ctx, "old/clip.mp4")
	assert.Error(t, err)
	rc, _, err := s.Open(ctx, "new/clip.mp4")
	require.NoError(t, err)
	rc.Close()
}
