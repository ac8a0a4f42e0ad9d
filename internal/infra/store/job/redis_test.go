package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you-humble/videovault/internal/domain"
)

func newRedis(t *testing.T) (*redisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisStore(rdb), mr
}

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedis(t)

	job := newJob("a", time.Hour)
	require.NoError(t, s.Create(ctx, job, time.Hour))

	got, ok := s.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, domain.StatusQueued, got.Status)
	assert.Equal(t, job.URL, got.URL)
	assert.WithinDuration(t, job.CreatedAt, got.CreatedAt, time.Millisecond)
	assert.WithinDuration(t, job.ExpiresAt, got.ExpiresAt, time.Millisecond)

	s.SetProcessing(ctx, "a")
	s.SetProgress(ctx, "a", 45)
	s.SetCompleted(ctx, "a", domain.JobResult{
		Title:       "clip",
		FileSize:    4096,
		ArtifactKey: "a/clip.mp4",
		Location:    "/api/download/a/file",
	})

	got, ok = s.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "clip", got.Title)
	assert.Equal(t, int64(4096), got.FileSize)
	assert.Equal(t, "a/clip.mp4", got.ArtifactKey)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestRedisStoreProgressMonotone(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedis(t)

	require.NoError(t, s.Create(ctx, newJob("a", time.Hour), time.Hour))

	// progress before processing is ignored
	s.SetProgress(ctx, "a", 10)
	got, _ := s.Get(ctx, "a")
	assert.Zero(t, got.Progress)

	s.SetProcessing(ctx, "a")
	s.SetProgress(ctx, "a", 65)
	s.SetProgress(ctx, "a", 25)

	got, _ = s.Get(ctx, "a")
	assert.Equal(t, 65, got.Progress)
}

func TestRedisStoreTerminalIsFinal(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedis(t)

	require.NoError(t, s.Create(ctx, newJob("a", time.Hour), time.Hour))
	s.SetProcessing(ctx, "a")
	s.SetFailed(ctx, "a", "network error")

	s.SetProcessing(ctx, "a")
	s.SetProgress(ctx, "a", 90)
	s.SetCompleted(ctx, "a", domain.JobResult{Title: "late"})
	s.SetExpired(ctx, "a")

	got, _ := s.Get(ctx, "a")
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Equal(t, "network error", got.ErrorMessage)
	assert.Empty(t, got.Title)
}

func TestRedisStoreLateWriteAfterDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedis(t)

	require.NoError(t, s.Create(ctx, newJob("a", time.Hour), time.Hour))
	s.SetProcessing(ctx, "a")

	// cleanup lands while a worker still holds the job
	require.NoError(t, s.Delete(ctx, "a"))

	s.SetProgress(ctx, "a", 50)
	s.SetCompleted(ctx, "a", domain.JobResult{Title: "ghost", ArtifactKey: "a/clip.mp4"})

	// late writes must not recreate the hash
	assert.False(t, mr.Exists("job:a"))
	_, ok := s.Get(ctx, "a")
	assert.False(t, ok)
}

func TestRedisStoreExpiredAndPurge(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedis(t)

	require.NoError(t, s.Create(ctx, newJob("stale", -time.Minute), time.Hour))
	require.NoError(t, s.Create(ctx, newJob("fresh", time.Hour), time.Hour))

	done := newJob("done", -time.Minute)
	require.NoError(t, s.Create(ctx, done, time.Hour))
	s.SetProcessing(ctx, "done")
	s.SetCompleted(ctx, "done", domain.JobResult{})

	ids := s.Expired(ctx, time.Now())
	assert.Equal(t, []string{"stale"}, ids)

	old := newJob("old", time.Hour)
	old.CreatedAt = time.Now().Add(-72 * time.Hour)
	require.NoError(t, s.Create(ctx, old, time.Hour))

	deleted := s.DeleteOlderThan(ctx, time.Now().Add(-48*time.Hour))
	assert.Equal(t, 1, deleted)
	_, ok := s.Get(ctx, "old")
	assert.False(t, ok)
}
