package jobs

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you-humble/videovault/internal/domain"
	filestore "github.com/you-humble/videovault/internal/infra/store/file"
	jobstore "github.com/you-humble/videovault/internal/infra/store/job"
	"github.com/you-humble/videovault/internal/infra/queue"
	"github.com/you-humble/videovault/internal/metrics"
)

func TestJanitorSweepExpiresOverdueJobs(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, &fakeInvoker{})

	now := time.Now()
	overdue := domain.Job{
		ID:          "overdue",
		Status:      domain.StatusProcessing,
		ArtifactKey: "overdue/partial.mp4",
		CreatedAt:   now.Add(-2 * time.Hour),
		ExpiresAt:   now.Add(-time.Hour),
	}
	require.NoError(t, fx.store.Create(ctx, overdue, time.Hour))
	_, err := fx.files.Save(ctx, strings.NewReader("partial"), "overdue/partial.mp4", 7)
	require.NoError(t, err)

	fresh := domain.Job{
		ID:        "fresh",
		Status:    domain.StatusQueued,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, fx.store.Create(ctx, fresh, time.Hour))

	j := NewJanitor(time.Minute, time.Hour, fx.store, fx.files)
	j.sweep(ctx, now)

	job, ok := fx.store.Get(ctx, "overdue")
	require.True(t, ok)
	assert.Equal(t, domain.StatusExpired, job.Status)

	_, _, err = fx.files.Open(ctx, "overdue/partial.mp4")
	assert.Error(t, err)

	job, ok = fx.store.Get(ctx, "fresh")
	require.True(t, ok)
	assert.Equal(t, domain.StatusQueued, job.Status)
}

func TestJanitorSweepPurgesOldRecords(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, &fakeInvoker{})

	now := time.Now()
	ancient := domain.Job{
		ID:        "ancient",
		Status:    domain.StatusExpired,
		CreatedAt: now.Add(-72 * time.Hour),
		ExpiresAt: now.Add(-71 * time.Hour),
	}
	require.NoError(t, fx.store.Create(ctx, ancient, time.Hour))

	recent := domain.Job{
		ID:        "recent",
		Status:    domain.StatusExpired,
		CreatedAt: now.Add(-90 * time.Minute),
		ExpiresAt: now.Add(-30 * time.Minute),
	}
	require.NoError(t, fx.store.Create(ctx, recent, time.Hour))

	j := NewJanitor(time.Minute, time.Hour, fx.store, fx.files)
	j.sweep(ctx, now)

	// purged only past twice the retention window
	_, ok := fx.store.Get(ctx, "ancient")
	assert.False(t, ok)
	_, ok = fx.store.Get(ctx, "recent")
	assert.True(t, ok)
}

// ackTrackingQueue wraps another queue and records the job's stored status
// at the moment the worker acks it.
type ackTrackingQueue struct {
	inner Queue
	store Store

	mu    sync.Mutex
	acked []domain.JobStatus
}

func (q *ackTrackingQueue) Enqueue(ctx context.Context, id string) error {
	return q.inner.Enqueue(ctx, id)
}

func (q *ackTrackingQueue) Dequeue(ctx context.Context) (string, func(), error) {
	id, ack, err := q.inner.Dequeue(ctx)
	if err != nil {
		return "", nil, err
	}
	return id, func() {
		job, _ := q.store.Get(context.Background(), id)
		q.mu.Lock()
		q.acked = append(q.acked, job.Status)
		q.mu.Unlock()
		ack()
	}, nil
}

func (q *ackTrackingQueue) ackedStatuses() []domain.JobStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.JobStatus(nil), q.acked...)
}

func TestDispatcherAcksAfterProcessing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	files, err := filestore.NewLocalStore(filepath.Join(t.TempDir(), "files"))
	require.NoError(t, err)

	store := jobstore.NewMemoryStore()
	q := &ackTrackingQueue{inner: queue.NewChannelQueue(16), store: store}
	m := NewManager(Config{
		Retention:         time.Hour,
		ExtractionTimeout: time.Minute,
		ScratchDir:        filepath.Join(t.TempDir(), "scratch"),
	}, store, files, q, &fakeInvoker{content: "bytes"}, metrics.New())

	id, err := m.Submit(ctx, "https://youtu.be/abc", "mp4", "720p")
	require.NoError(t, err)

	d := NewDispatcher(m, q, 1)
	d.Run(ctx)

	assert.Eventually(t, func() bool {
		return len(q.ackedStatuses()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// the job had already reached a terminal state when the ack fired
	assert.Equal(t, []domain.JobStatus{domain.StatusCompleted}, q.ackedStatuses())

	job, err := m.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, job.Status)

	cancel()
	d.Stop()
}

func TestDispatcherProcessesQueuedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := newFixture(t, &fakeInvoker{content: "bytes"})

	id, err := fx.manager.Submit(ctx, "https://youtu.be/abc", "mp4", "720p")
	require.NoError(t, err)

	d := NewDispatcher(fx.manager, fx.queue, 2)
	d.Run(ctx)

	assert.Eventually(t, func() bool {
		job, err := fx.manager.Status(context.Background(), id)
		return err == nil && job.Status == domain.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	d.Stop()
}
