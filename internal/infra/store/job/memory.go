// Package jobstore provides the persisted job-record backends: an in-process
// map, a Redis hash store and a SQLite store, all behind the same contract.
package jobstore

import (
	"context"
	"sync"
	"time"

	"github.com/you-humble/videovault/internal/domain"
)

// memoryStore is the fallback backend when no external store is configured.
// All mutations honor the state machine: a record in a terminal state is
// never touched again except by Delete, and progress never decreases.
type memoryStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

func NewMemoryStore() *memoryStore {
	return &memoryStore{jobs: make(map[string]domain.Job)}
}

func (s *memoryStore) Create(ctx context.Context, job domain.Job, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

func (s *memoryStore) SetProcessing(ctx context.Context, id string) {
	s.mutate(id, func(j *domain.Job) {
		j.Status = domain.StatusProcessing
	})
}

func (s *memoryStore) SetProgress(ctx context.Context, id string, progress int) {
	s.mutate(id, func(j *domain.Job) {
		if j.Status != domain.StatusProcessing {
			return
		}
		if progress > j.Progress {
			j.Progress = progress
		}
	})
}

func (s *memoryStore) SetCompleted(ctx context.Context, id string, res domain.JobResult) {
	s.mutate(id, func(j *domain.Job) {
		j.Status = domain.StatusCompleted
		j.Progress = 100
		j.Title = res.Title
		j.FileSize = res.FileSize
		j.ArtifactKey = res.ArtifactKey
		j.DownloadLocation = res.Location
		j.ErrorMessage = ""
		j.CompletedAt = time.Now()
	})
}

func (s *memoryStore) SetFailed(ctx context.Context, id string, reason string) {
	s.mutate(id, func(j *domain.Job) {
		j.Status = domain.StatusError
		j.ErrorMessage = reason
		j.CompletedAt = time.Now()
	})
}

func (s *memoryStore) SetExpired(ctx context.Context, id string) {
	s.mutate(id, func(j *domain.Job) {
		j.Status = domain.StatusExpired
	})
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *memoryStore) Expired(ctx context.Context, now time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, job := range s.jobs {
		if job.Expired(now) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *memoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted
}

func (s *memoryStore) mutate(id string, fn func(*domain.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	fn(&job)
	s.jobs[id] = job
}
