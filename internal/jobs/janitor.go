package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Janitor periodically marks overdue jobs as expired and reclaims their
// storage. Expiry is also checked lazily on every read, so the sweep exists
// for jobs nobody polls anymore.
type Janitor struct {
	interval  time.Duration
	retention time.Duration
	store     Store
	files     FileStore
}

func NewJanitor(interval, retention time.Duration, store Store, files FileStore) *Janitor {
	return &Janitor{
		interval:  interval,
		retention: retention,
		store:     store,
		files:     files,
	}
}

func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				j.sweep(ctx, now)
			}
		}
	}()
}

func (j *Janitor) sweep(ctx context.Context, now time.Time) {
	expired := j.store.Expired(ctx, now)
	if len(expired) > 0 {
		slog.Info("janitor: expiring jobs", slog.Int("count", len(expired)))
	}

	for _, id := range expired {
		job, ok := j.store.Get(ctx, id)
		if !ok {
			continue
		}
		j.store.SetExpired(ctx, id)
		if job.ArtifactKey != "" {
			if err := j.files.Delete(ctx, job.ArtifactKey); err != nil {
				slog.Warn("janitor: delete artifact",
					slog.String("job_id", id),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	// expired records stay readable for one more retention window, then the
	// record and any stray files go for good
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if n := j.store.DeleteOlderThan(egCtx, now.Add(-2*j.retention)); n > 0 {
			slog.Info("janitor: purged job records", slog.Int("deleted", n))
		}
		return nil
	})
	eg.Go(func() error {
		return j.files.CleanupOlderThan(egCtx, 2*j.retention)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("janitor: cleanup old files", slog.String("error", err.Error()))
	}
}
