// Package jobs owns the download-job lifecycle: creation, state transitions,
// progress tracking and expiry. It is the single writer of job records; the
// HTTP layer only calls in here.
package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/you-humble/videovault/internal/domain"
	"github.com/you-humble/videovault/internal/extractor"
	"github.com/you-humble/videovault/internal/metrics"
	"github.com/you-humble/videovault/internal/platform"

	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, job domain.Job, ttl time.Duration) error
	Get(ctx context.Context, id string) (domain.Job, bool)
	SetProcessing(ctx context.Context, id string)
	SetProgress(ctx context.Context, id string, progress int)
	SetCompleted(ctx context.Context, id string, res domain.JobResult)
	SetFailed(ctx context.Context, id string, reason string)
	SetExpired(ctx context.Context, id string)
	Delete(ctx context.Context, id string) error
	Expired(ctx context.Context, now time.Time) []string
	DeleteOlderThan(ctx context.Context, cutoff time.Time) int
}

type FileStore interface {
	Save(ctx context.Context, reader io.Reader, key string, size int64) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
	CleanupOlderThan(ctx context.Context, maxAge time.Duration) error
}

// URLSigner is implemented by file stores that can answer downloads with a
// redirect to an external location instead of streaming the bytes.
type URLSigner interface {
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Queue hands job IDs to the worker pool. Dequeue returns an ack the worker
// calls once processing finished; an unacked job is redelivered by backends
// that support it.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	Dequeue(ctx context.Context) (jobID string, ack func(), err error)
}

type Invoker interface {
	Probe(ctx context.Context, url string) (domain.VideoInfo, error)
	Fetch(ctx context.Context, req extractor.FetchRequest, onProgress func(percent int)) (extractor.FetchResult, error)
}

type Config struct {
	Retention         time.Duration
	ExtractionTimeout time.Duration
	MaxFileSize       int64
	ScratchDir        string
}

type Manager struct {
	cfg     Config
	store   Store
	files   FileStore
	queue   Queue
	invoker Invoker
	metrics *metrics.Metrics
}

func NewManager(cfg Config, store Store, files FileStore, queue Queue, invoker Invoker, m *metrics.Metrics) *Manager {
	return &Manager{
		cfg:     cfg,
		store:   store,
		files:   files,
		queue:   queue,
		invoker: invoker,
		metrics: m,
	}
}

// Submit validates the request, persists a queued job and hands it to the
// worker pool. It returns as soon as the record exists; it never waits for
// extraction.
func (m *Manager) Submit(ctx context.Context, rawURL, format, quality string) (string, error) {
	if format == "" {
		format = "mp4"
	}
	if quality == "" {
		quality = "720p"
	}

	if err := validateRequest(rawURL, format, quality); err != nil {
		return "", err
	}

	now := time.Now()
	job := domain.Job{
		ID:        uuid.NewString(),
		Status:    domain.StatusQueued,
		URL:       rawURL,
		Format:    format,
		Quality:   quality,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.Retention),
	}

	if err := m.store.Create(ctx, job, m.cfg.Retention); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	if err := m.queue.Enqueue(ctx, job.ID); err != nil {
		// leave nothing half-created
		if delErr := m.store.Delete(ctx, job.ID); delErr != nil {
			slog.Warn("rollback job record", slog.String("job_id", job.ID), slog.String("error", delErr.Error()))
		}
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	m.metrics.JobsCreated.Inc()
	slog.Info("job submitted",
		slog.String("job_id", job.ID),
		slog.String("platform", platform.Detect(rawURL).Name),
		slog.String("format", format),
		slog.String("quality", quality),
	)
	return job.ID, nil
}

// Status returns the job record, lazily expiring jobs whose retention window
// has elapsed before they reached a terminal state.
func (m *Manager) Status(ctx context.Context, id string) (domain.Job, error) {
	job, ok := m.store.Get(ctx, id)
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}

	if job.Expired(time.Now()) {
		m.store.SetExpired(ctx, id)
		m.metrics.JobsExpired.Inc()
		job.Status = domain.StatusExpired
	}

	return job, nil
}

// FileResponse carries either an open artifact stream or an external
// redirect target, never both.
type FileResponse struct {
	Filename    string
	Size        int64
	Content     io.ReadCloser
	RedirectURL string
}

// File resolves the completed artifact for a job.
func (m *Manager) File(ctx context.Context, id string) (FileResponse, error) {
	job, ok := m.store.Get(ctx, id)
	if !ok {
		return FileResponse{}, domain.ErrJobNotFound
	}

	now := time.Now()
	if job.Expired(now) {
		m.store.SetExpired(ctx, id)
		m.metrics.JobsExpired.Inc()
		return FileResponse{}, domain.ErrJobExpired
	}

	switch job.Status {
	case domain.StatusCompleted:
		// the record survives past the retention window, the artifact does not
		if now.After(job.ExpiresAt) {
			return FileResponse{}, domain.ErrJobExpired
		}
	case domain.StatusError:
		return FileResponse{}, domain.ErrJobFailed
	case domain.StatusExpired:
		return FileResponse{}, domain.ErrJobExpired
	default:
		return FileResponse{}, domain.ErrJobNotReady
	}

	if job.ArtifactKey == "" {
		return FileResponse{}, fmt.Errorf("completed job %s has no artifact", id)
	}

	if signer, ok := m.files.(URLSigner); ok {
		expiry := min(time.Until(job.ExpiresAt), time.Hour)
		loc, err := signer.PresignedURL(ctx, job.ArtifactKey, expiry)
		if err != nil {
			return FileResponse{}, fmt.Errorf("presign artifact: %w", err)
		}
		return FileResponse{Filename: filepath.Base(job.ArtifactKey), Size: job.FileSize, RedirectURL: loc}, nil
	}

	rc, size, err := m.files.Open(ctx, job.ArtifactKey)
	if err != nil {
		return FileResponse{}, fmt.Errorf("open artifact: %w", err)
	}
	return FileResponse{Filename: filepath.Base(job.ArtifactKey), Size: size, Content: rc}, nil
}

// Cleanup removes the job record and its artifact. It is idempotent and
// succeeds silently when the job is already gone.
func (m *Manager) Cleanup(ctx context.Context, id string) error {
	job, ok := m.store.Get(ctx, id)
	if ok && job.ArtifactKey != "" {
		if err := m.files.Delete(ctx, job.ArtifactKey); err != nil {
			slog.Warn("cleanup artifact", slog.String("job_id", id), slog.String("error", err.Error()))
		}
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete job record: %w", err)
	}

	slog.Info("job cleaned up", slog.String("job_id", id))
	return nil
}

// VideoInfo probes metadata for a URL without creating a job.
func (m *Manager) VideoInfo(ctx context.Context, rawURL string) (domain.VideoInfo, error) {
	if plat := platform.Detect(rawURL); plat.IsUnknown() {
		return domain.VideoInfo{}, fmt.Errorf("%w: unsupported or malformed URL", domain.ErrInvalidRequest)
	}

	info, err := m.invoker.Probe(ctx, rawURL)
	if err != nil {
		// a video the tool cannot read is a problem with the request,
		// not with the service
		return domain.VideoInfo{}, fmt.Errorf("%w: %s", domain.ErrInvalidRequest, err)
	}
	return info, nil
}

// Process runs the extraction for one queued job. Called by the dispatcher
// workers; every state write for the job flows through here, which is what
// keeps progress monotone.
func (m *Manager) Process(ctx context.Context, id string) {
	job, ok := m.store.Get(ctx, id)
	if !ok {
		slog.Warn("process: job vanished", slog.String("job_id", id))
		return
	}
	if job.Status.Terminal() {
		return
	}
	if job.Expired(time.Now()) {
		m.store.SetExpired(ctx, id)
		m.metrics.JobsExpired.Inc()
		return
	}

	logger := slog.With(slog.String("job_id", id))
	logger.Info("process start")
	m.metrics.JobsInFlight.Inc()
	defer m.metrics.JobsInFlight.Dec()

	m.store.SetProcessing(ctx, id)
	m.store.SetProgress(ctx, id, 1)

	scratch := filepath.Join(m.cfg.ScratchDir, id)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		m.fail(id, fmt.Sprintf("prepare scratch dir: %v", err))
		return
	}
	defer os.RemoveAll(scratch)

	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.ExtractionTimeout)
	defer cancel()

	last := 0
	res, err := m.invoker.Fetch(fetchCtx, extractor.FetchRequest{
		URL:     job.URL,
		Format:  job.Format,
		Quality: job.Quality,
		DestDir: scratch,
	}, func(percent int) {
		if percent > last {
			last = percent
			m.store.SetProgress(ctx, id, percent)
		}
	})
	if err != nil {
		m.fail(id, err.Error())
		return
	}

	if m.cfg.MaxFileSize > 0 && res.FileSize > m.cfg.MaxFileSize {
		m.fail(id, fmt.Sprintf("file too large (%d MB), maximum allowed: %d MB",
			res.FileSize>>20, m.cfg.MaxFileSize>>20))
		return
	}

	f, err := os.Open(res.FilePath)
	if err != nil {
		m.fail(id, fmt.Sprintf("open downloaded file: %v", err))
		return
	}
	defer f.Close()

	key := id + "/" + filepath.Base(res.FilePath)
	written, err := m.files.Save(ctx, f, key, res.FileSize)
	if err != nil {
		m.fail(id, fmt.Sprintf("store artifact: %v", err))
		return
	}

	m.store.SetCompleted(context.WithoutCancel(ctx), id, domain.JobResult{
		Title:       res.Title,
		FileSize:    written,
		ArtifactKey: key,
		Location:    fmt.Sprintf("/api/download/%s/file", id),
	})
	m.metrics.JobsCompleted.Inc()
	logger.Info("process done",
		slog.String("title", res.Title),
		slog.Int64("size", written),
	)
}

func (m *Manager) fail(id, reason string) {
	m.store.SetFailed(context.Background(), id, reason)
	m.metrics.JobsFailed.Inc()
	slog.Error("job failed", slog.String("job_id", id), slog.String("reason", reason))
}

func validateRequest(rawURL, format, quality string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: url is required", domain.ErrInvalidRequest)
	}
	if u, err := url.Parse(rawURL); err != nil || u.Host == "" {
		return fmt.Errorf("%w: malformed url", domain.ErrInvalidRequest)
	}

	plat := platform.Detect(rawURL)
	if plat.IsUnknown() {
		return fmt.Errorf("%w: unsupported platform (%s)", domain.ErrInvalidRequest, plat.Name)
	}
	if !extractor.SupportedFormat(format) {
		return fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidRequest, format)
	}
	if !plat.SupportsFormat(format) {
		return fmt.Errorf("%w: %s does not support format %q", domain.ErrInvalidRequest, plat.Name, format)
	}
	if !extractor.SupportedQuality(quality) {
		return fmt.Errorf("%w: unsupported quality %q", domain.ErrInvalidRequest, quality)
	}
	return nil
}
