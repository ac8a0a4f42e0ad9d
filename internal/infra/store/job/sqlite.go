package jobstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/you-humble/videovault/internal/domain"

	_ "modernc.org/sqlite"
)

const terminalStatuses = `('completed', 'error', 'expired')`

type sqliteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes itself; one connection avoids
	// SQLITE_BUSY under concurrent progress updates.
	db.SetMaxOpenConns(1)

	s := &sqliteStore{db: db}
	if err := s.initTable(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) initTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		url TEXT NOT NULL,
		format TEXT NOT NULL,
		quality TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL DEFAULT 0,
		download_location TEXT NOT NULL DEFAULT '',
		artifact_key TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		completed_at INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *sqliteStore) Create(ctx context.Context, job domain.Job, ttl time.Duration) error {
	query := `INSERT INTO jobs
		(id, status, progress, url, format, quality, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		job.ID, string(job.Status), job.Progress,
		job.URL, job.Format, job.Quality,
		job.CreatedAt.UnixNano(), job.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert job: %w", err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (domain.Job, bool) {
	query := `SELECT id, status, progress, url, format, quality, title,
		file_size, download_location, artifact_key, error_message,
		created_at, completed_at, expires_at
		FROM jobs WHERE id = ?`

	var (
		job                              domain.Job
		status                           string
		createdAt, completedAt, expireAt int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &status, &job.Progress, &job.URL, &job.Format, &job.Quality,
		&job.Title, &job.FileSize, &job.DownloadLocation, &job.ArtifactKey,
		&job.ErrorMessage, &createdAt, &completedAt, &expireAt,
	)
	if err != nil {
		return domain.Job{}, false
	}

	job.Status = domain.JobStatus(status)
	job.CreatedAt = time.Unix(0, createdAt)
	if completedAt > 0 {
		job.CompletedAt = time.Unix(0, completedAt)
	}
	job.ExpiresAt = time.Unix(0, expireAt)
	return job, true
}

func (s *sqliteStore) SetProcessing(ctx context.Context, id string) {
	s.exec(ctx, "SetProcessing",
		`UPDATE jobs SET status = ? WHERE id = ? AND status NOT IN `+terminalStatuses,
		string(domain.StatusProcessing), id)
}

func (s *sqliteStore) SetProgress(ctx context.Context, id string, progress int) {
	s.exec(ctx, "SetProgress",
		`UPDATE jobs SET progress = MAX(progress, ?) WHERE id = ? AND status = ?`,
		progress, id, string(domain.StatusProcessing))
}

func (s *sqliteStore) SetCompleted(ctx context.Context, id string, res domain.JobResult) {
	s.exec(ctx, "SetCompleted",
		`UPDATE jobs SET status = ?, progress = 100, title = ?, file_size = ?,
			artifact_key = ?, download_location = ?, error_message = '', completed_at = ?
		 WHERE id = ? AND status NOT IN `+terminalStatuses,
		string(domain.StatusCompleted), res.Title, res.FileSize,
		res.ArtifactKey, res.Location, time.Now().UnixNano(), id)
}

func (s *sqliteStore) SetFailed(ctx context.Context, id string, reason string) {
	s.exec(ctx, "SetFailed",
		`UPDATE jobs SET status = ?, error_message = ?, completed_at = ?
		 WHERE id = ? AND status NOT IN `+terminalStatuses,
		string(domain.StatusError), reason, time.Now().UnixNano(), id)
}

func (s *sqliteStore) SetExpired(ctx context.Context, id string) {
	s.exec(ctx, "SetExpired",
		`UPDATE jobs SET status = ? WHERE id = ? AND status NOT IN `+terminalStatuses,
		string(domain.StatusExpired), id)
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite delete job: %w", err)
	}
	return nil
}

func (s *sqliteStore) Expired(ctx context.Context, now time.Time) []string {
	query := `SELECT id FROM jobs
		WHERE expires_at < ? AND status NOT IN ` + terminalStatuses
	rows, err := s.db.QueryContext(ctx, query, now.UnixNano())
	if err != nil {
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return ids
		}
		ids = append(ids, id)
	}
	return ids
}

func (s *sqliteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) int {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

func (s *sqliteStore) exec(ctx context.Context, op, query string, args ...any) {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		slog.Warn("sqlite "+op, slog.String("error", err.Error()))
	}
}
