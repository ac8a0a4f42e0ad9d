package domain

import (
	"errors"
	"time"
)

type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
	StatusExpired    JobStatus = "expired"
)

// Terminal reports whether no further transition can leave the status.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusExpired:
		return true
	}
	return false
}

type Job struct {
	ID string `json:"id"`

	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`

	URL     string `json:"url"`
	Format  string `json:"format"`
	Quality string `json:"quality"`

	// populated on success
	Title            string `json:"title,omitempty"`
	FileSize         int64  `json:"file_size,omitempty"`
	DownloadLocation string `json:"download_location,omitempty"`
	ArtifactKey      string `json:"-"`

	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the retention window has elapsed for a job that
// never reached a terminal state on its own.
func (j Job) Expired(now time.Time) bool {
	return !j.Status.Terminal() && now.After(j.ExpiresAt)
}

type JobResult struct {
	Title       string
	FileSize    int64
	ArtifactKey string
	Location    string
}

type SubmitParams struct {
	URL     string
	Format  string
	Quality string

	TTL time.Duration
}

type VideoFormat struct {
	FormatID string `json:"format_id"`
	Ext      string `json:"ext"`
	Quality  string `json:"quality"`
	FileSize int64  `json:"filesize,omitempty"`
	Height   int    `json:"height,omitempty"`
	Width    int    `json:"width,omitempty"`
	VCodec   string `json:"vcodec,omitempty"`
	ACodec   string `json:"acodec,omitempty"`
}

type VideoInfo struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Duration    int64         `json:"duration,omitempty"`
	Uploader    string        `json:"uploader,omitempty"`
	UploadDate  string        `json:"upload_date,omitempty"`
	ViewCount   int64         `json:"view_count,omitempty"`
	Thumbnail   string        `json:"thumbnail,omitempty"`
	Formats     []VideoFormat `json:"formats"`
	Platform    string        `json:"platform"`
}

type SubmitResponse struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

type CleanupResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrJobNotFound    = errors.New("job not found")
	ErrJobNotReady    = errors.New("job not ready")
	ErrJobFailed      = errors.New("job failed")
	ErrJobExpired     = errors.New("job expired")
)
