package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/you-humble/videovault/internal/domain"
	"github.com/you-humble/videovault/internal/jobs"
	"github.com/you-humble/videovault/internal/platform"

	"github.com/google/uuid"
)

type Usecase interface {
	Submit(ctx context.Context, url, format, quality string) (string, error)
	Status(ctx context.Context, id string) (domain.Job, error)
	File(ctx context.Context, id string) (jobs.FileResponse, error)
	Cleanup(ctx context.Context, id string) error
	VideoInfo(ctx context.Context, url string) (domain.VideoInfo, error)
}

// ServiceInfo is reported by the health endpoint.
type ServiceInfo struct {
	JobStore  string `json:"job_store"`
	FileStore string `json:"file_store"`
}

type handler struct {
	usecase Usecase
	info    ServiceInfo
}

func NewHandler(uc Usecase, info ServiceInfo) *handler {
	return &handler{usecase: uc, info: info}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"timestamp":  time.Now().Format(time.RFC3339),
		"job_store":  h.info.JobStore,
		"file_store": h.info.FileStore,
	})
}

type videoInfoRequest struct {
	URL string `json:"url"`
}

func (h *handler) videoInfo(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "video-info")

	var req videoInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "field `url` is required")
		return
	}

	info, err := h.usecase.VideoInfo(r.Context(), req.URL)
	if err != nil {
		h.writeUsecaseError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

type downloadRequest struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Quality string `json:"quality"`
}

func (h *handler) download(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "download")

	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "field `url` is required")
		return
	}

	jobID, err := h.usecase.Submit(r.Context(), req.URL, req.Format, req.Quality)
	if err != nil {
		h.writeUsecaseError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, domain.SubmitResponse{
		JobID:  jobID,
		Status: domain.StatusQueued,
	})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "status")

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job, err := h.usecase.Status(r.Context(), id)
	if err != nil {
		h.writeUsecaseError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (h *handler) file(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "file")

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	resp, err := h.usecase.File(r.Context(), id)
	if err != nil {
		h.writeUsecaseError(w, logger, err)
		return
	}

	if resp.RedirectURL != "" {
		http.Redirect(w, r, resp.RedirectURL, http.StatusTemporaryRedirect)
		return
	}
	defer resp.Content.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+resp.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Content); err != nil {
		logger.Error("send file", slog.String("error", err.Error()))
	}
}

func (h *handler) cleanup(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "cleanup")

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	if err := h.usecase.Cleanup(r.Context(), id); err != nil {
		logger.Error("Cleanup usecase", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "")
		return
	}

	writeJSON(w, http.StatusOK, domain.CleanupResponse{
		Message: "download cleaned up successfully",
	})
}

func (h *handler) platforms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"platforms": platform.Supported(),
	})
}

func (h *handler) writeUsecaseError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, domain.ErrJobNotReady):
		writeError(w, http.StatusTooEarly, "download is not ready yet")
	case errors.Is(err, domain.ErrJobFailed):
		writeError(w, http.StatusConflict, "download failed")
	case errors.Is(err, domain.ErrJobExpired):
		writeError(w, http.StatusGone, "download expired")
	default:
		logger.Error("usecase", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "")
	}
}

func requestLogger(r *http.Request, name string) *slog.Logger {
	return slog.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("handler", name),
		slog.String("remote_addr", r.RemoteAddr),
	)
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	resp := domain.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON", slog.String("error", err.Error()))
	}
}
