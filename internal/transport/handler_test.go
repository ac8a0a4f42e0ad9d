package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you-humble/videovault/internal/domain"
	"github.com/you-humble/videovault/internal/jobs"
	"github.com/you-humble/videovault/internal/metrics"
)

type fakeUsecase struct {
	submit    func(ctx context.Context, url, format, quality string) (string, error)
	status    func(ctx context.Context, id string) (domain.Job, error)
	file      func(ctx context.Context, id string) (jobs.FileResponse, error)
	cleanup   func(ctx context.Context, id string) error
	videoInfo func(ctx context.Context, url string) (domain.VideoInfo, error)
}

func (f *fakeUsecase) Submit(ctx context.Context, url, format, quality string) (string, error) {
	return f.submit(ctx, url, format, quality)
}

func (f *fakeUsecase) Status(ctx context.Context, id string) (domain.Job, error) {
	return f.status(ctx, id)
}

func (f *fakeUsecase) File(ctx context.Context, id string) (jobs.FileResponse, error) {
	return f.file(ctx, id)
}

func (f *fakeUsecase) Cleanup(ctx context.Context, id string) error {
	return f.cleanup(ctx, id)
}

func (f *fakeUsecase) VideoInfo(ctx context.Context, url string) (domain.VideoInfo, error) {
	return f.videoInfo(ctx, url)
}

func newServer(t *testing.T, uc Usecase) *httptest.Server {
	t.Helper()

	h := NewHandler(uc, ServiceInfo{JobStore: "memory", FileStore: "local"})
	mux := NewRouter(h, metrics.New().Handler()).MountRoutes(http.NewServeMux())

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	srv := newServer(t, &fakeUsecase{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "memory", body["job_store"])
	assert.Equal(t, "local", body["file_store"])
}

func TestDownloadAccepted(t *testing.T) {
	srv := newServer(t, &fakeUsecase{
		submit: func(ctx context.Context, url, format, quality string) (string, error) {
			assert.Equal(t, "https://youtu.be/abc", url)
			assert.Equal(t, "mp4", format)
			assert.Equal(t, "720p", quality)
			return "job-1", nil
		},
	})

	resp, err := http.Post(srv.URL+"/api/download", "application/json",
		strings.NewReader(`{"url":"https://youtu.be/abc","format":"mp4","quality":"720p"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decodeBody[domain.SubmitResponse](t, resp)
	assert.Equal(t, "job-1", body.JobID)
	assert.Equal(t, domain.StatusQueued, body.Status)
}

func TestDownloadBadRequests(t *testing.T) {
	srv := newServer(t, &fakeUsecase{
		submit: func(ctx context.Context, url, format, quality string) (string, error) {
			return "", domain.ErrInvalidRequest
		},
	})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing url", `{"format":"mp4"}`},
		{"rejected by usecase", `{"url":"https://example.com/video"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/download", "application/json",
				strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			body := decodeBody[domain.ErrorResponse](t, resp)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestStatusOK(t *testing.T) {
	srv := newServer(t, &fakeUsecase{
		status: func(ctx context.Context, id string) (domain.Job, error) {
			require.Equal(t, "job-1", id)
			return domain.Job{ID: id, Status: domain.StatusProcessing, Progress: 42}, nil
		},
	})

	resp, err := http.Get(srv.URL + "/api/download/job-1/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	job := decodeBody[domain.Job](t, resp)
	assert.Equal(t, domain.StatusProcessing, job.Status)
	assert.Equal(t, 42, job.Progress)
}

func TestStatusNotFound(t *testing.T) {
	srv := newServer(t, &fakeUsecase{
		status: func(ctx context.Context, id string) (domain.Job, error) {
			return domain.Job{}, domain.ErrJobNotFound
		},
	})

	resp, err := http.Get(srv.URL + "/api/download/missing/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestFileStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not ready", domain.ErrJobNotReady, http.StatusTooEarly},
		{"failed", domain.ErrJobFailed, http.StatusConflict},
		{"expired", domain.ErrJobExpired, http.StatusGone},
		{"not found", domain.ErrJobNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &fakeUsecase{
				file: func(ctx context.Context, id string) (jobs.FileResponse, error) {
					return jobs.FileResponse{}, tt.err
				},
			})

			resp, err := http.Get(srv.URL + "/api/download/job-1/file")
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestFileStreams(t *testing.T) {
	srv := newServer(t, &fakeUsecase{
		file: func(ctx context.Context, id string) (jobs.FileResponse, error) {
			return jobs.FileResponse{
				Filename: "clip.mp4",
				Size:     11,
				Content:  io.NopCloser(strings.NewReader("video bytes")),
			}, nil
		},
	})

	resp, err := http.Get(srv.URL + "/api/download/job-1/file")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="clip.mp4"`, resp.Header.Get("Content-Disposition"))

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "video bytes", string(got))
}

func TestFileRedirects(t *testing.T) {
	srv := newServer(t, &fakeUsecase{
		file: func(ctx context.Context, id string) (jobs.FileResponse, error) {
			return jobs.FileResponse{
				Filename:    "clip.mp4",
				RedirectURL: "https://blobs.example.com/job-1/clip.mp4?sig=abc",
			}, nil
		},
	})

	client := srv.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Get(srv.URL + "/api/download/job-1/file")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "https://blobs.example.com/job-1/clip.mp4?sig=abc", resp.Header.Get("Location"))
}

func TestCleanup(t *testing.T) {
	called := 0
	srv := newServer(t, &fakeUsecase{
		cleanup: func(ctx context.Context, id string) error {
			called++
			assert.Equal(t, "job-1", id)
			return nil
		},
	})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/download/job-1", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[domain.CleanupResponse](t, resp)
	assert.Contains(t, body.Message, "cleaned up")
	assert.Equal(t, 1, called)
}

func TestVideoInfo(t *testing.T) {
	srv := newServer(t, &fakeUsecase{
		videoInfo: func(ctx context.Context, url string) (domain.VideoInfo, error) {
			return domain.VideoInfo{Title: "some clip", Platform: "YouTube"}, nil
		},
	})

	resp, err := http.Post(srv.URL+"/api/video-info", "application/json",
		strings.NewReader(`{"url":"https://youtu.be/abc"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	info := decodeBody[domain.VideoInfo](t, resp)
	assert.Equal(t, "some clip", info.Title)
	assert.Equal(t, "YouTube", info.Platform)
}

func TestVideoInfoUnreadableVideo(t *testing.T) {
	srv := newServer(t, &fakeUsecase{
		videoInfo: func(ctx context.Context, url string) (domain.VideoInfo, error) {
			return domain.VideoInfo{}, fmt.Errorf("%w: probe %s: video is unavailable or has been removed",
				domain.ErrInvalidRequest, url)
		},
	})

	resp, err := http.Post(srv.URL+"/api/video-info", "application/json",
		strings.NewReader(`{"url":"https://youtu.be/gone"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[domain.ErrorResponse](t, resp)
	assert.Contains(t, body.Message, "video is unavailable")
}

func TestSupportedPlatforms(t *testing.T) {
	srv := newServer(t, &fakeUsecase{})

	resp, err := http.Get(srv.URL + "/api/supported-platforms")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string][]map[string]any](t, resp)
	assert.Len(t, body["platforms"], 10)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t, &fakeUsecase{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
