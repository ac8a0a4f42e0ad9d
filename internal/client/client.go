// Package client is the consumer-side API for the videovault HTTP surface,
// including the polling loop the web front end relies on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/you-humble/videovault/internal/domain"
)

// ErrPollTimeout means the attempt budget ran out before the job reached a
// terminal state. It is a client-side condition, not a job failure.
var ErrPollTimeout = errors.New("polling timed out")

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 150
)

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) SubmitDownload(ctx context.Context, url, format, quality string) (domain.SubmitResponse, error) {
	body, err := json.Marshal(map[string]string{
		"url":     url,
		"format":  format,
		"quality": quality,
	})
	if err != nil {
		return domain.SubmitResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/download", bytes.NewReader(body))
	if err != nil {
		return domain.SubmitResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out domain.SubmitResponse
	if err := c.do(req, http.StatusAccepted, &out); err != nil {
		return domain.SubmitResponse{}, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context, jobID string) (domain.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/download/%s/status", c.baseURL, jobID), nil)
	if err != nil {
		return domain.Job{}, err
	}

	var job domain.Job
	if err := c.do(req, http.StatusOK, &job); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

func (c *Client) Cleanup(ctx context.Context, jobID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/api/download/%s", c.baseURL, jobID), nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, nil)
}

type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int

	// OnUpdate receives every observed status, terminal included.
	OnUpdate func(domain.Job)
}

// Poll queries job status at a fixed interval until the first terminal
// status, the attempt budget, or context cancellation.
func (c *Client) Poll(ctx context.Context, jobID string, opts PollOptions) (domain.Job, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		job, err := c.Status(ctx, jobID)
		if err != nil {
			return domain.Job{}, err
		}

		if opts.OnUpdate != nil {
			opts.OnUpdate(job)
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return domain.Job{}, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}

	return domain.Job{}, fmt.Errorf("%w after %d attempts", ErrPollTimeout, opts.MaxAttempts)
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	var body domain.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	msg := body.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, msg)
	case http.StatusTooEarly:
		return fmt.Errorf("%w: %s", domain.ErrJobNotReady, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrJobFailed, msg)
	case http.StatusGone:
		return fmt.Errorf("%w: %s", domain.ErrJobExpired, msg)
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}
}
