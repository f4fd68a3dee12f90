package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	v1 "github.com/kubev2v/prio-scheduler/api/v1"
	srvErrors "github.com/kubev2v/prio-scheduler/pkg/errors"
)

const apiV1Prefix = "/api/v1"

// Client talks to the prioschedd job API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient returns a client for baseURL. jwt may be empty when the server runs without auth.
func NewClient(baseURL string, jwt string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize client: %v", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("failed to initialize client: %q is not an absolute url", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      jwt,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SubmitJob creates a job.
// POST /api/v1/jobs
func (c *Client) SubmitJob(ctx context.Context, req v1.JobRequest) (*v1.Job, error) {
	var job v1.Job
	if err := c.do(ctx, http.MethodPost, "/jobs", nil, req, &job, ""); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob returns one job.
// GET /api/v1/jobs/{id}
func (c *Client) GetJob(ctx context.Context, id string) (*v1.Job, error) {
	var job v1.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, nil, &job, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns a page of jobs.
// GET /api/v1/jobs
func (c *Client) ListJobs(ctx context.Context, params v1.GetJobsParams) (*v1.JobListResponse, error) {
	q := url.Values{}
	for _, s := range params.State {
		q.Add("state", s)
	}
	for _, p := range params.Priority {
		q.Add("priority", p)
	}
	for _, k := range params.Kind {
		q.Add("kind", k)
	}
	for _, s := range params.Sort {
		q.Add("sort", s)
	}
	if params.Page != nil {
		q.Set("page", strconv.Itoa(*params.Page))
	}
	if params.PageSize != nil {
		q.Set("pageSize", strconv.Itoa(*params.PageSize))
	}

	var resp v1.JobListResponse
	if err := c.do(ctx, http.MethodGet, "/jobs", q, nil, &resp, ""); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelJob cancels a delayed, queued or running job.
// DELETE /api/v1/jobs/{id}
func (c *Client) CancelJob(ctx context.Context, id string) (*v1.Job, error) {
	var job v1.Job
	if err := c.do(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(id), nil, nil, &job, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobEvents returns the dispatch history of a job.
// GET /api/v1/jobs/{id}/events
func (c *Client) GetJobEvents(ctx context.Context, id string) ([]v1.JobEvent, error) {
	var events []v1.JobEvent
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id)+"/events", nil, nil, &events, id); err != nil {
		return nil, err
	}
	return events, nil
}

// GetSchedulerStatus returns a snapshot of the scheduler.
// GET /api/v1/scheduler
func (c *Client) GetSchedulerStatus(ctx context.Context) (*v1.SchedulerStatus, error) {
	var status v1.SchedulerStatus
	if err := c.do(ctx, http.MethodGet, "/scheduler", nil, nil, &status, ""); err != nil {
		return nil, err
	}
	return &status, nil
}

// WaitForJob polls the job until it reaches a terminal state or ctx is done.
func (c *Client) WaitForJob(ctx context.Context, id string, interval time.Duration) (*v1.Job, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = 10 * interval

	return backoff.Retry(ctx, func() (*v1.Job, error) {
		job, err := c.GetJob(ctx, id)
		if err != nil {
			if srvErrors.IsResourceNotFoundError(err) || srvErrors.IsUnauthorizedError(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		switch job.State {
		case v1.JobStateCompleted, v1.JobStateFailed, v1.JobStateCancelled:
			return job, nil
		}
		return nil, fmt.Errorf("job %q is %s", id, job.State)
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(0))
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, id string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + apiV1Prefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	zap.S().Named("client").Debugw("api request", "method", method, "url", u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	case http.StatusUnauthorized:
		return srvErrors.NewUnauthorizedError()
	case http.StatusServiceUnavailable:
		return srvErrors.NewClosedError()
	}

	msg := readError(resp)
	switch resp.StatusCode {
	case http.StatusNotFound:
		if id == "" {
			return srvErrors.NewResourceNotFoundError("route", path)
		}
		return srvErrors.NewJobNotFoundError(id)
	case http.StatusBadRequest:
		return srvErrors.NewInvalidRequestError("%s", strings.TrimPrefix(msg, "invalid request: "))
	case http.StatusConflict:
		return srvErrors.NewJobFinishedError(id, "finished")
	default:
		return fmt.Errorf("%s %s failed: %s: %s", method, path, resp.Status, msg)
	}
}

func readError(resp *http.Response) string {
	var e v1.Error
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
		return resp.Status
	}
	return e.Error
}
