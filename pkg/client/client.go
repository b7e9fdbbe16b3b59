package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Abraxas-365/workq/pkg/queue"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 30 * time.Second
)

// Client talks to the queue API for one (system, queue) pair.
type Client struct {
	baseURL    string
	system     string
	queue      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(baseURL, system, queueName string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		system:     system,
		queue:      queueName,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit pushes a job and returns its id.
func (c *Client) Submit(ctx context.Context, job queue.Job) (string, error) {
	var resp struct {
		JobID string `json:"jobid"`
	}
	if err := c.do(ctx, http.MethodPost, "/jobs", nil, job, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// List returns job documents filtered by states and projected to fields.
func (c *Client) List(ctx context.Context, states []queue.State, fields []string) ([]map[string]any, error) {
	q := url.Values{}
	if len(states) > 0 {
		names := make([]string, len(states))
		for i, s := range states {
			names[i] = string(s)
		}
		q.Set("status", strings.Join(names, ","))
	}
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}
	var out []map[string]any
	if err := c.do(ctx, http.MethodGet, "/jobs", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Job(ctx context.Context, jobid string) (*queue.Job, error) {
	var job queue.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobid), nil, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) Status(ctx context.Context, jobid string) (queue.Status, error) {
	var st queue.Status
	err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobid)+"/status", nil, nil, &st)
	return st, err
}

// Cancel returns the deleted document.
func (c *Client) Cancel(ctx context.Context, jobid string) (*queue.Job, error) {
	var job queue.Job
	if err := c.do(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(jobid), nil, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) Workers(ctx context.Context) ([]queue.WorkerReport, error) {
	var out []queue.WorkerReport
	if err := c.do(ctx, http.MethodGet, "/workers", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteWorker(ctx context.Context, workerid string) (queue.WorkerReport, error) {
	var out queue.WorkerReport
	err := c.do(ctx, http.MethodDelete, "/workers/"+url.PathEscape(workerid), nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	endpoint := c.baseURL + "/" + url.PathEscape(c.system) + "/queues/" + url.PathEscape(c.queue) + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return clientErrors.NewWithCause(ErrEncode, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return clientErrors.NewWithCause(ErrRequest, err).WithDetail("url", endpoint)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return clientErrors.NewWithCause(ErrRequest, err).WithDetail("url", endpoint)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return clientErrors.NewWithCause(ErrResponse, err).WithDetail("url", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return clientErrors.NewWithCause(ErrResponse, err).WithDetail("url", endpoint)
	}
	return nil
}
