package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"copyengine/internal/copygen"
	"copyengine/internal/services"
	"copyengine/internal/transcript"
)

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// APIError is a non-2xx response decoded from the daemon.
type APIError struct {
	StatusCode int
	Code       services.ErrorCode
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to a running copyengine daemon.
type Client struct {
	base  *url.URL
	token string
	http  HTTPDoer
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithDoer replaces the HTTP transport.
func WithDoer(doer HTTPDoer) ClientOption {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// NewClient parses baseURL and returns a client rooted at it.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, fmt.Errorf("api base url is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	c := &Client{
		base: base,
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateTask submits share text for transcription.
func (c *Client) CreateTask(ctx context.Context, req TaskRequest) (TaskAccepted, error) {
	var out TaskAccepted
	err := c.do(ctx, http.MethodPost, "/api/tasks", req, &out)
	return out, err
}

// GetTask polls a transcription task.
func (c *Client) GetTask(ctx context.Context, taskID string) (transcript.TaskView, error) {
	var out transcript.TaskView
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(taskID), nil, &out)
	return out, err
}

// CreateVariants submits a rewrite job.
func (c *Client) CreateVariants(ctx context.Context, req CopyVariantsRequest) (JobAccepted, error) {
	var out JobAccepted
	err := c.do(ctx, http.MethodPost, "/api/copy/variants", req, &out)
	return out, err
}

// CreateProductVariants submits a product-adapt job.
func (c *Client) CreateProductVariants(ctx context.Context, req ProductVariantsRequest) (JobAccepted, error) {
	var out JobAccepted
	err := c.do(ctx, http.MethodPost, "/api/copy/product-variants", req, &out)
	return out, err
}

// GetJob polls a copy job.
func (c *Client) GetJob(ctx context.Context, jobID string) (copygen.JobView, error) {
	var out copygen.JobView
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, &out)
	return out, err
}

// Health checks daemon liveness.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Code = payload.ErrorCode
			apiErr.Message = payload.ErrorMessage
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
