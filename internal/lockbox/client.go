package lockbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

const defaultTimeout = 10 * time.Second

// connection pooling limits; every request goes to the same backend
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// backend routes
const (
	pathMe          = "/api/v1/me"
	pathLockbox     = "/api/v1/me/lockbox"
	pathCourses     = "/api/v1/me/lockbox/courses"
	pathFailures    = "/api/v1/me/lockbox_errors"
	contentTypeJSON = "application/json"
)

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error is set when no usable response was received. A non-2xx status
	// is not an error at this level.
	Error error
}

// OK reports whether a response was received with a 2xx status.
func (r Response) OK() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client talks to the lockbox part of the backend REST API.
//
// Every request carries the configured headers (typically the session
// cookie) and its own timeout. Response bodies are limited to 1MB.
type Client struct {
	baseURL    *url.URL
	headers    map[string]string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a [Client] for the backend at baseURL.
//
// headers are sent with every request. A zero timeout defaults to 10s.
// Returns an error if baseURL is not an absolute http(s) URL.
func NewClient(baseURL string, headers map[string]string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("base url must include a host")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	hdrs := make(map[string]string, len(headers))
	for k, v := range headers {
		hdrs[k] = v
	}

	return &Client{
		baseURL: u,
		headers: hdrs,
		timeout: timeout,
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}, nil
}

// Fetch performs a request against path and returns a structured [Response].
//
// A non-nil body is sent as JSON. Fetch always returns a Response; transport
// errors are captured in the Error field rather than returned separately.
func (c *Client) Fetch(ctx context.Context, method, path string, body []byte) Response {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	limitedReader := io.LimitReader(resp.Body, maxResponseBodySize)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       data,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Courses fetches the state of the course discovery job.
func (c *Client) Courses(ctx context.Context) (CourseJob, error) {
	var job CourseJob
	if err := c.getJSON(ctx, pathCourses, &job); err != nil {
		return CourseJob{}, fmt.Errorf("fetch courses: %w", err)
	}
	return job, nil
}

// UserInfo fetches the current user's account summary.
func (c *Client) UserInfo(ctx context.Context) (UserInfo, error) {
	var info UserInfo
	if err := c.getJSON(ctx, pathMe, &info); err != nil {
		return UserInfo{}, fmt.Errorf("fetch user info: %w", err)
	}
	return info, nil
}

// UpdateLockbox patches the stored credentials and the form-filling switch.
//
// Rejections are returned as *[APIError]; use [APIError.IsValidation] to
// tell field-level problems from general failures.
func (c *Client) UpdateLockbox(ctx context.Context, update Update) error {
	if update.Empty() {
		return errors.New("update lockbox: nothing to update")
	}

	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("update lockbox: %w", err)
	}

	resp := c.Fetch(ctx, http.MethodPatch, pathLockbox, body)
	if resp.Error != nil {
		return fmt.Errorf("update lockbox: %w", resp.Error)
	}
	if !resp.OK() {
		return parseAPIError(resp.StatusCode, resp.Body)
	}
	return nil
}

// Failures lists the errors the automation logged for this user.
func (c *Client) Failures(ctx context.Context) ([]Failure, error) {
	var list failureList
	if err := c.getJSON(ctx, pathFailures, &list); err != nil {
		return nil, fmt.Errorf("fetch lockbox errors: %w", err)
	}
	return list.Failures, nil
}

// DeleteFailure dismisses one logged error.
func (c *Client) DeleteFailure(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("delete lockbox error: id is required")
	}

	resp := c.Fetch(ctx, http.MethodDelete, pathFailures+"/"+url.PathEscape(id), nil)
	if resp.Error != nil {
		return fmt.Errorf("delete lockbox error: %w", resp.Error)
	}
	if !resp.OK() {
		return parseAPIError(resp.StatusCode, resp.Body)
	}
	return nil
}

// getJSON performs a GET and decodes a 2xx body into v.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp := c.Fetch(ctx, http.MethodGet, path, nil)
	if resp.Error != nil {
		return resp.Error
	}
	if !resp.OK() {
		return parseAPIError(resp.StatusCode, resp.Body)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
