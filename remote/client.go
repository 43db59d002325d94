package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// RevisionHeader carries the record revision in both directions
	RevisionHeader = "X-Record-Revision"
	// UpdatedAtHeader carries the last write time of a record (RFC 3339)
	UpdatedAtHeader = "X-Record-Updated-At"
	// TenantHeader partitions records per user
	TenantHeader = "X-Tenant-ID"

	defaultTimeout = 3 * time.Second
)

var (
	// ErrUnavailable is the root of every transport or status failure
	ErrUnavailable = errors.New("remote record api unavailable")
	// ErrNotFound means the remote answered but holds no record for the path
	ErrNotFound = errors.New("remote record not found")
)

// StatusError is returned when the remote answers with a non-success status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote API error: %d", e.StatusCode)
	}
	return fmt.Sprintf("remote API error: %d - %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnavailable
}

// Conflict reports whether the remote rejected a stale revision
func (e *StatusError) Conflict() bool {
	return e.StatusCode == http.StatusConflict
}

// Record is one collection as exchanged with the remote API. Data is the
// raw JSON array of entities.
type Record struct {
	Revision  int64
	UpdatedAt time.Time
	Data      []byte
}

// Client talks to the remote record API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption is a functional option for Client
type ClientOption func(*Client)

// WithToken sets the bearer credential sent on every request
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout bounds every request
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches the record at path. A 404 yields ErrNotFound.
func (c *Client) Get(ctx context.Context, tenant, path string) (Record, error) {
	resp, err := c.do(ctx, http.MethodGet, tenant, path, nil, 0)
	if err != nil {
		return Record{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Record{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Record{}, statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Record{}, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	rec := Record{Data: body}
	if v := resp.Header.Get(RevisionHeader); v != "" {
		rev, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: invalid revision header %q", ErrUnavailable, v)
		}
		rec.Revision = rev
	}
	if v := resp.Header.Get(UpdatedAtHeader); v != "" {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.UpdatedAt = ts
		}
	}
	return rec, nil
}

// Put stores rec at path
func (c *Client) Put(ctx context.Context, tenant, path string, rec Record) error {
	resp, err := c.do(ctx, http.MethodPut, tenant, path, rec.Data, rec.Revision)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	return nil
}

// Delete removes the record at path. Deleting a missing record succeeds.
func (c *Client) Delete(ctx context.Context, tenant, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, tenant, path, nil, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, tenant, path string, body []byte, revision int64) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: base url not set", ErrUnavailable)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}
	if method == http.MethodPut {
		req.Header.Set(RevisionHeader, strconv.FormatInt(revision, 10))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
