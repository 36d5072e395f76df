// Package api is the client for the upstream inspections REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"qcdash/internal/core"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
	maxListBody    = 64 << 20
)

// ErrNotFound is matched by StatusError values carrying a 404.
var ErrNotFound = errors.New("inspection not found")

// StatusError reports a non-2xx answer from the API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is lets errors.Is(err, ErrNotFound) match a 404.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to the inspections API rooted at a base URL.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient validates baseURL and returns a ready client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// List fetches every inspection, applies the receipt defaults and orders the
// result by inspection date.
func (c *Client) List(ctx context.Context) ([]core.InspectionRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, "/inspections", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var records []core.InspectionRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListBody)).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode inspections: %w", err)
	}
	for i := range records {
		records[i] = records[i].Normalize()
	}
	SortByDate(records)

	c.logger.DebugContext(ctx, "Fetched inspections", "count", len(records))
	return records, nil
}

// Create stores a new inspection and returns the API's copy of it.
func (c *Client) Create(ctx context.Context, rec core.InspectionRecord) (core.InspectionRecord, error) {
	return c.write(ctx, http.MethodPost, "/inspections", rec.ForWrite())
}

// Update replaces the inspection identified by id.
func (c *Client) Update(ctx context.Context, id string, rec core.InspectionRecord) (core.InspectionRecord, error) {
	if strings.TrimSpace(id) == "" {
		return core.InspectionRecord{}, fmt.Errorf("update inspection: %w", ErrNotFound)
	}
	return c.write(ctx, http.MethodPut, "/inspections/"+url.PathEscape(id), rec.ForWrite())
}

// Delete removes the inspection identified by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("delete inspection: %w", ErrNotFound)
	}
	resp, err := c.do(ctx, http.MethodDelete, "/inspections/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) write(ctx context.Context, method, path string, rec core.InspectionRecord) (core.InspectionRecord, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return core.InspectionRecord{}, fmt.Errorf("encode inspection: %w", err)
	}
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return core.InspectionRecord{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxListBody))
	if err != nil {
		return core.InspectionRecord{}, fmt.Errorf("read response: %w", err)
	}
	// Some deployments answer writes with an empty body or a status message.
	var saved core.InspectionRecord
	if len(bytes.TrimSpace(raw)) == 0 || json.Unmarshal(raw, &saved) != nil {
		return rec, nil
	}
	return saved.Normalize(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	u := c.baseURL.JoinPath(path)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.DebugContext(ctx, "API request completed",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	return resp, nil
}

// SortByDate orders records by inspection date, oldest first. Undated
// records sort first and ties keep their relative order.
func SortByDate(records []core.InspectionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].InspectionDate.Before(records[j].InspectionDate)
	})
}
