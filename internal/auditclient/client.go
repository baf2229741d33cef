// Package auditclient talks to the auditd HTTP API. It implements the
// logview.Fetcher used by the terminal browser.
package auditclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elimika/auditlog/internal/audit"
	"github.com/elimika/auditlog/internal/logview"
	"github.com/elimika/auditlog/internal/platform/httpx"
)

// ErrBadRequest wraps problem responses with a 4xx status.
var ErrBadRequest = errors.New("auditclient: request rejected")

// Client wraps interactions with the audit log API.
type Client struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
}

// NewClient constructs a new client. pageSize is sent with every page
// request when positive; otherwise the server default applies.
func NewClient(baseURL string, pageSize int) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient swaps the underlying HTTP client, for example one trusting
// a private CA.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type pageResponse struct {
	Items    []audit.LogEntry `json:"items"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	HasNext  bool             `json:"has_next"`
}

// FetchPage loads page n of q from GET /audit/logs.
func (c *Client) FetchPage(ctx context.Context, q logview.Query, page int) (logview.PageResult, error) {
	var body pageResponse
	if err := c.getJSON(ctx, "/audit/logs", q.Values(page, c.pageSize), &body); err != nil {
		return logview.PageResult{}, err
	}
	if body.Items == nil {
		body.Items = []audit.LogEntry{}
	}
	return logview.PageResult{Items: body.Items, HasNext: body.HasNext}, nil
}

// Events lists the distinct event names known to the server.
func (c *Client) Events(ctx context.Context) ([]string, error) {
	var body struct {
		Events []string `json:"events"`
	}
	if err := c.getJSON(ctx, "/audit/events", nil, &body); err != nil {
		return nil, err
	}
	return body.Events, nil
}

// Ping checks if the remote service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("auditd returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return decodeProblem(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("auditclient: decode %s: %w", path, err)
	}
	return nil
}

func decodeProblem(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var problem httpx.ProblemDetail
	message := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &problem); err == nil && problem.Title != "" {
		message = problem.Title
		if problem.Detail != "" {
			message = problem.Detail
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode < 500 {
		return fmt.Errorf("%w: %s", ErrBadRequest, message)
	}
	return fmt.Errorf("auditd returned status %d: %s", resp.StatusCode, message)
}
