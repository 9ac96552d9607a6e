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

	"crawlwatch/internal/version"
)

// PathPrefix is where the crawler mounts its REST and WebSocket routes
const PathPrefix = "/api/crawler"

// DefaultTimeout bounds a single request when no http.Client is supplied
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response is read for diagnostics
const maxErrorBody = 64 << 10

// Client talks to the crawler's REST API
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient creates a client for the crawler at baseURL (e.g. http://host:8001)
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: missing host", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalised backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Records fetches crawled records. Empty filter fields are not sent.
func (c *Client) Records(ctx context.Context, f Filters) ([]Record, error) {
	var out []Record
	if err := c.getJSON(ctx, "/data", f.Values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status fetches the crawler's aggregate counters
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.getJSON(ctx, "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Accounts lists crawler accounts
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var out []Account
	if err := c.getJSON(ctx, "/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// KeywordStats fetches per-keyword detection totals
func (c *Client) KeywordStats(ctx context.Context) ([]KeywordStat, error) {
	var out []KeywordStat
	if err := c.getJSON(ctx, "/data/keywords", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary fetches the data overview
func (c *Client) Summary(ctx context.Context) (*Summary, error) {
	var out Summary
	if err := c.getJSON(ctx, "/data/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Performance fetches the per-account performance report
func (c *Client) Performance(ctx context.Context) ([]AccountPerformance, error) {
	var out []AccountPerformance
	if err := c.getJSON(ctx, "/data/accounts-performance", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Start starts the crawler scheduler
func (c *Client) Start(ctx context.Context) error {
	return c.post(ctx, "/start", nil, nil)
}

// Stop stops the crawler scheduler
func (c *Client) Stop(ctx context.Context) error {
	return c.post(ctx, "/stop", nil, nil)
}

// EnableAll enables every account
func (c *Client) EnableAll(ctx context.Context) error {
	return c.post(ctx, "/accounts/batch/enable", nil, nil)
}

// DisableAll disables every account
func (c *Client) DisableAll(ctx context.Context) error {
	return c.post(ctx, "/accounts/batch/disable", nil, nil)
}

// EnableAccount enables a single account
func (c *Client) EnableAccount(ctx context.Context, username string) error {
	return c.post(ctx, "/accounts/"+url.PathEscape(username)+"/enable", nil, nil)
}

// DisableAccount disables a single account
func (c *Client) DisableAccount(ctx context.Context, username string) error {
	return c.post(ctx, "/accounts/"+url.PathEscape(username)+"/disable", nil, nil)
}

// ToggleAccount enables a disabled account and disables any other
func (c *Client) ToggleAccount(ctx context.Context, acct Account) error {
	if acct.Status == AccountDisabled {
		return c.EnableAccount(ctx, acct.Username)
	}
	return c.DisableAccount(ctx, acct.Username)
}

// AddAccount validates the credentials against the target site and stores
// the account on success
func (c *Client) AddAccount(ctx context.Context, creds Credentials) error {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return fmt.Errorf("username and password are required")
	}
	return c.post(ctx, "/accounts/validate", creds, nil)
}

// DeleteAccount removes an account
func (c *Client) DeleteAccount(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodDelete, "/accounts/"+url.PathEscape(username), nil, nil, nil)
}

// TestAccount runs one crawl for the account and reports the outcome
func (c *Client) TestAccount(ctx context.Context, username string) (*TestResult, error) {
	var out TestResult
	if err := c.post(ctx, "/test/"+url.PathEscape(username), nil, &out); err != nil {
		return nil, err
	}
	if out.Username == "" {
		out.Username = username
	}
	return &out, nil
}

// Export downloads the CSV export
func (c *Client) Export(ctx context.Context, opts ExportOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.do(ctx, http.MethodGet, "/data/export", opts.Values(), nil, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// do issues a request under PathPrefix. A *bytes.Buffer out receives the raw
// body; any other non-nil out is JSON-decoded.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + PathPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newError(method, path, resp.StatusCode, resp.Header.Get("Content-Type"), data)
	}

	switch dst := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *bytes.Buffer:
		if _, err := io.Copy(dst, resp.Body); err != nil {
			return fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
		}
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
		return nil
	}
}
