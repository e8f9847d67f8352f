package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL       = "https://api.github.com"
	DefaultBatchSize     = 8
	DefaultPRConcurrency = 6

	userAgent = "github-dashboard/1.0"
)

// Options tunes the client. Zero values fall back to the defaults above.
type Options struct {
	BaseURL       string
	BatchSize     int // repositories or users per aliased query
	PRConcurrency int // parallel repository batches
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// Client is the only channel to GitHub. It is safe for concurrent use; the
// org-id memo is its only mutable state.
type Client struct {
	token         string
	baseURL       string
	batchSize     int
	prConcurrency int
	httpClient    *http.Client
	log           *zap.Logger
	now           func() time.Time

	orgMu  sync.RWMutex
	orgIDs map[string]string // lowercased org login → node id
}

func NewClient(token string, opts Options) *Client {
	c := &Client{
		token:         token,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		batchSize:     opts.BatchSize,
		prConcurrency: opts.PRConcurrency,
		httpClient:    opts.HTTPClient,
		log:           opts.Logger,
		now:           time.Now,
		orgIDs:        make(map[string]string),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	if c.prConcurrency <= 0 {
		c.prConcurrency = DefaultPRConcurrency
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// ── Transport ─────────────────────────────────────────────────────────────────

// Query POSTs one GraphQL document and decodes the data field into v. When the
// response carries an errors array the data is still decoded before the
// *QueryError is returned, so callers may choose to tolerate NOT_FOUND nulls.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any, v any) error {
	payload, err := json.Marshal(struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables,omitempty"`
	}{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GitHub GraphQL request: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []GraphQLError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding GraphQL response: %w", err)
	}
	if v != nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		if err := json.Unmarshal(envelope.Data, v); err != nil {
			return fmt.Errorf("decoding GraphQL data: %w", err)
		}
	}
	if len(envelope.Errors) > 0 {
		for _, ge := range envelope.Errors {
			if ge.Type == "RATE_LIMITED" {
				return &RateLimitError{Message: ge.Message, RetryAfter: retryAfter(resp.Header, c.now())}
			}
		}
		return &QueryError{Errors: envelope.Errors}
	}
	return nil
}

// get performs a REST GET. Only used for commit search, which has no GraphQL
// equivalent.
func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GitHub REST request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if err := c.checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// checkStatus maps non-2xx responses to the error taxonomy. GitHub reports
// both primary and secondary rate limits as 403 or 429.
func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	msg := errorMessage(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden && isRateLimitResponse(resp.Header, msg):
		return &RateLimitError{Message: msg, RetryAfter: retryAfter(resp.Header, c.now())}
	case msg != "":
		return fmt.Errorf("GitHub API HTTP %s: %s", resp.Status, msg)
	default:
		return fmt.Errorf("GitHub API HTTP %s", resp.Status)
	}
}

func isRateLimitResponse(h http.Header, msg string) bool {
	if h.Get("Retry-After") != "" || h.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	return strings.Contains(strings.ToLower(msg), "rate limit")
}

// retryAfter derives the retry hint: Retry-After seconds first, then the
// X-RateLimit-Reset epoch, else a one-minute default.
func retryAfter(h http.Header, now time.Time) time.Duration {
	if s := h.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if s := h.Get("X-RateLimit-Reset"); s != "" {
		if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(now); d > 0 {
				return d.Round(time.Second)
			}
			return time.Second
		}
	}
	return defaultRetryAfter
}

func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(raw))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// chunk splits items into consecutive groups of at most size.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
