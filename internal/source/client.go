package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/soql"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 16 << 20 // 16 MB
	userAgent      = "github.com/theirongolddev/cbudget/1.0"
)

// ErrNetwork indicates a transport failure or a non-success HTTP status.
var ErrNetwork = errors.New("source: network failure")

// StatusError is returned for non-2xx responses. It matches ErrNetwork.
type StatusError struct {
	Dataset string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("source: %s: unexpected status %d: %s", e.Dataset, e.Code, e.Message)
	}
	return fmt.Sprintf("source: %s: unexpected status %d", e.Dataset, e.Code)
}

// Unwrap lets errors.Is(err, ErrNetwork) match status failures.
func (e *StatusError) Unwrap() error { return ErrNetwork }

// ResponseCache stores raw response bodies keyed by request URL.
type ResponseCache interface {
	Get(url string, maxAge time.Duration) ([]byte, bool, error)
	Put(url, dataset string, body []byte) error
}

// Client issues SoQL queries against one Socrata host.
type Client struct {
	baseURL  string
	appToken string
	http     *http.Client
	timeout  time.Duration

	cache    ResponseCache
	cacheTTL time.Duration

	requests atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithAppToken sends the token as X-App-Token, which lifts Socrata's anonymous throttling.
func WithAppToken(token string) Option {
	return func(c *Client) { c.appToken = strings.TrimSpace(token) }
}

// WithTimeout sets the per-request timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache serves responses younger than ttl from cache and stores fresh ones.
func WithCache(cache ResponseCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// NewClient creates a client for the Socrata host at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the host the client queries.
func (c *Client) BaseURL() string { return c.baseURL }

// Requests returns how many network requests the client has issued. Cache hits don't count.
func (c *Client) Requests() int64 { return c.requests.Load() }

// Fetch returns the raw JSON body for q, from cache when fresh.
func (c *Client) Fetch(ctx context.Context, q soql.Query) ([]byte, error) {
	url := q.URL(c.baseURL)

	if c.cache != nil {
		body, ok, err := c.cache.Get(url, c.cacheTTL)
		if err != nil {
			log.WithField("dataset", q.Dataset).Warnf("source: cache read failed: %v", err)
		} else if ok {
			log.WithField("dataset", q.Dataset).Debug("source: cache hit")
			return body, nil
		}
	}

	body, err := c.get(ctx, q.Dataset, url)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && cacheable(body) {
		if err := c.cache.Put(url, q.Dataset, body); err != nil {
			log.WithField("dataset", q.Dataset).Warnf("source: cache write failed: %v", err)
		}
	}
	return body, nil
}

// cacheable reports whether body is a JSON array. A 2xx maintenance page or
// proxy error must not be served from cache on the next attempt.
func cacheable(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) > 0 && b[0] == '[' && json.Valid(b)
}

// FetchBudget fetches and parses appropriations or revenues rows.
func (c *Client) FetchBudget(ctx context.Context, q soql.Query, kind Kind) ([]model.BudgetRecord, error) {
	body, err := c.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	records, _, err := DecodeBudget(body, kind)
	return records, err
}

// FetchEmployees fetches and parses grouped payroll rows.
func (c *Client) FetchEmployees(ctx context.Context, q soql.Query) ([]model.Employee, error) {
	body, err := c.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	out, _, err := DecodeEmployees(body)
	return out, err
}

// FetchVendors fetches and parses grouped vendor-expense rows.
func (c *Client) FetchVendors(ctx context.Context, q soql.Query) ([]model.VendorExpense, error) {
	body, err := c.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	out, _, err := DecodeVendors(body)
	return out, err
}

// FetchDepartments fetches the distinct department list.
func (c *Client) FetchDepartments(ctx context.Context, q soql.Query) ([]model.Department, error) {
	body, err := c.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return DecodeDepartments(body)
}

// FetchSubGroups fetches the distinct sub-group list of one department.
func (c *Client) FetchSubGroups(ctx context.Context, q soql.Query) ([]model.Segment, error) {
	body, err := c.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return DecodeSubGroups(body)
}

// get performs a GET request and returns the response body.
func (c *Client) get(ctx context.Context, dataset, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqID := uuid.NewString()
	logger := log.WithFields(log.Fields{
		"dataset":    dataset,
		"request_id": reqID,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("source: creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", reqID)
	if c.appToken != "" {
		req.Header.Set("X-App-Token", c.appToken)
	}

	c.requests.Add(1)
	start := time.Now()

	//nolint:gosec // URL host comes from configuration
	resp, err := c.http.Do(req)
	if err != nil {
		logger.WithField("elapsed", time.Since(start)).Warnf("source: request failed: %v", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrNetwork, dataset, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.WithFields(log.Fields{
			"status":  resp.StatusCode,
			"elapsed": time.Since(start),
		}).Warn("source: unexpected status")
		return nil, &StatusError{
			Dataset: dataset,
			Code:    resp.StatusCode,
			Message: strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading response: %w", ErrNetwork, dataset, err)
	}

	logger.WithFields(log.Fields{
		"bytes":   len(body),
		"elapsed": time.Since(start),
	}).Debug("source: fetched")
	return body, nil
}
