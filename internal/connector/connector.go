// internal/connector/connector.go
//
// GeoNetwork catalogue client.
//
// Context
// -------
// A harvest run talks to the catalogue in three steps:
//
//  1. CanConnect probes the test endpoint so an unreachable catalogue is
//     reported once, not as one failure per record.
//  2. Search posts an Elasticsearch query and keeps the hits whose values
//     mention one of the configured keywords.
//  3. GetRecord fetches each remaining hit's ISO 19115-3 XML by uuid.
//
// Every request runs under a per-call timeout and is retried with
// exponential backoff (fortify).  Transport failures and 5xx responses are
// retried; 4xx responses are not, since asking again will not change them.
//
// Notes
// -----
//   - URLs are joined as base (trailing "/" trimmed) + "/" + endpoint
//     (leading "/" trimmed).
//   - Every failure surfaced to callers wraps ErrUnavailable.
//   - Oxford commas, two spaces after periods.
package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
	"go.uber.org/zap"

	"github.com/yanizio/harvest/internal/config"
	"github.com/yanizio/harvest/internal/metrics"
)

// ErrUnavailable wraps every catalogue failure.
var ErrUnavailable = errors.New("catalogue unavailable")

// Endpoint labels for metrics.
const (
	endpointTest   = "test"
	endpointSearch = "search"
	endpointRecord = "record"
)

// maxBody caps a single response.  Search pages and records are far below.
const maxBody = 64 << 20

// Config is the subset of source settings the client needs.
type Config struct {
	URL               string
	SearchEndpoint    string
	GetRecordEndpoint string
	TestEndpoint      string
	MaxRecords        int
	FilterKeywords    []string
	Timeout           time.Duration
	Retries           int
	RetryDelay        time.Duration
	Concurrency       int
}

// ConfigFrom maps the `source` configuration section.
func ConfigFrom(s config.Source) Config {
	return Config{
		URL:               s.URL,
		SearchEndpoint:    s.SearchEndpoint,
		GetRecordEndpoint: s.GetRecordEndpoint,
		TestEndpoint:      s.TestEndpoint,
		MaxRecords:        s.MaxRecords,
		FilterKeywords:    s.FilterKeywords,
		Timeout:           s.Timeout,
		Retries:           s.Retries,
		Concurrency:       s.Concurrency,
	}
}

// Client is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.SugaredLogger
}

// New returns a Client.  hc may be nil.
func New(cfg Config, hc *http.Client, log *zap.SugaredLogger) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Client{cfg: cfg, http: hc, log: log}
}

// response is what survives the retry loop: a status below 500 and its body.
type response struct {
	status int
	body   []byte
}

// statusError marks a retryable server-side failure.
type statusError struct{ status int }

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.status, http.StatusText(e.status))
}

// do runs one request with timeout and retries.  newReq is called per
// attempt so request bodies can be replayed.
func (c *Client) do(ctx context.Context, endpoint string, newReq func(context.Context) (*http.Request, error)) (*response, error) {
	r := retry.New[*response](retry.Config{
		MaxAttempts:   c.cfg.Retries + 1,
		InitialDelay:  c.cfg.RetryDelay,
		BackoffPolicy: retry.BackoffExponential,
	})
	t := timeout.New[*response](timeout.Config{DefaultTimeout: c.cfg.Timeout})

	res, err := r.Do(ctx, func(ctx context.Context) (*response, error) {
		return t.Execute(ctx, c.cfg.Timeout, func(ctx context.Context) (*response, error) {
			req, err := newReq(ctx)
			if err != nil {
				return nil, err
			}
			resp, err := c.http.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= 500 {
				return nil, &statusError{status: resp.StatusCode}
			}
			return &response{status: resp.StatusCode, body: body}, nil
		})
	})
	if err == nil && res.status >= 400 {
		err = &statusError{status: res.status}
	}
	metrics.ConnectorRequestsTotal.WithLabelValues(endpoint, metrics.Outcome(err)).Inc()
	return res, err
}

func (c *Client) url(endpoint string, extra ...string) string {
	parts := append([]string{
		strings.TrimRight(c.cfg.URL, "/"),
		strings.TrimLeft(endpoint, "/"),
	}, extra...)
	return strings.Join(parts, "/")
}

func getRequest(url, accept string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", accept)
		return req, nil
	}
}

// CanConnect reports whether the catalogue answers its test endpoint.
func (c *Client) CanConnect(ctx context.Context) bool {
	url := c.url(c.cfg.TestEndpoint)
	if _, err := c.do(ctx, endpointTest, getRequest(url, "application/json")); err != nil {
		c.log.Warnw("catalogue connection test failed", "url", url, "err", err)
		return false
	}
	return true
}

// GetRecord returns the XML text of the record with uuid.
func (c *Client) GetRecord(ctx context.Context, uuid string) (string, error) {
	url := c.url(c.cfg.GetRecordEndpoint, uuid)
	res, err := c.do(ctx, endpointRecord, getRequest(url, "application/xml"))
	if err != nil {
		return "", fmt.Errorf("%w: error getting record %s: %v", ErrUnavailable, uuid, err)
	}
	return string(res.body), nil
}
