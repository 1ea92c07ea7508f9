// Package platform adapts the monitored platform's REST record API to the
// engine's collaborator interfaces:
//
//	Client     domain.RecordClient (rate-limited, circuit-broken)
//	Signals    detector.SignalSource and rootcause.EvidenceSource
//	Collector  domain.MetricsCollector (platform signals + host probe)
//	Runner     domain.RemediationRunner
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/infra/healing"
	"github.com/tutu-network/vitals/internal/infra/metrics"
)

// tableAPI is the platform's record endpoint prefix.
const tableAPI = "/api/now/table/"

// ClientConfig configures the record client.
type ClientConfig struct {
	BaseURL   string        // e.g. https://acme.example.com
	Username  string        // basic auth
	Password  string        // basic auth
	Timeout   time.Duration // per request (default 30s)
	RateLimit float64       // requests per second (default 10, <0 disables)
	Burst     int           // default 20
	Breaker   healing.BreakerConfig
}

// DefaultClientConfig returns production defaults without a base URL.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:   30 * time.Second,
		RateLimit: 10,
		Burst:     20,
		Breaker:   healing.DefaultBreakerConfig(),
	}
}

// Client talks to the platform's table API.
type Client struct {
	cfg     ClientConfig
	base    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *healing.CircuitBreaker
	log     *zap.Logger
}

// NewClient creates a record client. The base URL must be absolute.
func NewClient(cfg ClientConfig, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("platform: invalid base url %q: %w", cfg.BaseURL, domain.ErrInvalidParams)
	}
	def := DefaultClientConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker = def.Breaker
	}

	c := &Client{
		cfg:     cfg,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: healing.NewCircuitBreaker(u.Host, cfg.Breaker, nil),
		log:     log.Named("platform"),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	return c, nil
}

// Breaker exposes the client's circuit breaker state.
func (c *Client) Breaker() healing.Snapshot {
	return c.breaker.Snapshot()
}

// ─── domain.RecordClient ────────────────────────────────────────────────────

// CreateRecord inserts rec into table and returns the stored record.
func (c *Client) CreateRecord(ctx context.Context, table string, rec domain.Record) (domain.Record, error) {
	resp, err := c.Request(ctx, domain.ResourceRequest{
		Method: http.MethodPost,
		Path:   tableAPI + url.PathEscape(table),
		Body:   rec,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s record: %w", table, err)
	}
	var out struct {
		Result domain.Record `json:"result"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("create %s record: decode: %w", table, err)
	}
	return out.Result, nil
}

// GetRecord fetches one record. Returns domain.ErrNotFound on 404.
func (c *Client) GetRecord(ctx context.Context, table, id string) (domain.Record, error) {
	resp, err := c.Request(ctx, domain.ResourceRequest{
		Method: http.MethodGet,
		Path:   tableAPI + url.PathEscape(table) + "/" + url.PathEscape(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	var out struct {
		Result domain.Record `json:"result"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("get %s/%s: decode: %w", table, id, err)
	}
	return out.Result, nil
}

// Request performs a raw call. Non-2xx replies become errors; 404 wraps
// domain.ErrNotFound. 5xx replies and transport errors count against the
// circuit breaker.
func (c *Client) Request(ctx context.Context, r domain.ResourceRequest) (domain.ResourceResponse, error) {
	if err := c.breaker.Allow(); err != nil {
		return domain.ResourceResponse{}, fmt.Errorf("platform: %w", err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.ResourceResponse{}, fmt.Errorf("platform: rate limit: %w", err)
		}
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return domain.ResourceResponse{}, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.PlatformLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.breaker.RecordFailure()
		metrics.PlatformRequests.WithLabelValues(req.Method, "error").Inc()
		return domain.ResourceResponse{}, fmt.Errorf("platform: %s %s: %w", req.Method, r.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	metrics.PlatformRequests.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()
	if err != nil {
		c.breaker.RecordFailure()
		return domain.ResourceResponse{}, fmt.Errorf("platform: read %s: %w", r.Path, err)
	}

	out := domain.ResourceResponse{Status: resp.StatusCode, Body: body}
	switch {
	case resp.StatusCode >= 500:
		c.breaker.RecordFailure()
		return out, fmt.Errorf("platform: %s %s: status %d: %s", req.Method, r.Path, resp.StatusCode, truncate(body))
	case resp.StatusCode == http.StatusNotFound:
		c.breaker.RecordSuccess()
		return out, fmt.Errorf("platform: %s %s: %w", req.Method, r.Path, domain.ErrNotFound)
	case resp.StatusCode >= 300:
		c.breaker.RecordSuccess()
		return out, fmt.Errorf("platform: %s %s: status %d: %s", req.Method, r.Path, resp.StatusCode, truncate(body))
	}
	c.breaker.RecordSuccess()
	return out, nil
}

// Query lists records of table matching an encoded query, newest first.
func (c *Client) Query(ctx context.Context, table, query string, limit int) ([]domain.Record, error) {
	return queryTable(ctx, c, table, query, limit)
}

func (c *Client) newRequest(ctx context.Context, r domain.ResourceRequest) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	u := c.base + r.Path
	if len(r.Query) > 0 {
		q := url.Values{}
		for k, v := range r.Query {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("platform: encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("platform: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	return req, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// queryTable lists records through any RecordClient.
func queryTable(ctx context.Context, rc domain.RecordClient, table, query string, limit int) ([]domain.Record, error) {
	q := map[string]string{"sysparm_query": query}
	if limit > 0 {
		q["sysparm_limit"] = strconv.Itoa(limit)
	}
	resp, err := rc.Request(ctx, domain.ResourceRequest{
		Method: http.MethodGet,
		Path:   tableAPI + url.PathEscape(table),
		Query:  q,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	var out struct {
		Result []domain.Record `json:"result"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("query %s: decode: %w", table, err)
	}
	return out.Result, nil
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

// timeLayout is the platform's datetime format (UTC).
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func str(rec domain.Record, key string) string {
	switch v := rec[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		// Reference fields come back as {"value": ..., "display_value": ...}.
		if dv, ok := v["display_value"].(string); ok && dv != "" {
			return dv
		}
		if val, ok := v["value"].(string); ok {
			return val
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func num(rec domain.Record, key string) float64 {
	switch v := rec[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(str(rec, key)), 64)
		if err != nil {
			return 0
		}
		return f
	}
}

func timestamp(rec domain.Record, key string) time.Time {
	s := str(rec, key)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation(timeLayout, s, time.UTC); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
