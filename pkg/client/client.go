package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// maxResponseBytes bounds every response body read by the client.
const maxResponseBytes = 16 << 20

// Client talks to a Threat Sentinel server.
type Client struct {
	base       string
	httpClient *http.Client
	cache      *verdictCache

	mu          sync.RWMutex
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// WithBearerToken attaches a previously issued admin token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithReputationCacheTTL caches Reputation results client-side for ttl.
func WithReputationCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		c.cache = newVerdictCache(ttl)
		return nil
	}
}

// New creates a Client for the server at base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", base)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// SetToken replaces the admin token attached to requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.bearerToken = token
	c.mu.Unlock()
}

// Login exchanges the admin secret for a token and uses it for later calls.
func (c *Client) Login(ctx context.Context, secret string) (*AdminToken, error) {
	var out AdminToken
	if err := c.call(ctx, http.MethodPost, "/api/v1/admin/token", map[string]string{"secret": secret}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Health reports whether the server answers its liveness probe.
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Classify submits events for classification.
func (c *Client) Classify(ctx context.Context, events []Event) (*BatchResult, error) {
	var out BatchResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/threats/classify", events, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analyze classifies events with external corroboration of ambiguous results.
func (c *Client) Analyze(ctx context.Context, events []Event) (*BatchResult, error) {
	var out BatchResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/threats/analyze", events, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summary returns the threat tally.
func (c *Client) Summary(ctx context.Context) (*Summary, error) {
	var out Summary
	if err := c.call(ctx, http.MethodGet, "/api/v1/threats/summary", nil, &out); err != nil {
		return nil, err
	}
	if out.Summary == nil {
		out.Summary = map[string]int{}
	}
	return &out, nil
}

// Stats returns engine state sizes.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.call(ctx, http.MethodGet, "/api/v1/threats/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reset clears engine state. Requires an admin token.
func (c *Client) Reset(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/v1/threats/reset", nil, nil)
}

// DetectAnomalies runs outlier detection over samples.
func (c *Client) DetectAnomalies(ctx context.Context, samples []float64) (*OutlierResult, error) {
	var out OutlierResult
	body := map[string][]float64{"samples": samples}
	if err := c.call(ctx, http.MethodPost, "/api/v1/anomalies/detect", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reputation looks up an IP address.
func (c *Client) Reputation(ctx context.Context, ip string) (*Verdict, error) {
	if c.cache != nil {
		if v, ok := c.cache.get(ip); ok {
			return v, nil
		}
	}
	var out Verdict
	if err := c.call(ctx, http.MethodGet, "/api/v1/reputation/"+url.PathEscape(ip), nil, &out); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.set(ip, &out)
	}
	return &out, nil
}

// ScanPort probes one TCP port. Requires an admin token.
func (c *Client) ScanPort(ctx context.Context, ip string, port uint16) (*PortResult, error) {
	var out PortResult
	path := fmt.Sprintf("/api/v1/scan/%s/%d", url.PathEscape(ip), port)
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScanNetwork probes ports from..to on target. Requires an admin token.
func (c *Client) ScanNetwork(ctx context.Context, target string, from, to uint16) (*NetworkScan, error) {
	var out NetworkScan
	body := map[string]any{"target": target, "from": from, "to": to}
	if err := c.call(ctx, http.MethodPost, "/api/v1/scan", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LogSecurityEvent appends to the security journal. Requires an admin token.
func (c *Client) LogSecurityEvent(ctx context.Context, eventType, details, severity string) (*SecurityLog, error) {
	var out SecurityLog
	body := map[string]string{"event_type": eventType, "details": details, "severity": severity}
	if err := c.call(ctx, http.MethodPost, "/api/v1/security-logs", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SecurityLogs returns the security journal.
func (c *Client) SecurityLogs(ctx context.Context) (*SecurityLogList, error) {
	var out SecurityLogList
	if err := c.call(ctx, http.MethodGet, "/api/v1/security-logs", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifySecurityLogs asks the server to verify the journal hash chain.
func (c *Client) VerifySecurityLogs(ctx context.Context) (*Verification, error) {
	var out Verification
	if err := c.call(ctx, http.MethodGet, "/api/v1/security-logs/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call encodes in as the JSON body, performs the request and decodes the
// response into out. Either may be nil.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes an HTTP request, attaching the Bearer token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	c.mu.RLock()
	token := c.bearerToken
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, body)
	}
	return body, nil
}

func apiError(status int, body []byte) error {
	var payload struct {
		Error        string `json:"error"`
		Message      string `json:"message"`
		UpstreamCode int    `json:"upstream_code"`
	}
	e := &APIError{StatusCode: status}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		e.Message = payload.Error
		if payload.Message != "" {
			e.Message += ": " + payload.Message
		}
		e.UpstreamCode = payload.UpstreamCode
	} else {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
	}
	return e
}

// --- simple in-memory reputation cache ---

type cacheEntry struct {
	verdict   Verdict
	expiresAt time.Time
}

type verdictCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

func newVerdictCache(ttl time.Duration) *verdictCache {
	return &verdictCache{entries: make(map[string]*cacheEntry), ttl: ttl}
}

func (vc *verdictCache) get(key string) (*Verdict, bool) {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	e, ok := vc.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	v := e.verdict
	return &v, true
}

func (vc *verdictCache) set(key string, v *Verdict) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.entries[key] = &cacheEntry{verdict: *v, expiresAt: time.Now().Add(vc.ttl)}
}
