// Package reputation looks up IP addresses against an AbuseIPDB-compatible
// threat intelligence API. The Client implements threat.Analyzer so the
// engine can use it to corroborate ambiguous findings.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

// ProviderName identifies verdicts produced by this client.
const ProviderName = "abuseipdb"

// ThreatScoreThreshold is the abuse confidence score at or above which an IP
// is considered malicious.
const ThreatScoreThreshold = 50

// ErrInvalidIP is returned by Lookup for a value that is not an IP address.
var ErrInvalidIP = errors.New("invalid IP address")

// Config holds reputation client configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	CacheTTL   time.Duration
	MaxAgeDays int
}

// checkResponse is the subset of the check endpoint response we use.
type checkResponse struct {
	Data struct {
		IPAddress            string `json:"ipAddress"`
		AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
		TotalReports         int    `json:"totalReports"`
		CountryCode          string `json:"countryCode"`
		IsWhitelisted        bool   `json:"isWhitelisted"`
	} `json:"data"`
}

// MetricsRecordFunc is an optional callback invoked after each lookup with
// one of "hit", "success", "failure" or "rejected".
type MetricsRecordFunc func(outcome string)

// StateChangeFunc is an optional callback invoked on circuit breaker
// transitions.
type StateChangeFunc func(name string, from, to string)

// Client queries the reputation API through a TTL cache and circuit breaker.
type Client struct {
	baseURL    string
	apiKey     string
	maxAgeDays int
	http       *http.Client
	cb         *gobreaker.CircuitBreaker[*threat.Verdict]
	cache      *verdictCache
	onMetrics  MetricsRecordFunc
	onState    StateChangeFunc
	onSize     func(int)
	logger     *zap.Logger
}

// New creates a Client targeting cfg.BaseURL.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = 90
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxAgeDays: cfg.MaxAgeDays,
		http:       &http.Client{Timeout: cfg.Timeout},
		cache:      newVerdictCache(cfg.CacheTTL),
		logger:     logger,
	}

	c.cb = gobreaker.NewCircuitBreaker[*threat.Verdict](gobreaker.Settings{
		Name:        "reputation-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Client errors mean the request was wrong, not that the upstream is down.
		IsSuccessful: func(err error) bool {
			var ext *threat.ExternalCallError
			if errors.As(err, &ext) {
				return ext.Code >= 400 && ext.Code < 500 && ext.Code != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("reputation: circuit state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if c.onState != nil {
				c.onState(name, from.String(), to.String())
			}
		},
	})
	return c
}

// SetMetricsRecord configures the lookup outcome callback.
func (c *Client) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// SetStateChange configures the circuit breaker transition callback.
func (c *Client) SetStateChange(fn StateChangeFunc) {
	c.onState = fn
}

// SetCacheSizeRecord configures a callback that receives the cache size after
// every eviction sweep.
func (c *Client) SetCacheSizeRecord(fn func(int)) {
	c.onSize = fn
}

// Analyze implements threat.Analyzer by looking up the event source. Sources
// that are not IP addresses yield no verdict.
func (c *Client) Analyze(ctx context.Context, ev threat.Event) (*threat.Verdict, error) {
	if net.ParseIP(ev.Source) == nil {
		return nil, nil
	}
	return c.Lookup(ctx, ev.Source)
}

// Lookup returns the reputation verdict for ip. Upstream failures are
// returned as *threat.ExternalCallError and are never retried here.
func (c *Client) Lookup(ctx context.Context, ip string) (*threat.Verdict, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	key := parsed.String()

	if v, ok := c.cache.get(key); ok {
		c.record("hit")
		return v, nil
	}

	v, err := c.cb.Execute(func() (*threat.Verdict, error) {
		return c.check(ctx, key)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.record("rejected")
			return nil, &threat.ExternalCallError{
				Code:    http.StatusServiceUnavailable,
				Message: "reputation service unavailable: " + err.Error(),
			}
		}
		c.record("failure")
		c.logger.Warn("reputation: lookup failed", zap.String("ip", key), zap.Error(err))
		return nil, err
	}

	c.record("success")
	c.cache.set(key, v)
	return v, nil
}

func (c *Client) check(ctx context.Context, ip string) (*threat.Verdict, error) {
	u, err := url.Parse(c.baseURL + "/api/v2/check")
	if err != nil {
		return nil, &threat.ExternalCallError{Code: 0, Message: "build check URL: " + err.Error()}
	}
	q := u.Query()
	q.Set("ipAddress", ip)
	q.Set("maxAgeInDays", strconv.Itoa(c.maxAgeDays))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &threat.ExternalCallError{Code: 0, Message: "build check request: " + err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &threat.ExternalCallError{Code: http.StatusBadGateway, Message: "check request: " + err.Error()}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &threat.ExternalCallError{Code: http.StatusBadGateway, Message: "read check response: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &threat.ExternalCallError{Code: resp.StatusCode, Message: excerpt(body)}
	}

	var out checkResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &threat.ExternalCallError{Code: http.StatusBadGateway, Message: "decode check response: " + err.Error()}
	}

	d := out.Data
	return &threat.Verdict{
		Provider: ProviderName,
		Subject:  ip,
		IsThreat: !d.IsWhitelisted && d.AbuseConfidenceScore >= ThreatScoreThreshold,
		Score:    d.AbuseConfidenceScore,
		Summary:  fmt.Sprintf("%d reports, abuse confidence %d%%", d.TotalReports, d.AbuseConfidenceScore),
	}, nil
}

func (c *Client) record(outcome string) {
	if c.onMetrics != nil {
		c.onMetrics(outcome)
	}
}

// excerpt trims an upstream error body for inclusion in an error message.
func excerpt(body []byte) string {
	const limit = 200
	if len(body) == 0 {
		return "empty response"
	}
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// StartCacheEviction sweeps expired verdicts every interval until ctx is done.
func (c *Client) StartCacheEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := c.cache.evict(); n > 0 {
					c.logger.Debug("reputation: evicted cached verdicts", zap.Int("count", n))
				}
				if c.onSize != nil {
					c.onSize(c.CacheLen())
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// CacheLen returns the number of cached verdicts, including expired ones.
func (c *Client) CacheLen() int {
	return c.cache.len()
}
