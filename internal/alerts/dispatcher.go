// Package alerts fans high-severity detections out to webhook endpoints and
// email recipients.
package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmerrifield20/ThreatSentinel/internal/email"
	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Sentinel-Signature"

// Config holds alert dispatch configuration.
type Config struct {
	WebhookURLs []string
	Secret      string
	MinSeverity threat.Severity
	EmailTo     []string

	// RetryDelays are waited before the second and later attempts. The number
	// of attempts is len(RetryDelays)+1.
	RetryDelays []time.Duration

	// Concurrency caps in-flight webhook deliveries per batch (default 8).
	Concurrency int
}

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Dispatcher delivers alerts asynchronously. Call Wait during shutdown to
// let in-flight deliveries finish.
type Dispatcher struct {
	cfg        Config
	httpClient *http.Client
	mailer     email.Sender
	onMetrics  MetricsRecorder
	wg         sync.WaitGroup
	logger     *zap.Logger
}

// New creates a Dispatcher. mailer may be nil to disable email.
func New(cfg Config, mailer email.Sender, logger *zap.Logger) *Dispatcher {
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = threat.SeverityHigh
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.RetryDelays == nil {
		cfg.RetryDelays = []time.Duration{time.Second, 5 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		mailer:     mailer,
		logger:     logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (d *Dispatcher) SetMetricsRecorder(fn MetricsRecorder) {
	d.onMetrics = fn
}

// NotifyDetections raises one alert per threat result at or above the
// configured minimum severity. events and results must be index-aligned.
// It returns the alerts that were queued.
func (d *Dispatcher) NotifyDetections(ctx context.Context, events []threat.Event, results []threat.DetectionResult) []Alert {
	var queued []Alert
	for i, r := range results {
		if !r.IsThreat || r.Severity.Rank() < d.cfg.MinSeverity.Rank() {
			continue
		}
		a := Alert{
			ID:         uuid.New(),
			Type:       EventThreatDetected,
			Timestamp:  time.Now().UTC(),
			Category:   r.Category,
			Severity:   r.Severity,
			Confidence: r.Confidence,
			Details:    r.Details,
		}
		if i < len(events) {
			a.Source = events[i].Source
		}
		queued = append(queued, a)
	}
	if len(queued) == 0 {
		return nil
	}

	// Deliveries outlive the request that triggered them.
	ctx = context.WithoutCancel(ctx)
	d.dispatch(ctx, queued)
	d.mail(ctx, queued)
	return queued
}

// Dispatch sends a to every configured webhook in the background.
func (d *Dispatcher) Dispatch(ctx context.Context, a Alert) {
	d.dispatch(ctx, []Alert{a})
}

// dispatch delivers every alert to every webhook from a single background
// goroutine, with at most cfg.Concurrency deliveries in flight.
func (d *Dispatcher) dispatch(ctx context.Context, batch []Alert) {
	if len(d.cfg.WebhookURLs) == 0 || len(batch) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		var g errgroup.Group
		g.SetLimit(d.cfg.Concurrency)
		for _, a := range batch {
			body, err := json.Marshal(a)
			if err != nil {
				d.logger.Error("alerts: marshal alert", zap.String("alert_id", a.ID.String()), zap.Error(err))
				continue
			}
			for _, u := range d.cfg.WebhookURLs {
				a, u := a, u
				g.Go(func() error {
					d.deliver(ctx, a.ID, u, body)
					return nil
				})
			}
		}
		_ = g.Wait()
	}()
}

// Wait blocks until every queued delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// deliver posts body to url, retrying with the configured delays.
func (d *Dispatcher) deliver(ctx context.Context, alertID uuid.UUID, url string, body []byte) *Delivery {
	signature := signPayload(body, d.cfg.Secret)
	attempts := len(d.cfg.RetryDelays) + 1

	var last *Delivery
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(d.cfg.RetryDelays[attempt-2]):
			case <-ctx.Done():
				return last
			}
		}

		status, errMsg := d.post(ctx, url, body, signature)
		last = &Delivery{
			AlertID:    alertID,
			URL:        url,
			StatusCode: status,
			Attempt:    attempt,
			Success:    errMsg == "",
			Error:      errMsg,
		}
		if d.onMetrics != nil {
			d.onMetrics(last.Success)
		}
		if last.Success {
			return last
		}

		d.logger.Warn("alerts: delivery failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.String("error", errMsg),
		)
	}
	return last
}

// post performs a single delivery and returns the status code and an error
// message, which is empty on success.
func (d *Dispatcher) post(ctx context.Context, url string, body []byte, signature string) (int, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err.Error()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, ""
}

// mail sends a single digest of alerts to the configured recipients.
func (d *Dispatcher) mail(ctx context.Context, alerts []Alert) {
	if d.mailer == nil || len(d.cfg.EmailTo) == 0 {
		return
	}
	subject := fmt.Sprintf("[sentinel] %d %s detection(s)", len(alerts), highest(alerts))

	var b strings.Builder
	for _, a := range alerts {
		fmt.Fprintf(&b, "%s  %-8s  %.2f  %s  (source %s)\n",
			a.Timestamp.Format(time.RFC3339), a.Severity, a.Confidence, a.Details, a.Source)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.mailer.Send(ctx, d.cfg.EmailTo, subject, b.String()); err != nil {
			d.logger.Warn("alerts: email failed", zap.Error(err))
		}
	}()
}

func highest(alerts []Alert) threat.Severity {
	top := threat.SeverityNone
	for _, a := range alerts {
		if a.Severity.Rank() > top.Rank() {
			top = a.Severity
		}
	}
	return top
}

// signPayload computes the HMAC-SHA256 signature, or "" without a secret.
func signPayload(body []byte, secret string) string {
	if secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under secret.
// Receivers can use it to authenticate deliveries.
func VerifySignature(body []byte, secret, signature string) bool {
	expected := signPayload(body, secret)
	return expected != "" && hmac.Equal([]byte(expected), []byte(signature))
}
