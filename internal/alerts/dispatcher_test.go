package alerts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

type capturedRequest struct {
	body      []byte
	signature string
}

func newReceiver(t *testing.T, statuses ...int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var got []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, capturedRequest{body: body, signature: r.Header.Get(SignatureHeader)})
		n := len(got)
		mu.Unlock()

		status := http.StatusOK
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), got...)
	}
}

type recordingMailer struct {
	mu      sync.Mutex
	to      []string
	subject string
	body    string
	calls   int
}

func (m *recordingMailer) Send(_ context.Context, to []string, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to, m.subject, m.body = to, subject, body
	m.calls++
	return nil
}

func detections() ([]threat.Event, []threat.DetectionResult) {
	events := []threat.Event{
		{Message: "Leaked private key found in logs", Source: "3.3.3.3"},
		{Message: "malware seen", Source: "4.4.4.4"},
		{Message: "hello", Source: "5.5.5.5"},
	}
	results := []threat.DetectionResult{
		{IsThreat: true, Category: "CryptoThreat", Severity: threat.SeverityCritical, Confidence: 0.9, Details: "CryptoThreat: private key in Leaked private key found in logs"},
		{IsThreat: true, Category: "Malware", Severity: threat.SeverityMedium, Confidence: 0.85, Details: "Malware: malware in malware seen"},
		{IsThreat: false, Category: "normal", Severity: threat.SeverityNone, Confidence: 0.95, Details: "No threat detected"},
	}
	return events, results
}

func TestNotifyDetections_filtersBySeverity(t *testing.T) {
	srv, received := newReceiver(t)
	mailer := &recordingMailer{}
	d := New(Config{
		WebhookURLs: []string{srv.URL},
		Secret:      "s3cret",
		EmailTo:     []string{"soc@example.com"},
	}, mailer, zap.NewNop())

	events, results := detections()
	queued := d.NotifyDetections(context.Background(), events, results)
	d.Wait()

	if len(queued) != 1 || queued[0].Source != "3.3.3.3" || queued[0].Severity != threat.SeverityCritical {
		t.Fatalf("queued = %+v", queued)
	}

	reqs := received()
	if len(reqs) != 1 {
		t.Fatalf("webhook received %d requests, want 1", len(reqs))
	}
	if !VerifySignature(reqs[0].body, "s3cret", reqs[0].signature) {
		t.Errorf("signature %q does not verify", reqs[0].signature)
	}
	var a Alert
	if err := json.Unmarshal(reqs[0].body, &a); err != nil {
		t.Fatal(err)
	}
	if a.Type != EventThreatDetected || a.ID == uuid.Nil || a.Category != "CryptoThreat" {
		t.Errorf("alert = %+v", a)
	}

	if mailer.calls != 1 || mailer.to[0] != "soc@example.com" {
		t.Errorf("mailer calls=%d to=%v", mailer.calls, mailer.to)
	}
	if mailer.subject != "[sentinel] 1 CRITICAL detection(s)" {
		t.Errorf("subject = %q", mailer.subject)
	}
}

func TestNotifyDetections_lowerThreshold(t *testing.T) {
	d := New(Config{MinSeverity: threat.SeverityMedium}, nil, zap.NewNop())
	events, results := detections()
	if queued := d.NotifyDetections(context.Background(), events, results); len(queued) != 2 {
		t.Errorf("queued %d alerts, want 2", len(queued))
	}
}

func TestNotifyDetections_nothingToSend(t *testing.T) {
	mailer := &recordingMailer{}
	d := New(Config{EmailTo: []string{"x@example.com"}}, mailer, zap.NewNop())
	events, results := detections()
	if queued := d.NotifyDetections(context.Background(), events[2:], results[2:]); queued != nil {
		t.Errorf("queued = %+v", queued)
	}
	d.Wait()
	if mailer.calls != 0 {
		t.Error("mailer called with nothing to report")
	}
}

func TestNotifyDetections_capsInFlightDeliveries(t *testing.T) {
	var inFlight, peak, total atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		total.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	d := New(Config{WebhookURLs: []string{srv.URL, srv.URL + "/second"}, Concurrency: 3}, nil, zap.NewNop())

	const n = 20
	events := make([]threat.Event, n)
	results := make([]threat.DetectionResult, n)
	for i := range results {
		events[i] = threat.Event{Message: "seed phrase leaked", Source: "6.6.6.6"}
		results[i] = threat.DetectionResult{IsThreat: true, Category: "CryptoThreat", Severity: threat.SeverityCritical, Confidence: 0.9}
	}

	if queued := d.NotifyDetections(context.Background(), events, results); len(queued) != n {
		t.Fatalf("queued %d alerts, want %d", len(queued), n)
	}
	d.Wait()

	if got := total.Load(); got != 2*n {
		t.Errorf("deliveries = %d, want %d", got, 2*n)
	}
	if p := peak.Load(); p > 3 {
		t.Errorf("peak in-flight deliveries = %d, want at most 3", p)
	}
}

func TestDeliver_retriesUntilSuccess(t *testing.T) {
	srv, received := newReceiver(t, http.StatusInternalServerError, http.StatusBadGateway)
	d := New(Config{RetryDelays: []time.Duration{time.Millisecond, time.Millisecond}}, nil, zap.NewNop())

	var successes, failures atomic.Int32
	d.SetMetricsRecorder(func(ok bool) {
		if ok {
			successes.Add(1)
		} else {
			failures.Add(1)
		}
	})

	del := d.deliver(context.Background(), uuid.New(), srv.URL, []byte(`{}`))
	if del == nil || !del.Success || del.Attempt != 3 {
		t.Fatalf("delivery = %+v", del)
	}
	if len(received()) != 3 {
		t.Errorf("received %d requests, want 3", len(received()))
	}
	if successes.Load() != 1 || failures.Load() != 2 {
		t.Errorf("metrics: %d ok / %d failed", successes.Load(), failures.Load())
	}
}

func TestDeliver_givesUp(t *testing.T) {
	srv, _ := newReceiver(t, 500, 500, 500, 500)
	d := New(Config{RetryDelays: []time.Duration{time.Millisecond}}, nil, zap.NewNop())

	del := d.deliver(context.Background(), uuid.New(), srv.URL, []byte(`{}`))
	if del.Success || del.Attempt != 2 || del.StatusCode != 500 || del.Error != "HTTP 500" {
		t.Errorf("delivery = %+v", del)
	}
}

func TestSignPayload(t *testing.T) {
	body := []byte(`{"type":"threat.detected"}`)
	sig := signPayload(body, "key")
	if len(sig) != len("sha256=")+64 {
		t.Errorf("signature = %q", sig)
	}
	if signPayload(body, "") != "" {
		t.Error("no secret should produce no signature")
	}
	if VerifySignature(body, "other", sig) {
		t.Error("signature verified under the wrong secret")
	}
}
