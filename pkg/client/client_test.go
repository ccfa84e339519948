package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmerrifield20/ThreatSentinel/pkg/client"
)

func newStub(t *testing.T, h http.HandlerFunc) *client.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return client.MustNew(srv.URL)
}

func TestNew_InvalidBase(t *testing.T) {
	if _, err := client.New("not a url"); err == nil {
		t.Error("expected error for invalid base URL")
	}
	if _, err := client.New("http://localhost", client.WithTimeout(0)); err == nil {
		t.Error("expected error for zero timeout")
	}
}

func TestClassify(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/threats/classify" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var events []client.Event
		if err := json.NewDecoder(r.Body).Decode(&events); err != nil || len(events) != 1 {
			t.Errorf("bad body: %v (%d events)", err, len(events))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"is_threat":true,"category":"Malware","severity":"MEDIUM","confidence":0.85,"details":"Malware: malware in x"}],"count":1}`))
	})

	res, err := c.Classify(context.Background(), []client.Event{{Message: "malware", Source: "10.0.0.1"}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Count != 1 || !res.Results[0].IsThreat || res.Results[0].Category != "Malware" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestAPIError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"missing bearer token"}`, client.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, `{"error":"admin role required"}`, client.ErrUnauthorized},
		{"not found", http.StatusNotFound, `404 page not found`, client.ErrNotFound},
		{"upstream", http.StatusBadGateway, `{"error":"external call failed","upstream_code":429,"message":"slow down"}`, client.ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newStub(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Stats(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var apiErr *client.APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.status {
				t.Fatalf("expected *APIError with status %d, got %v", tt.status, err)
			}
		})
	}
}

func TestAPIError_UpstreamCode(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"external call failed","upstream_code":429,"message":"slow down"}`))
	})
	_, err := c.Reputation(context.Background(), "1.2.3.4")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.UpstreamCode != 429 || apiErr.Message != "external call failed: slow down" {
		t.Errorf("unexpected error fields: %+v", apiErr)
	}
}

func TestLogin_AttachesToken(t *testing.T) {
	var resetAuth string
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/admin/token":
			_, _ = w.Write([]byte(`{"token":"tok-123","expires_at":"2030-01-01T00:00:00Z"}`))
		case "/api/v1/threats/reset":
			resetAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"status":"reset"}`))
		default:
			http.NotFound(w, r)
		}
	})

	tok, err := c.Login(context.Background(), "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok.Token != "tok-123" {
		t.Errorf("token = %q", tok.Token)
	}
	if err := c.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if resetAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want Bearer tok-123", resetAuth)
	}
}

func TestReputation_Cache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"provider":"abuseipdb","subject":"1.2.3.4","is_threat":true,"score":90}`))
	}))
	t.Cleanup(srv.Close)

	c := client.MustNew(srv.URL, client.WithReputationCacheTTL(time.Minute))
	for i := 0; i < 3; i++ {
		v, err := c.Reputation(context.Background(), "1.2.3.4")
		if err != nil {
			t.Fatalf("Reputation: %v", err)
		}
		if !v.IsThreat || v.Score != 90 {
			t.Errorf("unexpected verdict: %+v", v)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server calls = %d, want 1", n)
	}
}

func TestScanNetwork(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Target string `json:"target"`
			From   uint16 `json:"from"`
			To     uint16 `json:"to"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Target != "127.0.0.1" || body.From != 20 || body.To != 25 {
			t.Errorf("unexpected body: %+v", body)
		}
		_, _ = w.Write([]byte(`{"target":"127.0.0.1","open_ports":[22],"services":["Unknown service on port 22"]}`))
	})

	scan, err := c.ScanNetwork(context.Background(), "127.0.0.1", 20, 25)
	if err != nil {
		t.Fatalf("ScanNetwork: %v", err)
	}
	if len(scan.OpenPorts) != 1 || scan.OpenPorts[0] != 22 {
		t.Errorf("unexpected scan: %+v", scan)
	}
}

func TestSecurityLogs(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/security-logs":
			_, _ = w.Write([]byte(`{"logs":[{"index":1,"event_type":"login","details":"ok","severity":"LOW"}],"count":1,"root":"abc"}`))
		case "/api/v1/security-logs/verify":
			_, _ = w.Write([]byte(`{"valid":true}`))
		}
	})

	list, err := c.SecurityLogs(context.Background())
	if err != nil {
		t.Fatalf("SecurityLogs: %v", err)
	}
	if list.Count != 1 || list.Logs[0].EventType != "login" || list.Root != "abc" {
		t.Errorf("unexpected list: %+v", list)
	}
	v, err := c.VerifySecurityLogs(context.Background())
	if err != nil || !v.Valid {
		t.Errorf("Verify = %+v, %v", v, err)
	}
}
