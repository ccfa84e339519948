package identity_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jmerrifield20/ThreatSentinel/internal/identity"
)

var testKey = []byte(strings.Repeat("k", identity.MinSigningKeyLen))

func newAuthority(t *testing.T, secret string) *identity.Authority {
	t.Helper()
	var hash string
	if secret != "" {
		h, err := identity.HashSecret(secret)
		if err != nil {
			t.Fatal(err)
		}
		hash = h
	}
	a, err := identity.NewAuthority(identity.AuthorityConfig{SecretHash: hash, SigningKey: testKey})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestNewAuthority_validation(t *testing.T) {
	if _, err := identity.NewAuthority(identity.AuthorityConfig{SigningKey: []byte("short")}); err == nil {
		t.Error("expected error for short signing key")
	}
	if _, err := identity.NewAuthority(identity.AuthorityConfig{SigningKey: testKey, SecretHash: "plaintext"}); err == nil {
		t.Error("expected error for non-bcrypt secret hash")
	}
}

func TestExchange(t *testing.T) {
	a := newAuthority(t, "correct horse")

	tok, exp, err := a.Exchange("correct horse")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if time.Until(exp) < 7*time.Hour {
		t.Errorf("expiry %v too soon", exp)
	}

	claims, err := a.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Role != "admin" || claims.Subject != "admin" || claims.ID == "" {
		t.Errorf("claims = %+v", claims)
	}

	if _, _, err := a.Exchange("wrong"); !errors.Is(err, identity.ErrInvalidSecret) {
		t.Errorf("wrong secret err = %v", err)
	}
}

func TestExchange_disabled(t *testing.T) {
	a := newAuthority(t, "")
	if a.Enabled() {
		t.Error("Enabled with no secret hash")
	}
	if _, _, err := a.Exchange("anything"); !errors.Is(err, identity.ErrAuthDisabled) {
		t.Errorf("err = %v, want ErrAuthDisabled", err)
	}
}

func TestVerify_rejectsForeignTokens(t *testing.T) {
	a := newAuthority(t, "s")

	other, _ := identity.NewAuthority(identity.AuthorityConfig{SigningKey: []byte(strings.Repeat("x", 32))})
	foreign, _, _ := other.IssueAdminToken()
	if _, err := a.Verify(foreign); err == nil {
		t.Error("token signed with another key verified")
	}

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, identity.AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "threat-sentinel"},
		Role:             "admin",
	})
	signed, _ := noExp.SignedString(testKey)
	if _, err := a.Verify(signed); err == nil {
		t.Error("token without expiry verified")
	}

	if _, err := a.Verify("not-a-jwt"); err == nil {
		t.Error("garbage verified")
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := newAuthority(t, "s")
	good, _, _ := a.IssueAdminToken()
	disabled := newAuthority(t, "")

	userTok := jwt.NewWithClaims(jwt.SigningMethodHS256, identity.AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "threat-sentinel",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "viewer",
	})
	viewer, _ := userTok.SignedString(testKey)

	tests := []struct {
		name   string
		auth   *identity.Authority
		header string
		want   int
	}{
		{"valid", a, "Bearer " + good, http.StatusOK},
		{"missing", a, "", http.StatusUnauthorized},
		{"not bearer", a, "Basic abc", http.StatusUnauthorized},
		{"invalid", a, "Bearer nope", http.StatusUnauthorized},
		{"wrong role", a, "Bearer " + viewer, http.StatusForbidden},
		{"not configured", nil, "Bearer " + good, http.StatusServiceUnavailable},
		{"no admin secret", disabled, "Bearer " + good, http.StatusServiceUnavailable},
		{"no admin secret, no token", disabled, "", http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", identity.RequireAdmin(tc.auth), func(c *gin.Context) {
				if identity.AdminClaimsFromCtx(c) == nil {
					t.Error("claims not set in context")
				}
				c.Status(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}
