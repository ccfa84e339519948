package email

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_selectsSender(t *testing.T) {
	if _, ok := New(Config{}, zap.NewNop()).(*NoopSender); !ok {
		t.Error("empty host should select NoopSender")
	}
	s, ok := New(Config{Host: "smtp.example.com"}, zap.NewNop()).(*SMTPSender)
	if !ok {
		t.Fatal("host set should select SMTPSender")
	}
	if s.cfg.Port != 587 {
		t.Errorf("default port = %d, want 587", s.cfg.Port)
	}
}

func TestNoopSender(t *testing.T) {
	if err := NewNoopSender(nil).Send(context.Background(), []string{"a@example.com"}, "s", "b"); err != nil {
		t.Errorf("Send: %v", err)
	}
}

func TestSMTPSender_noRecipients(t *testing.T) {
	if err := NewSMTPSender(Config{Host: "localhost"}).Send(context.Background(), nil, "s", "b"); err == nil {
		t.Error("expected error with no recipients")
	}
}

func TestCompose(t *testing.T) {
	msg := string(compose("sentinel@example.com", []string{"a@example.com", "b@example.com"},
		"CRITICAL\r\nBcc: evil@example.com", "line1\nline2"))

	if !strings.Contains(msg, "To: a@example.com, b@example.com\r\n") {
		t.Errorf("recipients header missing:\n%s", msg)
	}
	if strings.Contains(msg, "\r\nBcc:") {
		t.Errorf("header injection not neutralised:\n%s", msg)
	}
	if !strings.HasSuffix(msg, "line1\r\nline2") {
		t.Errorf("body line endings not normalised:\n%q", msg)
	}
}
