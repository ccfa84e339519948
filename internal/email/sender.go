// Package email delivers alert notifications by mail.
package email

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers a plain-text message to one or more recipients.
type Sender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// Config holds SMTP settings. An empty Host selects the NoopSender.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// New returns an SMTPSender when cfg.Host is set and a NoopSender otherwise.
func New(cfg Config, logger *zap.Logger) Sender {
	if cfg.Host == "" {
		return NewNoopSender(logger)
	}
	return NewSMTPSender(cfg)
}
