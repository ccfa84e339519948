package email

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// NoopSender logs messages instead of delivering them.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a NoopSender backed by the given logger.
func NewNoopSender(logger *zap.Logger) *NoopSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopSender{logger: logger}
}

// Send logs the message and returns nil.
func (n *NoopSender) Send(_ context.Context, to []string, subject, body string) error {
	n.logger.Info("email not sent (smtp not configured)",
		zap.String("to", strings.Join(to, ",")),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}
