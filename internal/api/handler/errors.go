package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/ThreatSentinel/internal/ingest"
	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

// writeError maps domain errors onto HTTP responses.
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	var (
		malformed *ingest.MalformedEventError
		external  *threat.ExternalCallError
	)
	switch {
	case errors.As(err, &malformed):
		body := gin.H{"error": malformed.Error()}
		if malformed.Index >= 0 {
			body["index"] = malformed.Index
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, threat.ErrInvalidEvent), errors.Is(err, threat.ErrEmptyInput),
		errors.Is(err, threat.ErrNonFinite):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &external):
		logger.Warn(op+": external call failed", zap.Int("code", external.Code), zap.String("message", external.Message))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":         "upstream service failed",
			"upstream_code": external.Code,
			"message":       external.Message,
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	case errors.Is(err, context.Canceled):
		c.AbortWithStatus(499)
	default:
		logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
