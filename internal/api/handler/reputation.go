package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/ThreatSentinel/internal/reputation"
	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

// reputationLookup is implemented by *reputation.Client.
type reputationLookup interface {
	Lookup(ctx context.Context, ip string) (*threat.Verdict, error)
}

// ReputationHandler exposes IP reputation lookups.
type ReputationHandler struct {
	client reputationLookup
	logger *zap.Logger
}

// NewReputationHandler creates a ReputationHandler.
func NewReputationHandler(client reputationLookup, logger *zap.Logger) *ReputationHandler {
	return &ReputationHandler{client: client, logger: logger}
}

// Register mounts the reputation routes on the given router group.
func (h *ReputationHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/reputation/:ip", h.Lookup)
}

// Lookup handles GET /reputation/:ip.
func (h *ReputationHandler) Lookup(c *gin.Context) {
	v, err := h.client.Lookup(c.Request.Context(), c.Param("ip"))
	if err != nil {
		if errors.Is(err, reputation.ErrInvalidIP) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		writeError(c, h.logger, "reputation lookup", err)
		return
	}
	c.JSON(http.StatusOK, v)
}
