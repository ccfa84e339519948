package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/ThreatSentinel/internal/identity"
	"github.com/jmerrifield20/ThreatSentinel/internal/journal"
)

// SecurityLogHandler exposes the security event journal.
type SecurityLogHandler struct {
	journal journal.Journal
	auth    *identity.Authority
	logger  *zap.Logger
}

// NewSecurityLogHandler creates a SecurityLogHandler. auth guards appends.
func NewSecurityLogHandler(j journal.Journal, auth *identity.Authority, logger *zap.Logger) *SecurityLogHandler {
	return &SecurityLogHandler{journal: j, auth: auth, logger: logger}
}

// Register mounts the security log routes on the given router group.
func (h *SecurityLogHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/security-logs")
	{
		l.GET("", h.List)
		l.GET("/verify", h.Verify)
		l.POST("", identity.RequireAdmin(h.auth), h.Append)
	}
}

type appendRequest struct {
	EventType string `json:"event_type" binding:"required"`
	Details   string `json:"details"`
	Severity  string `json:"severity" binding:"required"`
}

// Append handles POST /security-logs: records a security event.
func (h *SecurityLogHandler) Append(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	entry, err := h.journal.Append(c.Request.Context(), journal.Record{
		EventType: req.EventType,
		Details:   req.Details,
		Severity:  req.Severity,
	})
	if err != nil {
		if errors.Is(err, journal.ErrInvalidRecord) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("journal append", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record event"})
		return
	}
	RecordJournalAppend()
	c.JSON(http.StatusCreated, entry)
}

// List handles GET /security-logs: returns every recorded event.
func (h *SecurityLogHandler) List(c *gin.Context) {
	entries, err := h.journal.List(c.Request.Context())
	if err != nil {
		h.logger.Error("journal list", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list security logs"})
		return
	}
	root, _ := h.journal.Root(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"logs": entries, "count": len(entries), "root": root})
}

// Verify handles GET /security-logs/verify: walks the chain.
func (h *SecurityLogHandler) Verify(c *gin.Context) {
	if err := h.journal.Verify(c.Request.Context()); err != nil {
		h.logger.Warn("security journal integrity check failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}
