package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/ThreatSentinel/internal/identity"
)

// AdminHandler exchanges the admin secret for an admin token.
type AdminHandler struct {
	auth   *identity.Authority
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(auth *identity.Authority, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{auth: auth, logger: logger}
}

// Register mounts the admin routes on the given router group.
func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/admin/token", h.IssueToken)
}

type tokenRequest struct {
	Secret string `json:"secret" binding:"required"`
}

// IssueToken handles POST /admin/token.
func (h *AdminHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if h.auth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": identity.ErrAuthDisabled.Error()})
		return
	}

	token, exp, err := h.auth.Exchange(req.Secret)
	switch {
	case errors.Is(err, identity.ErrAuthDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case errors.Is(err, identity.ErrInvalidSecret):
		h.logger.Warn("admin token: invalid secret", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": exp})
}
