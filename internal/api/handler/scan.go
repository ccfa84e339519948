package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/ThreatSentinel/internal/identity"
	"github.com/jmerrifield20/ThreatSentinel/internal/journal"
	"github.com/jmerrifield20/ThreatSentinel/internal/probe"
)

// portScanner is implemented by *probe.Scanner.
type portScanner interface {
	ScanPort(ctx context.Context, host string, port uint16) (*probe.ScanResult, error)
	ScanRange(ctx context.Context, target string, from, to uint16) (*probe.NetworkScan, error)
}

// ScanHandler exposes the port probe. All routes require an admin token.
type ScanHandler struct {
	scanner portScanner
	auth    *identity.Authority
	audit   journal.Journal
	logger  *zap.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(scanner portScanner, auth *identity.Authority, logger *zap.Logger) *ScanHandler {
	return &ScanHandler{scanner: scanner, auth: auth, logger: logger}
}

// SetAuditJournal records every scan in j.
func (h *ScanHandler) SetAuditJournal(j journal.Journal) {
	h.audit = j
}

// Register mounts the scan routes on the given router group.
func (h *ScanHandler) Register(rg *gin.RouterGroup) {
	s := rg.Group("/scan")
	s.Use(identity.RequireAdmin(h.auth))
	{
		s.POST("", h.ScanNetwork)
		s.GET("/:ip/:port", h.ScanPort)
	}
}

type scanRequest struct {
	Target string `json:"target" binding:"required"`
	From   uint16 `json:"from" binding:"required"`
	To     uint16 `json:"to" binding:"required"`
}

// ScanNetwork handles POST /scan: probes a port range on one target.
func (h *ScanHandler) ScanNetwork(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	scan, err := h.scanner.ScanRange(c.Request.Context(), req.Target, req.From, req.To)
	if err != nil {
		if errors.Is(err, probe.ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		writeError(c, h.logger, "scan network", err)
		return
	}

	h.record(c, fmt.Sprintf("scanned %s ports %d-%d: %d open", req.Target, req.From, req.To, len(scan.OpenPorts)))
	c.JSON(http.StatusOK, scan)
}

// ScanPort handles GET /scan/:ip/:port: probes a single port.
func (h *ScanHandler) ScanPort(c *gin.Context) {
	port, err := strconv.ParseUint(c.Param("port"), 10, 16)
	if err != nil || port == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "port must be an integer between 1 and 65535"})
		return
	}

	res, err := h.scanner.ScanPort(c.Request.Context(), c.Param("ip"), uint16(port))
	if err != nil {
		if errors.Is(err, probe.ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		writeError(c, h.logger, "scan port", err)
		return
	}

	h.record(c, fmt.Sprintf("probed %s:%d open=%t", c.Param("ip"), port, res.Open))
	c.JSON(http.StatusOK, res)
}

func (h *ScanHandler) record(c *gin.Context, details string) {
	if h.audit == nil {
		return
	}
	rec := journal.Record{EventType: "port_scan", Details: details, Severity: "INFO"}
	if _, err := h.audit.Append(c.Request.Context(), rec); err != nil {
		h.logger.Warn("audit port scan", zap.Error(err))
		return
	}
	RecordJournalAppend()
}
