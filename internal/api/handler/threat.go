package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/ThreatSentinel/internal/alerts"
	"github.com/jmerrifield20/ThreatSentinel/internal/identity"
	"github.com/jmerrifield20/ThreatSentinel/internal/ingest"
	"github.com/jmerrifield20/ThreatSentinel/internal/journal"
	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

// detector is the subset of *threat.Engine used by ThreatHandler.
type detector interface {
	ClassifyBatch(events []threat.Event) ([]threat.DetectionResult, error)
	Analyze(ctx context.Context, events []threat.Event) ([]threat.EnrichedResult, error)
	Summarize() map[string]int
	Reset()
	DetectOutliers(samples []float64) (*threat.OutlierResult, error)
	Stats() threat.Stats
}

// detectionNotifier is implemented by *alerts.Dispatcher.
type detectionNotifier interface {
	NotifyDetections(ctx context.Context, events []threat.Event, results []threat.DetectionResult) []alerts.Alert
}

// ThreatHandler exposes the detection engine over HTTP.
type ThreatHandler struct {
	engine   detector
	auth     *identity.Authority
	notifier detectionNotifier
	audit    journal.Journal
	logger   *zap.Logger
}

// NewThreatHandler creates a ThreatHandler. auth guards the reset endpoint.
func NewThreatHandler(engine detector, auth *identity.Authority, logger *zap.Logger) *ThreatHandler {
	return &ThreatHandler{engine: engine, auth: auth, logger: logger}
}

// SetNotifier configures alert dispatch for new detections.
func (h *ThreatHandler) SetNotifier(n detectionNotifier) {
	h.notifier = n
}

// SetAuditJournal records administrative actions in j.
func (h *ThreatHandler) SetAuditJournal(j journal.Journal) {
	h.audit = j
}

// Register mounts the threat and anomaly routes on the given router group.
func (h *ThreatHandler) Register(rg *gin.RouterGroup) {
	t := rg.Group("/threats")
	{
		t.POST("/classify", h.Classify)
		t.POST("/analyze", h.Analyze)
		t.GET("/summary", h.Summary)
		t.GET("/stats", h.Stats)
		t.POST("/reset", identity.RequireAdmin(h.auth), h.Reset)
	}
	rg.POST("/anomalies/detect", h.DetectAnomalies)
}

// Classify handles POST /threats/classify: classifies a batch of events.
func (h *ThreatHandler) Classify(c *gin.Context) {
	events, err := ingest.Decode(c.Request.Body)
	if err != nil {
		writeError(c, h.logger, "decode batch", err)
		return
	}

	results, err := h.engine.ClassifyBatch(events)
	if err != nil {
		writeError(c, h.logger, "classify batch", err)
		return
	}
	h.afterClassify(c.Request.Context(), events, results)

	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// Analyze handles POST /threats/analyze: classifies a batch and consults the
// external analyzer for ambiguous results.
func (h *ThreatHandler) Analyze(c *gin.Context) {
	events, err := ingest.Decode(c.Request.Body)
	if err != nil {
		writeError(c, h.logger, "decode batch", err)
		return
	}

	enriched, err := h.engine.Analyze(c.Request.Context(), events)
	if err != nil {
		writeError(c, h.logger, "analyze batch", err)
		return
	}

	results := make([]threat.DetectionResult, len(enriched))
	for i, r := range enriched {
		results[i] = r.DetectionResult
	}
	h.afterClassify(c.Request.Context(), events, results)

	c.JSON(http.StatusOK, gin.H{"results": enriched, "count": len(enriched)})
}

func (h *ThreatHandler) afterClassify(ctx context.Context, events []threat.Event, results []threat.DetectionResult) {
	RecordDetections(results, h.engine.Stats())
	if h.notifier != nil {
		if queued := h.notifier.NotifyDetections(ctx, events, results); len(queued) > 0 {
			h.logger.Info("alerts queued", zap.Int("count", len(queued)))
		}
	}
}

// Summary handles GET /threats/summary: returns the threat tally.
func (h *ThreatHandler) Summary(c *gin.Context) {
	summary := h.engine.Summarize()
	total := 0
	for _, n := range summary {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "total": total})
}

// Stats handles GET /threats/stats: returns engine state sizes.
func (h *ThreatHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Stats())
}

// Reset handles POST /threats/reset: clears frequency and aggregation state.
func (h *ThreatHandler) Reset(c *gin.Context) {
	before := h.engine.Stats()
	h.engine.Reset()

	if h.audit != nil {
		rec := journal.Record{
			EventType: "engine_reset",
			Details:   resetDetails(before),
			Severity:  "INFO",
		}
		if _, err := h.audit.Append(c.Request.Context(), rec); err != nil {
			h.logger.Warn("audit engine reset", zap.Error(err))
		} else {
			RecordJournalAppend()
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

type detectRequest struct {
	Samples []float64 `json:"samples"`
}

// DetectAnomalies handles POST /anomalies/detect: runs outlier detection.
func (h *ThreatHandler) DetectAnomalies(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	res, err := h.engine.DetectOutliers(req.Samples)
	if err != nil {
		writeError(c, h.logger, "detect outliers", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func resetDetails(s threat.Stats) string {
	return fmt.Sprintf("cleared %d tracked sources and %d descriptions (%d threats)",
		s.TrackedSources, s.Descriptions, s.ThreatsTotal)
}
