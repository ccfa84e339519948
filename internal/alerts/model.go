package alerts

import (
	"time"

	"github.com/google/uuid"

	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

// Event types dispatched by the alerting layer.
const (
	EventThreatDetected = "threat.detected"
	EventEngineReset    = "engine.reset"
)

// Alert is the body delivered to every webhook endpoint.
type Alert struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
	Source     string          `json:"source,omitempty"`
	Category   string          `json:"category,omitempty"`
	Severity   threat.Severity `json:"severity,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Details    string          `json:"details,omitempty"`
}

// Delivery records the outcome of a single webhook attempt.
type Delivery struct {
	AlertID    uuid.UUID `json:"alert_id"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Attempt    int       `json:"attempt"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}
