// Package threat is the detection and anomaly scoring engine. It classifies
// batches of log events against a fixed pattern catalog, tracks per-source
// activity frequency, and flags numeric outliers in sample series.
//
// All mutable state (per-source counters and the threat tally) is owned by an
// Engine instance; independent engines share nothing.
package threat

// Event is a single normalized log record submitted for classification.
type Event struct {
	Message   string `json:"message"`
	Source    string `json:"source"`
	Timestamp uint64 `json:"timestamp"`
}

// Category labels the rule family (or non-rule condition) behind a result.
type Category string

const (
	CategoryMalware               Category = "Malware"
	CategoryCryptoThreat          Category = "CryptoThreat"
	CategoryPlatformVulnerability Category = "PlatformVulnerability"

	// CategoryUnusualFrequency marks results raised by the frequency tracker
	// rather than by a catalog rule.
	CategoryUnusualFrequency Category = "unusual_frequency"

	// CategoryNormal marks non-threat results.
	CategoryNormal Category = "normal"
)

// Severity is the tiered severity of a detection.
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities from NONE (0) to CRITICAL (3). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// DetectionResult is the classification of one event.
type DetectionResult struct {
	IsThreat   bool     `json:"is_threat"`
	Category   string   `json:"category"`
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`

	// Details is the human-readable description. For threats it is also the
	// key under which the occurrence is tallied in the aggregation store.
	Details string `json:"details"`
}
