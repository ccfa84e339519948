package client

import "time"

// Event is a single log or event record submitted for classification.
type Event struct {
	Message   string `json:"message"`
	Source    string `json:"source"`
	Timestamp uint64 `json:"timestamp,omitempty"`
}

// Detection is the classification of one event.
type Detection struct {
	IsThreat   bool     `json:"is_threat"`
	Category   string   `json:"category"`
	Severity   string   `json:"severity"`
	Confidence float64  `json:"confidence"`
	Details    string   `json:"details"`
	Verdict    *Verdict `json:"verdict,omitempty"`
}

// BatchResult is returned by Classify and Analyze.
type BatchResult struct {
	Results []Detection `json:"results"`
	Count   int         `json:"count"`
}

// Summary is the threat tally.
type Summary struct {
	Summary map[string]int `json:"summary"`
	Total   int            `json:"total"`
}

// Stats reports engine state sizes.
type Stats struct {
	TrackedSources int `json:"tracked_sources"`
	Descriptions   int `json:"descriptions"`
	ThreatsTotal   int `json:"threats_total"`
}

// OutlierResult is returned by DetectAnomalies.
type OutlierResult struct {
	IsAnomaly    bool    `json:"is_anomaly"`
	Confidence   float64 `json:"confidence"`
	Explanation  string  `json:"explanation"`
	OutlierCount int     `json:"outlier_count"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Indices      []int   `json:"indices,omitempty"`
}

// Verdict is an IP reputation verdict.
type Verdict struct {
	Provider string `json:"provider"`
	Subject  string `json:"subject"`
	IsThreat bool   `json:"is_threat"`
	Score    int    `json:"score"`
	Summary  string `json:"summary,omitempty"`
}

// PortResult is the state of one probed port.
type PortResult struct {
	Port uint16 `json:"port"`
	Open bool   `json:"open"`
}

// NetworkScan is the result of a port range scan.
type NetworkScan struct {
	Target    string   `json:"target"`
	OpenPorts []uint16 `json:"open_ports"`
	Services  []string `json:"services"`
}

// SecurityLog is one entry of the security journal.
type SecurityLog struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Details   string    `json:"details"`
	Severity  string    `json:"severity"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// SecurityLogList is returned by SecurityLogs.
type SecurityLogList struct {
	Logs  []SecurityLog `json:"logs"`
	Count int           `json:"count"`
	Root  string        `json:"root"`
}

// Verification reports journal integrity.
type Verification struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// AdminToken is returned by Login.
type AdminToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
