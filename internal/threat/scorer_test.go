package threat_test

import (
	"testing"

	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

func TestScore_severityTable(t *testing.T) {
	tests := []struct {
		phrase string
		want   threat.Severity
	}{
		{"private key", threat.SeverityCritical},
		{"seed phrase", threat.SeverityCritical},
		{"principal id theft", threat.SeverityCritical},
		{"Exposed SEED PHRASE backup", threat.SeverityCritical},
		{"canister exploit", threat.SeverityHigh},
		{"cycle drain", threat.SeverityHigh},
		{"unauthorized delegation", threat.SeverityHigh},
		{"canister call injection", threat.SeverityHigh},
		{"wallet compromise", threat.SeverityMedium},
		{"malware", threat.SeverityMedium},
		{"session timeout", threat.SeverityMedium},
	}
	for _, tt := range tests {
		got := threat.Score(threat.Rule{Phrase: tt.phrase, Category: threat.CategoryCryptoThreat})
		if got.Severity != tt.want {
			t.Errorf("Score(%q).Severity = %s, want %s", tt.phrase, got.Severity, tt.want)
		}
	}
}

func TestScore_categoryConfidence(t *testing.T) {
	tests := []struct {
		category threat.Category
		want     float64
	}{
		{threat.CategoryCryptoThreat, 0.90},
		{threat.CategoryPlatformVulnerability, 0.80},
		{threat.CategoryMalware, 0.85},
	}
	for _, tt := range tests {
		got := threat.Score(threat.Rule{Phrase: "x", Category: tt.category})
		if got.Confidence != tt.want {
			t.Errorf("%s: confidence %v, want %v", tt.category, got.Confidence, tt.want)
		}
	}
}

func TestScoreFrequency(t *testing.T) {
	a := threat.ScoreFrequency()
	if a.Severity != threat.SeverityMedium || a.Confidence != 0.6 {
		t.Errorf("ScoreFrequency() = %+v, want MEDIUM/0.6", a)
	}
}

func TestCatalog_severityHintMatchesScore(t *testing.T) {
	for _, r := range threat.DefaultCatalog().Rules() {
		if got := threat.Score(r).Severity; got != r.SeverityHint {
			t.Errorf("%q: hint %s, score %s", r.Phrase, r.SeverityHint, got)
		}
	}
}

func TestSeverity_Rank(t *testing.T) {
	if !(threat.SeverityCritical.Rank() > threat.SeverityHigh.Rank() &&
		threat.SeverityHigh.Rank() > threat.SeverityMedium.Rank() &&
		threat.SeverityMedium.Rank() > threat.SeverityNone.Rank()) {
		t.Error("severity ranks out of order")
	}
	if threat.Severity("bogus").Rank() != 0 {
		t.Error("unknown severity should rank 0")
	}
}
