package threat

import "strings"

// Assessment is the severity and confidence assigned to a finding.
type Assessment struct {
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
}

// Base confidences per finding source.
const (
	ConfidenceCryptoThreat          = 0.90
	ConfidenceMalware               = 0.85
	ConfidencePlatformVulnerability = 0.80
	ConfidenceFrequency             = 0.60
	ConfidenceFrequencyCorroborated = 0.70

	// ConfidenceNoThreat is the confidence attached to non-threat verdicts.
	ConfidenceNoThreat = 0.95

	// defaultConfidence applies to rule categories outside the built-in three.
	defaultConfidence = 0.75
)

// criticalMarkers and highMarkers are matched as substrings of the rule
// phrase, not as whole tokens ("cycle drain" is HIGH via "cycle").
var (
	criticalMarkers = []string{"private key", "seed phrase", "principal id theft"}
	highMarkers     = []string{"canister", "cycle", "delegation"}
)

// Score assigns severity and confidence to a matched rule. It is a table
// lookup: severity from the phrase, confidence from the category.
func Score(rule Rule) Assessment {
	return Assessment{
		Severity:   severityFor(rule.Phrase),
		Confidence: categoryConfidence(rule.Category),
	}
}

// ScoreFrequency is the assessment for an unusual-frequency finding.
func ScoreFrequency() Assessment {
	return Assessment{Severity: SeverityMedium, Confidence: ConfidenceFrequency}
}

// severityFor maps a phrase to its severity tier.
func severityFor(phrase string) Severity {
	lower := strings.ToLower(phrase)
	switch {
	case containsAny(lower, criticalMarkers):
		return SeverityCritical
	case containsAny(lower, highMarkers):
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

func categoryConfidence(c Category) float64 {
	switch c {
	case CategoryCryptoThreat:
		return ConfidenceCryptoThreat
	case CategoryPlatformVulnerability:
		return ConfidencePlatformVulnerability
	case CategoryMalware:
		return ConfidenceMalware
	default:
		return defaultConfidence
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
