package threat

import "strings"

// Rule is a single catalog phrase with its category and severity hint.
type Rule struct {
	Phrase       string   `json:"phrase"`
	Category     Category `json:"category"`
	SeverityHint Severity `json:"severity_hint"`
}

// scanner is one category's phrase list. The catalog is an ordered slice of
// scanners; the order is the category priority used by the matcher.
type scanner struct {
	category Category
	rules    []Rule
	folded   []string
}

// Catalog is the immutable, ordered set of pattern rules. Build it once with
// NewCatalog or DefaultCatalog and share it freely; nothing mutates it.
type Catalog struct {
	scanners []scanner
}

// CategoryPhrases is the input to NewCatalog: one category and its phrases in
// scan order.
type CategoryPhrases struct {
	Category Category
	Phrases  []string
}

// ── Default rule set ──────────────────────────────────────────────────────────

// malwarePhrases are general-purpose attack keywords. Plain "injection" is
// not one; only "canister call injection" reports it.
var malwarePhrases = []string{
	"overflow",
	"exploit",
	"malware",
	"unauthorized",
	"brute force",
	"ddos",
	"xss",
	"csrf",
	"backdoor",
}

// cryptoThreatPhrases cover key material exposure and on-chain abuse.
var cryptoThreatPhrases = []string{
	"private key",
	"seed phrase",
	"wallet compromise",
	"key leak",
	"unauthorized transfer",
	"replay attack",
	"front-running",
	"malicious MEV",
	"threshold signature",
	"canister exploit",
	"cycle drain",
	"principal id theft",
}

// platformVulnerabilityPhrases cover weaknesses of the hosting platform.
var platformVulnerabilityPhrases = []string{
	"vetkd exploit",
	"encrypted-notes vulnerability",
	"deterministic encryption",
	"reused key pair",
	"session timeout",
	"symmetric key",
	"unauthorized delegation",
	"canister call injection",
}

// DefaultCatalog returns the built-in catalog in priority order:
// Malware, then CryptoThreat, then PlatformVulnerability.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		CategoryPhrases{Category: CategoryMalware, Phrases: malwarePhrases},
		CategoryPhrases{Category: CategoryCryptoThreat, Phrases: cryptoThreatPhrases},
		CategoryPhrases{Category: CategoryPlatformVulnerability, Phrases: platformVulnerabilityPhrases},
	)
}

// NewCatalog builds a catalog from categories given in priority order.
// Empty phrases are skipped. Severity hints come from the scoring table.
func NewCatalog(categories ...CategoryPhrases) *Catalog {
	c := &Catalog{}
	for _, cp := range categories {
		s := scanner{category: cp.Category}
		for _, p := range cp.Phrases {
			if strings.TrimSpace(p) == "" {
				continue
			}
			s.rules = append(s.rules, Rule{
				Phrase:       p,
				Category:     cp.Category,
				SeverityHint: severityFor(p),
			})
			s.folded = append(s.folded, strings.ToLower(p))
		}
		c.scanners = append(c.scanners, s)
	}
	return c
}

// Rules returns a copy of every rule in scan order.
func (c *Catalog) Rules() []Rule {
	var out []Rule
	for _, s := range c.scanners {
		out = append(out, s.rules...)
	}
	return out
}

// Categories returns the category priority order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, 0, len(c.scanners))
	for _, s := range c.scanners {
		out = append(out, s.category)
	}
	return out
}
