package threat

import "strings"

// Matcher scans messages against a Catalog.
type Matcher struct {
	catalog *Catalog
}

// NewMatcher returns a Matcher over catalog. A nil catalog uses DefaultCatalog.
func NewMatcher(catalog *Catalog) *Matcher {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Matcher{catalog: catalog}
}

// Match returns the first rule whose phrase occurs in message, ignoring case.
//
// Categories are tried in catalog priority order and phrases in catalog order
// within a category. The first hit wins even when a later category holds a
// longer or more specific phrase.
func (m *Matcher) Match(message string) (Rule, bool) {
	if message == "" {
		return Rule{}, false
	}
	lower := strings.ToLower(message)
	for _, s := range m.catalog.scanners {
		for i, phrase := range s.folded {
			if strings.Contains(lower, phrase) {
				return s.rules[i], true
			}
		}
	}
	return Rule{}, false
}
