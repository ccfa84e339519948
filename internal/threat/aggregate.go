package threat

import "sync"

// AggregationStore tallies how often each threat description has been seen.
// Counters only grow; Clear is the only way to drop them.
type AggregationStore struct {
	mu     sync.RWMutex
	counts map[string]int
}

// NewAggregationStore returns an empty store.
func NewAggregationStore() *AggregationStore {
	return &AggregationStore{counts: make(map[string]int)}
}

// Increment adds one occurrence of description and returns the new count.
func (a *AggregationStore) Increment(description string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[description]++
	return a.counts[description]
}

// Snapshot returns a copy of all counters.
func (a *AggregationStore) Snapshot() map[string]int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

// Total returns the sum of all counters.
func (a *AggregationStore) Total() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	for _, v := range a.counts {
		n += v
	}
	return n
}

// Clear drops every counter.
func (a *AggregationStore) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts = make(map[string]int)
}
