package threat

import "sync"

// DefaultFrequencyThreshold is the per-source count above which activity is
// itself suspicious.
const DefaultFrequencyThreshold = 10

// FrequencyTracker counts observations per source for the lifetime of the
// tracker. Counts never decay and sources are never evicted; only Clear
// resets them, and it resets all sources at once.
type FrequencyTracker struct {
	mu        sync.Mutex
	counts    map[string]int
	threshold int
}

// NewFrequencyTracker returns an empty tracker. A threshold <= 0 uses
// DefaultFrequencyThreshold.
func NewFrequencyTracker(threshold int) *FrequencyTracker {
	if threshold <= 0 {
		threshold = DefaultFrequencyThreshold
	}
	return &FrequencyTracker{
		counts:    make(map[string]int),
		threshold: threshold,
	}
}

// Observe increments and returns the count for source in one step.
// Call it at most once per event.
func (f *FrequencyTracker) Observe(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[source]++
	return f.counts[source]
}

// Count returns the current count for source without changing it.
func (f *FrequencyTracker) Count(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[source]
}

// ThresholdExceeded reports whether count is strictly above the threshold.
func (f *FrequencyTracker) ThresholdExceeded(count int) bool {
	return count > f.threshold
}

// Threshold returns the configured threshold.
func (f *FrequencyTracker) Threshold() int {
	return f.threshold
}

// Sources returns the number of tracked sources.
func (f *FrequencyTracker) Sources() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.counts)
}

// Clear drops every source.
func (f *FrequencyTracker) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[string]int)
}
