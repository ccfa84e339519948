package threat_test

import (
	"sync"
	"testing"

	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

func TestObserve_countsEqualCalls(t *testing.T) {
	f := threat.NewFrequencyTracker(0)
	for n := 1; n <= 25; n++ {
		if got := f.Observe("10.0.0.1"); got != n {
			t.Fatalf("Observe #%d returned %d", n, got)
		}
	}
	if got := f.Count("10.0.0.1"); got != 25 {
		t.Errorf("Count() = %d, want 25", got)
	}
	if got := f.Count("10.0.0.2"); got != 0 {
		t.Errorf("unseen source Count() = %d, want 0", got)
	}
}

func TestObserve_concurrent(t *testing.T) {
	f := threat.NewFrequencyTracker(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				f.Observe("shared")
			}
		}()
	}
	wg.Wait()
	if got := f.Count("shared"); got != 1000 {
		t.Errorf("Count() = %d, want 1000 (lost updates)", got)
	}
}

func TestThresholdExceeded(t *testing.T) {
	f := threat.NewFrequencyTracker(0)
	if f.Threshold() != threat.DefaultFrequencyThreshold {
		t.Fatalf("default threshold = %d", f.Threshold())
	}
	if f.ThresholdExceeded(10) {
		t.Error("10 should not exceed threshold 10")
	}
	if !f.ThresholdExceeded(11) {
		t.Error("11 should exceed threshold 10")
	}

	custom := threat.NewFrequencyTracker(3)
	if !custom.ThresholdExceeded(4) || custom.ThresholdExceeded(3) {
		t.Error("custom threshold not honoured")
	}
}

func TestClear_dropsAllSources(t *testing.T) {
	f := threat.NewFrequencyTracker(0)
	f.Observe("a")
	f.Observe("b")
	f.Observe("b")
	f.Clear()

	if f.Sources() != 0 {
		t.Errorf("Sources() = %d after Clear", f.Sources())
	}
	if got := f.Observe("b"); got != 1 {
		t.Errorf("Observe after Clear = %d, want 1", got)
	}
}

func TestAggregationStore(t *testing.T) {
	a := threat.NewAggregationStore()
	a.Increment("x")
	a.Increment("x")
	a.Increment("y")

	snap := a.Snapshot()
	if snap["x"] != 2 || snap["y"] != 1 {
		t.Errorf("Snapshot() = %v", snap)
	}
	if a.Total() != 3 {
		t.Errorf("Total() = %d, want 3", a.Total())
	}

	snap["x"] = 100
	if a.Snapshot()["x"] != 2 {
		t.Error("Snapshot must return a copy")
	}

	a.Clear()
	if len(a.Snapshot()) != 0 {
		t.Error("Clear() left counters behind")
	}
}
