package threat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

// ErrInvalidEvent is returned by ClassifyBatch when an event cannot be
// attributed to a source. The whole batch is rejected and no state changes.
var ErrInvalidEvent = errors.New("invalid event")

// Confidence band in which a result is considered ambiguous and eligible for
// external corroboration. Both bounds are exclusive.
const (
	ambiguousLow      = 0.4
	ambiguousHigh     = 0.8
	corroborationStep = 0.1
)

// Verdict is the opinion of an external analysis collaborator about one event.
type Verdict struct {
	Provider string `json:"provider"`
	Subject  string `json:"subject"`
	IsThreat bool   `json:"is_threat"`

	// Score is the collaborator's own 0–100 risk rating.
	Score   int    `json:"score"`
	Summary string `json:"summary,omitempty"`
}

// Analyzer is an external content or reputation collaborator. Its verdict is
// extra evidence only; it never decides a classification on its own.
// Failures should be reported as *ExternalCallError.
type Analyzer interface {
	Analyze(ctx context.Context, ev Event) (*Verdict, error)
}

// Config tunes an Engine. Zero values select the defaults.
type Config struct {
	Catalog            *Catalog
	FrequencyThreshold int
	SigmaMultiplier    float64
}

// Stats is a point-in-time view of engine state sizes.
type Stats struct {
	TrackedSources int `json:"tracked_sources"`
	Descriptions   int `json:"descriptions"`
	ThreatsTotal   int `json:"threats_total"`
}

// EnrichedResult is a DetectionResult with the verdict that was consulted for
// it, if any.
type EnrichedResult struct {
	DetectionResult
	Verdict *Verdict `json:"verdict,omitempty"`
}

// Engine drives batch classification and owns the frequency and aggregation
// state. Construct one with New; the zero value is not usable.
type Engine struct {
	// mu serialises whole-batch classification against Reset and Summarize so
	// the two stores always move together.
	mu sync.RWMutex

	matcher  *Matcher
	freq     *FrequencyTracker
	agg      *AggregationStore
	sigma    float64
	analyzer Analyzer
	logger   *zap.Logger
}

// New creates an Engine with empty state.
func New(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	sigma := cfg.SigmaMultiplier
	if sigma <= 0 {
		sigma = DefaultSigmaMultiplier
	}
	return &Engine{
		matcher: NewMatcher(cfg.Catalog),
		freq:    NewFrequencyTracker(cfg.FrequencyThreshold),
		agg:     NewAggregationStore(),
		sigma:   sigma,
		logger:  logger,
	}
}

// SetAnalyzer configures the external collaborator used by Analyze.
func (e *Engine) SetAnalyzer(a Analyzer) {
	e.analyzer = a
}

// ClassifyBatch classifies every event in order and records threats in the
// aggregation store. Either every event is classified or, when any event is
// invalid, none is and the state is untouched.
func (e *Engine) ClassifyBatch(events []Event) ([]DetectionResult, error) {
	for i, ev := range events {
		if ev.Source == "" {
			return nil, fmt.Errorf("event %d: %w: source is required", i, ErrInvalidEvent)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	results := make([]DetectionResult, 0, len(events))
	threats := 0
	for _, ev := range events {
		r := e.classify(ev)
		if r.IsThreat {
			e.agg.Increment(r.Details)
			threats++
		}
		results = append(results, r)
	}

	e.logger.Debug("batch classified",
		zap.Int("events", len(events)),
		zap.Int("threats", threats),
	)
	return results, nil
}

// classify runs one event through matcher, frequency tracker and scorer.
// Callers must hold e.mu.
func (e *Engine) classify(ev Event) DetectionResult {
	if rule, ok := e.matcher.Match(ev.Message); ok {
		a := Score(rule)
		return DetectionResult{
			IsThreat:   true,
			Category:   string(rule.Category),
			Severity:   a.Severity,
			Confidence: a.Confidence,
			Details:    describe(rule.Category, rule.Phrase, ev.Message),
		}
	}

	count := e.freq.Observe(ev.Source)
	if e.freq.ThresholdExceeded(count) {
		a := ScoreFrequency()
		return DetectionResult{
			IsThreat:   true,
			Category:   string(CategoryUnusualFrequency),
			Severity:   a.Severity,
			Confidence: a.Confidence,
			Details:    describe(CategoryUnusualFrequency, "unusual activity frequency", ev.Source),
		}
	}

	return DetectionResult{
		IsThreat:   false,
		Category:   string(CategoryNormal),
		Severity:   SeverityNone,
		Confidence: ConfidenceNoThreat,
		Details:    "No threat detected",
	}
}

// describe builds the aggregation key "<Category>: <evidence> in <subject>".
func describe(c Category, evidence, subject string) string {
	return fmt.Sprintf("%s: %s in %s", c, evidence, subject)
}

// Analyze classifies events and then asks the configured Analyzer about each
// result in the ambiguous confidence band. All engine state is committed
// before the first external call. A concurring threat verdict raises the
// result's confidence; a verdict never changes IsThreat. Analyzer errors are
// returned unmodified and the whole call fails.
func (e *Engine) Analyze(ctx context.Context, events []Event) ([]EnrichedResult, error) {
	results, err := e.ClassifyBatch(events)
	if err != nil {
		return nil, err
	}

	out := make([]EnrichedResult, len(results))
	for i, r := range results {
		out[i] = EnrichedResult{DetectionResult: r}
	}
	if e.analyzer == nil {
		return out, nil
	}

	for i := range out {
		if !ambiguous(out[i].Confidence) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.analyzer.Analyze(ctx, events[i])
		if err != nil {
			return nil, err
		}
		out[i].Verdict = v
		if v != nil && v.IsThreat && out[i].IsThreat {
			out[i].Confidence = math.Min(out[i].Confidence+corroborationStep, ambiguousHigh)
		}
	}
	return out, nil
}

func ambiguous(confidence float64) bool {
	return confidence > ambiguousLow && confidence < ambiguousHigh
}

// Summarize returns a copy of the threat tally.
func (e *Engine) Summarize() map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agg.Snapshot()
}

// Reset clears the frequency and aggregation state together.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.freq.Clear()
	e.agg.Clear()
	e.logger.Info("engine state reset")
}

// DetectOutliers runs outlier detection with the engine's sigma multiplier.
func (e *Engine) DetectOutliers(samples []float64) (*OutlierResult, error) {
	return DetectOutliers(samples, e.sigma)
}

// SourceCount returns the current observation count for source.
func (e *Engine) SourceCount(source string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.freq.Count(source)
}

// Stats reports the size of the engine state.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := e.agg.Snapshot()
	return Stats{
		TrackedSources: e.freq.Sources(),
		Descriptions:   len(snap),
		ThreatsTotal:   e.agg.Total(),
	}
}
