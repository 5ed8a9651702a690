package style

import (
	"sync/atomic"
	"time"
)

// Mutation kinds reported through MetricsCollector.RecordInvalidationSets.
const (
	KindClass      = "class"
	KindID         = "id"
	KindAttribute  = "attribute"
	KindPseudo     = "pseudo"
	KindPart       = "part"
	KindSibling    = "sibling"
	KindNth        = "nth"
	KindHas        = "has"
	KindRuleSet    = "ruleset"
	KindTypeRule   = "type"
	KindStructural = "structural"
)

// MetricsCollector receives counters from the style engine. Implement it to
// export them to a monitoring system; see the metrics package for a
// Prometheus implementation.
type MetricsCollector interface {
	// RecordInvalidationSets is called once per scheduling step with the
	// number of sets collected for a mutation of the given kind.
	RecordInvalidationSets(kind string, sets int)

	// RecordRecalc is called after each recalc pass.
	RecordRecalc(elements int, duration time.Duration)

	// RecordGlobalRuleSetRebuild is called when the aggregate feature set
	// is rebuilt.
	RecordGlobalRuleSetRebuild()

	// RecordFullRecalc is called when a change falls back to recomputing
	// the whole document.
	RecordFullRecalc()
}

// NoopMetricsCollector discards everything.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInvalidationSets(string, int) {}
func (NoopMetricsCollector) RecordRecalc(int, time.Duration)    {}
func (NoopMetricsCollector) RecordGlobalRuleSetRebuild()        {}
func (NoopMetricsCollector) RecordFullRecalc()                  {}

// BasicMetricsCollector keeps in-memory totals.
type BasicMetricsCollector struct {
	InvalidationSets atomic.Int64
	SchedulingSteps  atomic.Int64
	RecalcPasses     atomic.Int64
	RecalcElements   atomic.Int64
	RecalcTotalNanos atomic.Int64
	GlobalRebuilds   atomic.Int64
	FullRecalcs      atomic.Int64
}

// RecordInvalidationSets implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInvalidationSets(_ string, sets int) {
	b.SchedulingSteps.Add(1)
	b.InvalidationSets.Add(int64(sets))
}

// RecordRecalc implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecalc(elements int, duration time.Duration) {
	b.RecalcPasses.Add(1)
	b.RecalcElements.Add(int64(elements))
	b.RecalcTotalNanos.Add(duration.Nanoseconds())
}

// RecordGlobalRuleSetRebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGlobalRuleSetRebuild() { b.GlobalRebuilds.Add(1) }

// RecordFullRecalc implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFullRecalc() { b.FullRecalcs.Add(1) }

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InvalidationSets: b.InvalidationSets.Load(),
		SchedulingSteps:  b.SchedulingSteps.Load(),
		RecalcPasses:     b.RecalcPasses.Load(),
		RecalcElements:   b.RecalcElements.Load(),
		RecalcAvgNanos:   b.avgRecalcNanos(),
		GlobalRebuilds:   b.GlobalRebuilds.Load(),
		FullRecalcs:      b.FullRecalcs.Load(),
	}
}

func (b *BasicMetricsCollector) avgRecalcNanos() int64 {
	passes := b.RecalcPasses.Load()
	if passes == 0 {
		return 0
	}
	return b.RecalcTotalNanos.Load() / passes
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InvalidationSets int64
	SchedulingSteps  int64
	RecalcPasses     int64
	RecalcElements   int64
	RecalcAvgNanos   int64
	GlobalRebuilds   int64
	FullRecalcs      int64
}
