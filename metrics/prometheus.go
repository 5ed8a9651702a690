// Package metrics exports style engine counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chrisuehlinger/invalidator/style"
)

// PrometheusCollector implements style.MetricsCollector on Prometheus
// counters and a recalc duration histogram.
type PrometheusCollector struct {
	invalidationSets *prometheus.CounterVec
	schedulingSteps  *prometheus.CounterVec
	recalcPasses     prometheus.Counter
	recalcElements   prometheus.Counter
	recalcDuration   prometheus.Histogram
	globalRebuilds   prometheus.Counter
	fullRecalcs      prometheus.Counter
}

var _ style.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates the collector and registers its metrics
// on reg. A nil reg uses the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &PrometheusCollector{
		invalidationSets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invalidator_invalidation_sets_total",
			Help: "Invalidation sets scheduled, by mutation kind",
		}, []string{"kind"}),
		schedulingSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invalidator_scheduling_steps_total",
			Help: "Mutations that scheduled at least one invalidation set, by kind",
		}, []string{"kind"}),
		recalcPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invalidator_recalc_passes_total",
			Help: "Style recalc passes",
		}),
		recalcElements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invalidator_recalc_elements_total",
			Help: "Elements whose style was recomputed",
		}),
		recalcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "invalidator_recalc_duration_seconds",
			Help:    "Duration of style recalc passes",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		globalRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invalidator_global_rule_set_rebuilds_total",
			Help: "Rebuilds of the aggregate feature set",
		}),
		fullRecalcs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invalidator_full_recalcs_total",
			Help: "Changes that fell back to recomputing a whole tree scope",
		}),
	}
	reg.MustRegister(
		c.invalidationSets,
		c.schedulingSteps,
		c.recalcPasses,
		c.recalcElements,
		c.recalcDuration,
		c.globalRebuilds,
		c.fullRecalcs,
	)
	return c
}

// RecordInvalidationSets implements style.MetricsCollector.
func (c *PrometheusCollector) RecordInvalidationSets(kind string, sets int) {
	c.schedulingSteps.WithLabelValues(kind).Inc()
	c.invalidationSets.WithLabelValues(kind).Add(float64(sets))
}

// RecordRecalc implements style.MetricsCollector.
func (c *PrometheusCollector) RecordRecalc(elements int, d time.Duration) {
	c.recalcPasses.Inc()
	c.recalcElements.Add(float64(elements))
	c.recalcDuration.Observe(d.Seconds())
}

// RecordGlobalRuleSetRebuild implements style.MetricsCollector.
func (c *PrometheusCollector) RecordGlobalRuleSetRebuild() { c.globalRebuilds.Inc() }

// RecordFullRecalc implements style.MetricsCollector.
func (c *PrometheusCollector) RecordFullRecalc() { c.fullRecalcs.Inc() }
