package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisuehlinger/invalidator/dom"
	"github.com/chrisuehlinger/invalidator/style"
)

func TestPrometheusCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordInvalidationSets(style.KindClass, 2)
	c.RecordInvalidationSets(style.KindClass, 1)
	c.RecordInvalidationSets(style.KindID, 4)
	c.RecordRecalc(7, 0)
	c.RecordGlobalRuleSetRebuild()
	c.RecordFullRecalc()
	c.RecordFullRecalc()

	assert.Equal(t, 3.0, testutil.ToFloat64(c.invalidationSets.WithLabelValues(style.KindClass)))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.invalidationSets.WithLabelValues(style.KindID)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.schedulingSteps.WithLabelValues(style.KindClass)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.recalcPasses))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.recalcElements))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.globalRebuilds))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.fullRecalcs))

	n, err := testutil.GatherAndCount(reg, "invalidator_recalc_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPrometheusCollectorRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusCollector(reg)
	assert.Panics(t, func() { NewPrometheusCollector(reg) })
}

func TestEngineReportsToPrometheus(t *testing.T) {
	d, err := dom.ParseHTMLString(`<style>.on .t { color: red }</style><div id="p"><span class="t"></span></div>`)
	require.NoError(t, err)

	c := NewPrometheusCollector(prometheus.NewRegistry())
	opts := style.DefaultOptions()
	opts.Metrics = c
	e := style.NewEngine(d, opts, nil)
	defer e.Close()
	e.UpdateStyleAndLayoutTree()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.globalRebuilds))
	before := testutil.ToFloat64(c.recalcElements)

	d.SetClassName(d.GetElementByID("p"), "on")
	e.UpdateStyleAndLayoutTree()
	assert.Positive(t, testutil.ToFloat64(c.invalidationSets.WithLabelValues(style.KindClass)))
	assert.Greater(t, testutil.ToFloat64(c.recalcElements), before)
}
