package style

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisuehlinger/invalidator/css"
)

func TestGlobalRuleSetLifecycle(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	opts := DefaultOptions()
	opts.Metrics = metrics
	d := parse(t, `<style>#main .item { color: red }</style><div id="main"></div>`)
	e := NewEngine(d, opts, nil)
	defer e.Close()

	g := e.GlobalRuleSet()
	assert.True(t, g.IsDirty())

	e.UpdateActiveStyle()
	require.False(t, g.IsDirty())
	assert.EqualValues(t, 1, metrics.GetStats().GlobalRebuilds)
	assert.True(t, g.Features().HasIDsInSelectors())
	assert.False(t, g.HasFullscreenUAStyle())

	// A clean aggregate is not rebuilt.
	g.Update(e)
	assert.EqualValues(t, 1, metrics.GetStats().GlobalRebuilds)

	g.MarkDirty()
	e.UpdateActiveStyle()
	assert.EqualValues(t, 2, metrics.GetStats().GlobalRebuilds)

	g.Dispose()
	assert.True(t, g.IsDirty())
	assert.False(t, g.Features().HasIDsInSelectors())
}

func TestGlobalRuleSetSelectorLists(t *testing.T) {
	g := NewCSSGlobalRuleSet(css.DefaultFeatureSetOptions(), nil)
	assert.Nil(t, g.WatchedSelectorsRuleSet())
	assert.Nil(t, g.DocumentRulesSelectorsRuleSet())

	lists, err := parseSelectorLists([]string{".watched", "a[href]"})
	require.NoError(t, err)
	g.UpdateWatchedSelectors(lists)
	require.NotNil(t, g.WatchedSelectorsRuleSet())
	assert.Len(t, g.WatchedSelectorsRuleSet().Rules(), 2)
	assert.True(t, g.IsDirty())

	g.UpdateDocumentRulesSelectors(lists[:1])
	require.NotNil(t, g.DocumentRulesSelectorsRuleSet())
	assert.Len(t, g.DocumentRulesSelectorsRuleSet().Rules(), 1)

	g.UpdateWatchedSelectors(nil)
	assert.Nil(t, g.WatchedSelectorsRuleSet())
}

func TestFullscreenUAStyleJoinsAggregate(t *testing.T) {
	_, e := newCleanEngine(t, `<div id="x"></div>`, DefaultOptions())
	assert.False(t, e.GlobalRuleSet().HasFullscreenUAStyle())

	e.ensureUAStyleForFullscreen()
	assert.True(t, e.GlobalRuleSet().HasFullscreenUAStyle())
	assert.False(t, e.GlobalRuleSet().IsDirty())

	// A second call is a no-op.
	e.ensureUAStyleForFullscreen()
	assert.True(t, e.GlobalRuleSet().HasFullscreenUAStyle())
}

func TestBasicMetricsCollector(t *testing.T) {
	var m BasicMetricsCollector
	assert.Zero(t, m.GetStats().RecalcAvgNanos)

	m.RecordInvalidationSets(KindClass, 3)
	m.RecordInvalidationSets(KindID, 0)
	m.RecordRecalc(10, 100)
	m.RecordRecalc(2, 300)
	m.RecordGlobalRuleSetRebuild()
	m.RecordFullRecalc()

	assert.Equal(t, BasicMetricsStats{
		InvalidationSets: 3,
		SchedulingSteps:  2,
		RecalcPasses:     2,
		RecalcElements:   12,
		RecalcAvgNanos:   200,
		GlobalRebuilds:   1,
		FullRecalcs:      1,
	}, m.GetStats())
}
