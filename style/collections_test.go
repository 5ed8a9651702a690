package style

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisuehlinger/invalidator/css"
)

func activeSheet(t *testing.T, text string) ActiveStyleSheet {
	t.Helper()
	sheet := css.MustParseStyleSheet(text, css.OriginAuthor)
	return ActiveStyleSheet{Sheet: sheet, RuleSet: css.NewRuleSetFromSheet(sheet, css.DefaultFeatureSetOptions(), nil)}
}

func TestCompareActiveStyleSheets(t *testing.T) {
	a := activeSheet(t, ".a {}")
	b := activeSheet(t, ".b {}")
	c := activeSheet(t, ".c {}")
	reparsedB := ActiveStyleSheet{Sheet: b.Sheet, RuleSet: css.NewRuleSetFromSheet(b.Sheet, css.DefaultFeatureSetOptions(), nil)}

	tests := []struct {
		name     string
		old, new []ActiveStyleSheet
		change   ActiveSheetsChange
		changed  []*css.RuleSet
	}{
		{"both empty", nil, nil, NoActiveSheetsChanged, nil},
		{"identical", []ActiveStyleSheet{a, b}, []ActiveStyleSheet{a, b}, NoActiveSheetsChanged, nil},
		{"appended", []ActiveStyleSheet{a}, []ActiveStyleSheet{a, b, c}, ActiveSheetsAppended, []*css.RuleSet{b.RuleSet, c.RuleSet}},
		{"first sheet", nil, []ActiveStyleSheet{a}, ActiveSheetsAppended, []*css.RuleSet{a.RuleSet}},
		{"removed at end", []ActiveStyleSheet{a, b}, []ActiveStyleSheet{a}, ActiveSheetsChanged, []*css.RuleSet{b.RuleSet}},
		{"removed in middle", []ActiveStyleSheet{a, b, c}, []ActiveStyleSheet{a, c}, ActiveSheetsChanged, []*css.RuleSet{b.RuleSet}},
		{"inserted in middle", []ActiveStyleSheet{a, c}, []ActiveStyleSheet{a, b, c}, ActiveSheetsChanged, []*css.RuleSet{b.RuleSet}},
		{"reordered", []ActiveStyleSheet{a, b}, []ActiveStyleSheet{b, a}, NoActiveSheetsChanged, nil},
		{"rule set replaced", []ActiveStyleSheet{a, b}, []ActiveStyleSheet{a, reparsedB}, ActiveSheetsChanged, []*css.RuleSet{reparsedB.RuleSet, b.RuleSet}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, changed := CompareActiveStyleSheets(tt.old, tt.new)
			assert.Equal(t, tt.change, change)
			assert.ElementsMatch(t, tt.changed, changed)
		})
	}
}

func TestActiveSheetsChangeString(t *testing.T) {
	assert.Equal(t, "unchanged", NoActiveSheetsChanged.String())
	assert.Equal(t, "appended", ActiveSheetsAppended.String())
	assert.Equal(t, "changed", ActiveSheetsChanged.String())
}

func TestTreeScopeCollectionTracksCandidates(t *testing.T) {
	d := parse(t, `<style>.a { color: red }</style><style>.b { color: blue }</style>`)
	e := NewEngine(d, DefaultOptions(), nil)
	defer e.Close()
	e.UpdateActiveStyleSheets()

	active := e.documentCollection.ActiveStyleSheets()
	require.Len(t, active, 2)
	assert.Equal(t, ".a", active[0].Sheet.Rules[0].SelectorText)
	assert.Equal(t, ".b", active[1].Sheet.Rules[0].SelectorText)

	adopted := css.MustParseStyleSheet(".c { color: green }", css.OriginAuthor)
	e.AdoptedStyleSheetAdded(d.Root(), adopted)
	assert.True(t, e.NeedsActiveStyleUpdate())
	e.UpdateActiveStyleSheets()
	active = e.documentCollection.ActiveStyleSheets()
	require.Len(t, active, 3)
	assert.Same(t, adopted, active[2].Sheet)

	e.AdoptedStyleSheetRemoved(d.Root(), adopted)
	e.UpdateActiveStyleSheets()
	assert.Len(t, e.documentCollection.ActiveStyleSheets(), 2)
	assert.False(t, e.NeedsActiveStyleUpdate())
}

func TestShadowCollectionDroppedWithHost(t *testing.T) {
	d := parse(t, `<div id="host"><template shadowrootmode="open"><style>.inner { color: red }</style><p></p></template></div>`)
	e := NewEngine(d, DefaultOptions(), nil)
	defer e.Close()
	e.UpdateStyleAndLayoutTree()

	host := byID(t, d, "host")
	root := d.ShadowRoot(host)
	require.Contains(t, e.shadowCollections, root)
	require.Len(t, e.shadowCollections[root].ActiveStyleSheets(), 1)
	require.True(t, e.RuleFeatureSet().HasSelectorForClass("inner"))

	// Removal may already rebuild the aggregate while scheduling sibling
	// and :has() invalidations, so check the outcome.
	require.NoError(t, d.Remove(host))
	assert.NotContains(t, e.shadowCollections, root)
	assert.False(t, e.RuleFeatureSet().HasSelectorForClass("inner"))
	assert.False(t, e.GlobalRuleSet().IsDirty())
}

func TestDropShadowCollectionMarksGlobalRuleSetDirty(t *testing.T) {
	d := parse(t, `<div id="host"><template shadowrootmode="open"><style>.inner { color: red }</style></template></div>`+
		`<div id="bare"><template shadowrootmode="open"><p></p></template></div>`)
	e := NewEngine(d, DefaultOptions(), nil)
	defer e.Close()
	e.UpdateStyleAndLayoutTree()
	require.False(t, e.GlobalRuleSet().IsDirty())

	bare := d.ShadowRoot(byID(t, d, "bare"))
	e.dropShadowCollection(bare)
	assert.False(t, e.GlobalRuleSet().IsDirty())

	root := d.ShadowRoot(byID(t, d, "host"))
	e.dropShadowCollection(root)
	assert.NotContains(t, e.shadowCollections, root)
	assert.True(t, e.GlobalRuleSet().IsDirty())
}

func TestIdenticalStyleTextSharesRuleSet(t *testing.T) {
	d := parse(t, `<style>.a { color: red }</style><div><style>.a { color: red }</style></div>`)
	e := NewEngine(d, DefaultOptions(), nil)
	defer e.Close()
	e.UpdateActiveStyleSheets()

	active := e.documentCollection.ActiveStyleSheets()
	require.Len(t, active, 2)
	assert.Same(t, active[0].RuleSet, active[1].RuleSet)
}
