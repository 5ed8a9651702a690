package css

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisuehlinger/invalidator/dom"
	"github.com/chrisuehlinger/invalidator/invalidation"
)

func newFeatures(t *testing.T, selectors ...string) *RuleFeatureSet {
	t.Helper()
	r := NewRuleFeatureSet(DefaultFeatureSetOptions(), nil)
	for _, text := range selectors {
		list, err := ParseSelector(text)
		require.NoError(t, err, text)
		for _, c := range list.Complex {
			require.Equal(t, SelectorMayMatch, r.CollectFeaturesFromSelector(c), text)
		}
	}
	return r
}

func classLists(r *RuleFeatureSet, class string) invalidation.InvalidationLists {
	var lists invalidation.InvalidationLists
	r.CollectInvalidationSetsForClass(&lists, dom.InvalidNodeID, class)
	return lists
}

func TestDescendantFeatures(t *testing.T) {
	r := newFeatures(t, ".a .b")

	lists := classLists(r, "a")
	require.Len(t, lists.Descendants, 1)
	assert.Empty(t, lists.Siblings)
	set := lists.Descendants[0]
	assert.True(t, set.IsDescendantSet())
	assert.True(t, set.HasClass("b"))
	assert.False(t, set.InvalidatesSelf())

	lists = classLists(r, "b")
	require.Len(t, lists.Descendants, 1)
	assert.True(t, lists.Descendants[0].IsSelfInvalidationSet())

	empty := classLists(r, "c")
	assert.True(t, empty.IsEmpty())
	assert.False(t, r.NeedsFullRecalcForRuleSetInvalidation())
}

func TestSelfInvalidationOnSubjectFeatureWithDescendants(t *testing.T) {
	r := newFeatures(t, ".a .b", ".a")

	lists := classLists(r, "a")
	require.Len(t, lists.Descendants, 1)
	set := lists.Descendants[0]
	assert.False(t, set.IsSelfInvalidationSet())
	assert.True(t, set.InvalidatesSelf())
	assert.True(t, set.HasClass("b"))
}

func TestDirectAdjacent(t *testing.T) {
	r := newFeatures(t, ".a + .b")

	lists := classLists(r, "a")
	assert.Empty(t, lists.Descendants)
	require.Len(t, lists.Siblings, 1)
	set := lists.Siblings[0]
	assert.True(t, set.IsSiblingSet())
	assert.True(t, set.HasClass("b"))
	assert.True(t, set.InvalidatesSelf())
	assert.Equal(t, uint32(1), set.MaxDirectAdjacentSelectors())
	assert.Equal(t, uint32(1), r.MaxDirectAdjacentSelectors())

	var near, far invalidation.InvalidationLists
	r.CollectSiblingInvalidationSetForClass(&near, dom.InvalidNodeID, "a", 1)
	r.CollectSiblingInvalidationSetForClass(&far, dom.InvalidNodeID, "a", 2)
	assert.Len(t, near.Siblings, 1)
	assert.Empty(t, far.Siblings)
}

func TestIndirectAdjacentSaturates(t *testing.T) {
	r := newFeatures(t, ".a ~ .b")

	lists := classLists(r, "a")
	require.Len(t, lists.Siblings, 1)
	assert.Equal(t, invalidation.DirectAdjacentMax, lists.Siblings[0].MaxDirectAdjacentSelectors())
	assert.Equal(t, uint32(0), r.MaxDirectAdjacentSelectors())
}

func TestSiblingDistanceGrowsToTheLeft(t *testing.T) {
	r := newFeatures(t, ".a + .b + .c")

	a := classLists(r, "a").Siblings
	b := classLists(r, "b").Siblings
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, uint32(2), a[0].MaxDirectAdjacentSelectors())
	assert.Equal(t, uint32(1), b[0].MaxDirectAdjacentSelectors())
	assert.True(t, a[0].HasClass("c"))
	assert.Equal(t, uint32(2), r.MaxDirectAdjacentSelectors())
}

func TestSiblingDescendants(t *testing.T) {
	r := newFeatures(t, ".a + .b .c")

	a := classLists(r, "a").Siblings
	require.Len(t, a, 1)
	assert.True(t, a[0].HasClass("b"))
	assert.False(t, a[0].InvalidatesSelf())
	require.NotNil(t, a[0].SiblingDescendants())
	assert.True(t, a[0].SiblingDescendants().HasClass("c"))

	b := classLists(r, "b").Descendants
	require.Len(t, b, 1)
	assert.True(t, b[0].HasClass("c"))
}

func TestSiblingAndDescendantUnderOneKey(t *testing.T) {
	r := newFeatures(t, ".a .b", ".a + .c")

	lists := classLists(r, "a")
	require.Len(t, lists.Descendants, 1)
	require.Len(t, lists.Siblings, 1)
	assert.True(t, lists.Descendants[0].HasClass("b"))
	assert.True(t, lists.Siblings[0].HasClass("c"))
}

func TestUniversalSibling(t *testing.T) {
	r := newFeatures(t, "* + .a")

	var lists invalidation.InvalidationLists
	r.CollectUniversalSiblingInvalidationSet(&lists, 1)
	require.Len(t, lists.Siblings, 1)
	assert.True(t, lists.Siblings[0].HasClass("a"))
}

func TestNthPseudo(t *testing.T) {
	for _, text := range []string{".a:nth-child(2)", ".a:nth-last-child(odd)", ".a:nth-of-type(3)"} {
		t.Run(text, func(t *testing.T) {
			r := newFeatures(t, text)

			var lists invalidation.InvalidationLists
			r.CollectNthInvalidationSet(&lists)
			require.Len(t, lists.Siblings, 1)
			nth := lists.Siblings[0]
			assert.True(t, nth.IsNthSiblingSet())
			assert.True(t, nth.HasClass("a"))
			assert.True(t, nth.InvalidatesSelf())
		})
	}
}

func TestFirstChildUsesPseudoSet(t *testing.T) {
	r := newFeatures(t, ".a:first-child")

	var lists invalidation.InvalidationLists
	r.CollectInvalidationSetsForPseudoClass(&lists, dom.InvalidNodeID, PseudoFirstChild)
	require.Len(t, lists.Descendants, 1)
	assert.True(t, lists.Descendants[0].InvalidatesSelf())

	var nth invalidation.InvalidationLists
	r.CollectNthInvalidationSet(&nth)
	assert.Empty(t, nth.Siblings)
}

func TestNthChildOfSelector(t *testing.T) {
	r := newFeatures(t, ":nth-child(2 of .b)")

	b := classLists(r, "b").Descendants
	require.Len(t, b, 1)
	assert.False(t, b[0].IsSelfInvalidationSet())
	assert.True(t, b[0].InvalidatesSelf())
	assert.True(t, b[0].InvalidatesNth())

	var lists invalidation.InvalidationLists
	r.CollectNthInvalidationSet(&lists)
	require.Len(t, lists.Siblings, 1)
	assert.True(t, lists.Siblings[0].HasClass("b"))
}

func TestNthChildOfSelectorAncestor(t *testing.T) {
	r := newFeatures(t, ":nth-child(2 of .a .b)")

	a := classLists(r, "a").Descendants
	require.Len(t, a, 1)
	assert.True(t, a[0].HasClass("b"))
	assert.True(t, a[0].InvalidatesNth())
}

func TestNotDoesNotNarrow(t *testing.T) {
	r := newFeatures(t, ".a :not(.b)")

	a := classLists(r, "a").Descendants
	require.Len(t, a, 1)
	assert.True(t, a[0].WholeSubtreeInvalid())
	assert.True(t, r.HasSelectorForClass("b"))
}

func TestIsNarrowsToArguments(t *testing.T) {
	r := newFeatures(t, ".a :is(.b, .c)")

	a := classLists(r, "a").Descendants
	require.Len(t, a, 1)
	assert.False(t, a[0].WholeSubtreeInvalid())
	assert.True(t, a[0].HasClass("b"))
	assert.True(t, a[0].HasClass("c"))
}

func TestAttributeAndIDFeatures(t *testing.T) {
	r := newFeatures(t, "[data-x] #y", "#y")

	var lists invalidation.InvalidationLists
	r.CollectInvalidationSetsForAttribute(&lists, dom.InvalidNodeID, "data-x")
	require.Len(t, lists.Descendants, 1)
	assert.True(t, lists.Descendants[0].HasID("y"))

	lists = invalidation.InvalidationLists{}
	r.CollectInvalidationSetsForID(&lists, dom.InvalidNodeID, "y")
	require.Len(t, lists.Descendants, 1)
	assert.True(t, lists.Descendants[0].IsSelfInvalidationSet())
	assert.True(t, r.HasIDsInSelectors())
	assert.True(t, r.HasSelectorForID("y"))
	assert.True(t, r.HasSelectorForAttribute("data-x"))
}

func TestPseudoClassFeatures(t *testing.T) {
	r := newFeatures(t, ":hover .a")

	var lists invalidation.InvalidationLists
	r.CollectInvalidationSetsForPseudoClass(&lists, dom.InvalidNodeID, PseudoHover)
	require.Len(t, lists.Descendants, 1)
	assert.True(t, lists.Descendants[0].HasClass("a"))

	lists = invalidation.InvalidationLists{}
	r.CollectInvalidationSetsForPseudoClass(&lists, dom.InvalidNodeID, PseudoFocus)
	assert.True(t, lists.IsEmpty())
}

func TestTypeRuleSet(t *testing.T) {
	r := newFeatures(t, "div", "span.a")

	var lists invalidation.InvalidationLists
	r.CollectTypeRuleInvalidationSet(&lists, dom.InvalidNodeID)
	require.Len(t, lists.Descendants, 1)
	assert.True(t, lists.Descendants[0].HasTagName("div"))
	assert.False(t, lists.Descendants[0].HasTagName("span"))
	assert.False(t, r.NeedsFullRecalcForRuleSetInvalidation())
}

func TestUniversalNeedsFullRecalc(t *testing.T) {
	r := newFeatures(t, "*")
	assert.True(t, r.NeedsFullRecalcForRuleSetInvalidation())
}

func TestMetadata(t *testing.T) {
	r := newFeatures(t, "p::first-line")
	assert.True(t, r.UsesFirstLineRules())
	assert.True(t, r.NeedsFullRecalcForRuleSetInvalidation())

	r = newFeatures(t, ":window-inactive")
	assert.True(t, r.UsesWindowInactiveSelector())

	r = newFeatures(t, "::part(label)")
	assert.True(t, r.InvalidatesParts())
	var lists invalidation.InvalidationLists
	r.CollectPartInvalidationSet(&lists)
	require.Len(t, lists.Descendants, 1)
	assert.Same(t, invalidation.PartInvalidationSet(), lists.Descendants[0])
}

func TestNeverMatches(t *testing.T) {
	for _, text := range []string{
		".a :host",
		".a:host",
		":is(:nonsense) .a",
	} {
		t.Run(text, func(t *testing.T) {
			r := NewRuleFeatureSet(DefaultFeatureSetOptions(), nil)
			list := MustParseSelector(text)
			require.Len(t, list.Complex, 1)
			assert.Equal(t, SelectorNeverMatches, r.CollectFeaturesFromSelector(list.Complex[0]))
			assert.True(t, r.Equal(NewRuleFeatureSet(DefaultFeatureSetOptions(), nil)))
			assert.Empty(t, r.String())
		})
	}
}

func TestHostMayMatch(t *testing.T) {
	r := NewRuleFeatureSet(DefaultFeatureSetOptions(), nil)
	list := MustParseSelector(":host(.a) .b")
	assert.Equal(t, SelectorMayMatch, r.CollectFeaturesFromSelector(list.Complex[0]))
}

func TestBloomFilterThreshold(t *testing.T) {
	opts := DefaultFeatureSetOptions()
	r := NewRuleFeatureSet(opts, nil)
	for i := 0; i < opts.BloomThreshold-1; i++ {
		r.CollectFeaturesFromSelector(MustParseSelector(fmt.Sprintf(".c%d", i)).Complex[0])
	}
	assert.False(t, r.HasSelfInvalidationBloomFilter())
	assert.True(t, r.HasSelectorForClass("c0"))

	last := fmt.Sprintf(".c%d", opts.BloomThreshold-1)
	r.CollectFeaturesFromSelector(MustParseSelector(last).Complex[0])
	assert.True(t, r.HasSelfInvalidationBloomFilter())
	assert.False(t, r.HasSelectorForClass(last[1:]))

	lists := classLists(r, last[1:])
	require.Len(t, lists.Descendants, 1)
	assert.True(t, lists.Descendants[0].IsSelfInvalidationSet())

	lists = classLists(r, "c0")
	require.Len(t, lists.Descendants, 1)
	assert.True(t, lists.Descendants[0].IsSelfInvalidationSet())
}

func TestBloomFilterSkipsAncestorFeatures(t *testing.T) {
	opts := DefaultFeatureSetOptions()
	opts.BloomThreshold = 1
	r := NewRuleFeatureSet(opts, nil)
	for _, text := range []string{".a", ".b .c"} {
		r.CollectFeaturesFromSelector(MustParseSelector(text).Complex[0])
	}

	assert.True(t, r.HasSelfInvalidationBloomFilter())
	assert.False(t, r.HasSelectorForClass("a"))
	assert.True(t, r.HasSelectorForClass("b"))
}

func TestCopyOnWriteAfterMerge(t *testing.T) {
	r1 := newFeatures(t, ".a .b")
	r2 := newFeatures(t, ".a .c")
	shared := classLists(r1, "a").Descendants[0]

	merged := NewRuleFeatureSet(DefaultFeatureSetOptions(), nil)
	merged.Merge(r1)
	assert.Equal(t, int32(2), shared.RefCount())
	assert.Same(t, shared, classLists(merged, "a").Descendants[0])

	merged.Merge(r2)
	assert.Equal(t, int32(1), shared.RefCount())
	assert.False(t, shared.HasClass("c"))

	got := classLists(merged, "a").Descendants[0]
	assert.NotSame(t, shared, got)
	assert.True(t, got.HasClass("b"))
	assert.True(t, got.HasClass("c"))
}

func TestMergeIsCommutative(t *testing.T) {
	selectors := [][]string{
		{".a .b", ".x + .y", "#i:hover"},
		{".a .c", ".x ~ .z", "div", ".p:has(.q)"},
	}
	r1 := newFeatures(t, selectors[0]...)
	r2 := newFeatures(t, selectors[1]...)

	ab := NewRuleFeatureSet(DefaultFeatureSetOptions(), nil)
	ab.Merge(r1)
	ab.Merge(r2)
	ba := NewRuleFeatureSet(DefaultFeatureSetOptions(), nil)
	ba.Merge(r2)
	ba.Merge(r1)

	assert.True(t, ab.Equal(ba))
	assert.Equal(t, ab.String(), ba.String())
	assert.True(t, ab.Equal(newFeatures(t, append(selectors[0], selectors[1]...)...)))
}

func TestMergeIsAssociative(t *testing.T) {
	groups := [][]string{
		{".a .b", ".x + .y", "#i:hover", "li:nth-child(2)"},
		{".a .c", ".x ~ .z", "div", ".p:has(.q)"},
		{".a", "#i .k", ".x + .y + .w", ":nth-child(2 of .e)", "[href] span"},
	}
	sets := make([]*RuleFeatureSet, len(groups))
	for i, g := range groups {
		sets[i] = newFeatures(t, g...)
	}
	merge := func(parts ...*RuleFeatureSet) *RuleFeatureSet {
		out := NewRuleFeatureSet(DefaultFeatureSetOptions(), nil)
		for _, p := range parts {
			out.Merge(p)
		}
		return out
	}

	left := merge(merge(sets[0], sets[1]), sets[2])
	right := merge(sets[0], merge(sets[1], sets[2]))
	assert.True(t, left.Equal(right))
	assert.Equal(t, left.String(), right.String())

	// The inputs stay untouched by the copy-on-write sharing.
	for i, g := range groups {
		assert.True(t, sets[i].Equal(newFeatures(t, g...)), "group %d", i)
	}
}

func TestSiblingReachIsMonotonic(t *testing.T) {
	r := newFeatures(t, ".a + .b + .c + .d", ".e ~ .f", ".b + .g")
	tests := []struct {
		class string
		reach uint32
	}{
		{"a", 3},
		{"b", 2},
		{"c", 1},
		{"e", invalidation.DirectAdjacentMax},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			found := func(k uint32) bool {
				var lists invalidation.InvalidationLists
				r.CollectSiblingInvalidationSetForClass(&lists, dom.InvalidNodeID, tt.class, k)
				return len(lists.Siblings) == 1
			}
			for k := uint32(1); k <= 5; k++ {
				assert.Equal(t, k <= tt.reach, found(k), "distance %d", k)
				if found(k + 1) {
					assert.True(t, found(k), "distance %d found but %d not", k+1, k)
				}
			}
			assert.Equal(t, tt.reach == invalidation.DirectAdjacentMax, found(invalidation.DirectAdjacentMax))
		})
	}
}

func TestEmptyFeatureSet(t *testing.T) {
	r := NewRuleFeatureSet(DefaultFeatureSetOptions(), nil)

	lists := classLists(r, "a")
	assert.True(t, lists.IsEmpty())
	var id invalidation.InvalidationLists
	r.CollectInvalidationSetsForID(&id, dom.InvalidNodeID, "a")
	assert.True(t, id.IsEmpty())
	assert.False(t, r.HasSelfInvalidationBloomFilter())
	assert.Equal(t, uint32(0), r.MaxDirectAdjacentSelectors())
}

func TestManySelfInvalidatingClasses(t *testing.T) {
	opts := DefaultFeatureSetOptions()
	r := NewRuleFeatureSet(opts, nil)
	for i := 1; i <= 1000; i++ {
		r.CollectFeaturesFromSelector(MustParseSelector(fmt.Sprintf(".class_%d", i)).Complex[0])
		assert.Equal(t, i >= opts.BloomThreshold, r.HasSelfInvalidationBloomFilter(), "after %d", i)
	}

	for i := 1; i <= 1000; i++ {
		name := fmt.Sprintf("class_%d", i)
		assert.Equal(t, i < opts.BloomThreshold, r.HasSelectorForClass(name), name)

		// A false positive of the filter may add a second self set.
		lists := classLists(r, name)
		require.NotEmpty(t, lists.Descendants, name)
		for _, set := range lists.Descendants {
			assert.True(t, set.IsSelfInvalidationSet(), name)
		}
		assert.Empty(t, lists.Siblings, name)
	}
}

func TestMergedIDSelfAndDescendants(t *testing.T) {
	merged := NewRuleFeatureSet(DefaultFeatureSetOptions(), nil)
	merged.Merge(newFeatures(t, "#foo"))
	merged.Merge(newFeatures(t, "#foo .bar"))

	var lists invalidation.InvalidationLists
	merged.CollectInvalidationSetsForID(&lists, dom.InvalidNodeID, "foo")
	require.Len(t, lists.Descendants, 1)
	set := lists.Descendants[0]
	assert.True(t, set.InvalidatesSelf())
	assert.True(t, set.HasClass("bar"))
	assert.False(t, set.IsSelfInvalidationSet())
}

func TestCollectIsIdempotent(t *testing.T) {
	once := newFeatures(t, ".a .b", ".c + .d", ":nth-child(2 of .e)")
	twice := newFeatures(t, ".a .b", ".c + .d", ":nth-child(2 of .e)", ".a .b", ".c + .d", ":nth-child(2 of .e)")
	assert.True(t, once.Equal(twice))
}

func TestClearAndMergeAgain(t *testing.T) {
	r1 := newFeatures(t, ".a .b", ".c + .d", ".e:has(.f)")
	r := NewRuleFeatureSet(DefaultFeatureSetOptions(), nil)
	r.Merge(r1)
	r.Clear()
	assert.True(t, r.Equal(NewRuleFeatureSet(DefaultFeatureSetOptions(), nil)))
	r.Merge(r1)
	assert.True(t, r.Equal(r1))
}

func TestHasArgumentValues(t *testing.T) {
	r := newFeatures(t, ".a:has(.b [data-x])", "#i:has(> span:hover)")

	assert.True(t, r.NeedsHasInvalidationForClass("b"))
	assert.False(t, r.NeedsHasInvalidationForClass("a"))
	assert.True(t, r.NeedsHasInvalidationForAttribute("data-x"))
	assert.True(t, r.NeedsHasInvalidationForTagName("span"))
	assert.False(t, r.NeedsHasInvalidationForTagName("div"))
	assert.True(t, r.NeedsHasInvalidationForPseudoClass(PseudoHover))
	assert.False(t, r.NeedsHasInvalidationForID("i"))
	assert.True(t, r.NeedsHasInvalidationForInsertionOrRemoval())
}

func TestHasUniversalAndNot(t *testing.T) {
	r := newFeatures(t, ".a:has(> *)")
	assert.True(t, r.NeedsHasInvalidationForTagName("div"))

	r = newFeatures(t, ".a:has(:not(.b))")
	assert.True(t, r.NeedsHasInvalidationForClass("b"))

	d, err := dom.ParseHTMLString(`<div id="x"></div>`)
	require.NoError(t, err)
	assert.True(t, r.NeedsHasInvalidationForInsertedOrRemovedElement(d, d.GetElementByID("x")))
}

func TestHasInsertedOrRemovedElement(t *testing.T) {
	r := newFeatures(t, ".a:has(.b)")
	d, err := dom.ParseHTMLString(`<div id="x" class="b"></div><div id="y" class="c"></div>`)
	require.NoError(t, err)

	assert.True(t, r.NeedsHasInvalidationForInsertedOrRemovedElement(d, d.GetElementByID("x")))
	assert.False(t, r.NeedsHasInvalidationForInsertedOrRemovedElement(d, d.GetElementByID("y")))
}

func TestHasInsideNthChild(t *testing.T) {
	r := newFeatures(t, ":nth-child(2 of :has(.a))")
	assert.True(t, r.UsesHasInsideNth())
}

func TestLogicalCombinationInHas(t *testing.T) {
	// ".a:has(:is(.b .c))" changes when .b changes on an ancestor of .a.
	r := newFeatures(t, ".a:has(:is(.b .c))")

	b := classLists(r, "b").Descendants
	require.Len(t, b, 1)
	assert.True(t, b[0].HasClass("a"))
	assert.True(t, r.NeedsHasInvalidationForClass("b"))
	assert.True(t, r.NeedsHasInvalidationForClass("c"))
}

func TestLogicalCombinationInHasSibling(t *testing.T) {
	// ".a:has(:is(.b ~ .c))": .b may be an earlier sibling of .a.
	r := newFeatures(t, ".a:has(:is(.b ~ .c))")

	b := classLists(r, "b").Siblings
	require.Len(t, b, 1)
	assert.True(t, b[0].HasClass("a"))
	assert.True(t, b[0].InvalidatesSelf())
	assert.Equal(t, invalidation.DirectAdjacentMax, b[0].MaxDirectAdjacentSelectors())
}

func TestString(t *testing.T) {
	r := newFeatures(t, ".a .b")
	assert.Equal(t, ".a[>]{.b} .b[>]{<$>}", r.String())

	r = newFeatures(t, "*")
	assert.Equal(t, "META:R", r.String())

	r = newFeatures(t, ".a + .b")
	assert.Contains(t, r.Dump(), ".a[+]")
}
