package invalidation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisuehlinger/invalidator/dom"
)

type nthRecorder struct{ parents []dom.NodeID }

func (n *nthRecorder) ScheduleNthPseudoInvalidations(parent dom.NodeID) {
	n.parents = append(n.parents, parent)
}

func parse(t *testing.T, src string) *dom.Document {
	t.Helper()
	d, err := dom.ParseHTMLString(src)
	require.NoError(t, err)
	return d
}

func ids(d *dom.Document, names ...string) []dom.NodeID {
	out := make([]dom.NodeID, len(names))
	for i, n := range names {
		out[i] = d.GetElementByID(n)
	}
	return out
}

func invalidatedIDs(d *dom.Document, bits interface{ ToArray() []uint32 }) []string {
	var out []string
	for _, v := range bits.ToArray() {
		out = append(out, d.ID(dom.NodeID(v)))
	}
	return out
}

func TestScheduleDescendantSet(t *testing.T) {
	d := parse(t, `<div id="a"><p id="b"><span id="c" class="x"></span><span id="d"></span></p></div>`)
	el := ids(d, "a", "b", "c", "d")
	pending := NewPendingInvalidations(d, nil, nil)

	set := NewDescendantSet()
	set.AddClass("x")
	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Descendants: []*InvalidationSet{set}}, el[0])

	assert.True(t, d.HasFlags(el[0], dom.NeedsStyleInvalidation))
	assert.False(t, pending.IsEmpty())
	assert.Equal(t, int32(2), set.RefCount())

	got := NewStyleInvalidator(d, pending, nil).Invalidate()
	assert.Equal(t, []string{"c"}, invalidatedIDs(d, got))
	assert.Equal(t, dom.LocalStyleChange, d.StyleChange(el[2]))
	assert.Equal(t, dom.NoStyleChange, d.StyleChange(el[3]))
	assert.Equal(t, dom.NoStyleChange, d.StyleChange(el[0]))
	assert.True(t, pending.IsEmpty())
	assert.False(t, d.HasFlags(el[0], dom.NeedsStyleInvalidation))
	assert.True(t, set.HasOneRef())
}

func TestScheduleSelfAndWholeSubtree(t *testing.T) {
	d := parse(t, `<div id="a"><p id="b"></p></div>`)
	el := ids(d, "a", "b")
	pending := NewPendingInvalidations(d, nil, nil)

	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Descendants: []*InvalidationSet{SelfInvalidationSet()}}, el[1])
	assert.Equal(t, dom.LocalStyleChange, d.StyleChange(el[1]))
	assert.True(t, pending.IsEmpty())

	whole := NewDescendantSet()
	whole.SetWholeSubtreeInvalid()
	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Descendants: []*InvalidationSet{whole}}, el[0])
	assert.Equal(t, dom.SubtreeStyleChange, d.StyleChange(el[0]))
	assert.True(t, pending.IsEmpty())
}

func TestSiblingSetsNeedFollowingSibling(t *testing.T) {
	d := parse(t, `<div><p id="a"></p><p id="b" class="x"></p><p id="c" class="x"></p></div>`)
	el := ids(d, "a", "b", "c")
	pending := NewPendingInvalidations(d, nil, nil)

	sib := NewSiblingSet(nil)
	sib.AddClass("x")
	sib.SetInvalidatesSelf()

	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Siblings: []*InvalidationSet{sib}}, el[2])
	assert.True(t, pending.IsEmpty())

	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Siblings: []*InvalidationSet{sib}}, el[0])
	require.NotNil(t, pending.Pending(el[0]))

	got := NewStyleInvalidator(d, pending, nil).Invalidate()
	// Direct adjacency reaches only the next element.
	assert.Equal(t, []string{"b"}, invalidatedIDs(d, got))
}

func TestIndirectSiblingSetReachesAll(t *testing.T) {
	d := parse(t, `<div><p id="a"></p><p id="b" class="x"></p><p id="c" class="x"><i id="i" class="y"></i></p></div>`)
	el := ids(d, "a")
	pending := NewPendingInvalidations(d, nil, nil)

	sib := NewSiblingSet(nil)
	sib.UpdateMaxDirectAdjacentSelectors(DirectAdjacentMax)
	sib.AddClass("x")
	sib.EnsureSiblingDescendants().AddClass("y")

	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Siblings: []*InvalidationSet{sib}}, el[0])
	got := NewStyleInvalidator(d, pending, nil).Invalidate()
	assert.Equal(t, []string{"i"}, invalidatedIDs(d, got))
}

func TestSiblingSetsAsDescendants(t *testing.T) {
	d := parse(t, `<ul id="u"><li id="a" class="x"><b id="b" class="y"></b></li></ul>`)
	el := ids(d, "u", "a", "b")
	pending := NewPendingInvalidations(d, nil, nil)

	sib := NewSiblingSet(nil)
	sib.AddClass("x")
	sib.SetInvalidatesSelf()
	sib.EnsureSiblingDescendants().AddClass("y")

	pending.ScheduleSiblingInvalidationsAsDescendants(InvalidationLists{Siblings: []*InvalidationSet{sib}}, el[0])
	require.NotNil(t, pending.Pending(el[0]))
	assert.Len(t, pending.Pending(el[0]).Descendants, 2)

	got := NewStyleInvalidator(d, pending, nil).Invalidate()
	assert.ElementsMatch(t, []string{"a", "b"}, invalidatedIDs(d, got))

	whole := NewSiblingSet(nil)
	whole.SetWholeSubtreeInvalid()
	pending.ScheduleSiblingInvalidationsAsDescendants(InvalidationLists{Siblings: []*InvalidationSet{whole}}, el[0])
	assert.Equal(t, dom.SubtreeStyleChange, d.StyleChange(el[0]))
}

func TestNthSchedulingHook(t *testing.T) {
	d := parse(t, `<ul id="u"><li id="a"></li><li id="b"></li></ul>`)
	el := ids(d, "u", "a")
	rec := &nthRecorder{}
	pending := NewPendingInvalidations(d, rec, nil)

	nth := NewNthSiblingSet()
	nth.SetInvalidatesNth()
	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Siblings: []*InvalidationSet{nth}}, el[1])
	assert.Empty(t, rec.parents)

	d.SetFlags(el[0], dom.ChildrenAffectedByForwardPositionalRules)
	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Siblings: []*InvalidationSet{nth}}, el[1])
	assert.Equal(t, []dom.NodeID{el[0]}, rec.parents)
}

func TestNthDescendantSetSchedulesParent(t *testing.T) {
	d := parse(t, `<ul id="u"><li id="a"></li><li id="b"></li><li id="c"></li></ul>`)
	el := ids(d, "u", "a", "b", "c")
	rec := &nthRecorder{}
	pending := NewPendingInvalidations(d, rec, nil)
	d.SetFlags(el[0], dom.ChildrenAffectedByForwardPositionalRules)

	// The set an :nth-child(2 of .x) selector keeps for class x.
	set := NewDescendantSet()
	set.SetInvalidatesSelf()
	set.SetInvalidatesNth()
	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Descendants: []*InvalidationSet{set}}, el[2])
	assert.Equal(t, []dom.NodeID{el[0]}, rec.parents)
	assert.Equal(t, dom.LocalStyleChange, d.StyleChange(el[2]))

	// The last child moves no forward position.
	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Descendants: []*InvalidationSet{set}}, el[3])
	assert.Len(t, rec.parents, 1)

	// Already dirty elements still reach their siblings.
	d.SetNeedsStyleRecalc(el[1], dom.SubtreeStyleChange)
	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Descendants: []*InvalidationSet{set}}, el[1])
	assert.Equal(t, []dom.NodeID{el[0], el[0]}, rec.parents)
}

func TestRescheduleSiblingsOnRemoval(t *testing.T) {
	d := parse(t, `<div id="p"><i id="a"></i><i id="b" class="x"></i></div>`)
	el := ids(d, "p", "a", "b")
	pending := NewPendingInvalidations(d, nil, nil)

	sib := NewSiblingSet(nil)
	sib.AddClass("x")
	sib.SetInvalidatesSelf()
	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Siblings: []*InvalidationSet{sib}}, el[1])

	require.NoError(t, d.RemoveChild(el[0], el[1]))
	pending.RescheduleSiblingInvalidationsAsDescendants(el[1], el[0])
	pending.ClearInvalidation(el[1])

	got := NewStyleInvalidator(d, pending, nil).Invalidate()
	assert.Equal(t, []string{"b"}, invalidatedIDs(d, got))
}

func TestTreeBoundaryCrossing(t *testing.T) {
	d := parse(t, `<div id="host"><template shadowrootmode="open"><p id="inner" class="x"></p></template></div>`)
	host := d.GetElementByID("host")
	inner := d.FirstElementChild(d.ShadowRoot(host))
	pending := NewPendingInvalidations(d, nil, nil)

	scoped := NewDescendantSet()
	scoped.AddClass("x")
	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Descendants: []*InvalidationSet{scoped}}, host)
	got := NewStyleInvalidator(d, pending, nil).Invalidate()
	assert.True(t, got.IsEmpty())

	crossing := NewDescendantSet()
	crossing.AddClass("x")
	crossing.SetTreeBoundaryCrossing()
	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Descendants: []*InvalidationSet{crossing}}, host)
	got = NewStyleInvalidator(d, pending, nil).Invalidate()
	assert.True(t, got.Contains(uint32(inner)))
}

func TestInvalidatesSlotted(t *testing.T) {
	d := parse(t, `<div id="host"><template shadowrootmode="open"><slot id="s"></slot></template><b id="light" class="x"></b></div>`)
	host := d.GetElementByID("host")
	root := d.ShadowRoot(host)
	light := d.GetElementByID("light")
	pending := NewPendingInvalidations(d, nil, nil)

	set := NewDescendantSet()
	set.AddClass("x")
	set.SetInvalidatesSlotted()
	pending.ScheduleInvalidationSetsForNode(InvalidationLists{Descendants: []*InvalidationSet{set}}, root)

	got := NewStyleInvalidator(d, pending, nil).Invalidate()
	assert.True(t, got.Contains(uint32(light)))
}
