package invalidation

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xlab/treeprint"

	"github.com/chrisuehlinger/invalidator/dom"
)

func TestInvalidationSetString(t *testing.T) {
	tests := []struct {
		name  string
		build func() *InvalidationSet
		want  string
	}{
		{"empty", NewDescendantSet, "{}"},
		{"self", SelfInvalidationSet, "{<$>}"},
		{"part", PartInvalidationSet, "{<TP>}"},
		{"features", func() *InvalidationSet {
			s := NewDescendantSet()
			s.AddClass("b")
			s.AddClass("a")
			s.AddID("x")
			s.AddTagName("div")
			s.AddAttribute("href")
			return s
		}, "{#x .a.b div [href]}"},
		{"flags and features", func() *InvalidationSet {
			s := NewDescendantSet()
			s.SetInvalidatesSelf()
			s.SetTreeBoundaryCrossing()
			s.AddClass("c")
			return s
		}, "{<$T> .c}"},
		{"sibling distance", func() *InvalidationSet {
			s := NewSiblingSet(nil)
			s.UpdateMaxDirectAdjacentSelectors(3)
			return s
		}, "{<3>}"},
		{"nth", func() *InvalidationSet {
			s := NewNthSiblingSet()
			s.SetInvalidatesNth()
			return s
		}, "{<N~>}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.build().String())
		})
	}
}

func TestWholeSubtreeDropsPayload(t *testing.T) {
	s := NewDescendantSet()
	s.AddClass("a")
	s.SetTreeBoundaryCrossing()
	s.SetInvalidatesSlotted()
	s.SetWholeSubtreeInvalid()

	assert.True(t, s.WholeSubtreeInvalid())
	assert.False(t, s.TreeBoundaryCrossing())
	assert.False(t, s.InvalidatesSlotted())
	assert.Empty(t, s.Classes())

	s.AddClass("b")
	s.AddID("x")
	assert.Empty(t, s.Classes())
	assert.Empty(t, s.IDs())
	assert.Equal(t, "{<W>}", s.String())
}

func TestCombine(t *testing.T) {
	a := NewDescendantSet()
	a.AddClass("a")
	b := NewDescendantSet()
	b.AddID("b")
	b.SetInvalidatesSlotted()

	a.Combine(b)
	assert.True(t, a.HasClass("a"))
	assert.True(t, a.HasID("b"))
	assert.True(t, a.InvalidatesSlotted())

	before := a.String()
	a.Combine(a)
	assert.Equal(t, before, a.String())

	w := NewDescendantSet()
	w.SetWholeSubtreeInvalid()
	a.Combine(w)
	assert.True(t, a.WholeSubtreeInvalid())
	assert.Empty(t, a.Classes())

	a.Combine(b)
	assert.Empty(t, a.IDs())
}

func TestCombineSiblingSets(t *testing.T) {
	a := NewSiblingSet(nil)
	a.AddClass("x")
	b := NewSiblingSet(nil)
	b.UpdateMaxDirectAdjacentSelectors(DirectAdjacentMax)
	b.EnsureSiblingDescendants().AddClass("d")
	b.EnsureDescendants().AddTagName("span")

	a.Combine(b)
	assert.Equal(t, DirectAdjacentMax, a.MaxDirectAdjacentSelectors())
	require.NotNil(t, a.SiblingDescendants())
	assert.True(t, a.SiblingDescendants().HasClass("d"))
	require.NotNil(t, a.Descendants())
	assert.True(t, a.Descendants().HasTagName("span"))
	assert.NotSame(t, b.SiblingDescendants(), a.SiblingDescendants())
}

// randomSet builds a set of typ with random features, then random flags,
// then occasionally whole-subtree invalidation.
func randomSet(rng *rand.Rand, typ SetType) *InvalidationSet {
	names := []string{"a", "b", "c", "d"}
	fill := func(s *InvalidationSet) {
		for _, n := range names {
			switch rng.Intn(6) {
			case 0:
				s.AddClass(n)
			case 1:
				s.AddID(n)
			case 2:
				s.AddTagName(n)
			case 3:
				s.AddAttribute(n)
			}
		}
		setters := []func(){
			s.SetInvalidatesSelf, s.SetInvalidatesNth, s.SetTreeBoundaryCrossing,
			s.SetInsertionPointCrossing, s.SetInvalidatesSlotted, s.SetInvalidatesParts,
			s.SetCustomPseudoInvalid,
		}
		for _, set := range setters {
			if rng.Intn(3) == 0 {
				set()
			}
		}
		if rng.Intn(8) == 0 {
			s.SetWholeSubtreeInvalid()
		}
	}

	if typ == InvalidateDescendants {
		s := NewDescendantSet()
		fill(s)
		return s
	}
	s := NewSiblingSet(nil)
	fill(s)
	s.UpdateMaxDirectAdjacentSelectors(uint32(rng.Intn(4)))
	if rng.Intn(10) == 0 {
		s.UpdateMaxDirectAdjacentSelectors(DirectAdjacentMax)
	}
	if rng.Intn(2) == 0 {
		fill(s.EnsureSiblingDescendants())
	}
	if rng.Intn(2) == 0 {
		fill(s.EnsureDescendants())
	}
	return s
}

func combined(sets ...*InvalidationSet) *InvalidationSet {
	out := CopyInvalidationSet(sets[0])
	for _, s := range sets[1:] {
		out.Combine(s)
	}
	return out
}

func TestCombineIsCommutativeAndAssociative(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, typ := range []SetType{InvalidateDescendants, InvalidateSiblings} {
		for i := 0; i < 200; i++ {
			a, b, c := randomSet(rng, typ), randomSet(rng, typ), randomSet(rng, typ)
			msg := fmt.Sprintf("%s %s %s", a, b, c)

			assert.True(t, combined(a, b).Equal(combined(b, a)), "commutative: %s", msg)

			left := combined(combined(a, b), c)
			right := combined(a, combined(b, c))
			assert.True(t, left.Equal(right), "associative: %s", msg)

			// Combine never changes its argument.
			before := CopyInvalidationSet(b)
			combined(a, b)
			assert.True(t, before.Equal(b), "argument changed: %s", msg)
		}
	}
}

func TestCombineKeepsSiblingReachMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 100; i++ {
		a, b := randomSet(rng, InvalidateSiblings), randomSet(rng, InvalidateSiblings)
		c := combined(a, b)
		assert.GreaterOrEqual(t, c.MaxDirectAdjacentSelectors(), a.MaxDirectAdjacentSelectors())
		assert.GreaterOrEqual(t, c.MaxDirectAdjacentSelectors(), b.MaxDirectAdjacentSelectors())
		assert.Equal(t, max(a.MaxDirectAdjacentSelectors(), b.MaxDirectAdjacentSelectors()), c.MaxDirectAdjacentSelectors())
	}
}

func TestCombineTypeMismatchPanics(t *testing.T) {
	assert.Panics(t, func() { NewDescendantSet().Combine(NewSiblingSet(nil)) })
}

func TestSingletonsAreImmutable(t *testing.T) {
	assert.Panics(t, func() { SelfInvalidationSet().AddClass("a") })
	assert.Panics(t, func() { PartInvalidationSet().SetWholeSubtreeInvalid() })
	assert.False(t, SelfInvalidationSet().HasOneRef())

	SelfInvalidationSet().Ref()
	SelfInvalidationSet().Release()
	assert.Equal(t, int32(1), SelfInvalidationSet().RefCount())
}

func TestRefCounting(t *testing.T) {
	s := NewDescendantSet()
	assert.True(t, s.HasOneRef())
	s.Ref()
	assert.False(t, s.HasOneRef())
	s.Release()
	assert.True(t, s.HasOneRef())

	sib := NewSiblingSet(s)
	assert.Same(t, s, sib.Descendants())
	assert.Equal(t, int32(2), s.RefCount())
}

func TestCopyInvalidationSet(t *testing.T) {
	self := CopyInvalidationSet(SelfInvalidationSet())
	assert.True(t, self.IsDescendantSet())
	assert.True(t, self.InvalidatesSelf())
	assert.False(t, self.IsSelfInvalidationSet())
	assert.True(t, self.HasOneRef())

	d := NewDescendantSet()
	d.AddClass("a")
	d.Ref()
	c := CopyInvalidationSet(d)
	assert.True(t, c.Equal(d))
	assert.NotSame(t, d, c)
	c.AddClass("b")
	assert.False(t, d.HasClass("b"))

	sib := NewSiblingSet(nil)
	sib.UpdateMaxDirectAdjacentSelectors(2)
	sib.EnsureSiblingDescendants().AddClass("x")
	sc := CopyInvalidationSet(sib)
	assert.True(t, sc.IsSiblingSet())
	assert.True(t, sc.Equal(sib))
	assert.NotSame(t, sib.SiblingDescendants(), sc.SiblingDescendants())
}

func TestExtractInvalidationSets(t *testing.T) {
	d := NewDescendantSet()
	desc, sib := ExtractInvalidationSets(d)
	assert.Same(t, d, desc)
	assert.Nil(t, sib)

	s := NewSiblingSet(d)
	desc, sib = ExtractInvalidationSets(s)
	assert.Same(t, d, desc)
	assert.Same(t, s, sib)

	desc, sib = ExtractInvalidationSets(nil)
	assert.Nil(t, desc)
	assert.Nil(t, sib)
}

func TestIsEmpty(t *testing.T) {
	s := NewDescendantSet()
	assert.True(t, s.IsEmpty())
	s.SetInvalidatesSelf()
	assert.True(t, s.IsEmpty())
	s.SetInvalidatesSlotted()
	assert.False(t, s.IsEmpty())
	assert.False(t, PartInvalidationSet().IsEmpty())
}

func TestInvalidatesElement(t *testing.T) {
	d, err := dom.ParseHTMLString(`<div id="x" class="a b" title="t"><span part="p"></span></div>`)
	require.NoError(t, err)
	div := d.GetElementByID("x")
	span := d.FirstElementChild(div)

	s := NewDescendantSet()
	assert.False(t, s.InvalidatesElement(d, div))
	s.AddClass("b")
	assert.True(t, s.InvalidatesElement(d, div))

	s = NewDescendantSet()
	s.AddAttribute("title")
	assert.True(t, s.InvalidatesElement(d, div))
	assert.False(t, s.InvalidatesElement(d, span))

	s = NewDescendantSet()
	s.AddTagName("span")
	assert.True(t, s.InvalidatesTagName(d, span))
	assert.True(t, s.InvalidatesElement(d, span))

	assert.True(t, PartInvalidationSet().InvalidatesElement(d, span))
	assert.False(t, PartInvalidationSet().InvalidatesElement(d, div))
}

func TestTree(t *testing.T) {
	s := NewSiblingSet(nil)
	s.AddClass("a")
	s.EnsureSiblingDescendants().AddID("d")
	p := treeprint.New()
	s.Tree(p.AddBranch(".x[+]"))
	out := p.String()
	assert.Contains(t, out, ".a")
	assert.Contains(t, out, "sibling descendants")
	assert.Contains(t, out, "#d")
}
