// Package invalidation holds the invalidation set model and the machinery
// that applies scheduled sets to a document: PendingInvalidations collects
// them per node, StyleInvalidator walks the tree and turns them into style
// dirty bits.
package invalidation

import (
	"math"
	"slices"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/chrisuehlinger/invalidator/dom"
)

// SetType tells whether a set invalidates descendants or later siblings of
// the element it is scheduled on.
type SetType uint8

const (
	InvalidateDescendants SetType = iota
	InvalidateSiblings
)

func (t SetType) String() string {
	if t == InvalidateSiblings {
		return "siblings"
	}
	return "descendants"
}

// DirectAdjacentMax is the saturated sibling distance used for indirect
// adjacent combinators.
const DirectAdjacentMax uint32 = math.MaxUint32

type setFlags uint16

const (
	flagWholeSubtreeInvalid setFlags = 1 << iota
	flagTreeBoundaryCrossing
	flagInsertionPointCrossing
	flagInvalidatesSlotted
	flagInvalidatesNth
	flagInvalidatesSelf
	flagInvalidatesParts
	flagCustomPseudoInvalid
)

type nameSet map[string]struct{}

func (s *nameSet) add(name string) {
	if *s == nil {
		*s = make(nameSet)
	}
	(*s)[name] = struct{}{}
}

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s nameSet) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (s nameSet) equal(o nameSet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o.has(k) {
			return false
		}
	}
	return true
}

// InvalidationSet summarizes which elements must be restyled when a feature
// changes on the element it is scheduled for. Sets are shared between index
// entries; the reference count drives copy-on-write in the owning feature
// set, so a set with more than one reference must never be mutated.
type InvalidationSet struct {
	typ       SetType
	singleton bool
	self      bool
	nth       bool
	refs      int32
	flags     setFlags

	classes    nameSet
	ids        nameSet
	tagNames   nameSet
	attributes nameSet

	// Sibling sets only.
	maxDirectAdjacent  uint32
	siblingDescendants *InvalidationSet
	descendants        *InvalidationSet
}

var (
	selfInvalidationSet = &InvalidationSet{
		typ:       InvalidateDescendants,
		singleton: true,
		self:      true,
		refs:      1,
		flags:     flagInvalidatesSelf,
	}
	partInvalidationSet = &InvalidationSet{
		typ:       InvalidateDescendants,
		singleton: true,
		refs:      1,
		flags:     flagInvalidatesParts | flagTreeBoundaryCrossing,
	}
)

// SelfInvalidationSet returns the shared set that only invalidates the
// element it is scheduled on.
func SelfInvalidationSet() *InvalidationSet { return selfInvalidationSet }

// PartInvalidationSet returns the shared set that invalidates every element
// exposing a part in shadow trees below the scheduled element.
func PartInvalidationSet() *InvalidationSet { return partInvalidationSet }

// NewDescendantSet returns an empty descendant set holding one reference.
func NewDescendantSet() *InvalidationSet {
	return &InvalidationSet{typ: InvalidateDescendants, refs: 1}
}

// NewSiblingSet returns a sibling set. descendants, when non-nil, becomes the
// set used for descendant invalidation of the same key.
func NewSiblingSet(descendants *InvalidationSet) *InvalidationSet {
	if descendants != nil {
		descendants.Ref()
	}
	return &InvalidationSet{
		typ:               InvalidateSiblings,
		refs:              1,
		maxDirectAdjacent: 1,
		descendants:       descendants,
	}
}

// NewNthSiblingSet returns the sibling set used for positional pseudo
// classes. It reaches every later sibling.
func NewNthSiblingSet() *InvalidationSet {
	s := NewSiblingSet(nil)
	s.nth = true
	s.maxDirectAdjacent = DirectAdjacentMax
	return s
}

func (s *InvalidationSet) Type() SetType { return s.typ }

func (s *InvalidationSet) IsDescendantSet() bool { return s.typ == InvalidateDescendants }

func (s *InvalidationSet) IsSiblingSet() bool { return s.typ == InvalidateSiblings }

// IsSelfInvalidationSet reports whether s is the shared self singleton.
func (s *InvalidationSet) IsSelfInvalidationSet() bool { return s.self }

// IsNthSiblingSet reports whether s was created by NewNthSiblingSet.
func (s *InvalidationSet) IsNthSiblingSet() bool { return s.nth }

// Ref records one more owner of s.
func (s *InvalidationSet) Ref() {
	if !s.singleton {
		s.refs++
	}
}

// Release drops one owner of s.
func (s *InvalidationSet) Release() {
	if !s.singleton && s.refs > 0 {
		s.refs--
	}
}

// HasOneRef reports whether s may be mutated in place by its owner.
func (s *InvalidationSet) HasOneRef() bool { return !s.singleton && s.refs == 1 }

// RefCount returns the number of owners. Singletons always report one.
func (s *InvalidationSet) RefCount() int32 { return s.refs }

func (s *InvalidationSet) mutable() {
	if s.singleton {
		panic("invalidation: shared singleton set must not be mutated")
	}
}

func (s *InvalidationSet) setFlag(f setFlags) {
	s.mutable()
	s.flags |= f
}

func (s *InvalidationSet) AddClass(name string) {
	s.mutable()
	if !s.WholeSubtreeInvalid() && name != "" {
		s.classes.add(name)
	}
}

func (s *InvalidationSet) AddID(name string) {
	s.mutable()
	if !s.WholeSubtreeInvalid() && name != "" {
		s.ids.add(name)
	}
}

func (s *InvalidationSet) AddTagName(name string) {
	s.mutable()
	if !s.WholeSubtreeInvalid() && name != "" {
		s.tagNames.add(name)
	}
}

func (s *InvalidationSet) AddAttribute(name string) {
	s.mutable()
	if !s.WholeSubtreeInvalid() && name != "" {
		s.attributes.add(name)
	}
}

func (s *InvalidationSet) HasClass(name string) bool     { return s.classes.has(name) }
func (s *InvalidationSet) HasID(name string) bool        { return s.ids.has(name) }
func (s *InvalidationSet) HasTagName(name string) bool   { return s.tagNames.has(name) }
func (s *InvalidationSet) HasAttribute(name string) bool { return s.attributes.has(name) }

// Classes returns the class names in sorted order.
func (s *InvalidationSet) Classes() []string    { return s.classes.sorted() }
func (s *InvalidationSet) IDs() []string        { return s.ids.sorted() }
func (s *InvalidationSet) TagNames() []string   { return s.tagNames.sorted() }
func (s *InvalidationSet) Attributes() []string { return s.attributes.sorted() }

func (s *InvalidationSet) hasEmptyBackings() bool {
	return len(s.classes) == 0 && len(s.ids) == 0 && len(s.tagNames) == 0 && len(s.attributes) == 0
}

// IsEmpty reports whether scheduling s for descendants could never match
// anything.
func (s *InvalidationSet) IsEmpty() bool {
	return s.hasEmptyBackings() && s.flags&(flagCustomPseudoInvalid|flagInsertionPointCrossing|flagInvalidatesSlotted|flagInvalidatesParts) == 0
}

// SetWholeSubtreeInvalid makes s match every element. Payload and the
// scoping flags are dropped because they no longer narrow anything.
func (s *InvalidationSet) SetWholeSubtreeInvalid() {
	s.mutable()
	if s.WholeSubtreeInvalid() {
		return
	}
	s.flags |= flagWholeSubtreeInvalid
	s.flags &^= flagCustomPseudoInvalid | flagTreeBoundaryCrossing | flagInsertionPointCrossing | flagInvalidatesSlotted | flagInvalidatesParts
	s.classes, s.ids, s.tagNames, s.attributes = nil, nil, nil, nil
}

func (s *InvalidationSet) SetInvalidatesSelf() { s.setFlag(flagInvalidatesSelf) }
func (s *InvalidationSet) SetInvalidatesNth()  { s.setFlag(flagInvalidatesNth) }

func (s *InvalidationSet) SetTreeBoundaryCrossing() {
	if !s.WholeSubtreeInvalid() {
		s.setFlag(flagTreeBoundaryCrossing)
	}
}

func (s *InvalidationSet) SetInsertionPointCrossing() {
	if !s.WholeSubtreeInvalid() {
		s.setFlag(flagInsertionPointCrossing)
	}
}

func (s *InvalidationSet) SetInvalidatesSlotted() {
	if !s.WholeSubtreeInvalid() {
		s.setFlag(flagInvalidatesSlotted)
	}
}

func (s *InvalidationSet) SetInvalidatesParts() {
	if !s.WholeSubtreeInvalid() {
		s.setFlag(flagInvalidatesParts)
	}
}

func (s *InvalidationSet) SetCustomPseudoInvalid() {
	if !s.WholeSubtreeInvalid() {
		s.setFlag(flagCustomPseudoInvalid)
	}
}

func (s *InvalidationSet) WholeSubtreeInvalid() bool    { return s.flags&flagWholeSubtreeInvalid != 0 }
func (s *InvalidationSet) TreeBoundaryCrossing() bool   { return s.flags&flagTreeBoundaryCrossing != 0 }
func (s *InvalidationSet) InsertionPointCrossing() bool { return s.flags&flagInsertionPointCrossing != 0 }
func (s *InvalidationSet) InvalidatesSlotted() bool     { return s.flags&flagInvalidatesSlotted != 0 }
func (s *InvalidationSet) InvalidatesNth() bool         { return s.flags&flagInvalidatesNth != 0 }
func (s *InvalidationSet) InvalidatesSelf() bool        { return s.flags&flagInvalidatesSelf != 0 }
func (s *InvalidationSet) InvalidatesParts() bool       { return s.flags&flagInvalidatesParts != 0 }
func (s *InvalidationSet) CustomPseudoInvalid() bool    { return s.flags&flagCustomPseudoInvalid != 0 }

// MaxDirectAdjacentSelectors is the sibling distance a sibling set reaches.
// Descendant sets report zero.
func (s *InvalidationSet) MaxDirectAdjacentSelectors() uint32 { return s.maxDirectAdjacent }

// UpdateMaxDirectAdjacentSelectors raises the reach of a sibling set.
func (s *InvalidationSet) UpdateMaxDirectAdjacentSelectors(v uint32) {
	s.mutable()
	s.maxDirectAdjacent = max(s.maxDirectAdjacent, v)
}

// SiblingDescendants is the set applied to descendants of matching siblings.
func (s *InvalidationSet) SiblingDescendants() *InvalidationSet { return s.siblingDescendants }

// EnsureSiblingDescendants creates the sibling-descendant set on demand.
func (s *InvalidationSet) EnsureSiblingDescendants() *InvalidationSet {
	s.mutable()
	if s.siblingDescendants == nil {
		s.siblingDescendants = NewDescendantSet()
	}
	return s.siblingDescendants
}

// Descendants is the descendant set stored under the same key as a sibling
// set.
func (s *InvalidationSet) Descendants() *InvalidationSet { return s.descendants }

// EnsureDescendants creates the descendant set of a sibling set on demand.
func (s *InvalidationSet) EnsureDescendants() *InvalidationSet {
	s.mutable()
	if s.descendants == nil {
		s.descendants = NewDescendantSet()
	}
	return s.descendants
}

// Combine unions other into s. Both must have the same type.
func (s *InvalidationSet) Combine(other *InvalidationSet) {
	if s == other || other == nil {
		return
	}
	s.mutable()
	if s.typ != other.typ {
		panic("invalidation: combining sets of different types")
	}
	if s.IsSiblingSet() {
		s.UpdateMaxDirectAdjacentSelectors(other.maxDirectAdjacent)
		if other.siblingDescendants != nil {
			s.EnsureSiblingDescendants().Combine(other.siblingDescendants)
		}
		if other.descendants != nil {
			s.EnsureDescendants().Combine(other.descendants)
		}
	}
	if other.InvalidatesNth() {
		s.SetInvalidatesNth()
	}
	if other.InvalidatesSelf() {
		s.SetInvalidatesSelf()
	}
	if other.WholeSubtreeInvalid() {
		s.SetWholeSubtreeInvalid()
		return
	}
	if s.WholeSubtreeInvalid() {
		return
	}
	s.flags |= other.flags & (flagCustomPseudoInvalid | flagTreeBoundaryCrossing | flagInsertionPointCrossing | flagInvalidatesSlotted | flagInvalidatesParts)
	for k := range other.classes {
		s.classes.add(k)
	}
	for k := range other.ids {
		s.ids.add(k)
	}
	for k := range other.tagNames {
		s.tagNames.add(k)
	}
	for k := range other.attributes {
		s.attributes.add(k)
	}
}

// InvalidatesElement reports whether el carries a feature recorded in s.
func (s *InvalidationSet) InvalidatesElement(doc *dom.Document, el dom.NodeID) bool {
	if s.WholeSubtreeInvalid() {
		return true
	}
	if len(s.tagNames) > 0 && s.tagNames.has(doc.LocalName(el)) {
		return true
	}
	if len(s.ids) > 0 && doc.HasID(el) && s.ids.has(doc.ID(el)) {
		return true
	}
	if len(s.classes) > 0 {
		for _, c := range doc.Classes(el) {
			if s.classes.has(c) {
				return true
			}
		}
	}
	if len(s.attributes) > 0 {
		for _, a := range doc.Attributes(el) {
			if s.attributes.has(a.Name) {
				return true
			}
		}
	}
	return s.InvalidatesParts() && doc.HasPart(el)
}

// InvalidatesTagName reports whether s names the tag of el.
func (s *InvalidationSet) InvalidatesTagName(doc *dom.Document, el dom.NodeID) bool {
	return len(s.tagNames) > 0 && s.tagNames.has(doc.LocalName(el))
}

// Equal compares two sets by value, including nested sets.
func (s *InvalidationSet) Equal(o *InvalidationSet) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	if s.typ != o.typ || s.flags != o.flags || s.nth != o.nth {
		return false
	}
	if !s.classes.equal(o.classes) || !s.ids.equal(o.ids) || !s.tagNames.equal(o.tagNames) || !s.attributes.equal(o.attributes) {
		return false
	}
	if s.IsSiblingSet() {
		return s.maxDirectAdjacent == o.maxDirectAdjacent &&
			s.siblingDescendants.Equal(o.siblingDescendants) &&
			s.descendants.Equal(o.descendants)
	}
	return true
}

func (s *InvalidationSet) featureString() string {
	var parts []string
	add := func(names nameSet, prefix, suffix string) {
		if len(names) == 0 {
			return
		}
		var sb strings.Builder
		for _, n := range names.sorted() {
			sb.WriteString(prefix + n + suffix)
		}
		parts = append(parts, sb.String())
	}
	add(s.ids, "#", "")
	add(s.classes, ".", "")
	add(s.tagNames, "", "")
	add(s.attributes, "[", "]")
	return strings.Join(parts, " ")
}

func (s *InvalidationSet) metadataString() string {
	var sb strings.Builder
	for _, f := range []struct {
		on   bool
		code string
	}{
		{s.InvalidatesSelf(), "$"},
		{s.WholeSubtreeInvalid(), "W"},
		{s.CustomPseudoInvalid(), "C"},
		{s.TreeBoundaryCrossing(), "T"},
		{s.InsertionPointCrossing(), "I"},
		{s.InvalidatesSlotted(), "S"},
		{s.InvalidatesParts(), "P"},
		{s.InvalidatesNth(), "N"},
	} {
		if f.on {
			sb.WriteString(f.code)
		}
	}
	if s.IsSiblingSet() {
		switch m := s.maxDirectAdjacent; {
		case m == DirectAdjacentMax:
			sb.WriteString("~")
		case m != 1:
			sb.WriteString(formatUint(m))
		}
	}
	return sb.String()
}

// String renders the set as {<flags> features}, for example {<$T> .a #b}.
func (s *InvalidationSet) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	meta, features := s.metadataString(), s.featureString()
	if meta != "" {
		sb.WriteString("<" + meta + ">")
	}
	if features != "" {
		if meta != "" {
			sb.WriteString(" ")
		}
		sb.WriteString(features)
	}
	sb.WriteString("}")
	return sb.String()
}

// Tree adds a human readable rendering of s below branch.
func (s *InvalidationSet) Tree(branch treeprint.Tree) {
	if meta := s.metadataString(); meta != "" {
		branch.AddNode("flags " + meta)
	}
	for _, n := range s.ids.sorted() {
		branch.AddNode("#" + n)
	}
	for _, n := range s.classes.sorted() {
		branch.AddNode("." + n)
	}
	for _, n := range s.tagNames.sorted() {
		branch.AddNode(n)
	}
	for _, n := range s.attributes.sorted() {
		branch.AddNode("[" + n + "]")
	}
	if s.siblingDescendants != nil {
		s.siblingDescendants.Tree(branch.AddBranch("sibling descendants"))
	}
}

// CopyInvalidationSet returns a fresh, singly referenced copy of s. The self
// singleton becomes an ordinary descendant set that invalidates self.
func CopyInvalidationSet(s *InvalidationSet) *InvalidationSet {
	if s.IsSiblingSet() {
		c := NewSiblingSet(nil)
		c.nth = s.nth
		c.Combine(s)
		return c
	}
	c := NewDescendantSet()
	if s.IsSelfInvalidationSet() {
		c.SetInvalidatesSelf()
		return c
	}
	c.Combine(s)
	return c
}

// ExtractInvalidationSets splits an index slot into its descendant and
// sibling parts.
func ExtractInvalidationSets(s *InvalidationSet) (descendants, siblings *InvalidationSet) {
	if s == nil {
		return nil, nil
	}
	if s.IsDescendantSet() {
		return s, nil
	}
	return s.descendants, s
}

// InvalidationLists batches the sets a single mutation schedules.
type InvalidationLists struct {
	Descendants []*InvalidationSet
	Siblings    []*InvalidationSet
}

// IsEmpty reports whether nothing was collected.
func (l *InvalidationLists) IsEmpty() bool {
	return len(l.Descendants) == 0 && len(l.Siblings) == 0
}

func formatUint(v uint32) string {
	var buf [10]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	return string(buf[i:])
}
