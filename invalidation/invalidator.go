package invalidation

import (
	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/invalidator/dom"
)

type invalidationFlags struct {
	wholeSubtreeInvalid    bool
	treeBoundaryCrossing   bool
	insertionPointCrossing bool
	invalidatesSlotted     bool
	invalidatesParts       bool
	customPseudoInvalid    bool
}

type siblingEntry struct {
	set   *InvalidationSet
	limit uint32
}

// siblingData tracks sibling sets while walking the children of one parent.
// Each entry stays active until the walk has moved past its reach.
type siblingData struct {
	entries      []siblingEntry
	elementIndex uint32
}

func (s *siblingData) advance() { s.elementIndex++ }

func (s *siblingData) push(set *InvalidationSet) {
	limit := DirectAdjacentMax
	if m := set.MaxDirectAdjacentSelectors(); m != DirectAdjacentMax {
		limit = s.elementIndex + m
	}
	s.entries = append(s.entries, siblingEntry{set: set, limit: limit})
}

func (s *siblingData) isEmpty() bool { return len(s.entries) == 0 }

// StyleInvalidator walks the nodes marked with pending invalidation sets and
// converts the sets into style recalc bits on the elements they match.
type StyleInvalidator struct {
	doc     *dom.Document
	pending *PendingInvalidations
	log     *zap.Logger

	sets  []*InvalidationSet
	flags invalidationFlags

	invalidated *roaring.Bitmap
}

// NewStyleInvalidator creates an invalidator that consumes pending.
func NewStyleInvalidator(doc *dom.Document, pending *PendingInvalidations, log *zap.Logger) *StyleInvalidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &StyleInvalidator{doc: doc, pending: pending, log: log.Named("invalidator")}
}

// Invalidate processes every pending set in the document and clears the
// pending map. The result holds every element this pass marked dirty.
func (si *StyleInvalidator) Invalidate() *roaring.Bitmap {
	si.invalidated = roaring.New()
	si.sets = si.sets[:0]
	si.flags = invalidationFlags{}

	doc := si.doc
	root := doc.Root()
	var siblings siblingData
	if doc.HasFlags(root, dom.NeedsStyleInvalidation) {
		si.pushInvalidationSetsForContainerNode(root, &siblings)
	}
	if doc.HasFlags(root, dom.ChildNeedsStyleInvalidation) || si.hasInvalidationSets() {
		si.invalidateChildren(root)
	}
	doc.ClearNeedsStyleInvalidation(root)
	si.pending.Clear()

	si.log.Debug("invalidation pass done", zap.Uint64("invalidated", si.invalidated.GetCardinality()))
	return si.invalidated
}

func (si *StyleInvalidator) hasInvalidationSets() bool {
	return !si.flags.wholeSubtreeInvalid && len(si.sets) > 0
}

func (si *StyleInvalidator) setWholeSubtreeInvalid() { si.flags.wholeSubtreeInvalid = true }

func (si *StyleInvalidator) markLocal(el dom.NodeID) {
	si.doc.SetNeedsStyleRecalc(el, dom.LocalStyleChange)
	si.invalidated.Add(uint32(el))
}

func (si *StyleInvalidator) markSubtree(el dom.NodeID) {
	si.doc.SetNeedsStyleRecalc(el, dom.SubtreeStyleChange)
	si.invalidated.Add(uint32(el))
}

func (si *StyleInvalidator) pushInvalidationSet(set *InvalidationSet) {
	if set.WholeSubtreeInvalid() {
		si.setWholeSubtreeInvalid()
		return
	}
	if set.TreeBoundaryCrossing() {
		si.flags.treeBoundaryCrossing = true
	}
	if set.InsertionPointCrossing() {
		si.flags.insertionPointCrossing = true
	}
	if set.InvalidatesSlotted() {
		si.flags.invalidatesSlotted = true
	}
	if set.InvalidatesParts() {
		si.flags.invalidatesParts = true
	}
	if set.CustomPseudoInvalid() {
		si.flags.customPseudoInvalid = true
	}
	si.sets = append(si.sets, set)
}

func (si *StyleInvalidator) pushInvalidationSetsForContainerNode(node dom.NodeID, siblings *siblingData) {
	sets := si.pending.Pending(node)
	if sets == nil {
		return
	}
	for _, s := range sets.Siblings {
		siblings.push(s)
	}
	if si.doc.StyleChange(node) >= dom.SubtreeStyleChange {
		return
	}
	for _, s := range sets.Descendants {
		si.pushInvalidationSet(s)
	}
}

func (si *StyleInvalidator) matchesCurrentInvalidationSets(el dom.NodeID) bool {
	if si.flags.customPseudoInvalid && si.doc.ShadowPseudoID(el) != "" {
		return true
	}
	if si.flags.insertionPointCrossing && si.doc.IsSlot(el) {
		return true
	}
	for _, s := range si.sets {
		if s.InvalidatesElement(si.doc, el) {
			return true
		}
	}
	return false
}

// matchSiblings applies the active sibling sets to el. Entries that el has
// moved past are dropped.
func (si *StyleInvalidator) matchSiblings(el dom.NodeID, siblings *siblingData) bool {
	needsRecalc := false
	for i := 0; i < len(siblings.entries); {
		e := siblings.entries[i]
		if siblings.elementIndex > e.limit {
			last := len(siblings.entries) - 1
			siblings.entries[i] = siblings.entries[last]
			siblings.entries = siblings.entries[:last]
			continue
		}
		i++
		if !e.set.InvalidatesElement(si.doc, el) {
			continue
		}
		if e.set.InvalidatesSelf() {
			needsRecalc = true
		}
		if sd := e.set.SiblingDescendants(); sd != nil {
			if sd.WholeSubtreeInvalid() {
				si.markSubtree(el)
				return true
			}
			if !sd.IsEmpty() {
				si.pushInvalidationSet(sd)
			}
		}
	}
	return needsRecalc
}

func (si *StyleInvalidator) checkInvalidationSetsAgainstElement(el dom.NodeID, siblings *siblingData) bool {
	if si.hasInvalidationSets() && si.matchesCurrentInvalidationSets(el) {
		return true
	}
	return !siblings.isEmpty() && si.matchSiblings(el, siblings)
}

func (si *StyleInvalidator) invalidate(el dom.NodeID, siblings *siblingData) {
	doc := si.doc
	siblings.advance()

	savedLen, savedFlags := len(si.sets), si.flags
	defer func() {
		si.sets = si.sets[:savedLen]
		si.flags = savedFlags
	}()

	if !si.flags.wholeSubtreeInvalid {
		if doc.StyleChange(el) == dom.SubtreeStyleChange {
			si.setWholeSubtreeInvalid()
		} else if si.checkInvalidationSetsAgainstElement(el, siblings) {
			si.markLocal(el)
		}
		if doc.HasFlags(el, dom.NeedsStyleInvalidation) {
			si.pushInvalidationSetsForContainerNode(el, siblings)
		}
	}

	if si.hasInvalidationSets() || doc.HasFlags(el, dom.ChildNeedsStyleInvalidation) {
		si.invalidateChildren(el)
	}
	if si.hasInvalidationSets() && si.flags.invalidatesSlotted && doc.IsSlot(el) {
		si.invalidateSlotAssignedElements(el)
	}
	doc.ClearNeedsStyleInvalidation(el)
}

func (si *StyleInvalidator) invalidateShadowRoot(root dom.NodeID) {
	doc := si.doc
	savedLen, savedFlags := len(si.sets), si.flags
	defer func() {
		si.sets = si.sets[:savedLen]
		si.flags = savedFlags
	}()

	var siblings siblingData
	if !si.flags.wholeSubtreeInvalid && doc.HasFlags(root, dom.NeedsStyleInvalidation) {
		si.pushInvalidationSetsForContainerNode(root, &siblings)
	}
	si.invalidateChildren(root)
	doc.ClearNeedsStyleInvalidation(root)
}

func (si *StyleInvalidator) invalidateChildren(parent dom.NodeID) {
	doc := si.doc
	if root := doc.ShadowRoot(parent); root.Valid() {
		if si.flags.treeBoundaryCrossing && si.hasInvalidationSets() ||
			doc.HasFlags(root, dom.NeedsStyleInvalidation|dom.ChildNeedsStyleInvalidation) {
			si.invalidateShadowRoot(root)
		}
	}
	var siblings siblingData
	for c := doc.FirstElementChild(parent); c.Valid(); c = doc.NextElementSibling(c) {
		si.invalidate(c, &siblings)
	}
}

// invalidateSlotAssignedElements checks the elements assigned to slot
// against the sets active inside the shadow tree.
func (si *StyleInvalidator) invalidateSlotAssignedElements(slot dom.NodeID) {
	for _, n := range si.doc.AssignedNodes(slot) {
		if !si.doc.IsElement(n) || si.doc.StyleChange(n) != dom.NoStyleChange {
			continue
		}
		if si.matchesCurrentInvalidationSets(n) {
			si.markLocal(n)
		}
	}
}
