package dom

// StyleChangeType orders how much of a subtree must be recomputed.
type StyleChangeType uint8

const (
	NoStyleChange StyleChangeType = iota
	LocalStyleChange
	SubtreeStyleChange
)

func (t StyleChangeType) String() string {
	switch t {
	case NoStyleChange:
		return "none"
	case LocalStyleChange:
		return "local"
	case SubtreeStyleChange:
		return "subtree"
	}
	return "unknown"
}

// ElementFlags are per-node bits. The first group tracks dirtiness; the rest
// are recorded by the selector matcher while resolving style and consulted
// by invalidation to decide how far a mutation can reach.
type ElementFlags uint32

const (
	ChildNeedsStyleRecalc ElementFlags = 1 << iota
	NeedsStyleInvalidation
	ChildNeedsStyleInvalidation
	HasComputedStyle

	ChildrenAffectedByDirectAdjacentRules
	ChildrenAffectedByIndirectAdjacentRules
	ChildrenAffectedByFirstChildRules
	ChildrenAffectedByLastChildRules
	ChildrenAffectedByForwardPositionalRules
	ChildrenAffectedByBackwardPositionalRules
	AffectedByFirstChildRules
	AffectedByLastChildRules
	AffectedByEmpty

	AffectedBySubjectHas
	AffectedByNonSubjectHas
	AncestorsOrAncestorSiblingsAffectedByHas
	SiblingsAffectedByHasForSiblingRelationship
	SiblingsAffectedByHasForSiblingDescendantRelationship
	AffectedByPseudoInHas
	AffectedByLogicalCombinationsInHas
	AffectedByMultipleHas
)

// ChildrenAffectedByStructuralRules is the union of the flags that make a
// parent sensitive to the order of its children.
const ChildrenAffectedByStructuralRules = ChildrenAffectedByDirectAdjacentRules |
	ChildrenAffectedByIndirectAdjacentRules |
	ChildrenAffectedByFirstChildRules |
	ChildrenAffectedByLastChildRules |
	ChildrenAffectedByForwardPositionalRules |
	ChildrenAffectedByBackwardPositionalRules

// SiblingsAffectedByHas is the union of the sibling relationship flags.
const SiblingsAffectedByHas = SiblingsAffectedByHasForSiblingRelationship |
	SiblingsAffectedByHasForSiblingDescendantRelationship

// Has reports whether any bit of mask is set.
func (f ElementFlags) Has(mask ElementFlags) bool { return f&mask != 0 }

// Flags returns the flag word of id.
func (d *Document) Flags(id NodeID) ElementFlags {
	if n := d.get(id); n != nil {
		return n.flags
	}
	return 0
}

// HasFlags reports whether id carries any bit of mask.
func (d *Document) HasFlags(id NodeID, mask ElementFlags) bool {
	return d.Flags(id).Has(mask)
}

// SetFlags ORs mask into the flags of id.
func (d *Document) SetFlags(id NodeID, mask ElementFlags) {
	if n := d.get(id); n != nil {
		n.flags |= mask
	}
}

// ClearFlags removes mask from the flags of id.
func (d *Document) ClearFlags(id NodeID, mask ElementFlags) {
	if n := d.get(id); n != nil {
		n.flags &^= mask
	}
}

// StyleChange returns the pending style change of id.
func (d *Document) StyleChange(id NodeID) StyleChangeType {
	if n := d.get(id); n != nil {
		return n.styleChange
	}
	return NoStyleChange
}

// NeedsStyleRecalc reports whether id itself is dirty.
func (d *Document) NeedsStyleRecalc(id NodeID) bool {
	return d.StyleChange(id) != NoStyleChange
}

// SetNeedsStyleRecalc raises the style change of id to at least change and
// marks the ancestor chain so the recalc walk can find it. Nodes outside the
// active tree are ignored.
func (d *Document) SetNeedsStyleRecalc(id NodeID, change StyleChangeType) {
	n := d.get(id)
	if n == nil || change == NoStyleChange || !n.isContainer() && n.kind != TextNode {
		return
	}
	if !d.IsConnected(id) {
		return
	}
	existing := n.styleChange
	if change > existing {
		n.styleChange = change
	}
	if existing == NoStyleChange {
		d.markAncestors(id, ChildNeedsStyleRecalc)
	}
}

// ClearNeedsStyleRecalc resets the style change of id.
func (d *Document) ClearNeedsStyleRecalc(id NodeID) {
	if n := d.get(id); n != nil {
		n.styleChange = NoStyleChange
	}
}

// SetNeedsStyleInvalidation records that id has pending invalidation sets.
func (d *Document) SetNeedsStyleInvalidation(id NodeID) {
	n := d.get(id)
	if n == nil || n.flags.Has(NeedsStyleInvalidation) {
		return
	}
	n.flags |= NeedsStyleInvalidation
	d.markAncestors(id, ChildNeedsStyleInvalidation)
}

// ClearNeedsStyleInvalidation drops both invalidation bits of id.
func (d *Document) ClearNeedsStyleInvalidation(id NodeID) {
	d.ClearFlags(id, NeedsStyleInvalidation|ChildNeedsStyleInvalidation)
}

// markAncestors sets flag on every ancestor, crossing shadow boundaries,
// stopping at the first one that already has it.
func (d *Document) markAncestors(id NodeID, flag ElementFlags) {
	for p := d.ParentOrShadowHost(id); p.Valid(); p = d.ParentOrShadowHost(p) {
		pn := d.nodes[p]
		if pn.flags.Has(flag) {
			return
		}
		pn.flags |= flag
	}
}

// SetInStyleRecalc toggles the document-wide recalc phase.
func (d *Document) SetInStyleRecalc(v bool) { d.inStyleRecalc = v }

// InStyleRecalc reports whether a recalc pass is running.
func (d *Document) InStyleRecalc() bool { return d.inStyleRecalc }

// HasPendingForcedStyleRecalc reports whether the whole document is already
// scheduled for a subtree recalc.
func (d *Document) HasPendingForcedStyleRecalc() bool {
	return d.StyleChange(d.Root()) == SubtreeStyleChange
}
