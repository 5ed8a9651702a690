package style

import (
	"go.uber.org/zap"

	"github.com/chrisuehlinger/invalidator/css"
	"github.com/chrisuehlinger/invalidator/dom"
	"github.com/chrisuehlinger/invalidator/invalidation"
)

func (e *Engine) schedule(kind string, lists invalidation.InvalidationLists, node dom.NodeID) {
	if lists.IsEmpty() {
		return
	}
	e.metrics.RecordInvalidationSets(kind, len(lists.Descendants)+len(lists.Siblings))
	e.pending.ScheduleInvalidationSetsForNode(lists, node)
}

func (e *Engine) hasEnabled() bool { return e.opts.HasInvalidation }

// ClassesChangedForElement schedules invalidation for classes that were all
// added to or all removed from el.
func (e *Engine) ClassesChangedForElement(changed []string, el dom.NodeID) {
	if e.ShouldSkipInvalidationFor(el) {
		return
	}
	features := e.RuleFeatureSet()

	if e.hasEnabled() && features.NeedsHasInvalidationForClassChange() && e.possiblyAffectingHasState(el) {
		for _, class := range changed {
			if features.NeedsHasInvalidationForClass(class) {
				e.InvalidateChangedElementAffectedByLogicalCombinationsInHas(el, false)
				e.InvalidateAncestorsOrSiblingsAffectedByHas(el)
				break
			}
		}
	}

	if e.IsSubtreeAndSiblingsStyleDirty(el) {
		return
	}
	var lists invalidation.InvalidationLists
	for _, class := range changed {
		features.CollectInvalidationSetsForClass(&lists, el, class)
	}
	e.schedule(KindClass, lists, el)
}

// ClassChangedForElement schedules invalidation for the classes that differ
// between oldClasses and newClasses.
func (e *Engine) ClassChangedForElement(oldClasses, newClasses []string, el dom.NodeID) {
	if e.ShouldSkipInvalidationFor(el) {
		return
	}
	if len(oldClasses) == 0 {
		e.ClassesChangedForElement(newClasses, el)
		return
	}
	features := e.RuleFeatureSet()

	needsSchedule := !e.IsSubtreeAndSiblingsStyleDirty(el)
	possiblyAffectingHas := e.hasEnabled() && features.NeedsHasInvalidationForClassChange() &&
		e.possiblyAffectingHasState(el)
	if !needsSchedule && !possiblyAffectingHas {
		return
	}

	// Class lists are short; a linear scan beats a map.
	remaining := make([]bool, len(oldClasses))
	var lists invalidation.InvalidationLists
	affectingHas := false

	changed := func(class string) {
		if needsSchedule {
			features.CollectInvalidationSetsForClass(&lists, el, class)
		}
		if possiblyAffectingHas && features.NeedsHasInvalidationForClass(class) {
			affectingHas = true
			possiblyAffectingHas = false
		}
	}

	for _, class := range newClasses {
		found := false
		for j, old := range oldClasses {
			if class == old {
				// A class may be listed twice, so keep scanning.
				remaining[j] = true
				found = true
			}
		}
		if !found {
			changed(class)
		}
	}
	for i, class := range oldClasses {
		if !remaining[i] {
			changed(class)
		}
	}

	if needsSchedule {
		e.schedule(KindClass, lists, el)
	}
	if affectingHas {
		e.InvalidateChangedElementAffectedByLogicalCombinationsInHas(el, false)
		e.InvalidateAncestorsOrSiblingsAffectedByHas(el)
	}
}

// AttributeChangedForElement schedules invalidation for a change of the
// attribute name on el.
func (e *Engine) AttributeChangedForElement(name string, el dom.NodeID) {
	if e.ShouldSkipInvalidationFor(el) {
		return
	}
	features := e.RuleFeatureSet()

	if e.hasEnabled() && features.NeedsHasInvalidationForAttributeChange() && e.possiblyAffectingHasState(el) {
		if features.NeedsHasInvalidationForAttribute(name) {
			e.InvalidateChangedElementAffectedByLogicalCombinationsInHas(el, false)
			e.InvalidateAncestorsOrSiblingsAffectedByHas(el)
		}
	}

	if e.IsSubtreeAndSiblingsStyleDirty(el) {
		return
	}
	var lists invalidation.InvalidationLists
	features.CollectInvalidationSetsForAttribute(&lists, el, name)
	e.schedule(KindAttribute, lists, el)
}

// IdChangedForElement schedules invalidation for both the old and the new
// id of el. Empty ids are ignored.
func (e *Engine) IdChangedForElement(oldID, newID string, el dom.NodeID) {
	if e.ShouldSkipInvalidationFor(el) {
		return
	}
	features := e.RuleFeatureSet()

	if e.hasEnabled() && features.NeedsHasInvalidationForIDChange() && e.possiblyAffectingHasState(el) {
		if oldID != "" && features.NeedsHasInvalidationForID(oldID) ||
			newID != "" && features.NeedsHasInvalidationForID(newID) {
			e.InvalidateChangedElementAffectedByLogicalCombinationsInHas(el, false)
			e.InvalidateAncestorsOrSiblingsAffectedByHas(el)
		}
	}

	if e.IsSubtreeAndSiblingsStyleDirty(el) {
		return
	}
	var lists invalidation.InvalidationLists
	if oldID != "" {
		features.CollectInvalidationSetsForID(&lists, el, oldID)
	}
	if newID != "" {
		features.CollectInvalidationSetsForID(&lists, el, newID)
	}
	e.schedule(KindID, lists, el)
}

// PseudoStateChangedForElement schedules invalidation for a change of the
// state observed by pseudo on el. The flags select whether the change can
// reach descendants and siblings through ordinary selectors, ancestors and
// earlier siblings through :has(), or both.
func (e *Engine) PseudoStateChangedForElement(pseudo css.PseudoType, el dom.NodeID, invalidateDescendantsOrSiblings, invalidateAncestorsOrSiblings bool) {
	if !invalidateDescendantsOrSiblings && !invalidateAncestorsOrSiblings {
		return
	}
	if e.ShouldSkipInvalidationFor(el) {
		return
	}
	features := e.RuleFeatureSet()

	if invalidateAncestorsOrSiblings && e.hasEnabled() &&
		features.NeedsHasInvalidationForPseudoStateChange() && e.possiblyAffectingHasState(el) {
		if features.NeedsHasInvalidationForPseudoClass(pseudo) {
			e.InvalidateChangedElementAffectedByLogicalCombinationsInHas(el, true)
			e.InvalidateAncestorsOrSiblingsAffectedByHasForPseudoChange(el)
		}
	}

	if !invalidateDescendantsOrSiblings || e.IsSubtreeAndSiblingsStyleDirty(el) {
		return
	}
	var lists invalidation.InvalidationLists
	features.CollectInvalidationSetsForPseudoClass(&lists, el, pseudo)
	e.schedule(KindPseudo, lists, el)
}

// PartChangedForElement recomputes el when its part names changed inside a
// shadow tree and some rule uses ::part().
func (e *Engine) PartChangedForElement(el dom.NodeID) {
	if e.ShouldSkipInvalidationFor(el) || e.IsSubtreeAndSiblingsStyleDirty(el) {
		return
	}
	if e.doc.TreeScope(el) == e.doc.Root() {
		return
	}
	if !e.InvalidatesParts() {
		return
	}
	e.metrics.RecordInvalidationSets(KindPart, 1)
	e.doc.SetNeedsStyleRecalc(el, dom.LocalStyleChange)
}

// ExportpartsChangedForElement invalidates the parts in the shadow tree of
// el after its exportparts mapping changed.
func (e *Engine) ExportpartsChangedForElement(el dom.NodeID) {
	if e.ShouldSkipInvalidationFor(el) || e.IsSubtreeAndSiblingsStyleDirty(el) {
		return
	}
	if !e.doc.ShadowRoot(el).Valid() {
		return
	}
	var lists invalidation.InvalidationLists
	e.RuleFeatureSet().CollectPartInvalidationSet(&lists)
	e.schedule(KindPart, lists, el)
}

// ScheduleSiblingInvalidationsForElement schedules the sibling sets of every
// feature of el that reach at least minDirectAdjacent siblings. They are
// applied as descendant invalidation of schedulingParent because el itself
// is the sibling that moved.
func (e *Engine) ScheduleSiblingInvalidationsForElement(el, schedulingParent dom.NodeID, minDirectAdjacent uint32) {
	features := e.RuleFeatureSet()
	var lists invalidation.InvalidationLists

	if e.doc.HasID(el) {
		features.CollectSiblingInvalidationSetForID(&lists, el, e.doc.ID(el), minDirectAdjacent)
	}
	for _, class := range e.doc.Classes(el) {
		features.CollectSiblingInvalidationSetForClass(&lists, el, class, minDirectAdjacent)
	}
	for _, attr := range e.doc.Attributes(el) {
		features.CollectSiblingInvalidationSetForAttribute(&lists, el, attr.Name, minDirectAdjacent)
	}
	features.CollectUniversalSiblingInvalidationSet(&lists, minDirectAdjacent)

	if len(lists.Siblings) == 0 {
		return
	}
	e.metrics.RecordInvalidationSets(KindSibling, len(lists.Siblings))
	e.pending.ScheduleSiblingInvalidationsAsDescendants(lists, schedulingParent)
}

func (e *Engine) affectedSiblings(parent dom.NodeID) uint32 {
	if e.doc.HasFlags(parent, dom.ChildrenAffectedByIndirectAdjacentRules) {
		return invalidation.DirectAdjacentMax
	}
	return e.MaxDirectAdjacentSelectors()
}

// ScheduleInvalidationsForInsertedSibling schedules the sibling sets of an
// inserted element and of the elements before it that can reach past it.
func (e *Engine) ScheduleInvalidationsForInsertedSibling(before, inserted dom.NodeID) {
	parent := e.doc.Parent(inserted)
	schedulingParent := e.doc.ParentElementOrShadowRoot(inserted)
	if !schedulingParent.Valid() {
		return
	}
	affected := e.affectedSiblings(parent)

	e.ScheduleSiblingInvalidationsForElement(inserted, schedulingParent, 1)
	for i := uint32(1); before.Valid() && i <= affected; i++ {
		e.ScheduleSiblingInvalidationsForElement(before, schedulingParent, i)
		before = e.doc.PreviousElementSibling(before)
	}
}

// ScheduleInvalidationsForRemovedSibling is the removal counterpart of
// ScheduleInvalidationsForInsertedSibling. after is the element that
// followed removed.
func (e *Engine) ScheduleInvalidationsForRemovedSibling(before, removed, after dom.NodeID) {
	parent := e.doc.Parent(after)
	schedulingParent := e.doc.ParentElementOrShadowRoot(after)
	if !schedulingParent.Valid() {
		return
	}
	affected := e.affectedSiblings(parent)

	e.ScheduleSiblingInvalidationsForElement(removed, schedulingParent, 1)
	for i := uint32(1); before.Valid() && i <= affected; i++ {
		e.ScheduleSiblingInvalidationsForElement(before, schedulingParent, i)
		before = e.doc.PreviousElementSibling(before)
	}
}

// ScheduleNthPseudoInvalidations invalidates the children of parent that
// carry a feature of the positional pseudo-class set.
func (e *Engine) ScheduleNthPseudoInvalidations(parent dom.NodeID) {
	var lists invalidation.InvalidationLists
	e.RuleFeatureSet().CollectNthInvalidationSet(&lists)
	if lists.IsEmpty() {
		return
	}
	e.metrics.RecordInvalidationSets(KindNth, len(lists.Siblings))
	// The nth set is a sibling set without a sibling to start from, so it
	// is applied to the children of parent as a descendant set.
	e.pending.ScheduleSiblingInvalidationsAsDescendants(lists, parent)
}

// :has() invalidation.

func (e *Engine) possiblyAffectingHasState(el dom.NodeID) bool {
	return e.doc.HasFlags(el, dom.AncestorsOrAncestorSiblingsAffectedByHas|
		dom.SiblingsAffectedByHas|dom.AffectedByLogicalCombinationsInHas)
}

// InvalidateElementAffectedByHas invalidates el when its style depends on
// the result of a :has() anchored at it. With forPseudoChange only anchors
// whose argument uses pseudo-classes are considered.
func (e *Engine) InvalidateElementAffectedByHas(el dom.NodeID, forPseudoChange bool) {
	doc := e.doc
	if forPseudoChange && !doc.HasFlags(el, dom.AffectedByPseudoInHas) {
		return
	}
	if doc.HasFlags(el, dom.AffectedBySubjectHas) {
		e.metrics.RecordInvalidationSets(KindHas, 1)
		doc.SetNeedsStyleRecalc(el, dom.LocalStyleChange)
	}
	if doc.HasFlags(el, dom.AffectedByNonSubjectHas) {
		var lists invalidation.InvalidationLists
		e.RuleFeatureSet().CollectInvalidationSetsForPseudoClass(&lists, el, css.PseudoHas)
		e.schedule(KindHas, lists, el)
	}
}

// invalidateAncestorsOrSiblingsAffectedByHas walks from the previous
// sibling, or the parent, of a changed element towards the :has() anchors
// that may observe it.
func (e *Engine) invalidateAncestorsOrSiblingsAffectedByHas(parent, previousSibling dom.NodeID, forPseudoChange bool) {
	doc := e.doc
	el := previousSibling
	if !el.Valid() {
		el = parent
	}
	traverseAncestors := false
	for el.Valid() {
		traverseAncestors = traverseAncestors || doc.HasFlags(el, dom.AncestorsOrAncestorSiblingsAffectedByHas)
		traverseSiblings := doc.HasFlags(el, dom.SiblingsAffectedByHas)

		e.InvalidateElementAffectedByHas(el, forPseudoChange)

		if traverseSiblings {
			if prev := doc.PreviousElementSibling(el); prev.Valid() {
				el = prev
				continue
			}
		}
		if !traverseAncestors {
			return
		}
		el = doc.ParentElement(el)
		traverseAncestors = false
	}
}

func (e *Engine) hasWalkStart(changed dom.NodeID) (parent, previousSibling dom.NodeID) {
	parent, previousSibling = dom.InvalidNodeID, dom.InvalidNodeID
	if e.doc.HasFlags(changed, dom.AncestorsOrAncestorSiblingsAffectedByHas) {
		parent = e.doc.ParentElement(changed)
	}
	if e.doc.HasFlags(changed, dom.SiblingsAffectedByHas) {
		previousSibling = e.doc.PreviousElementSibling(changed)
	}
	return parent, previousSibling
}

// InvalidateAncestorsOrSiblingsAffectedByHas invalidates the :has() anchors
// that a change of a class, id or attribute of changed can affect.
func (e *Engine) InvalidateAncestorsOrSiblingsAffectedByHas(changed dom.NodeID) {
	parent, prev := e.hasWalkStart(changed)
	e.invalidateAncestorsOrSiblingsAffectedByHas(parent, prev, false)
}

// InvalidateAncestorsOrSiblingsAffectedByHasForPseudoChange is the variant
// for pseudo-class state changes.
func (e *Engine) InvalidateAncestorsOrSiblingsAffectedByHasForPseudoChange(changed dom.NodeID) {
	parent, prev := e.hasWalkStart(changed)
	e.invalidateAncestorsOrSiblingsAffectedByHas(parent, prev, true)
}

// InvalidateChangedElementAffectedByLogicalCombinationsInHas invalidates
// the changed element itself when it is an anchor whose :has() argument
// contains :is(), :where() or :not() that can match outside its subtree.
func (e *Engine) InvalidateChangedElementAffectedByLogicalCombinationsInHas(changed dom.NodeID, forPseudoChange bool) {
	if !e.doc.HasFlags(changed, dom.AffectedByLogicalCombinationsInHas) {
		return
	}
	e.InvalidateElementAffectedByHas(changed, forPseudoChange)
}

func (e *Engine) insertionAffectsAncestors(parent dom.NodeID) bool {
	return parent.Valid() && e.doc.HasFlags(parent,
		dom.AncestorsOrAncestorSiblingsAffectedByHas|dom.SiblingsAffectedByHasForSiblingDescendantRelationship)
}

func (e *Engine) insertionAffectsPreviousSiblings(prev dom.NodeID) bool {
	return prev.Valid() && e.doc.HasFlags(prev, dom.SiblingsAffectedByHas)
}

// ScheduleInvalidationsForHasPseudoAffectedByInsertion invalidates the
// :has() anchors an inserted subtree may change. previousSibling is the
// element before the insertion point, if any. The inserted elements inherit
// the :has() flags of their new neighbours.
func (e *Engine) ScheduleInvalidationsForHasPseudoAffectedByInsertion(parent, previousSibling, inserted dom.NodeID) {
	if !e.hasEnabled() || !parent.Valid() || e.ShouldSkipInvalidationFor(parent) {
		return
	}
	features := e.RuleFeatureSet()
	if !features.NeedsHasInvalidationForInsertionOrRemoval() {
		return
	}
	doc := e.doc

	possiblyAffecting := false
	descendantsPossiblyAffecting := false
	if e.insertionAffectsPreviousSiblings(previousSibling) {
		doc.SetFlags(inserted, doc.Flags(previousSibling)&dom.SiblingsAffectedByHas)
		possiblyAffecting = true
		descendantsPossiblyAffecting = doc.HasFlags(inserted, dom.SiblingsAffectedByHasForSiblingDescendantRelationship)
	}
	if e.insertionAffectsAncestors(parent) {
		doc.SetFlags(inserted, dom.AncestorsOrAncestorSiblingsAffectedByHas)
		possiblyAffecting = true
		descendantsPossiblyAffecting = true
	}
	if !possiblyAffecting {
		return
	}

	// A change in sibling order can flip a compound after "+".
	needsInvalidation := doc.HasFlags(parent, dom.ChildrenAffectedByDirectAdjacentRules) ||
		features.NeedsHasInvalidationForInsertedOrRemovedElement(doc, inserted)

	if descendantsPossiblyAffecting {
		// Every descendant gets the flag, so the walk does not stop early.
		for _, d := range doc.Descendants(inserted) {
			doc.SetFlags(d, dom.AncestorsOrAncestorSiblingsAffectedByHas)
			if !needsInvalidation && features.NeedsHasInvalidationForInsertedOrRemovedElement(doc, d) {
				needsInvalidation = true
			}
		}
	}

	if needsInvalidation {
		e.log.Debug("has insertion", zap.String("inserted", doc.Describe(inserted)))
		e.invalidateAncestorsOrSiblingsAffectedByHas(parent, previousSibling, false)
		return
	}
	if features.NeedsHasInvalidationForPseudoStateChange() {
		e.invalidateAncestorsOrSiblingsAffectedByHas(parent, previousSibling, true)
	}
}

// ScheduleInvalidationsForHasPseudoAffectedByRemoval invalidates the :has()
// anchors a removed subtree may have matched through.
func (e *Engine) ScheduleInvalidationsForHasPseudoAffectedByRemoval(parent, previousSibling, removed dom.NodeID) {
	if !e.hasEnabled() || !parent.Valid() || e.ShouldSkipInvalidationFor(parent) {
		return
	}
	features := e.RuleFeatureSet()
	if !features.NeedsHasInvalidationForInsertionOrRemoval() {
		return
	}
	doc := e.doc
	if !e.insertionAffectsAncestors(parent) && !e.insertionAffectsPreviousSiblings(previousSibling) {
		return
	}

	if doc.HasFlags(parent, dom.ChildrenAffectedByDirectAdjacentRules) {
		e.invalidateAncestorsOrSiblingsAffectedByHas(parent, previousSibling, false)
		return
	}
	if features.NeedsHasInvalidationForInsertedOrRemovedElement(doc, removed) {
		e.invalidateAncestorsOrSiblingsAffectedByHas(parent, previousSibling, false)
		return
	}
	for _, d := range doc.Descendants(removed) {
		if features.NeedsHasInvalidationForInsertedOrRemovedElement(doc, d) {
			e.invalidateAncestorsOrSiblingsAffectedByHas(parent, previousSibling, false)
			return
		}
	}
	if features.NeedsHasInvalidationForPseudoStateChange() {
		e.invalidateAncestorsOrSiblingsAffectedByHas(parent, previousSibling, true)
	}
}
