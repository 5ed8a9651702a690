package style

import (
	"go.uber.org/zap"

	"github.com/chrisuehlinger/invalidator/css"
	"github.com/chrisuehlinger/invalidator/dom"
)

// statePseudos maps element states to the pseudo-classes that observe them.
var statePseudos = []struct {
	state   dom.PseudoState
	pseudos []css.PseudoType
}{
	{dom.StateHover, []css.PseudoType{css.PseudoHover}},
	{dom.StateActive, []css.PseudoType{css.PseudoActive}},
	{dom.StateFocus, []css.PseudoType{css.PseudoFocus}},
	{dom.StateFocusVisible, []css.PseudoType{css.PseudoFocusVisible}},
	{dom.StateFocusWithin, []css.PseudoType{css.PseudoFocusWithin}},
	{dom.StateChecked, []css.PseudoType{css.PseudoChecked, css.PseudoDefault}},
	{dom.StateDisabled, []css.PseudoType{css.PseudoDisabled, css.PseudoEnabled, css.PseudoReadWrite, css.PseudoReadOnly}},
	{dom.StateIndeterminate, []css.PseudoType{css.PseudoIndeterminate}},
	{dom.StateTarget, []css.PseudoType{css.PseudoTarget}},
	{dom.StateVisited, []css.PseudoType{css.PseudoVisited, css.PseudoLink}},
	{dom.StateLink, []css.PseudoType{css.PseudoLink, css.PseudoAnyLink, css.PseudoVisited}},
	{dom.StateInvalid, []css.PseudoType{css.PseudoInvalid, css.PseudoValid, css.PseudoUserInvalid, css.PseudoUserValid}},
	{dom.StateRequired, []css.PseudoType{css.PseudoRequired, css.PseudoOptional}},
	{dom.StateReadOnly, []css.PseudoType{css.PseudoReadOnly, css.PseudoReadWrite}},
	{dom.StatePlaceholderShown, []css.PseudoType{css.PseudoPlaceholderShown}},
	{dom.StateOpen, []css.PseudoType{css.PseudoOpen, css.PseudoClosed, css.PseudoPopoverOpen, css.PseudoModal}},
	{dom.StateFullscreen, []css.PseudoType{css.PseudoFullscreen}},
	{dom.StatePlaying, []css.PseudoType{css.PseudoPlaying, css.PseudoPaused}},
	{dom.StateAutofill, []css.PseudoType{css.PseudoAutofill}},
	{dom.StateLang, []css.PseudoType{css.PseudoLang}},
	{dom.StateDir, []css.PseudoType{css.PseudoDir}},
}

// ClassChanged implements dom.StyleObserver.
func (e *Engine) ClassChanged(el dom.NodeID, oldClasses, newClasses []string) {
	e.ClassChangedForElement(oldClasses, newClasses, el)
}

// IDChanged implements dom.StyleObserver.
func (e *Engine) IDChanged(el dom.NodeID, oldID, newID string) {
	e.IdChangedForElement(oldID, newID, el)
}

// AttributeChanged implements dom.StyleObserver.
func (e *Engine) AttributeChanged(el dom.NodeID, name string) {
	e.AttributeChangedForElement(name, el)

	if e.ShouldSkipInvalidationFor(el) {
		return
	}
	doc := e.doc
	switch {
	case name == "style":
		doc.SetNeedsStyleRecalc(el, dom.LocalStyleChange)
	case name == "slot" && doc.ShadowRoot(doc.Parent(el)).Valid():
		// Reassigned to another slot, so ::slotted() rules may differ.
		doc.SetNeedsStyleRecalc(el, dom.LocalStyleChange)
	case name == "name" && doc.IsSlot(el) && doc.IsInShadowTree(el):
		e.invalidateHostChildren(doc.ContainingShadowRoot(el))
	}
}

// PartChanged implements dom.StyleObserver.
func (e *Engine) PartChanged(el dom.NodeID) { e.PartChangedForElement(el) }

// ExportpartsChanged implements dom.StyleObserver.
func (e *Engine) ExportpartsChanged(el dom.NodeID) { e.ExportpartsChangedForElement(el) }

// PseudoStateChanged implements dom.StyleObserver.
func (e *Engine) PseudoStateChanged(el dom.NodeID, state dom.PseudoState) {
	if state&dom.StateFullscreen != 0 && e.doc.HasPseudoState(el, dom.StateFullscreen) {
		e.ensureUAStyleForFullscreen()
	}
	e.pseudoStateChanged(el, state)

	// :lang() and :dir() inherit into shadow trees, which the document does
	// not walk.
	if state&(dom.StateLang|dom.StateDir) == 0 {
		return
	}
	if sr := e.doc.ShadowRoot(el); sr.Valid() {
		e.forEachShadowIncludingNode(sr, func(n dom.NodeID) {
			if e.doc.IsElement(n) {
				e.pseudoStateChanged(n, state&(dom.StateLang|dom.StateDir))
			}
		})
	}
}

func (e *Engine) pseudoStateChanged(el dom.NodeID, state dom.PseudoState) {
	for _, sp := range statePseudos {
		if state&sp.state == 0 {
			continue
		}
		for _, pseudo := range sp.pseudos {
			e.PseudoStateChangedForElement(pseudo, el, true, true)
		}
	}
}

// ShadowRootAttached implements dom.StyleObserver.
func (e *Engine) ShadowRootAttached(host dom.NodeID) {
	e.doc.SetNeedsStyleRecalc(host, dom.SubtreeStyleChange)
}

// CharacterDataChanged implements dom.StyleObserver.
func (e *Engine) CharacterDataChanged(text dom.NodeID) {
	parent := e.doc.Parent(text)
	if !parent.Valid() || !e.doc.IsConnected(parent) {
		return
	}
	if e.isStyleElement(parent) {
		e.ModifiedStyleSheetCandidateNode(parent)
	}
	e.checkForEmptyStyleChange(parent)
}

// ChildInserted implements dom.StyleObserver.
func (e *Engine) ChildInserted(parent, child dom.NodeID) {
	doc := e.doc
	if !doc.IsConnected(parent) {
		return
	}
	e.forEachShadowIncludingNode(child, func(n dom.NodeID) {
		if e.isStyleElement(n) {
			e.AddStyleSheetCandidateNode(n)
		}
	})

	if !doc.IsElement(child) {
		if e.isStyleElement(parent) {
			e.ModifiedStyleSheetCandidateNode(parent)
		}
		e.checkForEmptyStyleChange(parent)
		return
	}

	doc.SetNeedsStyleRecalc(child, dom.SubtreeStyleChange)
	e.checkForEmptyStyleChange(parent)

	before := doc.PreviousElementSibling(child)
	after := doc.NextElementSibling(child)
	e.checkForSiblingStyleChanges(parent, child, before, after, true)
	e.ScheduleInvalidationsForHasPseudoAffectedByInsertion(doc.ParentElement(child), before, child)

	if doc.IsInShadowTree(child) && e.containsSlot(child) {
		e.invalidateHostChildren(doc.ContainingShadowRoot(child))
	}
}

// ChildRemoved implements dom.StyleObserver. The subtree of child is
// already detached.
func (e *Engine) ChildRemoved(parent, child, prevSibling, nextSibling dom.NodeID) {
	doc := e.doc
	connected := doc.IsConnected(parent)
	e.pending.RescheduleSiblingInvalidationsAsDescendants(child, parent)

	scope := doc.TreeScope(parent)
	hadSlot := false
	e.forEachShadowIncludingNode(child, func(n dom.NodeID) {
		e.pending.ClearInvalidation(n)
		doc.ClearNeedsStyleRecalc(n)
		doc.ClearFlags(n, dom.ChildNeedsStyleRecalc|dom.NeedsStyleInvalidation|
			dom.ChildNeedsStyleInvalidation|dom.HasComputedStyle)
		delete(e.styles, n)
		switch {
		case doc.IsShadowRoot(n):
			e.dropShadowCollection(n)
		case !connected:
		case e.isStyleElement(n) && !doc.IsShadowRoot(doc.TreeScope(n)):
			e.RemoveStyleSheetCandidateNode(n, scope)
		case doc.LocalName(n) == "slot" && !doc.IsShadowRoot(doc.TreeScope(n)):
			hadSlot = true
		}
	})
	if !connected {
		return
	}

	if !doc.IsElement(child) {
		if e.isStyleElement(parent) {
			e.ModifiedStyleSheetCandidateNode(parent)
		}
		e.checkForEmptyStyleChange(parent)
		return
	}

	e.checkForEmptyStyleChange(parent)
	before := selfOrPreviousElement(doc, prevSibling)
	after := selfOrNextElement(doc, nextSibling)
	e.checkForSiblingStyleChanges(parent, child, before, after, false)
	e.ScheduleInvalidationsForHasPseudoAffectedByRemoval(elementOrInvalid(doc, parent), before, child)

	if hadSlot && doc.IsShadowRoot(scope) {
		e.invalidateHostChildren(scope)
	}
}

func elementOrInvalid(doc *dom.Document, n dom.NodeID) dom.NodeID {
	if doc.IsElement(n) {
		return n
	}
	return dom.InvalidNodeID
}

func selfOrPreviousElement(doc *dom.Document, n dom.NodeID) dom.NodeID {
	if !n.Valid() || doc.IsElement(n) {
		return n
	}
	return doc.PreviousElementSibling(n)
}

func selfOrNextElement(doc *dom.Document, n dom.NodeID) dom.NodeID {
	if !n.Valid() || doc.IsElement(n) {
		return n
	}
	return doc.NextElementSibling(n)
}

// checkForEmptyStyleChange invalidates :empty on parent after its children
// changed.
func (e *Engine) checkForEmptyStyleChange(parent dom.NodeID) {
	if !e.doc.IsElement(parent) || !e.doc.HasFlags(parent, dom.AffectedByEmpty) {
		return
	}
	e.PseudoStateChangedForElement(css.PseudoEmpty, parent, true, true)
}

// checkForSiblingStyleChanges invalidates what an element inserted or
// removed between before and after changes for structural pseudo-classes
// and sibling combinators of its siblings.
func (e *Engine) checkForSiblingStyleChanges(parent, changed, before, after dom.NodeID, inserted bool) {
	doc := e.doc
	if doc.HasPendingForcedStyleRecalc() || doc.StyleChange(parent) >= dom.SubtreeStyleChange {
		return
	}
	flags := doc.Flags(parent)
	if !flags.Has(dom.ChildrenAffectedByStructuralRules) {
		return
	}

	if flags.Has(dom.ChildrenAffectedByForwardPositionalRules) && after.Valid() ||
		flags.Has(dom.ChildrenAffectedByBackwardPositionalRules) && before.Valid() {
		e.ScheduleNthPseudoInvalidations(parent)
	}

	if flags.Has(dom.ChildrenAffectedByFirstChildRules) && !before.Valid() && after.Valid() &&
		doc.HasFlags(after, dom.AffectedByFirstChildRules) {
		e.PseudoStateChangedForElement(css.PseudoFirstChild, after, true, true)
		e.PseudoStateChangedForElement(css.PseudoOnlyChild, after, true, true)
	}
	if flags.Has(dom.ChildrenAffectedByLastChildRules) && !after.Valid() && before.Valid() &&
		doc.HasFlags(before, dom.AffectedByLastChildRules) {
		e.PseudoStateChangedForElement(css.PseudoLastChild, before, true, true)
		e.PseudoStateChangedForElement(css.PseudoOnlyChild, before, true, true)
	}

	if !after.Valid() || !flags.Has(dom.ChildrenAffectedByDirectAdjacentRules|dom.ChildrenAffectedByIndirectAdjacentRules) {
		return
	}
	e.log.Debug("sibling structure changed",
		zap.String("parent", doc.Describe(parent)),
		zap.String("changed", doc.Describe(changed)),
		zap.Bool("inserted", inserted))
	if inserted {
		e.ScheduleInvalidationsForInsertedSibling(before, changed)
		return
	}
	e.ScheduleInvalidationsForRemovedSibling(before, changed, after)
}

func (e *Engine) containsSlot(root dom.NodeID) bool {
	if e.doc.IsSlot(root) {
		return true
	}
	for _, d := range e.doc.Descendants(root) {
		if e.doc.IsSlot(d) {
			return true
		}
	}
	return false
}

// invalidateHostChildren recomputes the light children of the host of a
// shadow root whose slots changed, since their slot assignment may differ.
func (e *Engine) invalidateHostChildren(shadowRoot dom.NodeID) {
	host := e.doc.Host(shadowRoot)
	if !host.Valid() {
		return
	}
	for c := e.doc.FirstElementChild(host); c.Valid(); c = e.doc.NextElementSibling(c) {
		e.doc.SetNeedsStyleRecalc(c, dom.LocalStyleChange)
	}
}
