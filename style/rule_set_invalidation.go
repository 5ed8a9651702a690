package style

import (
	"go.uber.org/zap"

	"github.com/chrisuehlinger/invalidator/css"
	"github.com/chrisuehlinger/invalidator/dom"
	"github.com/chrisuehlinger/invalidator/invalidation"
)

// InvalidationScope selects whether rule set invalidation descends into
// shadow trees.
type InvalidationScope uint8

const (
	InvalidateCurrentScope InvalidationScope = iota
	InvalidateAllScopes
)

func ruleSetFlags(ruleSets []*css.RuleSet) css.RuleFlags {
	var flags css.RuleFlags
	for _, rs := range ruleSets {
		flags |= rs.Flags()
	}
	return flags
}

// ScheduleRuleSetInvalidationsForElement schedules the sets that the id,
// classes and attributes of el select in ruleSets.
func (e *Engine) ScheduleRuleSetInvalidationsForElement(el dom.NodeID, ruleSets []*css.RuleSet) {
	doc := e.doc
	id := doc.ID(el)
	classes := doc.Classes(el)
	attrs := doc.Attributes(el)

	var lists invalidation.InvalidationLists
	for _, rs := range ruleSets {
		features := rs.Features()
		if id != "" {
			features.CollectInvalidationSetsForID(&lists, el, id)
		}
		for _, class := range classes {
			features.CollectInvalidationSetsForClass(&lists, el, class)
		}
		for _, attr := range attrs {
			features.CollectInvalidationSetsForAttribute(&lists, el, attr.Name)
		}
	}
	e.schedule(KindRuleSet, lists, el)
}

// ScheduleTypeRuleSetInvalidations schedules the tag name sets of ruleSets
// on the root node of a tree scope. For a shadow root the host is also
// recomputed when its own tag is named.
func (e *Engine) ScheduleTypeRuleSetInvalidations(root dom.NodeID, ruleSets []*css.RuleSet) {
	var lists invalidation.InvalidationLists
	for _, rs := range ruleSets {
		rs.Features().CollectTypeRuleInvalidationSet(&lists, root)
	}
	e.schedule(KindTypeRule, lists, root)

	if !e.doc.IsShadowRoot(root) {
		return
	}
	host := e.doc.Host(root)
	if e.doc.NeedsStyleRecalc(host) {
		return
	}
	for _, set := range lists.Descendants {
		if set.InvalidatesTagName(e.doc, host) {
			e.doc.SetNeedsStyleRecalc(host, dom.LocalStyleChange)
			return
		}
	}
}

// invalidateSlottedElements recomputes the elements assigned to slot.
func (e *Engine) invalidateSlottedElements(slot dom.NodeID) {
	for _, n := range e.doc.AssignedNodes(slot) {
		if e.doc.IsElement(n) {
			e.doc.SetNeedsStyleRecalc(n, dom.LocalStyleChange)
		}
	}
}

// ScheduleInvalidationsForRuleSets schedules invalidation for every element
// of the tree scope rooted at scope that ruleSets can select. With
// InvalidateAllScopes the shadow trees below it are visited too.
func (e *Engine) ScheduleInvalidationsForRuleSets(scope dom.NodeID, ruleSets []*css.RuleSet, invScope InvalidationScope) {
	doc := e.doc
	e.ScheduleTypeRuleSetInvalidations(scope, ruleSets)

	invalidateSlotted := false
	if doc.IsShadowRoot(scope) {
		host := doc.Host(scope)
		e.ScheduleRuleSetInvalidationsForElement(host, ruleSets)
		if doc.StyleChange(host) == dom.SubtreeStyleChange {
			return
		}
		for _, rs := range ruleSets {
			if rs.HasSlottedRules() {
				invalidateSlotted = true
				break
			}
		}
	}

	el := doc.FirstElementChild(scope)
	for el.Valid() {
		e.ScheduleRuleSetInvalidationsForElement(el, ruleSets)
		if invalidateSlotted && doc.IsSlot(el) {
			e.invalidateSlottedElements(el)
		}
		if invScope == InvalidateAllScopes {
			if sr := doc.ShadowRoot(el); sr.Valid() {
				e.ScheduleInvalidationsForRuleSets(sr, ruleSets, InvalidateAllScopes)
			}
		}
		if doc.StyleChange(el) < dom.SubtreeStyleChange && doc.HasFlags(el, dom.HasComputedStyle) {
			el = doc.NextElement(el, scope)
		} else {
			el = nextElementSkippingChildren(doc, el, scope)
		}
	}
}

func nextElementSkippingChildren(doc *dom.Document, n, stayWithin dom.NodeID) dom.NodeID {
	for n = doc.NextSkippingChildren(n, stayWithin); n.Valid() && !doc.IsElement(n); n = doc.Next(n, stayWithin) {
	}
	return n
}

// invalidationRootForTreeScope is the element a full recalc of scope
// starts at: the document element or the shadow host.
func (e *Engine) invalidationRootForTreeScope(scope dom.NodeID) dom.NodeID {
	if e.doc.IsShadowRoot(scope) {
		return e.doc.Host(scope)
	}
	return e.doc.DocumentElement()
}

// InvalidateForRuleSetChanges invalidates what changedRuleSets select in
// scope. Rule sets that cannot be invalidated by feature recompute the whole
// scope.
func (e *Engine) InvalidateForRuleSetChanges(scope dom.NodeID, changedRuleSets []*css.RuleSet, flags css.RuleFlags, invScope InvalidationScope) {
	doc := e.doc
	if doc.HasPendingForcedStyleRecalc() || !doc.DocumentElement().Valid() || len(changedRuleSets) == 0 {
		return
	}
	root := e.invalidationRootForTreeScope(scope)
	if !root.Valid() || doc.StyleChange(root) == dom.SubtreeStyleChange {
		return
	}
	if flags&css.RuleFlagFullRecalc != 0 {
		e.log.Debug("full recalc for rule set change", zap.String("root", doc.Describe(root)))
		e.metrics.RecordFullRecalc()
		doc.SetNeedsStyleRecalc(root, dom.SubtreeStyleChange)
		return
	}
	e.ScheduleInvalidationsForRuleSets(scope, changedRuleSets, invScope)
}

// ApplyRuleSetChanges compares the old and new active sheets of scope and
// invalidates for the rule sets that changed.
func (e *Engine) ApplyRuleSetChanges(scope dom.NodeID, oldSheets, newSheets []ActiveStyleSheet) {
	change, changed := CompareActiveStyleSheets(oldSheets, newSheets)
	if change == NoActiveSheetsChanged {
		return
	}
	e.globalRuleSet.MarkDirty()

	flags := ruleSetFlags(changed)
	e.log.Debug("active sheets changed",
		zap.String("scope", e.doc.Describe(scope)),
		zap.Stringer("change", change),
		zap.Int("rule_sets", len(changed)))
	e.applyAtRuleChanges(flags)
	e.InvalidateForRuleSetChanges(scope, changed, flags, InvalidateCurrentScope)
}

// ApplyUserRuleSetChanges is ApplyRuleSetChanges for the user sheets, which
// apply to every tree scope.
func (e *Engine) ApplyUserRuleSetChanges(oldSheets, newSheets []ActiveStyleSheet) {
	change, changed := CompareActiveStyleSheets(oldSheets, newSheets)
	if change == NoActiveSheetsChanged {
		return
	}
	e.globalRuleSet.MarkDirty()

	flags := ruleSetFlags(changed)
	e.log.Debug("user sheets changed", zap.Stringer("change", change), zap.Int("rule_sets", len(changed)))
	e.applyAtRuleChanges(flags)
	e.InvalidateForRuleSetChanges(e.doc.Root(), changed, flags, InvalidateAllScopes)
}

// applyAtRuleChanges handles the non-style rules of changed sheets. Font
// and property registrations can change any computed value, so they
// recompute the document.
func (e *Engine) applyAtRuleChanges(flags css.RuleFlags) {
	if flags&(css.RuleFlagFontFace|css.RuleFlagProperty) != 0 {
		if root := e.doc.DocumentElement(); root.Valid() {
			e.doc.SetNeedsStyleRecalc(root, dom.SubtreeStyleChange)
		}
	}
	if flags&(css.RuleFlagKeyframes|css.RuleFlagCounterStyle) != 0 {
		e.log.Debug("keyframes or counter styles changed")
	}
}
