package style

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/invalidator/css"
	"github.com/chrisuehlinger/invalidator/dom"
	"github.com/chrisuehlinger/invalidator/invalidation"
)

// InvalidateStyle brings the active sheets up to date and runs the style
// invalidator over the pending sets. It returns the elements the
// invalidator marked for recalc.
func (e *Engine) InvalidateStyle() *roaring.Bitmap {
	e.UpdateActiveStyle()
	return invalidation.NewStyleInvalidator(e.doc, e.pending, e.log).Invalidate()
}

// NeedsStyleRecalc reports whether some node of the document is dirty.
func (e *Engine) NeedsStyleRecalc() bool {
	root := e.doc.Root()
	return e.doc.NeedsStyleRecalc(root) || e.doc.HasFlags(root, dom.ChildNeedsStyleRecalc)
}

// styleWalk is the state of one recalc pass.
type styleWalk struct {
	e        *Engine
	matcher  *css.Matcher
	recalced *roaring.Bitmap
}

// RecalcStyle recomputes the style of every dirty element, the elements
// below a subtree change, and the children of elements whose style
// changed. It returns the recomputed elements.
func (e *Engine) RecalcStyle() *roaring.Bitmap {
	start := time.Now()
	doc := e.doc
	doc.SetInStyleRecalc(true)
	defer doc.SetInStyleRecalc(false)

	w := &styleWalk{
		e:        e,
		matcher:  css.NewMatcher(doc, css.MatchContext{RecordFlags: true}),
		recalced: roaring.New(),
	}
	root := doc.Root()
	force := doc.StyleChange(root) == dom.SubtreeStyleChange
	if force || doc.HasFlags(root, dom.ChildNeedsStyleRecalc) {
		w.recalcChildren(root, nil, force, false)
	}
	doc.ClearNeedsStyleRecalc(root)
	doc.ClearFlags(root, dom.ChildNeedsStyleRecalc)

	count := int(w.recalced.GetCardinality())
	e.metrics.RecordRecalc(count, time.Since(start))
	e.log.Debug("style recalc done", zap.Int("elements", count), zap.Duration("took", time.Since(start)))
	return w.recalced
}

// recalcChildren visits the shadow tree of parent, if any, and then its
// children. Elements of a shadow tree inherit from the host.
func (w *styleWalk) recalcChildren(parent dom.NodeID, parentStyle *css.ComputedStyle, force, parentChanged bool) {
	doc := w.e.doc
	if sr := doc.ShadowRoot(parent); sr.Valid() {
		srForce := force || doc.StyleChange(sr) == dom.SubtreeStyleChange
		if srForce || parentChanged || doc.HasFlags(sr, dom.ChildNeedsStyleRecalc) {
			w.recalcChildren(sr, parentStyle, srForce, parentChanged)
		}
		doc.ClearNeedsStyleRecalc(sr)
		doc.ClearFlags(sr, dom.ChildNeedsStyleRecalc)
	}
	for c := doc.FirstChild(parent); c.Valid(); c = doc.NextSibling(c) {
		if !doc.IsElement(c) {
			doc.ClearNeedsStyleRecalc(c)
			continue
		}
		w.recalcElement(c, parentStyle, force, parentChanged)
	}
}

func (w *styleWalk) recalcElement(el dom.NodeID, parentStyle *css.ComputedStyle, force, parentChanged bool) {
	e, doc := w.e, w.e.doc
	change := doc.StyleChange(el)
	style := e.styles[el]
	changed := false

	if force || parentChanged || change != dom.NoStyleChange || !doc.HasFlags(el, dom.HasComputedStyle) {
		matched := w.matchedDeclarations(el)
		if text := inlineStyle(doc, el); text != "" {
			inline, err := css.ParseInlineStyle(text)
			if err != nil {
				e.log.Warn("ignoring inline style", zap.String("element", doc.Describe(el)), zap.Error(err))
			}
			matched = append(matched, inline...)
		}
		next := css.Cascade(matched, "", parentStyle)
		changed = !next.Equal(style)
		style = next
		e.styles[el] = style
		doc.SetFlags(el, dom.HasComputedStyle)
		w.recalced.Add(uint32(el))
	}

	childForce := force || change == dom.SubtreeStyleChange
	descend := childForce || changed || doc.HasFlags(el, dom.ChildNeedsStyleRecalc)
	doc.ClearNeedsStyleRecalc(el)
	doc.ClearFlags(el, dom.ChildNeedsStyleRecalc)
	if descend {
		w.recalcChildren(el, style, childForce, changed)
	}
}

func inlineStyle(doc *dom.Document, el dom.NodeID) string {
	v, _ := doc.GetAttribute(el, "style")
	return v
}

// styleScopes returns the tree scopes whose author rules can apply to el,
// innermost first so that outer scopes win ties: the shadow tree of el
// (":host"), the shadow tree of its slot ("::slotted"), its own scope and
// the scopes of the hosts that expose its parts ("::part").
func (w *styleWalk) styleScopes(el dom.NodeID) []dom.NodeID {
	doc := w.e.doc
	var scopes []dom.NodeID
	add := func(s dom.NodeID) {
		if !s.Valid() {
			return
		}
		for _, have := range scopes {
			if have == s {
				return
			}
		}
		scopes = append(scopes, s)
	}
	add(doc.ShadowRoot(el))
	if slot := doc.AssignedSlot(el); slot.Valid() {
		add(doc.ContainingShadowRoot(slot))
	}
	add(doc.TreeScope(el))
	if doc.HasPart(el) {
		for host := doc.OwnerShadowHost(el); host.Valid(); host = doc.OwnerShadowHost(host) {
			add(doc.TreeScope(host))
		}
	}
	return scopes
}

func (e *Engine) authorSheetsOf(scope dom.NodeID) []ActiveStyleSheet {
	if scope == e.doc.Root() {
		return e.documentCollection.ActiveStyleSheets()
	}
	if c, ok := e.shadowCollections[scope]; ok {
		return c.ActiveStyleSheets()
	}
	return nil
}

// styleable reports whether c styles the element it matches rather than a
// pseudo-element box of it.
func styleable(c *css.ComplexSelector) bool {
	subject := c.Rightmost()
	if subject == nil {
		return false
	}
	pe := subject.PseudoElement()
	if pe == nil {
		return true
	}
	switch pe.Pseudo {
	case css.PseudoSlotted, css.PseudoPart, css.PseudoWebKitCustomElement:
		return true
	}
	return false
}

// matchedDeclarations collects the declarations of every rule matching el
// in cascade order.
func (w *styleWalk) matchedDeclarations(el dom.NodeID) []css.MatchedDeclaration {
	e := w.e
	var out []css.MatchedDeclaration
	order := 0
	add := func(rs *css.RuleSet, scope dom.NodeID) {
		if rs == nil {
			return
		}
		for _, rd := range rs.Rules() {
			if len(rd.Rule.Declarations) == 0 || !styleable(rd.Selector) {
				continue
			}
			if !w.matcher.MatchesComplex(rd.Selector, el, scope) {
				continue
			}
			for _, d := range rd.Rule.Declarations {
				out = append(out, css.MatchedDeclaration{
					Declaration: d,
					Origin:      rd.Origin,
					Specificity: rd.Specificity,
					Order:       order,
				})
				order++
			}
		}
	}

	own := e.doc.TreeScope(el)
	add(e.uaRuleSet, own)
	for _, s := range e.activeUserStyleSheets {
		add(s.RuleSet, own)
	}
	for _, scope := range w.styleScopes(el) {
		for _, s := range e.authorSheetsOf(scope) {
			add(s.RuleSet, scope)
		}
	}
	return out
}

// UpdateStyleAndLayoutTree runs invalidation and recalc until the document
// is clean or the pass limit is reached. It returns every element
// recomputed on the way.
func (e *Engine) UpdateStyleAndLayoutTree() *roaring.Bitmap {
	total := roaring.New()
	for pass := 0; pass < e.opts.MaxRecalcPasses; pass++ {
		e.InvalidateStyle()
		if !e.NeedsStyleRecalc() {
			return total
		}
		total.Or(e.RecalcStyle())
	}
	if e.NeedsStyleRecalc() || e.NeedsActiveStyleUpdate() || !e.pending.IsEmpty() {
		e.log.Warn("style still dirty after recalc passes", zap.Int("passes", e.opts.MaxRecalcPasses))
	}
	return total
}

// ComputedStyle returns the style of el from the last recalc, or nil.
func (e *Engine) ComputedStyle(el dom.NodeID) *css.ComputedStyle {
	return e.styles[el]
}
