package css

import (
	"slices"
	"strings"

	"github.com/chrisuehlinger/invalidator/dom"
)

// MatchContext configures a Matcher.
type MatchContext struct {
	// RecordFlags makes the matcher store the structural and :has() flags
	// on the elements it inspects, as style recalc does.
	RecordFlags bool
}

// Matcher matches selectors against elements of a document, right to left.
type Matcher struct {
	doc *dom.Document
	ctx MatchContext
}

// NewMatcher creates a matcher over doc.
func NewMatcher(doc *dom.Document, ctx MatchContext) *Matcher {
	return &Matcher{doc: doc, ctx: ctx}
}

// matchState is threaded through one match attempt.
type matchState struct {
	// scope is the tree scope (document or shadow root) the rule lives in.
	scope dom.NodeID
	// subject is set while matching the subject compound of the outermost
	// complex selector.
	subject bool
	// anchor is the element :has() is evaluated for.
	anchor dom.NodeID
}

// Matches reports whether any selector of list matches el, with the rules
// living in el's own tree scope.
func (m *Matcher) Matches(list *SelectorList, el dom.NodeID) bool {
	return m.MatchesInScope(list, el, m.doc.TreeScope(el))
}

// MatchesInScope reports whether any selector of list matches el, for rules
// that live in the tree scope rooted at scope. Rules of a shadow root reach
// its host through :host and the light tree through ::slotted().
func (m *Matcher) MatchesInScope(list *SelectorList, el dom.NodeID, scope dom.NodeID) bool {
	if list == nil || !m.doc.IsElement(el) {
		return false
	}
	for _, c := range list.Complex {
		if m.MatchesComplex(c, el, scope) {
			return true
		}
	}
	return false
}

// MatchesComplex reports whether c matches el for rules living in scope.
func (m *Matcher) MatchesComplex(c *ComplexSelector, el dom.NodeID, scope dom.NodeID) bool {
	return m.matchComplex(c, el, matchState{scope: scope, subject: true, anchor: dom.InvalidNodeID})
}

// Matches reports whether the selector text matches el.
func Matches(doc *dom.Document, selector string, el dom.NodeID) (bool, error) {
	list, err := ParseSelector(selector)
	if err != nil {
		return false, err
	}
	return NewMatcher(doc, MatchContext{}).Matches(list, el), nil
}

func (m *Matcher) setFlags(id dom.NodeID, mask dom.ElementFlags) {
	if m.ctx.RecordFlags && id.Valid() {
		m.doc.SetFlags(id, mask)
	}
}

// crossIndex returns the index of the last compound followed by a
// shadow-crossing combinator. Compounds to its right match elements of
// another tree scope.
func crossIndex(c *ComplexSelector) int {
	for i := len(c.Compounds) - 2; i >= 0; i-- {
		if c.Compounds[i].Combinator.IsShadow() {
			return i
		}
	}
	return len(c.Compounds)
}

func (m *Matcher) matchComplex(c *ComplexSelector, e dom.NodeID, st matchState) bool {
	if len(c.Compounds) == 0 {
		return false
	}
	return m.matchAt(c, crossIndex(c), len(c.Compounds)-1, e, st)
}

// matchAt matches compound i of c against e and then the compounds to its
// left through their combinators.
func (m *Matcher) matchAt(c *ComplexSelector, cross, i int, e dom.NodeID, st matchState) bool {
	compound := c.Compounds[i]
	subject := st.subject && i == len(c.Compounds)-1

	featureless := false
	if i <= cross && m.doc.TreeScope(e) != st.scope {
		if !m.isScopeHost(e, st.scope) {
			return false
		}
		featureless = true
	}

	inner := st
	inner.subject = subject
	if !m.matchCompound(compound, e, featureless, inner) {
		return false
	}

	if i == 0 {
		if c.Relative {
			return m.matchesHasAnchor(c.LeadingCombinator, e, st.anchor)
		}
		return true
	}

	left := st
	left.subject = false
	switch c.Compounds[i-1].Combinator {
	case CombinatorDescendant:
		for a := m.parentForMatch(e, st.scope); a.Valid(); a = m.parentForMatch(a, st.scope) {
			if m.matchAt(c, cross, i-1, a, left) {
				return true
			}
		}
		return false

	case CombinatorChild:
		p := m.parentForMatch(e, st.scope)
		return p.Valid() && m.matchAt(c, cross, i-1, p, left)

	case CombinatorNextSibling:
		m.setFlags(m.doc.Parent(e), dom.ChildrenAffectedByDirectAdjacentRules)
		prev := m.doc.PreviousElementSibling(e)
		return prev.Valid() && m.matchAt(c, cross, i-1, prev, left)

	case CombinatorSubsequentSibling:
		m.setFlags(m.doc.Parent(e), dom.ChildrenAffectedByIndirectAdjacentRules)
		for prev := m.doc.PreviousElementSibling(e); prev.Valid(); prev = m.doc.PreviousElementSibling(prev) {
			if m.matchAt(c, cross, i-1, prev, left) {
				return true
			}
		}
		return false

	case CombinatorUAShadow:
		host := m.doc.OwnerShadowHost(e)
		return host.Valid() && m.matchAt(c, cross, i-1, host, left)

	case CombinatorShadowSlot:
		slot := m.doc.AssignedSlot(e)
		return slot.Valid() && m.matchAt(c, cross, i-1, slot, left)

	case CombinatorShadowPart:
		return m.matchPartHosts(c, cross, i, e, left)
	}
	return false
}

// isScopeHost reports whether e is the host of the shadow root scope.
func (m *Matcher) isScopeHost(e, scope dom.NodeID) bool {
	return m.doc.IsShadowRoot(scope) && m.doc.Host(scope) == e
}

// parentForMatch returns the parent used by descendant and child
// combinators. From the top of a shadow tree it steps to the host so that
// ":host .a" can match; from the host itself there is nowhere to go.
func (m *Matcher) parentForMatch(e, scope dom.NodeID) dom.NodeID {
	if m.isScopeHost(e, scope) {
		return dom.InvalidNodeID
	}
	p := m.doc.ParentElementOrShadowRoot(e)
	if m.doc.IsShadowRoot(p) {
		if p == scope {
			return m.doc.Host(p)
		}
		return dom.InvalidNodeID
	}
	return p
}

// matchPartHosts walks from an element exposing parts up through the hosts
// that forward them with exportparts, trying the host side of ::part() at
// each level.
func (m *Matcher) matchPartHosts(c *ComplexSelector, cross, i int, e dom.NodeID, st matchState) bool {
	pe := c.Compounds[i].PseudoElement()
	if pe == nil || pe.Pseudo != PseudoPart {
		return false
	}
	wanted := pe.PartNames()
	names := m.doc.Parts(e)
	for host := m.doc.OwnerShadowHost(e); host.Valid() && len(names) > 0; host = m.doc.OwnerShadowHost(host) {
		if containsAll(names, wanted) && m.matchAt(c, cross, i-1, host, st) {
			return true
		}
		exported := m.doc.ExportParts(host)
		var next []string
		for _, n := range names {
			next = append(next, exported[n]...)
		}
		names = next
	}
	return false
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

// matchesHasAnchor checks the relation between the leftmost compound of a
// :has() argument and the anchor element.
func (m *Matcher) matchesHasAnchor(rel Combinator, e, anchor dom.NodeID) bool {
	if !anchor.Valid() {
		return false
	}
	switch rel {
	case CombinatorDescendant:
		for p := m.doc.ParentElement(e); p.Valid(); p = m.doc.ParentElement(p) {
			if p == anchor {
				return true
			}
		}
	case CombinatorChild:
		return m.doc.ParentElement(e) == anchor
	case CombinatorNextSibling:
		return m.doc.PreviousElementSibling(e) == anchor
	case CombinatorSubsequentSibling:
		for p := m.doc.PreviousElementSibling(e); p.Valid(); p = m.doc.PreviousElementSibling(p) {
			if p == anchor {
				return true
			}
		}
	}
	return false
}

// matchCompound tests if a compound selector matches an element. A
// featureless element (the shadow host seen from inside its shadow tree)
// only matches :host-style pseudo-classes.
func (m *Matcher) matchCompound(c *CompoundSelector, e dom.NodeID, featureless bool, st matchState) bool {
	for _, s := range c.Simples {
		if featureless && !allowedOnFeatureless(s) {
			return false
		}
		if !m.matchSimple(s, e, st) {
			return false
		}
	}
	if featureless {
		return c.HasPseudo(PseudoHost) || c.HasPseudo(PseudoHostContext) || hasHostInLogical(c)
	}
	return true
}

func allowedOnFeatureless(s *SimpleSelector) bool {
	if s.Match == MatchPseudoElement || (s.Match == MatchTag && s.IsUniversal()) {
		return true
	}
	if s.Match != MatchPseudoClass {
		return false
	}
	switch s.Pseudo {
	case PseudoHost, PseudoHostContext, PseudoIs, PseudoWhere, PseudoNot, PseudoHas:
		return true
	}
	return false
}

func hasHostInLogical(c *CompoundSelector) bool {
	for _, s := range c.Simples {
		if s.Match != MatchPseudoClass || !s.Pseudo.IsLogicalCombination() || s.SelectorList == nil {
			continue
		}
		for _, sub := range s.SelectorList.Complex {
			if r := sub.Rightmost(); r != nil && (r.HasPseudo(PseudoHost) || r.HasPseudo(PseudoHostContext)) {
				return true
			}
		}
	}
	return false
}

func (m *Matcher) matchSimple(s *SimpleSelector, e dom.NodeID, st matchState) bool {
	switch s.Match {
	case MatchTag:
		return s.IsUniversal() || m.doc.LocalName(e) == s.Value
	case MatchID:
		return m.doc.ID(e) == s.Value
	case MatchClass:
		return m.doc.HasClass(e, s.Value)
	case MatchAttribute:
		return m.matchAttributeSelector(s, e)
	case MatchPseudoElement:
		return m.matchPseudoElement(s, e)
	case MatchPseudoClass:
		return m.matchPseudoClass(s, e, st)
	}
	return false
}

func (m *Matcher) matchAttributeSelector(attr *SimpleSelector, e dom.NodeID) bool {
	attrValue, ok := m.doc.GetAttribute(e, attr.Value)
	if !ok {
		return false
	}

	if attr.AttrOp == AttrExists {
		return true
	}

	matchValue := attr.AttrValue
	if attr.CaseInsensitive {
		attrValue = strings.ToLower(attrValue)
		matchValue = strings.ToLower(matchValue)
	}

	switch attr.AttrOp {
	case AttrEquals:
		return attrValue == matchValue
	case AttrIncludes:
		if matchValue == "" {
			return false
		}
		return slices.Contains(strings.Fields(attrValue), matchValue)
	case AttrDashMatch:
		return attrValue == matchValue || strings.HasPrefix(attrValue, matchValue+"-")
	case AttrPrefix:
		return matchValue != "" && strings.HasPrefix(attrValue, matchValue)
	case AttrSuffix:
		return matchValue != "" && strings.HasSuffix(attrValue, matchValue)
	case AttrSubstring:
		return matchValue != "" && strings.Contains(attrValue, matchValue)
	}

	return false
}

// matchPseudoElement matches the originating element of a pseudo-element.
// The parts of ::part() are checked by the combinator walk.
func (m *Matcher) matchPseudoElement(s *SimpleSelector, e dom.NodeID) bool {
	switch s.Pseudo {
	case PseudoSlotted:
		if !m.doc.AssignedSlot(e).Valid() {
			return false
		}
		return s.SelectorList == nil || m.MatchesInScope(s.SelectorList, e, m.doc.TreeScope(e))
	case PseudoPart:
		return m.doc.HasPart(e)
	case PseudoWebKitCustomElement:
		return m.doc.ShadowPseudoID(e) == s.PseudoName
	}
	return true
}

func (m *Matcher) matchPseudoClass(s *SimpleSelector, e dom.NodeID, st matchState) bool {
	doc := m.doc
	switch s.Pseudo {
	case PseudoRoot:
		return e == doc.DocumentElement()
	case PseudoScope:
		if doc.IsShadowRoot(st.scope) {
			return e == doc.Host(st.scope)
		}
		return e == doc.DocumentElement()

	case PseudoEmpty:
		m.setFlags(e, dom.AffectedByEmpty)
		return m.isEmpty(e)
	case PseudoFirstChild:
		m.setFlags(doc.Parent(e), dom.ChildrenAffectedByFirstChildRules)
		m.setFlags(e, dom.AffectedByFirstChildRules)
		return !doc.PreviousElementSibling(e).Valid()
	case PseudoLastChild:
		m.setFlags(doc.Parent(e), dom.ChildrenAffectedByLastChildRules)
		m.setFlags(e, dom.AffectedByLastChildRules)
		return !doc.NextElementSibling(e).Valid()
	case PseudoOnlyChild:
		m.setFlags(doc.Parent(e), dom.ChildrenAffectedByFirstChildRules|dom.ChildrenAffectedByLastChildRules)
		m.setFlags(e, dom.AffectedByFirstChildRules|dom.AffectedByLastChildRules)
		return !doc.PreviousElementSibling(e).Valid() && !doc.NextElementSibling(e).Valid()
	case PseudoFirstOfType:
		m.setFlags(doc.Parent(e), dom.ChildrenAffectedByForwardPositionalRules)
		return m.nthIndex(e, false, true, nil, st) == 1
	case PseudoLastOfType:
		m.setFlags(doc.Parent(e), dom.ChildrenAffectedByBackwardPositionalRules)
		return m.nthIndex(e, true, true, nil, st) == 1
	case PseudoOnlyOfType:
		m.setFlags(doc.Parent(e), dom.ChildrenAffectedByForwardPositionalRules|dom.ChildrenAffectedByBackwardPositionalRules)
		return m.nthIndex(e, false, true, nil, st) == 1 && m.nthIndex(e, true, true, nil, st) == 1
	case PseudoNthChild, PseudoNthLastChild:
		fromLast := s.Pseudo == PseudoNthLastChild
		if fromLast {
			m.setFlags(doc.Parent(e), dom.ChildrenAffectedByBackwardPositionalRules)
		} else {
			m.setFlags(doc.Parent(e), dom.ChildrenAffectedByForwardPositionalRules)
		}
		if s.SelectorList != nil && !m.matchList(s.SelectorList, e, st) {
			return false
		}
		return s.Nth.Matches(m.nthIndex(e, fromLast, false, s.SelectorList, st))
	case PseudoNthOfType, PseudoNthLastOfType:
		fromLast := s.Pseudo == PseudoNthLastOfType
		if fromLast {
			m.setFlags(doc.Parent(e), dom.ChildrenAffectedByBackwardPositionalRules)
		} else {
			m.setFlags(doc.Parent(e), dom.ChildrenAffectedByForwardPositionalRules)
		}
		return s.Nth.Matches(m.nthIndex(e, fromLast, true, nil, st))

	case PseudoLink, PseudoAnyLink:
		return isLink(doc, e) && (s.Pseudo == PseudoAnyLink || !doc.HasPseudoState(e, dom.StateVisited))
	case PseudoVisited:
		return isLink(doc, e) && doc.HasPseudoState(e, dom.StateVisited)
	case PseudoAutofill:
		return doc.HasPseudoState(e, dom.StateAutofill)
	case PseudoHover:
		return doc.HasPseudoState(e, dom.StateHover)
	case PseudoActive:
		return doc.HasPseudoState(e, dom.StateActive)
	case PseudoFocus:
		return doc.HasPseudoState(e, dom.StateFocus)
	case PseudoFocusVisible:
		return doc.HasPseudoState(e, dom.StateFocusVisible)
	case PseudoFocusWithin:
		return doc.HasPseudoState(e, dom.StateFocusWithin)
	case PseudoTarget:
		return doc.HasPseudoState(e, dom.StateTarget)
	case PseudoFullscreen:
		return doc.HasPseudoState(e, dom.StateFullscreen)
	case PseudoPlaying:
		return isMedia(doc, e) && doc.HasPseudoState(e, dom.StatePlaying)
	case PseudoPaused:
		return isMedia(doc, e) && !doc.HasPseudoState(e, dom.StatePlaying)
	case PseudoIndeterminate:
		return doc.HasPseudoState(e, dom.StateIndeterminate)

	case PseudoChecked:
		return isChecked(doc, e)
	case PseudoDefault:
		return isCheckable(doc, e) && doc.HasAttribute(e, "checked") ||
			doc.LocalName(e) == "option" && doc.HasAttribute(e, "selected")
	case PseudoEnabled:
		return isFormElement(doc, e) && !isDisabled(doc, e)
	case PseudoDisabled:
		return isFormElement(doc, e) && isDisabled(doc, e)
	case PseudoRequired:
		return isFormElement(doc, e) && doc.HasAttribute(e, "required")
	case PseudoOptional:
		return isFormElement(doc, e) && !doc.HasAttribute(e, "required")
	case PseudoReadWrite:
		return isReadWrite(doc, e)
	case PseudoReadOnly:
		return !isReadWrite(doc, e)
	case PseudoPlaceholderShown:
		return isPlaceholderShown(doc, e)
	case PseudoInvalid, PseudoUserInvalid:
		return isFormElement(doc, e) && doc.HasPseudoState(e, dom.StateInvalid)
	case PseudoValid, PseudoUserValid:
		return isFormElement(doc, e) && !doc.HasPseudoState(e, dom.StateInvalid)
	case PseudoOpen:
		return doc.HasAttribute(e, "open") || doc.HasPseudoState(e, dom.StateOpen)
	case PseudoClosed:
		switch doc.LocalName(e) {
		case "details", "dialog", "select":
			return !doc.HasAttribute(e, "open") && !doc.HasPseudoState(e, dom.StateOpen)
		}
		return false
	case PseudoPopoverOpen:
		return doc.HasAttribute(e, "popover") && doc.HasPseudoState(e, dom.StateOpen)
	case PseudoDefined:
		return true
	case PseudoLang:
		return matchLang(doc, s.Argument, e)
	case PseudoDir:
		return matchDir(doc, s.Argument, e)

	case PseudoIs, PseudoWhere, PseudoAny:
		return m.matchList(s.SelectorList, e, st)
	case PseudoNot:
		inner := st
		inner.subject = false
		return !m.matchList(s.SelectorList, e, inner)
	case PseudoHas:
		return m.matchHas(s, e, st)

	case PseudoHost:
		if !m.isScopeHost(e, st.scope) {
			return false
		}
		return s.SelectorList == nil || m.MatchesInScope(s.SelectorList, e, doc.TreeScope(e))
	case PseudoHostContext:
		if !m.isScopeHost(e, st.scope) {
			return false
		}
		for a := e; a.Valid(); a = doc.ParentOrShadowHostElement(a) {
			if m.MatchesInScope(s.SelectorList, a, doc.TreeScope(a)) {
				return true
			}
		}
		return false
	}
	return false
}

// matchList matches a selector list argument against the same element.
func (m *Matcher) matchList(list *SelectorList, e dom.NodeID, st matchState) bool {
	if list == nil {
		return false
	}
	for _, c := range list.Complex {
		if m.matchComplex(c, e, st) {
			return true
		}
	}
	return false
}

// nthIndex returns the 1-based position of e among its siblings, counting
// only siblings of the same type or matching filter when given.
func (m *Matcher) nthIndex(e dom.NodeID, fromLast, ofType bool, filter *SelectorList, st matchState) int {
	doc := m.doc
	step := doc.PreviousElementSibling
	if fromLast {
		step = doc.NextElementSibling
	}
	name := doc.LocalName(e)
	inner := st
	inner.subject = false
	pos := 1
	for s := step(e); s.Valid(); s = step(s) {
		switch {
		case ofType:
			if doc.LocalName(s) == name {
				pos++
			}
		case filter != nil:
			if m.matchList(filter, s, inner) {
				pos++
			}
		default:
			pos++
		}
	}
	return pos
}

func (m *Matcher) isEmpty(e dom.NodeID) bool {
	for c := m.doc.FirstChild(e); c.Valid(); c = m.doc.NextSibling(c) {
		switch m.doc.Kind(c) {
		case dom.ElementNode:
			return false
		case dom.TextNode:
			if m.doc.Text(c) != "" {
				return false
			}
		}
	}
	return true
}

// matchHas evaluates :has() for anchor. Candidates are the anchor's
// descendants and its following siblings with their subtrees; each
// argument is matched right to left and its leftmost compound checked
// against the anchor.
func (m *Matcher) matchHas(s *SimpleSelector, anchor dom.NodeID, st matchState) bool {
	doc := m.doc
	if st.subject {
		if doc.HasFlags(anchor, dom.AffectedBySubjectHas) {
			m.setFlags(anchor, dom.AffectedByMultipleHas)
		}
		m.setFlags(anchor, dom.AffectedBySubjectHas)
	} else {
		if doc.HasFlags(anchor, dom.AffectedByNonSubjectHas) {
			m.setFlags(anchor, dom.AffectedByMultipleHas)
		}
		m.setFlags(anchor, dom.AffectedByNonSubjectHas)
	}
	if s.SelectorList == nil {
		return false
	}

	inner := matchState{scope: st.scope, anchor: anchor}
	matched := false
	for _, c := range s.SelectorList.Complex {
		flags := hasArgumentFlags(c)
		m.setFlags(anchor, flags|hasAnchorFlags(c))
		for _, cand := range m.hasCandidates(anchor, c) {
			m.setFlags(cand.id, cand.flags|flags)
			if !matched && m.matchComplex(c, cand.id, inner) {
				matched = true
				if !m.ctx.RecordFlags {
					return true
				}
			}
		}
	}
	return matched
}

type hasCandidate struct {
	id    dom.NodeID
	flags dom.ElementFlags
}

// hasCandidates lists the elements a relative selector can reach from the
// anchor, with the flags that let a mutation on them find the anchor again.
func (m *Matcher) hasCandidates(anchor dom.NodeID, c *ComplexSelector) []hasCandidate {
	doc := m.doc
	var out []hasCandidate
	siblingReach := c.LeadingCombinator.IsAdjacent()
	descendantReach := !siblingReach
	for _, compound := range c.Compounds[:len(c.Compounds)-1] {
		switch compound.Combinator {
		case CombinatorDescendant, CombinatorChild:
			descendantReach = true
		}
	}

	if !siblingReach {
		for _, d := range doc.Descendants(anchor) {
			out = append(out, hasCandidate{d, dom.AncestorsOrAncestorSiblingsAffectedByHas})
		}
		return out
	}

	for sib := doc.NextElementSibling(anchor); sib.Valid(); sib = doc.NextElementSibling(sib) {
		if descendantReach {
			out = append(out, hasCandidate{sib, dom.SiblingsAffectedByHasForSiblingDescendantRelationship})
			for _, d := range doc.Descendants(sib) {
				out = append(out, hasCandidate{d, dom.AncestorsOrAncestorSiblingsAffectedByHas})
			}
		} else {
			out = append(out, hasCandidate{sib, dom.SiblingsAffectedByHasForSiblingRelationship})
		}
	}
	return out
}

// hasAnchorFlags returns the flags recorded on the anchor itself, so that an
// insertion below or after it walks back to it.
func hasAnchorFlags(c *ComplexSelector) dom.ElementFlags {
	if !c.LeadingCombinator.IsAdjacent() {
		return dom.AncestorsOrAncestorSiblingsAffectedByHas
	}
	for _, compound := range c.Compounds[:len(c.Compounds)-1] {
		switch compound.Combinator {
		case CombinatorDescendant, CombinatorChild:
			return dom.SiblingsAffectedByHasForSiblingDescendantRelationship
		}
	}
	return dom.SiblingsAffectedByHasForSiblingRelationship
}

// hasArgumentFlags returns the flags recorded on elements checked against
// a :has() argument containing pseudo-classes or logical combinations.
func hasArgumentFlags(c *ComplexSelector) dom.ElementFlags {
	var flags dom.ElementFlags
	for _, compound := range c.Compounds {
		for _, s := range compound.Simples {
			if s.Match != MatchPseudoClass {
				continue
			}
			flags |= dom.AffectedByPseudoInHas
			if s.Pseudo.IsLogicalCombination() {
				flags |= dom.AffectedByLogicalCombinationsInHas
			}
		}
	}
	return flags
}

func isLink(doc *dom.Document, e dom.NodeID) bool {
	switch doc.LocalName(e) {
	case "a", "area", "link":
		return doc.HasAttribute(e, "href")
	}
	return false
}

func isMedia(doc *dom.Document, e dom.NodeID) bool {
	name := doc.LocalName(e)
	return name == "video" || name == "audio"
}

func isFormElement(doc *dom.Document, e dom.NodeID) bool {
	switch doc.LocalName(e) {
	case "button", "input", "select", "textarea", "option", "optgroup", "fieldset":
		return true
	}
	return false
}

func isDisabled(doc *dom.Document, e dom.NodeID) bool {
	return doc.HasAttribute(e, "disabled") || doc.HasPseudoState(e, dom.StateDisabled)
}

func isCheckable(doc *dom.Document, e dom.NodeID) bool {
	if doc.LocalName(e) != "input" {
		return false
	}
	t, _ := doc.GetAttribute(e, "type")
	t = strings.ToLower(t)
	return t == "checkbox" || t == "radio"
}

func isChecked(doc *dom.Document, e dom.NodeID) bool {
	if doc.HasPseudoState(e, dom.StateChecked) {
		return true
	}
	if isCheckable(doc, e) {
		return doc.HasAttribute(e, "checked")
	}
	return doc.LocalName(e) == "option" && doc.HasAttribute(e, "selected")
}

func isReadWrite(doc *dom.Document, e dom.NodeID) bool {
	switch doc.LocalName(e) {
	case "input":
		t, _ := doc.GetAttribute(e, "type")
		switch strings.ToLower(t) {
		case "", "text", "password", "email", "url", "tel", "search", "number":
		default:
			return false
		}
	case "textarea":
	default:
		return false
	}
	return !doc.HasAttribute(e, "readonly") && !isDisabled(doc, e)
}

func isPlaceholderShown(doc *dom.Document, e dom.NodeID) bool {
	switch doc.LocalName(e) {
	case "input", "textarea":
	default:
		return false
	}
	if !doc.HasAttribute(e, "placeholder") {
		return false
	}
	v, _ := doc.GetAttribute(e, "value")
	return v == ""
}

func matchLang(doc *dom.Document, lang string, e dom.NodeID) bool {
	lang = strings.ToLower(lang)

	// Walk up the tree looking for lang attribute
	for cur := e; cur.Valid(); cur = doc.ParentOrShadowHostElement(cur) {
		if v, ok := doc.GetAttribute(cur, "lang"); ok {
			v = strings.ToLower(v)
			return v == lang || strings.HasPrefix(v, lang+"-")
		}
	}
	return false
}

func matchDir(doc *dom.Document, dir string, e dom.NodeID) bool {
	dir = strings.ToLower(dir)

	// Walk up the tree looking for dir attribute
	for cur := e; cur.Valid(); cur = doc.ParentOrShadowHostElement(cur) {
		if v, ok := doc.GetAttribute(cur, "dir"); ok {
			switch v = strings.ToLower(v); v {
			case "ltr", "rtl":
				return v == dir
			}
		}
	}

	// Default is ltr
	return dir == "ltr"
}

// QuerySelectorAll returns the elements under root matching the selector,
// in tree order.
func QuerySelectorAll(doc *dom.Document, root dom.NodeID, selector string) ([]dom.NodeID, error) {
	list, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	m := NewMatcher(doc, MatchContext{})
	var results []dom.NodeID
	for _, el := range doc.Descendants(root) {
		if m.Matches(list, el) {
			results = append(results, el)
		}
	}
	return results, nil
}

// QuerySelector returns the first element under root matching the selector.
func QuerySelector(doc *dom.Document, root dom.NodeID, selector string) (dom.NodeID, error) {
	all, err := QuerySelectorAll(doc, root, selector)
	if err != nil || len(all) == 0 {
		return dom.InvalidNodeID, err
	}
	return all[0], nil
}
