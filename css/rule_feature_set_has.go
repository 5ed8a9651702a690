package css

import "github.com/chrisuehlinger/invalidator/dom"

// :has() invalidates upwards: a change on an element can change the match
// of its ancestors and earlier siblings. The feature set only records which
// values appear inside :has() arguments so that mutations can be filtered
// cheaply. The actual upward walk belongs to the style engine.

type logicalCombinationMethod uint8

const (
	// Add the features of every compound left of the rightmost one.
	forAllNonRightmostCompounds logicalCombinationMethod = iota
	// Add only the compounds directly left of a sibling combinator, as if
	// they were siblings of the element holding :has().
	forCompoundImmediatelyFollowsAdjacentRelation
)

func (r *RuleFeatureSet) collectValuesInHasArgument(has *SimpleSelector) {
	if has.SelectorList == nil {
		return
	}
	for _, relative := range has.SelectorList.Complex {
		for _, compound := range relative.Compounds {
			added := false
			for _, s := range compound.Simples {
				if r.addValueOfSimpleSelectorInHasArgument(s) {
					added = true
				}
			}
			if !added {
				r.universalInHasArgument = true
			}
		}
	}
}

func (r *RuleFeatureSet) addValuesInComplexSelectorInsideIsWhereNot(list *SelectorList) {
	if list == nil {
		return
	}
	for _, c := range list.Complex {
		for _, compound := range c.Compounds {
			for _, s := range compound.Simples {
				r.addValueOfSimpleSelectorInHasArgument(s)
			}
		}
	}
}

func (r *RuleFeatureSet) addValueOfSimpleSelectorInHasArgument(s *SimpleSelector) bool {
	switch s.Match {
	case MatchClass:
		r.classesInHasArgument[s.Value] = struct{}{}
		return true
	case MatchAttribute:
		r.attributesInHasArgument[s.Value] = struct{}{}
		return true
	case MatchID:
		r.idsInHasArgument[s.Value] = struct{}{}
		return true
	case MatchTag:
		if s.IsUniversal() {
			return false
		}
		r.tagNamesInHasArgument[s.Value] = struct{}{}
		return true
	case MatchPseudoClass:
		switch s.Pseudo {
		case PseudoNot:
			r.notPseudoInHasArgument = true
			r.addValuesInComplexSelectorInsideIsWhereNot(s.SelectorList)
		case PseudoIs, PseudoWhere:
			r.addValuesInComplexSelectorInsideIsWhereNot(s.SelectorList)
		case PseudoVisited:
			// :visited never takes part in :has() matching.
		default:
			r.pseudosInHasArgument[s.Pseudo] = struct{}{}
		}
		return true
	}
	return false
}

func isLogicalInHas(s *SimpleSelector) bool {
	if s.Match != MatchPseudoClass {
		return false
	}
	switch s.Pseudo {
	case PseudoIs, PseudoWhere, PseudoNot:
		return true
	}
	return false
}

// containsComplexLogicalCombinationsInsideHas reports whether some :is(),
// :where() or :not() inside the :has() argument takes a selector with a
// combinator, as in ".a:has(:is(.b .c))".
func containsComplexLogicalCombinationsInsideHas(has *SimpleSelector) bool {
	if has.SelectorList == nil {
		return false
	}
	for _, relative := range has.SelectorList.Complex {
		if listHasComplexLogicalCombination(relative) {
			return true
		}
	}
	return false
}

func listHasComplexLogicalCombination(c *ComplexSelector) bool {
	for _, compound := range c.Compounds {
		for _, s := range compound.Simples {
			if !isLogicalInHas(s) || s.SelectorList == nil {
				continue
			}
			for _, sub := range s.SelectorList.Complex {
				if len(sub.Compounds) > 1 || listHasComplexLogicalCombination(sub) {
					return true
				}
			}
		}
	}
	return false
}

// addFeaturesToInvalidationSetsForHasPseudoClass handles logical
// combinations with complex arguments inside :has(). For
// ".a:has(:is(.b ~ .c .d))" the features of .a are added as if the
// selectors ".b ~ .c .a" and ".b ~ .a" had been written.
func (r *RuleFeatureSet) addFeaturesToInvalidationSetsForHasPseudoClass(has *SimpleSelector, containing *CompoundSelector, sibling, desc *invalidationSetFeatures, inNth bool) {
	if inNth {
		r.metadata.usesHasInsideNth = true
	}
	if !containsComplexLogicalCombinationsInsideHas(has) {
		return
	}

	wasWholeSubtreeInvalid := desc.flags.wholeSubtreeInvalid
	defer func() { desc.flags.wholeSubtreeInvalid = wasWholeSubtreeInvalid }()
	if !desc.hasFeatures() {
		desc.flags.wholeSubtreeInvalid = true
	}

	// A :has() in subject position uses the subject features as siblings.
	if sibling == nil && desc.descendantFeaturesDepth == 0 {
		sibling = desc
	}

	for _, relative := range has.SelectorList.Complex {
		for _, compound := range relative.Compounds {
			for _, s := range compound.Simples {
				if !isLogicalInHas(s) {
					continue
				}
				r.addFeaturesToInvalidationSetsForLogicalCombinationInHas(s, containing, sibling, desc, combinatorSubSelector, forAllNonRightmostCompounds)
				r.addFeaturesToInvalidationSetsForLogicalCombinationInHas(s, containing, sibling, desc, combinatorSubSelector, forCompoundImmediatelyFollowsAdjacentRelation)
			}
		}
	}
}

type logicalCombinationInHasContext struct {
	skipAddingFeatures          bool
	updateFeatures              bool
	lastCompoundInAdjacentChain *CompoundSelector
	useIndirectAdjacent         bool
}

func newLogicalCombinationInHasContext(compound, containing *CompoundSelector, prev Combinator, method logicalCombinationMethod) logicalCombinationInHasContext {
	var ctx logicalCombinationInHasContext
	immediatelyFollows := method == forCompoundImmediatelyFollowsAdjacentRelation
	if prev == combinatorSubSelector {
		// The rightmost compound matches the :has() argument element
		// itself. Later compounds are prepended to the compound that holds
		// :has().
		ctx.skipAddingFeatures = true
		ctx.updateFeatures = true
		ctx.lastCompoundInAdjacentChain = containing
		ctx.useIndirectAdjacent = immediatelyFollows
		return ctx
	}
	ctx.skipAddingFeatures = immediatelyFollows && !prev.IsAdjacent()
	ctx.updateFeatures = method == forAllNonRightmostCompounds
	ctx.lastCompoundInAdjacentChain = compound
	return ctx
}

func (r *RuleFeatureSet) addFeaturesToInvalidationSetsForLogicalCombinationInHas(logical *SimpleSelector, containing *CompoundSelector, sibling, desc *invalidationSetFeatures, prev Combinator, method logicalCombinationMethod) {
	if logical.SelectorList == nil {
		return
	}
	for _, c := range logical.SelectorList.Complex {
		r.addFeaturesForComplexInLogicalCombinationInHas(c, containing, sibling, desc, prev, method)
	}
}

func (r *RuleFeatureSet) addFeaturesForComplexInLogicalCombinationInHas(c *ComplexSelector, containing *CompoundSelector, sibling, desc *invalidationSetFeatures, prev Combinator, method logicalCombinationMethod) {
	defer saveWalk(sibling, desc).restore(desc)

	innerSibling := sibling
	var chain invalidationSetFeatures
	for i := len(c.Compounds) - 1; i >= 0; i-- {
		compound := c.Compounds[i]
		ctx := newLogicalCombinationInHasContext(compound, containing, prev, method)
		if ctx.skipAddingFeatures {
			for _, s := range compound.Simples {
				if isLogicalInHas(s) {
					r.addFeaturesToInvalidationSetsForLogicalCombinationInHas(s, containing, innerSibling, desc, prev, method)
				}
			}
		} else {
			r.addFeaturesForCompoundInLogicalCombinationInHas(compound, containing, innerSibling, desc, prev, method)
		}
		if i == 0 {
			break
		}

		prev = c.RelationLeftOf(i)
		if ctx.updateFeatures {
			comb := prev
			if ctx.useIndirectAdjacent {
				comb = CombinatorSubsequentSibling
			}
			r.updateFeaturesFromCombinatorForLogicalCombinationInHas(comb, ctx.lastCompoundInAdjacentChain, &chain, &innerSibling, desc)
		}
	}
}

func (r *RuleFeatureSet) addFeaturesForCompoundInLogicalCombinationInHas(compound, containing *CompoundSelector, sibling, desc *invalidationSetFeatures, prev Combinator, method logicalCombinationMethod) {
	compoundHasFeatures := false
	for _, s := range compound.Simples {
		saved := desc.hasFeaturesForRuleSetInvalidation
		desc.hasFeaturesForRuleSetInvalidation = false
		if isLogicalInHas(s) {
			r.addFeaturesToInvalidationSetsForLogicalCombinationInHas(s, containing, sibling, desc, prev, method)
		} else {
			r.addFeaturesToInvalidationSetsForSimpleSelector(s, compound, false, sibling, desc)
		}
		if desc.hasFeaturesForRuleSetInvalidation {
			compoundHasFeatures = true
		}
		desc.hasFeaturesForRuleSetInvalidation = saved
	}

	if compoundHasFeatures {
		desc.hasFeaturesForRuleSetInvalidation = true
	} else if sibling != nil {
		r.addFeaturesToUniversalSiblingInvalidationSet(sibling, desc)
	}
}

// updateFeaturesFromCombinatorForLogicalCombinationInHas treats every
// combinator as its indirect form. Counting "+" chains through nested
// logical combinations is not worth the precision.
func (r *RuleFeatureSet) updateFeaturesFromCombinatorForLogicalCombinationInHas(comb Combinator, last *CompoundSelector, chain *invalidationSetFeatures, sibling **invalidationSetFeatures, desc *invalidationSetFeatures) {
	switch comb {
	case CombinatorDescendant, CombinatorChild:
		comb = CombinatorDescendant
	case CombinatorNextSibling, CombinatorSubsequentSibling:
		comb = CombinatorSubsequentSibling
	default:
		return
	}
	r.updateFeaturesFromCombinator(comb, last, chain, sibling, desc, true, false)
}

// NeedsHasInvalidationForClass reports whether a change of class can
// change the result of some :has().
func (r *RuleFeatureSet) NeedsHasInvalidationForClass(class string) bool {
	return r.classesInHasArgument.has(class)
}

func (r *RuleFeatureSet) NeedsHasInvalidationForAttribute(name string) bool {
	return r.attributesInHasArgument.has(name)
}

func (r *RuleFeatureSet) NeedsHasInvalidationForID(id string) bool {
	return r.idsInHasArgument.has(id)
}

func (r *RuleFeatureSet) NeedsHasInvalidationForTagName(tag string) bool {
	return r.universalInHasArgument || r.tagNamesInHasArgument.has(tag)
}

func (r *RuleFeatureSet) NeedsHasInvalidationForPseudoClass(pseudo PseudoType) bool {
	_, ok := r.pseudosInHasArgument[pseudo]
	return ok
}

// NeedsHasInvalidationForInsertedOrRemovedElement reports whether inserting
// or removing el can change the result of some :has().
func (r *RuleFeatureSet) NeedsHasInvalidationForInsertedOrRemovedElement(doc *dom.Document, el dom.NodeID) bool {
	if r.notPseudoInHasArgument {
		return true
	}
	if doc.HasID(el) && r.NeedsHasInvalidationForID(doc.ID(el)) {
		return true
	}
	for _, class := range doc.Classes(el) {
		if r.NeedsHasInvalidationForClass(class) {
			return true
		}
	}
	return len(r.attributesInHasArgument) > 0 || r.NeedsHasInvalidationForTagName(doc.LocalName(el))
}

func (r *RuleFeatureSet) NeedsHasInvalidationForClassChange() bool {
	return len(r.classesInHasArgument) > 0
}

func (r *RuleFeatureSet) NeedsHasInvalidationForAttributeChange() bool {
	return len(r.attributesInHasArgument) > 0
}

func (r *RuleFeatureSet) NeedsHasInvalidationForIDChange() bool {
	return len(r.idsInHasArgument) > 0
}

func (r *RuleFeatureSet) NeedsHasInvalidationForPseudoStateChange() bool {
	return len(r.pseudosInHasArgument) > 0
}

func (r *RuleFeatureSet) NeedsHasInvalidationForInsertionOrRemoval() bool {
	return r.notPseudoInHasArgument ||
		r.universalInHasArgument ||
		len(r.tagNamesInHasArgument) > 0 ||
		r.NeedsHasInvalidationForClassChange() ||
		r.NeedsHasInvalidationForAttributeChange() ||
		r.NeedsHasInvalidationForIDChange() ||
		r.NeedsHasInvalidationForPseudoStateChange()
}
