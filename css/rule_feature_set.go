package css

import (
	"go.uber.org/zap"

	"github.com/chrisuehlinger/invalidator/dom"
	"github.com/chrisuehlinger/invalidator/invalidation"
)

// SelectorPreMatch is the verdict of the metadata pass over a selector.
type SelectorPreMatch uint8

const (
	// SelectorNeverMatches marks selectors that cannot match anything, such
	// as ":host" in a non-leftmost compound or an empty ":is()".
	SelectorNeverMatches SelectorPreMatch = iota
	SelectorMayMatch
)

type positionType uint8

const (
	subjectPosition positionType = iota
	ancestorPosition
)

type featureInvalidationType uint8

const (
	normalInvalidation featureInvalidationType = iota
	requiresSubtreeInvalidation
)

// FeatureSetOptions tunes the self-invalidation Bloom filter.
type FeatureSetOptions struct {
	// BloomThreshold is the number of self-invalidation candidates kept as
	// exact map entries. The candidate that reaches it creates the filter.
	BloomThreshold int
	// BloomBits is log2 of the filter size in bits.
	BloomBits uint
	ClassSalt uint32
	IDSalt    uint32
}

// DefaultFeatureSetOptions returns the stock tuning: 50 exact candidates,
// a 16384 bit filter and salts 13 and 29.
func DefaultFeatureSetOptions() FeatureSetOptions {
	return FeatureSetOptions{BloomThreshold: 50, BloomBits: 14, ClassSalt: 13, IDSalt: 29}
}

type featureMetadata struct {
	usesFirstLineRules                    bool
	usesWindowInactiveSelector            bool
	needsFullRecalcForRuleSetInvalidation bool
	maxDirectAdjacentSelectors            uint32
	invalidatesParts                      bool
	usesHasInsideNth                      bool
}

func (m *featureMetadata) merge(o featureMetadata) {
	m.usesFirstLineRules = m.usesFirstLineRules || o.usesFirstLineRules
	m.usesWindowInactiveSelector = m.usesWindowInactiveSelector || o.usesWindowInactiveSelector
	m.needsFullRecalcForRuleSetInvalidation = m.needsFullRecalcForRuleSetInvalidation || o.needsFullRecalcForRuleSetInvalidation
	m.maxDirectAdjacentSelectors = max(m.maxDirectAdjacentSelectors, o.maxDirectAdjacentSelectors)
	m.invalidatesParts = m.invalidatesParts || o.invalidatesParts
	m.usesHasInsideNth = m.usesHasInsideNth || o.usesHasInsideNth
}

type setMap[K comparable] map[K]*invalidation.InvalidationSet

type nameIndex map[string]struct{}

func (n nameIndex) has(name string) bool {
	_, ok := n[name]
	return ok
}

// RuleFeatureSet indexes the selectors of a rule set by the features that
// can change their match result. For every class, id, attribute and
// pseudo-class it keeps the invalidation set to schedule when that feature
// changes on an element.
//
// Invalidation sets are reference counted and shared between feature sets
// after Merge. A set is copied before it is changed unless this feature set
// holds the only reference.
type RuleFeatureSet struct {
	opts FeatureSetOptions
	log  *zap.Logger

	metadata featureMetadata

	classSets     setMap[string]
	attributeSets setMap[string]
	idSets        setMap[string]
	pseudoSets    setMap[PseudoType]

	universalSiblingSet *invalidation.InvalidationSet
	nthSet              *invalidation.InvalidationSet
	typeRuleSet         *invalidation.InvalidationSet

	// Classes and ids that only ever self-invalidate go here once there
	// are enough of them, instead of into classSets and idSets.
	namesWithSelfInvalidation *bloomFilter
	bloomCandidates           int

	classesInHasArgument    nameIndex
	attributesInHasArgument nameIndex
	idsInHasArgument        nameIndex
	tagNamesInHasArgument   nameIndex
	pseudosInHasArgument    map[PseudoType]struct{}
	universalInHasArgument  bool
	notPseudoInHasArgument  bool
}

// NewRuleFeatureSet returns an empty feature set.
func NewRuleFeatureSet(opts FeatureSetOptions, log *zap.Logger) *RuleFeatureSet {
	if log == nil {
		log = zap.NewNop()
	}
	r := &RuleFeatureSet{opts: opts, log: log.Named("rule-features")}
	r.reset()
	return r
}

func (r *RuleFeatureSet) reset() {
	r.metadata = featureMetadata{}
	r.classSets = make(setMap[string])
	r.attributeSets = make(setMap[string])
	r.idSets = make(setMap[string])
	r.pseudoSets = make(setMap[PseudoType])
	r.universalSiblingSet = nil
	r.nthSet = nil
	r.typeRuleSet = nil
	r.namesWithSelfInvalidation = nil
	r.bloomCandidates = 0
	r.classesInHasArgument = make(nameIndex)
	r.attributesInHasArgument = make(nameIndex)
	r.idsInHasArgument = make(nameIndex)
	r.tagNamesInHasArgument = make(nameIndex)
	r.pseudosInHasArgument = make(map[PseudoType]struct{})
	r.universalInHasArgument = false
	r.notPseudoInHasArgument = false
}

// Options returns the tuning the feature set was created with.
func (r *RuleFeatureSet) Options() FeatureSetOptions { return r.opts }

// CollectFeaturesFromSelector indexes one complex selector.
func (r *RuleFeatureSet) CollectFeaturesFromSelector(c *ComplexSelector) SelectorPreMatch {
	var md featureMetadata
	if r.collectMetadataFromSelector(c, 0, &md) == SelectorNeverMatches {
		return SelectorNeverMatches
	}
	r.metadata.merge(md)
	r.updateInvalidationSets(c)
	return SelectorMayMatch
}

// collectMetadataFromSelector walks c once for flags that do not depend on
// invalidation sets. maxAdjacent is the run of "+" combinators already seen
// by an enclosing selector.
func (r *RuleFeatureSet) collectMetadataFromSelector(c *ComplexSelector, maxAdjacent uint32, md *featureMetadata) SelectorPreMatch {
	for i := len(c.Compounds) - 1; i >= 0; i-- {
		compound := c.Compounds[i]
		for j, s := range compound.Simples {
			switch s.Pseudo {
			case PseudoHas:
				continue
			case PseudoFirstLine:
				md.usesFirstLineRules = true
			case PseudoWindowInactive:
				md.usesWindowInactiveSelector = true
			case PseudoHost, PseudoHostContext:
				if !hostPlacementValid(compound, i, j) {
					return SelectorNeverMatches
				}
			case PseudoIs, PseudoWhere:
				if s.SelectorList != nil && len(s.SelectorList.Complex) == 0 {
					return SelectorNeverMatches
				}
			}
			if s.SelectorList != nil {
				for _, sub := range s.SelectorList.Complex {
					r.collectMetadataFromSelector(sub, maxAdjacent, md)
				}
			}
		}

		var rel Combinator
		if i > 0 {
			rel = c.Compounds[i-1].Combinator
		}
		if rel == CombinatorNextSibling {
			maxAdjacent++
		} else if maxAdjacent > 0 {
			md.maxDirectAdjacentSelectors = max(md.maxDirectAdjacentSelectors, maxAdjacent)
			maxAdjacent = 0
		}
	}
	return SelectorMayMatch
}

// hostPlacementValid reports whether the :host or :host-context at
// compound.Simples[j] may match. It must sit in the leftmost compound,
// preceded only by other host pseudo-classes and followed only by
// pseudo-elements or host pseudo-classes.
func hostPlacementValid(compound *CompoundSelector, i, j int) bool {
	if i != 0 {
		return false
	}
	isHost := func(s *SimpleSelector) bool {
		return s.Match == MatchPseudoClass && s.Pseudo.IsHost()
	}
	for _, prev := range compound.Simples[:j] {
		if !isHost(prev) {
			return false
		}
	}
	if j+1 < len(compound.Simples) {
		next := compound.Simples[j+1]
		return next.Match == MatchPseudoElement || isHost(next)
	}
	return true
}

func (r *RuleFeatureSet) updateInvalidationSets(c *ComplexSelector) {
	var features invalidationSetFeatures
	if r.updateInvalidationSetsForComplex(c, false, &features, subjectPosition, PseudoUnknown) == requiresSubtreeInvalidation {
		features.flags.wholeSubtreeInvalid = true
	}
	r.updateRuleSetInvalidation(&features)
}

// updateRuleSetInvalidation records how a change of the whole rule set
// must be scheduled for a selector whose features are f. Selectors with an
// id, class or attribute are found through those maps. Type selectors go
// into the type rule set. Everything else needs a full recalc.
func (r *RuleFeatureSet) updateRuleSetInvalidation(f *invalidationSetFeatures) {
	if f.hasFeaturesForRuleSetInvalidation {
		return
	}
	if f.flags.wholeSubtreeInvalid || (len(f.tagNames) == 0 && !f.flags.invalidateCustomPseudo) {
		r.metadata.needsFullRecalcForRuleSetInvalidation = true
		return
	}
	set := r.ensureTypeRuleInvalidationSet()
	if f.flags.invalidateCustomPseudo {
		set.SetCustomPseudoInvalid()
		set.SetTreeBoundaryCrossing()
	}
	for _, tag := range f.tagNames {
		set.AddTagName(tag)
	}
}

// updateInvalidationSetsForComplex extracts the features of the rightmost
// compound of c, then adds them to the sets of every feature to the left.
func (r *RuleFeatureSet) updateInvalidationSetsForComplex(c *ComplexSelector, inNth bool, features *invalidationSetFeatures, pos positionType, pseudo PseudoType) featureInvalidationType {
	n := len(c.Compounds)
	if n == 0 {
		return normalInvalidation
	}
	var sibling *invalidationSetFeatures

	ok := r.extractInvalidationSetFeaturesFromCompound(c.Compounds[n-1], features, pos, false, inNth)
	wasWholeSubtreeInvalid := features.flags.wholeSubtreeInvalid
	if wasWholeSubtreeInvalid {
		features.hasFeaturesForRuleSetInvalidation = false
	} else if !features.hasFeatures() {
		features.flags.wholeSubtreeInvalid = true
	}

	// Only the top level selector feeds the nth set; "#id:nth-child(odd)"
	// puts #id into it.
	if pseudo == PseudoUnknown && features.hasNthPseudo {
		nth := r.ensureNthInvalidationSet()
		addFeaturesToInvalidationSet(nth, features)
		nth.SetInvalidatesSelf()
	}

	next := n - 1
	if ok {
		next = n - 2
	}
	if next < 0 {
		return normalInvalidation
	}
	if ok {
		r.updateFeaturesFromCombinator(c.RelationLeftOf(n-1), nil, features, &sibling, features, false, inNth)
	}
	r.addFeaturesToInvalidationSets(c, next, inNth, sibling, features)
	r.markInvalidationSetsWithinNthChild(c, next, inNth)

	// Callers tell "no features" apart from "requires subtree
	// invalidation" by the return value, so the flag goes back.
	features.flags.wholeSubtreeInvalid = wasWholeSubtreeInvalid
	if ok {
		return normalInvalidation
	}
	return requiresSubtreeInvalidation
}

func requiresSubtreeInvalidationFor(s *SimpleSelector) bool {
	if s.Match != MatchPseudoClass && s.Match != MatchPseudoElement {
		return false
	}
	switch s.Pseudo {
	case PseudoFirstLine, PseudoFirstLetter, PseudoHostContext:
		// :host-context() arguments match ancestors of the host.
		return true
	}
	return false
}

func extractInvalidationSetFeaturesFromSimpleSelector(s *SimpleSelector, f *invalidationSetFeatures) {
	if s.IsIDClassOrAttribute() {
		f.hasFeaturesForRuleSetInvalidation = true
	}
	switch s.Match {
	case MatchTag:
		if !s.IsUniversal() {
			f.narrowToTag(s.Value)
		}
		return
	case MatchID:
		f.narrowToID(s.Value)
		return
	case MatchClass:
		f.narrowToClass(s.Value)
		return
	case MatchAttribute:
		f.narrowToAttribute(s.Value)
		return
	}
	switch s.Pseudo {
	case PseudoWebKitCustomElement:
		f.flags.invalidateCustomPseudo = true
	case PseudoSlotted:
		f.flags.invalidatesSlotted = true
	case PseudoPart:
		f.flags.invalidatesParts = true
		f.flags.treeBoundaryCrossing = true
	}
}

// extractInvalidationSetFeaturesFromCompound narrows f to the features of
// compound and creates the self-invalidation entries for it. It returns
// false when the compound needs subtree invalidation.
func (r *RuleFeatureSet) extractInvalidationSetFeaturesFromCompound(compound *CompoundSelector, f *invalidationSetFeatures, pos positionType, forLogicalCombinationInHas, inNth bool) bool {
	for _, s := range compound.Simples {
		if requiresSubtreeInvalidationFor(s) {
			f.flags.wholeSubtreeInvalid = true
			return false
		}
		extractInvalidationSetFeaturesFromSimpleSelector(s, f)

		// Inside :nth-child() the set also needs the nth bit, which the
		// shared self set and the Bloom filter cannot carry.
		lookup := pos
		if inNth && pos == subjectPosition && !s.IsPseudoClass(PseudoHas) {
			lookup = ancestorPosition
		}
		if set := r.invalidationSetForSimpleSelector(s, invalidation.InvalidateDescendants, lookup); set != nil {
			switch {
			case set == r.nthSet:
				f.hasNthPseudo = true
			case pos == subjectPosition:
				if !set.IsSelfInvalidationSet() {
					set.SetInvalidatesSelf()
				}
				if inNth {
					set.SetInvalidatesNth()
				}
			}
		}

		r.extractInvalidationSetFeaturesFromSelectorList(s, inNth, f, pos)

		if f.flags.invalidatesParts {
			r.metadata.invalidatesParts = true
		}

		// Features of logical combinations inside :has() are added by
		// extracting the compound holding the :has() again, which must not
		// recurse into the :has() itself.
		if s.IsPseudoClass(PseudoHas) && !forLogicalCombinationInHas {
			r.collectValuesInHasArgument(s)
			r.addFeaturesToInvalidationSetsForHasPseudoClass(s, compound, nil, f, inNth)
		}
	}
	return true
}

func (r *RuleFeatureSet) extractInvalidationSetFeaturesFromSelectorList(s *SimpleSelector, inNth bool, f *invalidationSetFeatures, pos positionType) {
	defer saveWalk(f, f).restoreReach(f)

	// :has() invalidates in the other direction (ancestors and earlier
	// siblings) and is handled separately.
	if s.SelectorList == nil || s.IsPseudoClass(PseudoHas) {
		return
	}
	inNth = inNth || s.Pseudo == PseudoNthChild || s.Pseudo == PseudoNthLastChild

	allSubSelectorsHaveFeatures := true
	var anyFeatures invalidationSetFeatures
	for _, sub := range s.SelectorList.Complex {
		var complexFeatures invalidationSetFeatures
		if r.updateInvalidationSetsForComplex(sub, inNth, &complexFeatures, pos, s.Pseudo) == requiresSubtreeInvalidation {
			f.flags.wholeSubtreeInvalid = true
			continue
		}
		if complexFeatures.hasNthPseudo {
			f.hasNthPseudo = true
		}
		if !allSubSelectorsHaveFeatures {
			continue
		}
		if complexFeatures.hasFeatures() {
			anyFeatures.merge(&complexFeatures)
		} else {
			allSubSelectorsHaveFeatures = false
		}
	}
	// ".a :not(.b)" must invalidate elements without .b, so the inner
	// features never narrow.
	if s.Pseudo != PseudoNot && allSubSelectorsHaveFeatures {
		f.narrowToFeatures(&anyFeatures)
	}
}

// updateFeaturesFromCombinator moves the walk one combinator to the left.
// Sibling combinators extend the reach of the sibling features, everything
// else goes one level up the ancestor chain.
func (r *RuleFeatureSet) updateFeaturesFromCombinator(comb Combinator, lastCompoundInAdjacentChain *CompoundSelector, chainFeatures *invalidationSetFeatures, sibling **invalidationSetFeatures, desc *invalidationSetFeatures, forLogicalCombinationInHas, inNth bool) {
	if comb.IsAdjacent() {
		if *sibling == nil {
			*sibling = chainFeatures
			if lastCompoundInAdjacentChain != nil {
				r.extractInvalidationSetFeaturesFromCompound(lastCompoundInAdjacentChain, chainFeatures, ancestorPosition, forLogicalCombinationInHas, inNth)
				if !chainFeatures.hasFeatures() {
					chainFeatures.flags.wholeSubtreeInvalid = true
				}
			}
		}
		sib := *sibling
		if sib.maxDirectAdjacentSelectors == invalidation.DirectAdjacentMax {
			return
		}
		if comb == CombinatorNextSibling {
			sib.maxDirectAdjacentSelectors++
		} else {
			sib.maxDirectAdjacentSelectors = invalidation.DirectAdjacentMax
		}
		return
	}

	desc.descendantFeaturesDepth++
	if *sibling != nil && chainFeatures.maxDirectAdjacentSelectors != 0 {
		*chainFeatures = invalidationSetFeatures{}
	}
	*sibling = nil

	switch comb {
	case CombinatorUAShadow:
		desc.flags.treeBoundaryCrossing = true
	case CombinatorShadowSlot:
		desc.flags.insertionPointCrossing = true
	}
}

// addFeaturesToInvalidationSets adds desc, the features of the rightmost
// compound, to the sets of every feature in compounds start down to 0.
func (r *RuleFeatureSet) addFeaturesToInvalidationSets(c *ComplexSelector, start int, inNth bool, sibling, desc *invalidationSetFeatures) {
	var chain invalidationSetFeatures
	for i := start; i >= 0; i-- {
		compound := c.Compounds[i]
		r.addFeaturesToInvalidationSetsForCompoundSelector(compound, inNth, sibling, desc)
		if i > 0 {
			r.updateFeaturesFromCombinator(c.RelationLeftOf(i), compound, &chain, &sibling, desc, false, inNth)
		}
	}
}

func (r *RuleFeatureSet) addFeaturesToInvalidationSetsForCompoundSelector(compound *CompoundSelector, inNth bool, sibling, desc *invalidationSetFeatures) {
	compoundHasFeatures := false
	for _, s := range compound.Simples {
		saved := desc.hasFeaturesForRuleSetInvalidation
		desc.hasFeaturesForRuleSetInvalidation = false
		r.addFeaturesToInvalidationSetsForSimpleSelector(s, compound, inNth, sibling, desc)
		if desc.hasFeaturesForRuleSetInvalidation {
			compoundHasFeatures = true
		}
		desc.hasFeaturesForRuleSetInvalidation = saved
	}

	if compoundHasFeatures {
		desc.hasFeaturesForRuleSetInvalidation = true
	} else if sibling != nil {
		// "* + .a" has nothing to key a sibling set on.
		r.addFeaturesToUniversalSiblingInvalidationSet(sibling, desc)
	}
}

func (r *RuleFeatureSet) addFeaturesToInvalidationSetsForSimpleSelector(s *SimpleSelector, compound *CompoundSelector, inNth bool, sibling, desc *invalidationSetFeatures) {
	if s.IsIDClassOrAttribute() {
		desc.hasFeaturesForRuleSetInvalidation = true
	}
	isHas := s.IsPseudoClass(PseudoHas)
	if isHas {
		r.collectValuesInHasArgument(s)
		r.addFeaturesToInvalidationSetsForHasPseudoClass(s, compound, sibling, desc, inNth)
	}

	typ := invalidation.InvalidateDescendants
	if sibling != nil {
		typ = invalidation.InvalidateSiblings
	}
	if set := r.invalidationSetForSimpleSelector(s, typ, ancestorPosition); set != nil {
		if sibling == nil {
			if set == r.nthSet {
				set.SetWholeSubtreeInvalid()
				addFeaturesToInvalidationSet(set.EnsureSiblingDescendants(), desc)
				return
			}
			addFeaturesToInvalidationSet(set, desc)
			return
		}

		set.UpdateMaxDirectAdjacentSelectors(sibling.maxDirectAdjacentSelectors)
		addFeaturesToInvalidationSet(set, sibling)
		if sibling == desc {
			set.SetInvalidatesSelf()
			if inNth {
				set.SetInvalidatesNth()
			}
		} else {
			addFeaturesToInvalidationSet(set.EnsureSiblingDescendants(), desc)
		}
		return
	}

	if isHas {
		return
	}
	if s.Pseudo == PseudoPart {
		desc.flags.invalidatesParts = true
	}
	r.addFeaturesToInvalidationSetsForSelectorList(s, inNth, sibling, desc)
}

func (r *RuleFeatureSet) addFeaturesToInvalidationSetsForSelectorList(s *SimpleSelector, inNth bool, sibling, desc *invalidationSetFeatures) {
	if s.SelectorList == nil {
		return
	}
	hadFeatures := desc.hasFeaturesForRuleSetInvalidation
	containsUniversal := s.Pseudo == PseudoNot || s.Pseudo == PseudoHostContext
	inNth = inNth || s.Pseudo == PseudoNthChild || s.Pseudo == PseudoNthLastChild

	for _, sub := range s.SelectorList.Complex {
		if !r.addFeaturesToInvalidationSetsForSubSelector(s, sub, inNth, sibling, desc) {
			containsUniversal = true
		}
	}
	desc.hasFeaturesForRuleSetInvalidation = hadFeatures || !containsUniversal
}

// addFeaturesToInvalidationSetsForSubSelector handles one argument of a
// selector list pseudo and reports whether it had rule set features.
func (r *RuleFeatureSet) addFeaturesToInvalidationSetsForSubSelector(s *SimpleSelector, sub *ComplexSelector, inNth bool, sibling, desc *invalidationSetFeatures) bool {
	defer saveWalk(sibling, desc).restore(desc)

	if s.Match == MatchPseudoClass && s.Pseudo.IsHost() {
		desc.flags.treeBoundaryCrossing = true
	}
	desc.hasFeaturesForRuleSetInvalidation = false
	r.addFeaturesToInvalidationSets(sub, len(sub.Compounds)-1, inNth, sibling, desc)
	return desc.hasFeaturesForRuleSetInvalidation
}

func (r *RuleFeatureSet) addFeaturesToUniversalSiblingInvalidationSet(sibling, desc *invalidationSetFeatures) {
	set := r.ensureUniversalSiblingInvalidationSet()
	addFeaturesToInvalidationSet(set, sibling)
	set.UpdateMaxDirectAdjacentSelectors(sibling.maxDirectAdjacentSelectors)
	if sibling == desc {
		set.SetInvalidatesSelf()
	} else {
		addFeaturesToInvalidationSet(set.EnsureSiblingDescendants(), desc)
	}
}

// markInvalidationSetsWithinNthChild sets the nth bit on the sets of every
// feature left of the rightmost compound when the selector is an argument
// of :nth-child().
func (r *RuleFeatureSet) markInvalidationSetsWithinNthChild(c *ComplexSelector, start int, inNth bool) {
	for i := start; i >= 0; i-- {
		for _, s := range c.Compounds[i].Simples {
			if inNth {
				if set := r.invalidationSetForSimpleSelector(s, invalidation.InvalidateDescendants, ancestorPosition); set != nil {
					set.SetInvalidatesNth()
				}
			}
			if s.SelectorList != nil && len(s.SelectorList.Complex) > 0 {
				first := s.SelectorList.Complex[0]
				subInNth := inNth || s.Pseudo == PseudoNthChild || s.Pseudo == PseudoNthLastChild
				r.markInvalidationSetsWithinNthChild(first, len(first.Compounds)-1, subInNth)
			}
		}
	}
}

// pseudoWithInvalidationSet reports whether changes of the pseudo-class t
// are tracked with their own invalidation set.
func pseudoWithInvalidationSet(t PseudoType) bool {
	switch t {
	case PseudoEmpty, PseudoFirstChild, PseudoLastChild, PseudoOnlyChild,
		PseudoLink, PseudoVisited, PseudoAnyLink, PseudoAutofill,
		PseudoHover, PseudoDrag, PseudoFocus, PseudoFocusVisible, PseudoFocusWithin, PseudoActive,
		PseudoChecked, PseudoEnabled, PseudoDefault, PseudoDisabled, PseudoOptional,
		PseudoPlaceholderShown, PseudoRequired, PseudoReadOnly, PseudoReadWrite, PseudoState,
		PseudoUserInvalid, PseudoUserValid, PseudoValid, PseudoInvalid, PseudoIndeterminate,
		PseudoTarget, PseudoLang, PseudoDir, PseudoFullscreen, PseudoPaused, PseudoPlaying,
		PseudoInRange, PseudoOutOfRange, PseudoDefined, PseudoOpen, PseudoClosed,
		PseudoPopoverOpen, PseudoModal:
		return true
	}
	return false
}

func nthPseudo(t PseudoType) bool {
	switch t {
	case PseudoFirstOfType, PseudoLastOfType, PseudoOnlyOfType,
		PseudoNthChild, PseudoNthOfType, PseudoNthLastChild, PseudoNthLastOfType:
		return true
	}
	return false
}

// invalidationSetForSimpleSelector returns the mutable set for s, creating
// it on demand, or nil when s has no set of its own.
func (r *RuleFeatureSet) invalidationSetForSimpleSelector(s *SimpleSelector, typ invalidation.SetType, pos positionType) *invalidation.InvalidationSet {
	selfOnly := typ == invalidation.InvalidateDescendants && pos == subjectPosition
	switch s.Match {
	case MatchClass:
		if selfOnly && r.insertIntoSelfInvalidationBloomFilter(s.Value, r.opts.ClassSalt) {
			return nil
		}
		return ensureInvalidationSet(r.classSets, s.Value, typ, pos)
	case MatchAttribute:
		return ensureInvalidationSet(r.attributeSets, s.Value, typ, pos)
	case MatchID:
		if selfOnly && r.insertIntoSelfInvalidationBloomFilter(s.Value, r.opts.IDSalt) {
			return nil
		}
		return ensureInvalidationSet(r.idSets, s.Value, typ, pos)
	case MatchPseudoClass:
		switch {
		case pseudoWithInvalidationSet(s.Pseudo):
			return ensureInvalidationSet(r.pseudoSets, s.Pseudo, typ, pos)
		case nthPseudo(s.Pseudo):
			return r.ensureNthInvalidationSet()
		case s.Pseudo == PseudoHas && pos == ancestorPosition:
			return ensureInvalidationSet(r.pseudoSets, s.Pseudo, typ, pos)
		}
	}
	return nil
}

// insertIntoSelfInvalidationBloomFilter records a class or id that needs
// nothing but self-invalidation. It returns false while the name should
// still get an exact map entry.
func (r *RuleFeatureSet) insertIntoSelfInvalidationBloomFilter(value string, salt uint32) bool {
	if r.namesWithSelfInvalidation == nil {
		r.bloomCandidates++
		if r.bloomCandidates < r.opts.BloomThreshold {
			return false
		}
		r.namesWithSelfInvalidation = newBloomFilter(r.opts.BloomBits)
		r.log.Debug("self-invalidation bloom filter created",
			zap.Int("candidates", r.bloomCandidates),
			zap.Uint("bits", 1<<r.opts.BloomBits))
	}
	r.namesWithSelfInvalidation.add(saltedHash(value, salt))
	return true
}

func (r *RuleFeatureSet) bloomMayContain(value string, salt uint32) bool {
	return r.namesWithSelfInvalidation != nil && r.namesWithSelfInvalidation.mayContain(saltedHash(value, salt))
}

// ensureMutableInvalidationSet returns a set in *slot that may be changed,
// copying a shared set first. The subject position of a descendant set
// gets the shared self set, which callers must not modify.
func ensureMutableInvalidationSet(typ invalidation.SetType, pos positionType, slot **invalidation.InvalidationSet) *invalidation.InvalidationSet {
	cur := *slot
	if cur == nil {
		switch {
		case typ == invalidation.InvalidateSiblings:
			*slot = invalidation.NewSiblingSet(nil)
		case pos == subjectPosition:
			*slot = invalidation.SelfInvalidationSet()
		default:
			*slot = invalidation.NewDescendantSet()
		}
		return *slot
	}

	if cur.IsSelfInvalidationSet() && typ == invalidation.InvalidateDescendants && pos == subjectPosition {
		return cur
	}

	if cur.IsSelfInvalidationSet() || !cur.HasOneRef() {
		copied := invalidation.CopyInvalidationSet(cur)
		cur.Release()
		*slot = copied
		cur = copied
	}

	if cur.Type() == typ {
		return cur
	}
	if typ == invalidation.InvalidateDescendants {
		return cur.EnsureDescendants()
	}
	// A descendant set becomes the descendants of a new sibling set.
	sibling := invalidation.NewSiblingSet(cur)
	cur.Release()
	*slot = sibling
	return sibling
}

func ensureInvalidationSet[K comparable](m setMap[K], key K, typ invalidation.SetType, pos positionType) *invalidation.InvalidationSet {
	slot := m[key]
	set := ensureMutableInvalidationSet(typ, pos, &slot)
	m[key] = slot
	return set
}

func mergeInvalidationSet[K comparable](m setMap[K], key K, set *invalidation.InvalidationSet) {
	slot := m[key]
	if slot == nil {
		set.Ref()
		m[key] = set
		return
	}
	pos := ancestorPosition
	if set.IsSelfInvalidationSet() {
		pos = subjectPosition
	}
	ensureMutableInvalidationSet(set.Type(), pos, &slot).Combine(set)
	m[key] = slot
}

func (r *RuleFeatureSet) ensureUniversalSiblingInvalidationSet() *invalidation.InvalidationSet {
	if r.universalSiblingSet == nil {
		r.universalSiblingSet = invalidation.NewSiblingSet(nil)
	}
	return r.universalSiblingSet
}

func (r *RuleFeatureSet) ensureNthInvalidationSet() *invalidation.InvalidationSet {
	if r.nthSet == nil {
		r.nthSet = invalidation.NewNthSiblingSet()
	}
	return r.nthSet
}

func (r *RuleFeatureSet) ensureTypeRuleInvalidationSet() *invalidation.InvalidationSet {
	if r.typeRuleSet == nil {
		r.typeRuleSet = invalidation.NewDescendantSet()
	}
	return r.typeRuleSet
}

// Merge adds the features of other to r. Sets are shared, not copied, until
// either side changes them.
func (r *RuleFeatureSet) Merge(other *RuleFeatureSet) {
	if other == r {
		return
	}
	for k, s := range other.classSets {
		mergeInvalidationSet(r.classSets, k, s)
	}
	if other.namesWithSelfInvalidation != nil {
		switch {
		case r.namesWithSelfInvalidation == nil:
			r.namesWithSelfInvalidation = other.namesWithSelfInvalidation.clone()
		case r.namesWithSelfInvalidation.mask == other.namesWithSelfInvalidation.mask:
			r.namesWithSelfInvalidation.merge(other.namesWithSelfInvalidation)
		default:
			// Filters of different sizes cannot be combined. A full filter
			// answers "maybe" for every name.
			r.log.Warn("bloom filter size mismatch, saturating")
			r.namesWithSelfInvalidation.saturate()
		}
	}
	for k, s := range other.attributeSets {
		mergeInvalidationSet(r.attributeSets, k, s)
	}
	for k, s := range other.idSets {
		mergeInvalidationSet(r.idSets, k, s)
	}
	for k, s := range other.pseudoSets {
		mergeInvalidationSet(r.pseudoSets, k, s)
	}
	if other.universalSiblingSet != nil {
		r.ensureUniversalSiblingInvalidationSet().Combine(other.universalSiblingSet)
	}
	if other.nthSet != nil {
		r.ensureNthInvalidationSet().Combine(other.nthSet)
	}
	if other.typeRuleSet != nil {
		r.ensureTypeRuleInvalidationSet().Combine(other.typeRuleSet)
	}
	r.metadata.merge(other.metadata)

	for k := range other.classesInHasArgument {
		r.classesInHasArgument[k] = struct{}{}
	}
	for k := range other.attributesInHasArgument {
		r.attributesInHasArgument[k] = struct{}{}
	}
	for k := range other.idsInHasArgument {
		r.idsInHasArgument[k] = struct{}{}
	}
	for k := range other.tagNamesInHasArgument {
		r.tagNamesInHasArgument[k] = struct{}{}
	}
	for k := range other.pseudosInHasArgument {
		r.pseudosInHasArgument[k] = struct{}{}
	}
	r.universalInHasArgument = r.universalInHasArgument || other.universalInHasArgument
	r.notPseudoInHasArgument = r.notPseudoInHasArgument || other.notPseudoInHasArgument
}

// Clear drops every feature and releases every set.
func (r *RuleFeatureSet) Clear() {
	for _, m := range []setMap[string]{r.classSets, r.attributeSets, r.idSets} {
		for _, s := range m {
			s.Release()
		}
	}
	for _, s := range r.pseudoSets {
		s.Release()
	}
	for _, s := range []*invalidation.InvalidationSet{r.universalSiblingSet, r.nthSet, r.typeRuleSet} {
		if s != nil {
			s.Release()
		}
	}
	r.reset()
}

// Equal compares the indexed features of two feature sets.
func (r *RuleFeatureSet) Equal(o *RuleFeatureSet) bool {
	return r.metadata == o.metadata &&
		setMapsEqual(r.classSets, o.classSets) &&
		setMapsEqual(r.attributeSets, o.attributeSets) &&
		setMapsEqual(r.idSets, o.idSets) &&
		setMapsEqual(r.pseudoSets, o.pseudoSets) &&
		r.universalSiblingSet.Equal(o.universalSiblingSet) &&
		r.nthSet.Equal(o.nthSet) &&
		r.typeRuleSet.Equal(o.typeRuleSet) &&
		r.namesWithSelfInvalidation.equal(o.namesWithSelfInvalidation) &&
		indexEqual(r.classesInHasArgument, o.classesInHasArgument) &&
		indexEqual(r.attributesInHasArgument, o.attributesInHasArgument) &&
		indexEqual(r.idsInHasArgument, o.idsInHasArgument) &&
		indexEqual(r.tagNamesInHasArgument, o.tagNamesInHasArgument) &&
		indexEqual(r.pseudosInHasArgument, o.pseudosInHasArgument) &&
		r.universalInHasArgument == o.universalInHasArgument &&
		r.notPseudoInHasArgument == o.notPseudoInHasArgument
}

func setMapsEqual[K comparable](a, b setMap[K]) bool {
	if len(a) != len(b) {
		return false
	}
	for k, s := range a {
		if !s.Equal(b[k]) {
			return false
		}
	}
	return true
}

func indexEqual[K comparable](a, b map[K]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func (r *RuleFeatureSet) UsesFirstLineRules() bool { return r.metadata.usesFirstLineRules }

func (r *RuleFeatureSet) UsesWindowInactiveSelector() bool {
	return r.metadata.usesWindowInactiveSelector
}

func (r *RuleFeatureSet) NeedsFullRecalcForRuleSetInvalidation() bool {
	return r.metadata.needsFullRecalcForRuleSetInvalidation
}

func (r *RuleFeatureSet) MaxDirectAdjacentSelectors() uint32 {
	return r.metadata.maxDirectAdjacentSelectors
}

func (r *RuleFeatureSet) InvalidatesParts() bool { return r.metadata.invalidatesParts }

func (r *RuleFeatureSet) UsesHasInsideNth() bool { return r.metadata.usesHasInsideNth }

func (r *RuleFeatureSet) HasSelectorForID(id string) bool {
	_, ok := r.idSets[id]
	return ok
}

func (r *RuleFeatureSet) HasSelectorForClass(class string) bool {
	_, ok := r.classSets[class]
	return ok
}

func (r *RuleFeatureSet) HasSelectorForAttribute(name string) bool {
	_, ok := r.attributeSets[name]
	return ok
}

func (r *RuleFeatureSet) HasIDsInSelectors() bool { return len(r.idSets) > 0 }

// HasSelfInvalidationBloomFilter reports whether enough self-invalidating
// names were seen to create the Bloom filter.
func (r *RuleFeatureSet) HasSelfInvalidationBloomFilter() bool {
	return r.namesWithSelfInvalidation != nil
}

func appendExtracted(lists *invalidation.InvalidationLists, set *invalidation.InvalidationSet) {
	descendants, siblings := invalidation.ExtractInvalidationSets(set)
	if descendants != nil {
		lists.Descendants = append(lists.Descendants, descendants)
	}
	if siblings != nil {
		lists.Siblings = append(lists.Siblings, siblings)
	}
}

func (r *RuleFeatureSet) CollectInvalidationSetsForClass(lists *invalidation.InvalidationLists, el dom.NodeID, class string) {
	if r.bloomMayContain(class, r.opts.ClassSalt) {
		lists.Descendants = append(lists.Descendants, invalidation.SelfInvalidationSet())
	}
	set, ok := r.classSets[class]
	if !ok {
		return
	}
	r.log.Debug("class change", zap.Uint32("element", uint32(el)), zap.String("class", class), zap.Stringer("set", set))
	appendExtracted(lists, set)
}

func (r *RuleFeatureSet) CollectInvalidationSetsForID(lists *invalidation.InvalidationLists, el dom.NodeID, id string) {
	if r.bloomMayContain(id, r.opts.IDSalt) {
		lists.Descendants = append(lists.Descendants, invalidation.SelfInvalidationSet())
	}
	set, ok := r.idSets[id]
	if !ok {
		return
	}
	r.log.Debug("id change", zap.Uint32("element", uint32(el)), zap.String("id", id), zap.Stringer("set", set))
	appendExtracted(lists, set)
}

func (r *RuleFeatureSet) CollectInvalidationSetsForAttribute(lists *invalidation.InvalidationLists, el dom.NodeID, name string) {
	set, ok := r.attributeSets[name]
	if !ok {
		return
	}
	r.log.Debug("attribute change", zap.Uint32("element", uint32(el)), zap.String("attribute", name), zap.Stringer("set", set))
	appendExtracted(lists, set)
}

func (r *RuleFeatureSet) CollectInvalidationSetsForPseudoClass(lists *invalidation.InvalidationLists, el dom.NodeID, pseudo PseudoType) {
	set, ok := r.pseudoSets[pseudo]
	if !ok {
		return
	}
	r.log.Debug("pseudo change", zap.Uint32("element", uint32(el)), zap.Stringer("pseudo", pseudo), zap.Stringer("set", set))
	appendExtracted(lists, set)
}

func collectSiblingSet(lists *invalidation.InvalidationLists, set *invalidation.InvalidationSet, minDirectAdjacent uint32) {
	if set == nil || !set.IsSiblingSet() || set.MaxDirectAdjacentSelectors() < minDirectAdjacent {
		return
	}
	lists.Siblings = append(lists.Siblings, set)
}

// CollectSiblingInvalidationSetForClass appends the sibling set of class
// when it reaches at least minDirectAdjacent siblings.
func (r *RuleFeatureSet) CollectSiblingInvalidationSetForClass(lists *invalidation.InvalidationLists, el dom.NodeID, class string, minDirectAdjacent uint32) {
	collectSiblingSet(lists, r.classSets[class], minDirectAdjacent)
}

func (r *RuleFeatureSet) CollectSiblingInvalidationSetForID(lists *invalidation.InvalidationLists, el dom.NodeID, id string, minDirectAdjacent uint32) {
	collectSiblingSet(lists, r.idSets[id], minDirectAdjacent)
}

func (r *RuleFeatureSet) CollectSiblingInvalidationSetForAttribute(lists *invalidation.InvalidationLists, el dom.NodeID, name string, minDirectAdjacent uint32) {
	collectSiblingSet(lists, r.attributeSets[name], minDirectAdjacent)
}

func (r *RuleFeatureSet) CollectUniversalSiblingInvalidationSet(lists *invalidation.InvalidationLists, minDirectAdjacent uint32) {
	collectSiblingSet(lists, r.universalSiblingSet, minDirectAdjacent)
}

func (r *RuleFeatureSet) CollectNthInvalidationSet(lists *invalidation.InvalidationLists) {
	if r.nthSet != nil {
		lists.Siblings = append(lists.Siblings, r.nthSet)
	}
}

func (r *RuleFeatureSet) CollectPartInvalidationSet(lists *invalidation.InvalidationLists) {
	if r.metadata.invalidatesParts {
		lists.Descendants = append(lists.Descendants, invalidation.PartInvalidationSet())
	}
}

// CollectTypeRuleInvalidationSet appends the set of tag names whose rules
// changed, scheduled on the root of the changed scope.
func (r *RuleFeatureSet) CollectTypeRuleInvalidationSet(lists *invalidation.InvalidationLists, root dom.NodeID) {
	if r.typeRuleSet == nil {
		return
	}
	r.log.Debug("type rule change", zap.Uint32("root", uint32(root)), zap.Stringer("set", r.typeRuleSet))
	lists.Descendants = append(lists.Descendants, r.typeRuleSet)
}
