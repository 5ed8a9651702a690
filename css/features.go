package css

import "github.com/chrisuehlinger/invalidator/invalidation"

// invalidationFlags are the set-level flags collected while walking a
// selector. They are copied onto every invalidation set the walk touches.
type invalidationFlags struct {
	wholeSubtreeInvalid    bool
	treeBoundaryCrossing   bool
	insertionPointCrossing bool
	invalidatesSlotted     bool
	invalidatesParts       bool
	invalidateCustomPseudo bool
}

func (f *invalidationFlags) merge(o invalidationFlags) {
	f.wholeSubtreeInvalid = f.wholeSubtreeInvalid || o.wholeSubtreeInvalid
	f.treeBoundaryCrossing = f.treeBoundaryCrossing || o.treeBoundaryCrossing
	f.insertionPointCrossing = f.insertionPointCrossing || o.insertionPointCrossing
	f.invalidatesSlotted = f.invalidatesSlotted || o.invalidatesSlotted
	f.invalidatesParts = f.invalidatesParts || o.invalidatesParts
	f.invalidateCustomPseudo = f.invalidateCustomPseudo || o.invalidateCustomPseudo
}

// invalidationSetFeatures is the working state of one selector walk: the
// features of the compound that invalidation has to find, plus where the
// walk currently is relative to it.
type invalidationSetFeatures struct {
	classes    []string
	attributes []string
	ids        []string
	tagNames   []string

	// emittedTagNames are tag names that came from a compound which also
	// had id, class or attribute features. They only help the type rule set.
	emittedTagNames []string

	maxDirectAdjacentSelectors uint32
	descendantFeaturesDepth    uint32
	flags                      invalidationFlags

	hasNthPseudo                      bool
	hasFeaturesForRuleSetInvalidation bool
}

func (f *invalidationSetFeatures) size() int {
	return len(f.classes) + len(f.attributes) + len(f.ids) + len(f.tagNames) + len(f.emittedTagNames)
}

// hasFeatures reports whether f can narrow an invalidation set.
func (f *invalidationSetFeatures) hasFeatures() bool {
	return len(f.classes) > 0 || len(f.attributes) > 0 || len(f.ids) > 0 ||
		len(f.tagNames) > 0 || len(f.emittedTagNames) > 0 ||
		f.flags.invalidateCustomPseudo || f.flags.invalidatesParts
}

func (f *invalidationSetFeatures) hasIDClassOrAttribute() bool {
	return len(f.classes) > 0 || len(f.attributes) > 0 || len(f.ids) > 0
}

func (f *invalidationSetFeatures) clearFeatures() {
	f.classes = nil
	f.attributes = nil
	f.ids = nil
	f.tagNames = nil
	f.emittedTagNames = nil
}

func (f *invalidationSetFeatures) merge(o *invalidationSetFeatures) {
	f.classes = append(f.classes, o.classes...)
	f.attributes = append(f.attributes, o.attributes...)
	f.ids = append(f.ids, o.ids...)
	if o.hasFeaturesForRuleSetInvalidation {
		f.emittedTagNames = append(f.emittedTagNames, o.tagNames...)
	} else {
		f.tagNames = append(f.tagNames, o.tagNames...)
	}
	f.emittedTagNames = append(f.emittedTagNames, o.emittedTagNames...)
	f.maxDirectAdjacentSelectors = max(f.maxDirectAdjacentSelectors, o.maxDirectAdjacentSelectors)
	f.flags.merge(o.flags)
	f.hasNthPseudo = f.hasNthPseudo || o.hasNthPseudo
}

// The narrow* helpers keep the single most selective feature. An id beats
// a class, a class beats an attribute, and anything beats a tag name.

func (f *invalidationSetFeatures) narrowToClass(name string) {
	if f.size() == 1 && (len(f.ids) > 0 || len(f.classes) > 0) {
		return
	}
	f.clearFeatures()
	f.classes = append(f.classes, name)
}

func (f *invalidationSetFeatures) narrowToAttribute(name string) {
	if f.size() == 1 && f.hasIDClassOrAttribute() {
		return
	}
	f.clearFeatures()
	f.attributes = append(f.attributes, name)
}

func (f *invalidationSetFeatures) narrowToID(id string) {
	if f.size() == 1 && len(f.ids) > 0 {
		return
	}
	f.clearFeatures()
	f.ids = append(f.ids, id)
}

func (f *invalidationSetFeatures) narrowToTag(tag string) {
	if f.size() == 1 {
		return
	}
	f.clearFeatures()
	f.tagNames = append(f.tagNames, tag)
}

// narrowToFeatures replaces f's features with o's when o names fewer of
// them.
func (f *invalidationSetFeatures) narrowToFeatures(o *invalidationSetFeatures) {
	size, otherSize := f.size(), o.size()
	if size == 0 || (otherSize >= 1 && otherSize < size) {
		f.clearFeatures()
		f.merge(o)
	}
}

// walkState snapshots the parts of the features that nested selector lists
// may change.
type walkState struct {
	sibling                *invalidationSetFeatures
	maxDirectAdjacent      uint32
	depth                  uint32
	treeBoundaryCrossing   bool
	insertionPointCrossing bool
}

func saveWalk(sibling, desc *invalidationSetFeatures) walkState {
	st := walkState{
		sibling:                sibling,
		depth:                  desc.descendantFeaturesDepth,
		treeBoundaryCrossing:   desc.flags.treeBoundaryCrossing,
		insertionPointCrossing: desc.flags.insertionPointCrossing,
	}
	if sibling != nil {
		st.maxDirectAdjacent = sibling.maxDirectAdjacentSelectors
	}
	return st
}

// restoreReach restores only the sibling reach and descendant depth.
func (st walkState) restoreReach(desc *invalidationSetFeatures) {
	if st.sibling != nil {
		st.sibling.maxDirectAdjacentSelectors = st.maxDirectAdjacent
	}
	desc.descendantFeaturesDepth = st.depth
}

// restore restores the reach and the scoping flags. wholeSubtreeInvalid is
// left alone.
func (st walkState) restore(desc *invalidationSetFeatures) {
	st.restoreReach(desc)
	desc.flags.treeBoundaryCrossing = st.treeBoundaryCrossing
	desc.flags.insertionPointCrossing = st.insertionPointCrossing
}

// addFeaturesToInvalidationSet copies f into set.
func addFeaturesToInvalidationSet(set *invalidation.InvalidationSet, f *invalidationSetFeatures) {
	if f.flags.treeBoundaryCrossing {
		set.SetTreeBoundaryCrossing()
	}
	if f.flags.insertionPointCrossing {
		set.SetInsertionPointCrossing()
	}
	if f.flags.invalidatesSlotted {
		set.SetInvalidatesSlotted()
	}
	if f.flags.wholeSubtreeInvalid {
		set.SetWholeSubtreeInvalid()
	}
	if f.flags.invalidatesParts {
		set.SetInvalidatesParts()
	}
	if f.flags.wholeSubtreeInvalid {
		return
	}
	for _, id := range f.ids {
		set.AddID(id)
	}
	for _, tag := range f.tagNames {
		set.AddTagName(tag)
	}
	for _, tag := range f.emittedTagNames {
		set.AddTagName(tag)
	}
	for _, class := range f.classes {
		set.AddClass(class)
	}
	for _, attr := range f.attributes {
		set.AddAttribute(attr)
	}
	if f.flags.invalidateCustomPseudo {
		set.SetCustomPseudoInvalid()
	}
}
