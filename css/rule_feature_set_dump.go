package css

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/chrisuehlinger/invalidator/invalidation"
)

type dumpFlags uint16

const (
	dumpID dumpFlags = 1 << iota
	dumpClass
	dumpAttribute
	dumpPseudo
	dumpDescendant
	dumpSibling
	dumpUniversal
	dumpNth
	dumpType
)

type dumpEntry struct {
	name  string
	set   *invalidation.InvalidationSet
	flags dumpFlags
}

func (r *RuleFeatureSet) dumpEntries() []dumpEntry {
	var entries []dumpEntry
	add := func(name string, set *invalidation.InvalidationSet, flags dumpFlags) {
		if set == nil {
			return
		}
		if set.IsDescendantSet() {
			entries = append(entries, dumpEntry{name, set, flags | dumpDescendant})
			return
		}
		entries = append(entries, dumpEntry{name, set, flags | dumpSibling})
		if d := set.SiblingDescendants(); d != nil {
			entries = append(entries, dumpEntry{name, d, flags | dumpSibling | dumpDescendant})
		}
		if d := set.Descendants(); d != nil {
			entries = append(entries, dumpEntry{name, d, flags | dumpDescendant})
		}
	}
	for k, s := range r.idSets {
		add(k, s, dumpID)
	}
	for k, s := range r.classSets {
		add(k, s, dumpClass)
	}
	for k, s := range r.attributeSets {
		add(k, s, dumpAttribute)
	}
	for k, s := range r.pseudoSets {
		add(":"+k.String(), s, dumpPseudo)
	}
	add("*", r.universalSiblingSet, dumpUniversal)
	add("nth", r.nthSet, dumpNth)
	add("type", r.typeRuleSet, dumpType)

	slices.SortFunc(entries, func(a, b dumpEntry) int {
		if c := cmp.Compare(a.flags, b.flags); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	return entries
}

func (e dumpEntry) label() string {
	var sb strings.Builder
	switch {
	case e.flags&dumpID != 0:
		sb.WriteString("#" + e.name)
	case e.flags&dumpClass != 0:
		sb.WriteString("." + e.name)
	case e.flags&dumpAttribute != 0:
		sb.WriteString("[" + e.name + "]")
	default:
		sb.WriteString(e.name)
	}
	sb.WriteString("[")
	if e.flags&dumpSibling != 0 {
		sb.WriteString("+")
	}
	if e.flags&dumpDescendant != 0 {
		sb.WriteString(">")
	}
	sb.WriteString("]")
	return sb.String()
}

func (r *RuleFeatureSet) metadataString() string {
	var sb strings.Builder
	md := r.metadata
	if md.usesFirstLineRules {
		sb.WriteString("F")
	}
	if md.usesWindowInactiveSelector {
		sb.WriteString("W")
	}
	if md.needsFullRecalcForRuleSetInvalidation {
		sb.WriteString("R")
	}
	if md.invalidatesParts {
		sb.WriteString("P")
	}
	if md.usesHasInsideNth {
		sb.WriteString("N")
	}
	switch m := md.maxDirectAdjacentSelectors; {
	case m == invalidation.DirectAdjacentMax:
		sb.WriteString("~")
	case m > 0:
		sb.WriteString(strconv.FormatUint(uint64(m), 10))
	}
	return sb.String()
}

// String renders every set on one line in a stable order, for example
// ".a[>]{<$> .b} .b[>]{<$>} META:R".
func (r *RuleFeatureSet) String() string {
	var sb strings.Builder
	for _, e := range r.dumpEntries() {
		sb.WriteString(e.label())
		sb.WriteString(e.set.String())
		sb.WriteString(" ")
	}
	if meta := r.metadataString(); meta != "" {
		sb.WriteString("META:" + meta)
	}
	return strings.TrimSpace(sb.String())
}

// Dump renders the feature set as a tree, one branch per set.
func (r *RuleFeatureSet) Dump() string {
	tree := treeprint.NewWithRoot("rule features")
	for _, e := range r.dumpEntries() {
		e.set.Tree(tree.AddBranch(e.label()))
	}
	if meta := r.metadataString(); meta != "" {
		tree.AddNode("meta " + meta)
	}
	return tree.String()
}
