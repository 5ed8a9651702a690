package invalidation

import (
	"slices"

	"go.uber.org/zap"

	"github.com/chrisuehlinger/invalidator/dom"
)

// NthScheduler is called back when a scheduled sibling set affects
// positional pseudo classes of the node's siblings.
type NthScheduler interface {
	ScheduleNthPseudoInvalidations(parent dom.NodeID)
}

// NodeInvalidationSets are the sets waiting on one container node.
type NodeInvalidationSets struct {
	Descendants []*InvalidationSet
	Siblings    []*InvalidationSet
}

func (n *NodeInvalidationSets) release() {
	for _, s := range n.Descendants {
		s.Release()
	}
	for _, s := range n.Siblings {
		s.Release()
	}
}

// PendingInvalidations collects invalidation sets per node between a
// mutation and the next StyleInvalidator pass. Cheap cases are resolved at
// scheduling time by marking style dirty bits directly.
type PendingInvalidations struct {
	doc     *dom.Document
	log     *zap.Logger
	nth     NthScheduler
	pending map[dom.NodeID]*NodeInvalidationSets
}

// NewPendingInvalidations creates an empty pending map for doc. nth may be
// nil when positional pseudo classes are not tracked.
func NewPendingInvalidations(doc *dom.Document, nth NthScheduler, log *zap.Logger) *PendingInvalidations {
	if log == nil {
		log = zap.NewNop()
	}
	return &PendingInvalidations{
		doc:     doc,
		log:     log.Named("pending-invalidations"),
		nth:     nth,
		pending: make(map[dom.NodeID]*NodeInvalidationSets),
	}
}

// styleTarget maps shadow roots onto their host, the element whose style a
// shadow root change lands on.
func (p *PendingInvalidations) styleTarget(node dom.NodeID) dom.NodeID {
	if p.doc.IsShadowRoot(node) {
		return p.doc.Host(node)
	}
	return node
}

func (p *PendingInvalidations) ensure(node dom.NodeID) *NodeInvalidationSets {
	sets, ok := p.pending[node]
	if !ok {
		sets = &NodeInvalidationSets{}
		p.pending[node] = sets
	}
	return sets
}

func appendUnique(list []*InvalidationSet, s *InvalidationSet) []*InvalidationSet {
	if slices.Contains(list, s) {
		return list
	}
	s.Ref()
	return append(list, s)
}

// ScheduleInvalidationSetsForNode records lists against node. Self and
// whole-subtree descendant sets are applied immediately. Sibling sets are
// only kept when node has a following sibling for them to reach. Sets that
// invalidate nth positions schedule the nth set on the parent of node.
func (p *PendingInvalidations) ScheduleInvalidationSetsForNode(lists InvalidationLists, node dom.NodeID) {
	doc := p.doc
	requiresDescendantInvalidation := false

	// A feature of an :nth-*(An+B of S) argument changed position counts for
	// the siblings of node, whatever node's own dirtiness.
	for _, s := range lists.Descendants {
		if s.InvalidatesNth() {
			p.possiblyScheduleNthPseudoInvalidations(node)
			break
		}
	}

	if doc.StyleChange(node) < dom.SubtreeStyleChange {
		for _, s := range lists.Descendants {
			if s.IsSelfInvalidationSet() {
				if !doc.IsShadowRoot(node) {
					doc.SetNeedsStyleRecalc(node, dom.LocalStyleChange)
				}
				continue
			}
			if s.WholeSubtreeInvalid() {
				doc.SetNeedsStyleRecalc(p.styleTarget(node), dom.SubtreeStyleChange)
				requiresDescendantInvalidation = false
				break
			}
			if s.InvalidatesSelf() && !doc.IsShadowRoot(node) {
				doc.SetNeedsStyleRecalc(node, dom.LocalStyleChange)
			}
			if !s.IsEmpty() {
				requiresDescendantInvalidation = true
			}
		}
	}

	next := doc.NextSibling(node)
	if !requiresDescendantInvalidation && (len(lists.Siblings) == 0 || !next.Valid()) {
		return
	}

	doc.SetNeedsStyleInvalidation(node)
	sets := p.ensure(node)

	if next.Valid() {
		for _, s := range lists.Siblings {
			sets.Siblings = appendUnique(sets.Siblings, s)
			if s.InvalidatesNth() {
				p.possiblyScheduleNthPseudoInvalidations(node)
			}
		}
	}

	if !requiresDescendantInvalidation {
		return
	}
	for _, s := range lists.Descendants {
		if !s.IsEmpty() {
			sets.Descendants = appendUnique(sets.Descendants, s)
		}
	}
	p.log.Debug("scheduled",
		zap.String("node", doc.Describe(node)),
		zap.Int("descendants", len(sets.Descendants)),
		zap.Int("siblings", len(sets.Siblings)))
}

func (p *PendingInvalidations) possiblyScheduleNthPseudoInvalidations(node dom.NodeID) {
	if p.nth == nil {
		return
	}
	parent := p.doc.Parent(node)
	if !parent.Valid() {
		return
	}
	flags := p.doc.Flags(parent)
	if flags.Has(dom.ChildrenAffectedByForwardPositionalRules) && p.doc.NextSibling(node).Valid() ||
		flags.Has(dom.ChildrenAffectedByBackwardPositionalRules) && p.doc.PreviousSibling(node).Valid() {
		p.nth.ScheduleNthPseudoInvalidations(parent)
	}
}

// ScheduleSiblingInvalidationsAsDescendants turns sibling sets into
// descendant invalidation of schedulingParent. It is used when the sibling
// that anchors the sets was inserted or removed, so there is no stable
// element to schedule the sibling sets on.
func (p *PendingInvalidations) ScheduleSiblingInvalidationsAsDescendants(lists InvalidationLists, schedulingParent dom.NodeID) {
	if len(lists.Siblings) == 0 {
		return
	}
	doc := p.doc
	sets := p.ensure(schedulingParent)
	doc.SetNeedsStyleInvalidation(schedulingParent)
	subtreeRoot := p.styleTarget(schedulingParent)

	for _, s := range lists.Siblings {
		if s.WholeSubtreeInvalid() {
			doc.SetNeedsStyleRecalc(subtreeRoot, dom.SubtreeStyleChange)
			return
		}
		if s.InvalidatesSelf() {
			sets.Descendants = appendUnique(sets.Descendants, s)
		}
		if sd := s.SiblingDescendants(); sd != nil {
			if sd.WholeSubtreeInvalid() {
				doc.SetNeedsStyleRecalc(subtreeRoot, dom.SubtreeStyleChange)
				return
			}
			sets.Descendants = appendUnique(sets.Descendants, sd)
		}
	}
}

// RescheduleSiblingInvalidationsAsDescendants moves the sibling sets pending
// on a removed element to its former parent so the siblings they target are
// still reached.
func (p *PendingInvalidations) RescheduleSiblingInvalidationsAsDescendants(element, parent dom.NodeID) {
	if !parent.Valid() || p.doc.Kind(parent) == dom.DocumentNode {
		return
	}
	sets, ok := p.pending[element]
	if !ok || len(sets.Siblings) == 0 {
		return
	}
	var lists InvalidationLists
	for _, s := range sets.Siblings {
		lists.Descendants = append(lists.Descendants, s)
		if sd := s.SiblingDescendants(); sd != nil {
			lists.Descendants = append(lists.Descendants, sd)
		}
	}
	p.ScheduleInvalidationSetsForNode(lists, parent)
}

// ClearInvalidation forgets everything pending on node.
func (p *PendingInvalidations) ClearInvalidation(node dom.NodeID) {
	if sets, ok := p.pending[node]; ok {
		sets.release()
		delete(p.pending, node)
	}
	p.doc.ClearFlags(node, dom.NeedsStyleInvalidation)
}

// Pending returns the sets waiting on node, or nil.
func (p *PendingInvalidations) Pending(node dom.NodeID) *NodeInvalidationSets {
	return p.pending[node]
}

// IsEmpty reports whether no node has pending sets.
func (p *PendingInvalidations) IsEmpty() bool { return len(p.pending) == 0 }

// Len returns the number of nodes with pending sets.
func (p *PendingInvalidations) Len() int { return len(p.pending) }

// Clear drops all pending sets.
func (p *PendingInvalidations) Clear() {
	for node := range p.pending {
		p.ClearInvalidation(node)
	}
}
