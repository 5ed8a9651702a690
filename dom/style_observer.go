package dom

import "slices"

// StyleObserver receives every mutation after the document has applied it.
// The style engine implements it to schedule invalidation synchronously.
type StyleObserver interface {
	ClassChanged(el NodeID, oldClasses, newClasses []string)
	IDChanged(el NodeID, oldID, newID string)
	AttributeChanged(el NodeID, name string)
	PartChanged(el NodeID)
	ExportpartsChanged(el NodeID)
	PseudoStateChanged(el NodeID, state PseudoState)
	ChildInserted(parent, child NodeID)
	ChildRemoved(parent, child, prevSibling, nextSibling NodeID)
	CharacterDataChanged(text NodeID)
	ShadowRootAttached(host NodeID)
}

// NopStyleObserver implements StyleObserver with empty methods. Embed it to
// observe only some mutations.
type NopStyleObserver struct{}

func (NopStyleObserver) ClassChanged(NodeID, []string, []string) {}
func (NopStyleObserver) IDChanged(NodeID, string, string) {}
func (NopStyleObserver) AttributeChanged(NodeID, string) {}
func (NopStyleObserver) PartChanged(NodeID) {}
func (NopStyleObserver) ExportpartsChanged(NodeID) {}
func (NopStyleObserver) PseudoStateChanged(NodeID, PseudoState) {}
func (NopStyleObserver) ChildInserted(NodeID, NodeID) {}
func (NopStyleObserver) ChildRemoved(NodeID, NodeID, NodeID, NodeID) {}
func (NopStyleObserver) CharacterDataChanged(NodeID) {}
func (NopStyleObserver) ShadowRootAttached(NodeID) {}

// AddObserver registers o for mutation notifications.
func (d *Document) AddObserver(o StyleObserver) {
	if o == nil || slices.Contains(d.observers, o) {
		return
	}
	d.observers = append(d.observers, o)
}

// RemoveObserver unregisters o.
func (d *Document) RemoveObserver(o StyleObserver) {
	d.observers = slices.DeleteFunc(d.observers, func(x StyleObserver) bool { return x == o })
}

func (d *Document) notify(fn func(StyleObserver)) {
	for _, o := range d.observers {
		fn(o)
	}
}
