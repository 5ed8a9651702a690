package dom

// ShadowRootMode is the encapsulation mode given to AttachShadow.
type ShadowRootMode uint8

const (
	ShadowRootOpen ShadowRootMode = iota
	ShadowRootClosed
	ShadowRootUserAgent
)

func (m ShadowRootMode) String() string {
	switch m {
	case ShadowRootOpen:
		return "open"
	case ShadowRootClosed:
		return "closed"
	case ShadowRootUserAgent:
		return "user-agent"
	}
	return "unknown"
}

// ParseShadowRootMode parses the shadowrootmode attribute value.
func ParseShadowRootMode(s string) (ShadowRootMode, bool) {
	switch s {
	case "open":
		return ShadowRootOpen, true
	case "closed":
		return ShadowRootClosed, true
	case "user-agent":
		return ShadowRootUserAgent, true
	}
	return 0, false
}

// AttachShadow creates a shadow root for host. An element can host at most
// one shadow root.
func (d *Document) AttachShadow(host NodeID, mode ShadowRootMode) (NodeID, error) {
	el := d.element(host)
	if el == nil {
		return InvalidNodeID, notSupported("node %d is not an element", host)
	}
	if el.shadowRoot.Valid() {
		return InvalidNodeID, notSupported("element %d already hosts a shadow root", host)
	}
	root := d.alloc(&node{kind: ShadowRootNode, host: host, mode: mode})
	d.element(host).shadowRoot = root
	d.notify(func(o StyleObserver) { o.ShadowRootAttached(host) })
	return root, nil
}

// ShadowRoot returns the shadow root hosted by id.
func (d *Document) ShadowRoot(id NodeID) NodeID {
	if el := d.element(id); el != nil {
		return el.shadowRoot
	}
	return InvalidNodeID
}

// ShadowRootMode returns the mode of a shadow root.
func (d *Document) ShadowRootMode(root NodeID) ShadowRootMode {
	if n := d.get(root); n != nil {
		return n.mode
	}
	return ShadowRootOpen
}

// Host returns the host of a shadow root.
func (d *Document) Host(root NodeID) NodeID {
	if n := d.get(root); n != nil && n.kind == ShadowRootNode {
		return n.host
	}
	return InvalidNodeID
}

// TreeScope returns the root of the tree id belongs to: the document node,
// a shadow root, or the top of a detached subtree.
func (d *Document) TreeScope(id NodeID) NodeID {
	cur := id
	for p := d.Parent(cur); p.Valid(); p = d.Parent(cur) {
		cur = p
	}
	return cur
}

// ContainingShadowRoot returns the shadow root whose tree contains id.
func (d *Document) ContainingShadowRoot(id NodeID) NodeID {
	if scope := d.TreeScope(id); d.IsShadowRoot(scope) {
		return scope
	}
	return InvalidNodeID
}

// OwnerShadowHost returns the host of the shadow tree containing id.
func (d *Document) OwnerShadowHost(id NodeID) NodeID {
	return d.Host(d.ContainingShadowRoot(id))
}

// IsInShadowTree reports whether id lives in a shadow tree.
func (d *Document) IsInShadowTree(id NodeID) bool {
	return d.ContainingShadowRoot(id).Valid()
}

// IsSlot reports whether id is a slot element inside a shadow tree.
func (d *Document) IsSlot(id NodeID) bool {
	return d.LocalName(id) == "slot" && d.IsInShadowTree(id)
}

func (d *Document) slotName(slot NodeID) string {
	v, _ := d.GetAttribute(slot, "name")
	return v
}

// AssignedSlot returns the slot a light-tree child of a shadow host is
// assigned to. Assignment is by name; the first slot in tree order wins.
func (d *Document) AssignedSlot(id NodeID) NodeID {
	host := d.Parent(id)
	root := d.ShadowRoot(host)
	if !root.Valid() {
		return InvalidNodeID
	}
	name := ""
	if d.IsElement(id) {
		name, _ = d.GetAttribute(id, "slot")
	} else if d.Kind(id) != TextNode {
		return InvalidNodeID
	}
	for n := d.FirstChild(root); n.Valid(); n = d.Next(n, root) {
		if d.LocalName(n) == "slot" && d.slotName(n) == name {
			return n
		}
	}
	return InvalidNodeID
}

// AssignedNodes returns the light-tree nodes assigned to slot.
func (d *Document) AssignedNodes(slot NodeID) []NodeID {
	root := d.ContainingShadowRoot(slot)
	if !root.Valid() || d.LocalName(slot) != "slot" {
		return nil
	}
	var out []NodeID
	for c := d.FirstChild(d.Host(root)); c.Valid(); c = d.NextSibling(c) {
		if d.AssignedSlot(c) == slot {
			out = append(out, c)
		}
	}
	return out
}
