package dom

// Parent returns the parent node of id. A shadow root has no parent; use
// Host or ParentOrShadowHost to cross the boundary.
func (d *Document) Parent(id NodeID) NodeID {
	if n := d.get(id); n != nil {
		return n.parent
	}
	return InvalidNodeID
}

func (d *Document) FirstChild(id NodeID) NodeID {
	if n := d.get(id); n != nil {
		return n.firstChild
	}
	return InvalidNodeID
}

func (d *Document) LastChild(id NodeID) NodeID {
	if n := d.get(id); n != nil {
		return n.lastChild
	}
	return InvalidNodeID
}

func (d *Document) NextSibling(id NodeID) NodeID {
	if n := d.get(id); n != nil {
		return n.next
	}
	return InvalidNodeID
}

func (d *Document) PreviousSibling(id NodeID) NodeID {
	if n := d.get(id); n != nil {
		return n.prev
	}
	return InvalidNodeID
}

// ParentElement returns the parent of id if it is an element.
func (d *Document) ParentElement(id NodeID) NodeID {
	if p := d.Parent(id); d.IsElement(p) {
		return p
	}
	return InvalidNodeID
}

// ParentElementOrShadowRoot returns the parent of id if it is an element or
// a shadow root.
func (d *Document) ParentElementOrShadowRoot(id NodeID) NodeID {
	p := d.Parent(id)
	if k := d.Kind(p); k == ElementNode || k == ShadowRootNode {
		return p
	}
	return InvalidNodeID
}

// ParentOrShadowHost returns the parent of id, or the host when id is a
// shadow root.
func (d *Document) ParentOrShadowHost(id NodeID) NodeID {
	n := d.get(id)
	if n == nil {
		return InvalidNodeID
	}
	if n.kind == ShadowRootNode {
		return n.host
	}
	return n.parent
}

// ParentOrShadowHostElement is ParentOrShadowHost restricted to elements.
func (d *Document) ParentOrShadowHostElement(id NodeID) NodeID {
	p := d.ParentOrShadowHost(id)
	if d.IsShadowRoot(p) {
		p = d.Host(p)
	}
	if d.IsElement(p) {
		return p
	}
	return InvalidNodeID
}

func (d *Document) FirstElementChild(id NodeID) NodeID {
	for c := d.FirstChild(id); c.Valid(); c = d.NextSibling(c) {
		if d.IsElement(c) {
			return c
		}
	}
	return InvalidNodeID
}

func (d *Document) LastElementChild(id NodeID) NodeID {
	for c := d.LastChild(id); c.Valid(); c = d.PreviousSibling(c) {
		if d.IsElement(c) {
			return c
		}
	}
	return InvalidNodeID
}

func (d *Document) NextElementSibling(id NodeID) NodeID {
	for c := d.NextSibling(id); c.Valid(); c = d.NextSibling(c) {
		if d.IsElement(c) {
			return c
		}
	}
	return InvalidNodeID
}

func (d *Document) PreviousElementSibling(id NodeID) NodeID {
	for c := d.PreviousSibling(id); c.Valid(); c = d.PreviousSibling(c) {
		if d.IsElement(c) {
			return c
		}
	}
	return InvalidNodeID
}

// Children returns the child nodes of id.
func (d *Document) Children(id NodeID) []NodeID {
	var out []NodeID
	for c := d.FirstChild(id); c.Valid(); c = d.NextSibling(c) {
		out = append(out, c)
	}
	return out
}

// ElementChildren returns the element children of id.
func (d *Document) ElementChildren(id NodeID) []NodeID {
	var out []NodeID
	for c := d.FirstElementChild(id); c.Valid(); c = d.NextElementSibling(c) {
		out = append(out, c)
	}
	return out
}

// Next returns the node after id in pre-order, staying inside stayWithin.
// Shadow trees are not entered.
func (d *Document) Next(id, stayWithin NodeID) NodeID {
	if c := d.FirstChild(id); c.Valid() {
		return c
	}
	return d.NextSkippingChildren(id, stayWithin)
}

// NextSkippingChildren returns the node after the subtree of id in
// pre-order, staying inside stayWithin.
func (d *Document) NextSkippingChildren(id, stayWithin NodeID) NodeID {
	for cur := id; cur.Valid() && cur != stayWithin; cur = d.Parent(cur) {
		if s := d.NextSibling(cur); s.Valid() {
			return s
		}
	}
	return InvalidNodeID
}

// NextElement is Next restricted to elements.
func (d *Document) NextElement(id, stayWithin NodeID) NodeID {
	for n := d.Next(id, stayWithin); n.Valid(); n = d.Next(n, stayWithin) {
		if d.IsElement(n) {
			return n
		}
	}
	return InvalidNodeID
}

// Descendants returns the element descendants of id in tree order, without
// entering shadow trees.
func (d *Document) Descendants(id NodeID) []NodeID {
	var out []NodeID
	for n := d.NextElement(id, id); n.Valid(); n = d.NextElement(n, id) {
		out = append(out, n)
	}
	return out
}

// IsInclusiveAncestorOf reports whether a is b or an ancestor of b in the
// same tree.
func (d *Document) IsInclusiveAncestorOf(a, b NodeID) bool {
	for cur := b; cur.Valid(); cur = d.Parent(cur) {
		if cur == a {
			return true
		}
	}
	return false
}

// IsShadowIncludingInclusiveAncestorOf is IsInclusiveAncestorOf crossing
// shadow boundaries.
func (d *Document) IsShadowIncludingInclusiveAncestorOf(a, b NodeID) bool {
	for cur := b; cur.Valid(); cur = d.ParentOrShadowHost(cur) {
		if cur == a {
			return true
		}
	}
	return false
}

// IsConnected reports whether id is reachable from the document node.
func (d *Document) IsConnected(id NodeID) bool {
	return d.IsShadowIncludingInclusiveAncestorOf(d.root, id)
}

// AppendChild inserts child as the last child of parent.
func (d *Document) AppendChild(parent, child NodeID) error {
	return d.InsertBefore(parent, child, InvalidNodeID)
}

// InsertBefore inserts child into parent before ref. An invalid ref appends.
// A child that already has a parent is removed from it first.
func (d *Document) InsertBefore(parent, child, ref NodeID) error {
	if err := d.validateInsert(parent, child, ref); err != nil {
		return err
	}
	if ref == child {
		ref = d.NextSibling(child)
	}
	if old := d.Parent(child); old.Valid() {
		if err := d.RemoveChild(old, child); err != nil {
			return err
		}
	}
	p, c := d.get(parent), d.get(child)
	c.parent = parent
	if ref.Valid() {
		r := d.get(ref)
		c.prev = r.prev
		c.next = ref
		if r.prev.Valid() {
			d.get(r.prev).next = child
		} else {
			p.firstChild = child
		}
		r.prev = child
	} else {
		c.prev = p.lastChild
		c.next = InvalidNodeID
		if p.lastChild.Valid() {
			d.get(p.lastChild).next = child
		} else {
			p.firstChild = child
		}
		p.lastChild = child
	}
	d.notify(func(o StyleObserver) { o.ChildInserted(parent, child) })
	return nil
}

func (d *Document) validateInsert(parent, child, ref NodeID) error {
	p, c := d.get(parent), d.get(child)
	if p == nil || c == nil {
		return notFound("invalid node handle")
	}
	if !p.isContainer() {
		return hierarchyRequest("%s node cannot have children", p.kind)
	}
	if c.kind == DocumentNode || c.kind == ShadowRootNode {
		return hierarchyRequest("%s node cannot be inserted", c.kind)
	}
	if p.kind == DocumentNode && c.kind == TextNode {
		return hierarchyRequest("text cannot be a child of the document")
	}
	if p.kind == DocumentNode && c.kind == ElementNode && d.DocumentElement().Valid() && d.DocumentElement() != child {
		return hierarchyRequest("document already has a document element")
	}
	if d.IsShadowIncludingInclusiveAncestorOf(child, parent) {
		return hierarchyRequest("node %d is an inclusive ancestor of %d", child, parent)
	}
	if ref.Valid() && d.Parent(ref) != parent {
		return notFound("node %d is not a child of %d", ref, parent)
	}
	return nil
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child NodeID) error {
	c := d.get(child)
	if c == nil || c.parent != parent || !parent.Valid() {
		return notFound("node %d is not a child of %d", child, parent)
	}
	p := d.get(parent)
	prev, next := c.prev, c.next
	if prev.Valid() {
		d.get(prev).next = next
	} else {
		p.firstChild = next
	}
	if next.Valid() {
		d.get(next).prev = prev
	} else {
		p.lastChild = prev
	}
	c.parent, c.prev, c.next = InvalidNodeID, InvalidNodeID, InvalidNodeID
	d.notify(func(o StyleObserver) { o.ChildRemoved(parent, child, prev, next) })
	return nil
}

// Remove detaches id from its parent, if any.
func (d *Document) Remove(id NodeID) error {
	p := d.Parent(id)
	if !p.Valid() {
		return nil
	}
	return d.RemoveChild(p, id)
}
