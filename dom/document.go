package dom

import "strings"

// Document owns the node arena. All tree and attribute accessors take
// NodeID handles; a handle that does not name a live node of the right kind
// yields the zero value instead of panicking.
type Document struct {
	nodes     []*node
	root      NodeID
	observers []StyleObserver

	inStyleRecalc bool
}

// NewDocument returns an empty document containing only the document node.
func NewDocument() *Document {
	d := &Document{nodes: []*node{nil}}
	d.root = d.alloc(&node{kind: DocumentNode})
	return d
}

func (d *Document) alloc(n *node) NodeID {
	d.nodes = append(d.nodes, n)
	return NodeID(len(d.nodes) - 1)
}

func (d *Document) get(id NodeID) *node {
	if int(id) <= 0 || int(id) >= len(d.nodes) {
		return nil
	}
	return d.nodes[id]
}

func (d *Document) element(id NodeID) *elementData {
	if n := d.get(id); n != nil && n.kind == ElementNode {
		return n.el
	}
	return nil
}

// Len returns the number of arena slots ever allocated, which bounds every
// NodeID of this document.
func (d *Document) Len() int { return len(d.nodes) }

// Root returns the document node.
func (d *Document) Root() NodeID { return d.root }

// DocumentElement returns the first element child of the document node.
func (d *Document) DocumentElement() NodeID { return d.FirstElementChild(d.root) }

// Kind returns the kind of id, or 0 for an invalid handle.
func (d *Document) Kind(id NodeID) NodeKind {
	if n := d.get(id); n != nil {
		return n.kind
	}
	return 0
}

// IsElement reports whether id is an element.
func (d *Document) IsElement(id NodeID) bool { return d.Kind(id) == ElementNode }

// IsShadowRoot reports whether id is a shadow root.
func (d *Document) IsShadowRoot(id NodeID) bool { return d.Kind(id) == ShadowRootNode }

// CreateElement allocates a detached element. Names are case-insensitive.
func (d *Document) CreateElement(localName string) NodeID {
	return d.alloc(&node{
		kind: ElementNode,
		el:   &elementData{localName: strings.ToLower(localName)},
	})
}

// CreateTextNode allocates a detached text node.
func (d *Document) CreateTextNode(data string) NodeID {
	return d.alloc(&node{kind: TextNode, text: data})
}

// Text returns the data of a text node.
func (d *Document) Text(id NodeID) string {
	if n := d.get(id); n != nil && n.kind == TextNode {
		return n.text
	}
	return ""
}

// SetText replaces the data of a text node.
func (d *Document) SetText(id NodeID, data string) {
	n := d.get(id)
	if n == nil || n.kind != TextNode || n.text == data {
		return
	}
	n.text = data
	d.notify(func(o StyleObserver) { o.CharacterDataChanged(id) })
}

// TextContent concatenates the text descendants of id.
func (d *Document) TextContent(id NodeID) string {
	if d.Kind(id) == TextNode {
		return d.Text(id)
	}
	var sb strings.Builder
	for c := d.FirstChild(id); c.Valid(); c = d.Next(c, id) {
		if d.Kind(c) == TextNode {
			sb.WriteString(d.get(c).text)
		}
	}
	return sb.String()
}

// GetElementByID returns the first element in tree order in the document
// tree whose id is value.
func (d *Document) GetElementByID(value string) NodeID {
	if value == "" {
		return InvalidNodeID
	}
	for id := d.FirstChild(d.root); id.Valid(); id = d.Next(id, d.root) {
		if el := d.element(id); el != nil && el.id() == value {
			return id
		}
	}
	return InvalidNodeID
}

// GetElementsByTagName returns the elements of the document tree with the
// given local name, in tree order.
func (d *Document) GetElementsByTagName(localName string) []NodeID {
	localName = strings.ToLower(localName)
	var out []NodeID
	for id := d.FirstChild(d.root); id.Valid(); id = d.Next(id, d.root) {
		if el := d.element(id); el != nil && (localName == "*" || el.localName == localName) {
			out = append(out, id)
		}
	}
	return out
}
