// Package dom implements the small document model the style engine runs
// against: an arena of nodes addressed by NodeID handles, with the style
// dirty bits and selector-affected flags that invalidation relies on.
package dom

// NodeID is a stable handle into a Document's node arena. The zero value
// never refers to a node.
type NodeID uint32

// InvalidNodeID is the null handle.
const InvalidNodeID NodeID = 0

// Valid reports whether id refers to some node.
func (id NodeID) Valid() bool { return id != InvalidNodeID }

// NodeKind distinguishes the node types the arena stores.
type NodeKind uint8

const (
	DocumentNode NodeKind = iota + 1
	ElementNode
	TextNode
	ShadowRootNode
)

func (k NodeKind) String() string {
	switch k {
	case DocumentNode:
		return "document"
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	case ShadowRootNode:
		return "shadow-root"
	}
	return "unknown"
}

// node is one arena slot. Parent/child/sibling links are handles, so the
// arena never holds pointers between nodes.
type node struct {
	kind NodeKind

	parent     NodeID
	firstChild NodeID
	lastChild  NodeID
	prev       NodeID
	next       NodeID

	// Element payload.
	el *elementData
	// Text payload.
	text string
	// Shadow root payload.
	host NodeID
	mode ShadowRootMode

	styleChange StyleChangeType
	flags       ElementFlags
}

func (n *node) isContainer() bool {
	return n.kind == DocumentNode || n.kind == ElementNode || n.kind == ShadowRootNode
}
