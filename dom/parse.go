package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ParseHTML builds a Document from HTML text using golang.org/x/net/html.
// Comments and doctypes are dropped. A <template shadowrootmode> element
// becomes a shadow root of its parent holding the template's children.
func ParseHTML(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	d := NewDocument()
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := d.convertNode(c, d.root); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// ParseHTMLString is ParseHTML over a string.
func ParseHTMLString(s string) (*Document, error) {
	return ParseHTML(strings.NewReader(s))
}

func (d *Document) convertNode(n *html.Node, parent NodeID) error {
	switch n.Type {
	case html.TextNode:
		if d.Kind(parent) == DocumentNode {
			return nil
		}
		return d.AppendChild(parent, d.CreateTextNode(n.Data))
	case html.ElementNode:
		if n.Data == "template" {
			if mode, ok := shadowRootModeOf(n); ok && d.IsElement(parent) {
				root, err := d.AttachShadow(parent, mode)
				if err != nil {
					return fmt.Errorf("declarative shadow root: %w", err)
				}
				return d.convertChildren(n, root)
			}
		}
		el := d.CreateElement(n.Data)
		data := d.element(el)
		for _, a := range n.Attr {
			if a.Namespace != "" {
				continue
			}
			name := strings.ToLower(a.Key)
			if _, dup := data.attr(name); dup {
				continue
			}
			data.attrs = append(data.attrs, Attribute{Name: name, Value: a.Val})
			if name == "class" {
				data.classes = splitTokens(a.Val)
			}
		}
		if err := d.AppendChild(parent, el); err != nil {
			return err
		}
		return d.convertChildren(n, el)
	}
	return nil
}

func (d *Document) convertChildren(n *html.Node, parent NodeID) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := d.convertNode(c, parent); err != nil {
			return err
		}
	}
	return nil
}

func shadowRootModeOf(n *html.Node) (ShadowRootMode, bool) {
	for _, a := range n.Attr {
		if a.Key == "shadowrootmode" {
			return ParseShadowRootMode(a.Val)
		}
	}
	return 0, false
}

// OuterHTML serializes id for debugging. Shadow roots are printed as
// declarative templates.
func (d *Document) OuterHTML(id NodeID) string {
	var sb strings.Builder
	d.serialize(&sb, id)
	return sb.String()
}

func (d *Document) serialize(sb *strings.Builder, id NodeID) {
	switch d.Kind(id) {
	case TextNode:
		sb.WriteString(html.EscapeString(d.Text(id)))
	case DocumentNode, ShadowRootNode:
		for c := d.FirstChild(id); c.Valid(); c = d.NextSibling(c) {
			d.serialize(sb, c)
		}
	case ElementNode:
		name := d.LocalName(id)
		sb.WriteString("<" + name)
		for _, a := range d.Attributes(id) {
			fmt.Fprintf(sb, " %s=\"%s\"", a.Name, html.EscapeString(a.Value))
		}
		sb.WriteString(">")
		if root := d.ShadowRoot(id); root.Valid() {
			fmt.Fprintf(sb, "<template shadowrootmode=\"%s\">", d.ShadowRootMode(root))
			d.serialize(sb, root)
			sb.WriteString("</template>")
		}
		for c := d.FirstChild(id); c.Valid(); c = d.NextSibling(c) {
			d.serialize(sb, c)
		}
		sb.WriteString("</" + name + ">")
	}
}
