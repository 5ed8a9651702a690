package dom

import (
	"slices"
	"strings"
)

// Attribute is a name/value pair on an element. Names are stored lowercase.
type Attribute struct {
	Name  string
	Value string
}

type elementData struct {
	localName  string
	attrs      []Attribute
	classes    []string
	shadowRoot NodeID
	state      PseudoState
}

func (e *elementData) attr(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (e *elementData) id() string {
	v, _ := e.attr("id")
	return v
}

// LocalName returns the lowercase tag name of an element.
func (d *Document) LocalName(id NodeID) string {
	if el := d.element(id); el != nil {
		return el.localName
	}
	return ""
}

// ID returns the id attribute of an element.
func (d *Document) ID(id NodeID) string {
	if el := d.element(id); el != nil {
		return el.id()
	}
	return ""
}

// HasID reports whether the element carries a non-empty id.
func (d *Document) HasID(id NodeID) bool { return d.ID(id) != "" }

// Classes returns the parsed class list of an element. The slice must not be
// modified.
func (d *Document) Classes(id NodeID) []string {
	if el := d.element(id); el != nil {
		return el.classes
	}
	return nil
}

// HasClass reports whether the element's class list contains name.
func (d *Document) HasClass(id NodeID, name string) bool {
	return slices.Contains(d.Classes(id), name)
}

// Attributes returns the attributes of an element in insertion order. The
// slice must not be modified.
func (d *Document) Attributes(id NodeID) []Attribute {
	if el := d.element(id); el != nil {
		return el.attrs
	}
	return nil
}

// GetAttribute returns the value of the named attribute.
func (d *Document) GetAttribute(id NodeID, name string) (string, bool) {
	if el := d.element(id); el != nil {
		return el.attr(strings.ToLower(name))
	}
	return "", false
}

// HasAttribute reports whether the element has the named attribute.
func (d *Document) HasAttribute(id NodeID, name string) bool {
	_, ok := d.GetAttribute(id, name)
	return ok
}

// SetAttribute sets or replaces an attribute and notifies observers.
func (d *Document) SetAttribute(id NodeID, name, value string) {
	el := d.element(id)
	if el == nil {
		return
	}
	name = strings.ToLower(name)
	old, had := el.attr(name)
	if had && old == value {
		return
	}
	if had {
		for i := range el.attrs {
			if el.attrs[i].Name == name {
				el.attrs[i].Value = value
				break
			}
		}
	} else {
		el.attrs = append(el.attrs, Attribute{Name: name, Value: value})
	}
	d.attributeChanged(id, name, old, value)
}

// RemoveAttribute removes an attribute and notifies observers.
func (d *Document) RemoveAttribute(id NodeID, name string) {
	el := d.element(id)
	if el == nil {
		return
	}
	name = strings.ToLower(name)
	idx := slices.IndexFunc(el.attrs, func(a Attribute) bool { return a.Name == name })
	if idx < 0 {
		return
	}
	old := el.attrs[idx].Value
	el.attrs = slices.Delete(el.attrs, idx, idx+1)
	d.attributeChanged(id, name, old, "")
}

// attributeChanged keeps derived element state in sync, then forwards the
// specific notification followed by the generic attribute one.
func (d *Document) attributeChanged(id NodeID, name, oldValue, newValue string) {
	el := d.element(id)
	switch name {
	case "class":
		oldClasses := el.classes
		el.classes = splitTokens(newValue)
		d.notify(func(o StyleObserver) { o.ClassChanged(id, oldClasses, el.classes) })
	case "id":
		d.notify(func(o StyleObserver) { o.IDChanged(id, oldValue, newValue) })
	case "part":
		d.notify(func(o StyleObserver) { o.PartChanged(id) })
	case "exportparts":
		d.notify(func(o StyleObserver) { o.ExportpartsChanged(id) })
	}
	d.notify(func(o StyleObserver) { o.AttributeChanged(id, name) })

	if state, ok := attributeStates[name]; ok {
		d.notify(func(o StyleObserver) { o.PseudoStateChanged(id, state) })
	}
	if state, ok := inheritedAttributeStates[name]; ok {
		d.notify(func(o StyleObserver) { o.PseudoStateChanged(id, state) })
		for _, desc := range d.Descendants(id) {
			d.notify(func(o StyleObserver) { o.PseudoStateChanged(desc, state) })
		}
	}
}

// SetClassName replaces the class attribute.
func (d *Document) SetClassName(id NodeID, value string) { d.SetAttribute(id, "class", value) }

// SetID replaces the id attribute.
func (d *Document) SetID(id NodeID, value string) { d.SetAttribute(id, "id", value) }

// ClassList returns a token list view over the class attribute.
func (d *Document) ClassList(id NodeID) *DOMTokenList { return newDOMTokenList(d, id, "class") }

// PartList returns a token list view over the part attribute.
func (d *Document) PartList(id NodeID) *DOMTokenList { return newDOMTokenList(d, id, "part") }

// Parts returns the part names of an element.
func (d *Document) Parts(id NodeID) []string {
	v, _ := d.GetAttribute(id, "part")
	return splitTokens(v)
}

// HasPart reports whether the element exposes any part name.
func (d *Document) HasPart(id NodeID) bool { return len(d.Parts(id)) > 0 }

// ExportParts parses the exportparts attribute of a host into a map from
// inner part name to the names it is exposed as.
func (d *Document) ExportParts(id NodeID) map[string][]string {
	v, ok := d.GetAttribute(id, "exportparts")
	if !ok {
		return nil
	}
	out := make(map[string][]string)
	for _, entry := range strings.Split(v, ",") {
		inner, outer, found := strings.Cut(strings.TrimSpace(entry), ":")
		inner = strings.TrimSpace(inner)
		if inner == "" {
			continue
		}
		if !found {
			outer = inner
		}
		out[inner] = append(out[inner], strings.TrimSpace(outer))
	}
	return out
}

// ShadowPseudoID returns the pseudo attribute UA shadow elements use to
// expose themselves to custom pseudo-element selectors.
func (d *Document) ShadowPseudoID(id NodeID) string {
	if !d.ContainingShadowRoot(id).Valid() {
		return ""
	}
	v, _ := d.GetAttribute(id, "pseudo")
	return v
}

// splitTokens splits on ASCII whitespace and drops duplicates, keeping the
// first occurrence.
func splitTokens(value string) []string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil
	}
	out := fields[:0]
	for _, f := range fields {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// Describe renders a short selector-like label such as div#main.a.b, used
// in logs and CLI output.
func (d *Document) Describe(id NodeID) string {
	switch d.Kind(id) {
	case DocumentNode:
		return "#document"
	case ShadowRootNode:
		return "#shadow-root(" + d.Describe(d.Host(id)) + ")"
	case TextNode:
		return "#text"
	case ElementNode:
		var sb strings.Builder
		sb.WriteString(d.LocalName(id))
		if v := d.ID(id); v != "" {
			sb.WriteString("#" + v)
		}
		for _, c := range d.Classes(id) {
			sb.WriteString("." + c)
		}
		return sb.String()
	}
	return "#invalid"
}
