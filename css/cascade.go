package css

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/aymerick/douceur/parser"
)

// MatchedDeclaration is a declaration of a rule that matched an element,
// with what the cascade needs to order it.
type MatchedDeclaration struct {
	Declaration
	Origin      CascadeOrigin
	Specificity Specificity
	Order       int
	inline      bool
}

// sortByPrecedence sorts declarations from lowest to highest precedence.
// Important declarations reverse the origin order. Within an origin the
// higher specificity wins, then the later declaration.
func sortByPrecedence(decls []MatchedDeclaration) {
	sort.SliceStable(decls, func(i, j int) bool {
		a, b := decls[i], decls[j]
		if la, lb := cascadeLayer(a), cascadeLayer(b); la != lb {
			return la < lb
		}
		if cmp := a.Specificity.Compare(b.Specificity); cmp != 0 {
			return cmp < 0
		}
		return a.Order < b.Order
	})
}

func cascadeLayer(d MatchedDeclaration) int {
	if d.Important {
		switch {
		case d.inline:
			return 5
		case d.Origin == OriginAuthor:
			return 4
		case d.Origin == OriginUser:
			return 6
		}
		return 7
	}
	if d.inline {
		return 3
	}
	switch d.Origin {
	case OriginUser:
		return 1
	case OriginAuthor:
		return 2
	}
	return 0
}

// Properties inherited when the element does not set them.
var inheritedProperties = map[string]bool{
	"color":          true,
	"cursor":         true,
	"direction":      true,
	"font-family":    true,
	"font-size":      true,
	"font-style":     true,
	"font-weight":    true,
	"letter-spacing": true,
	"line-height":    true,
	"list-style":     true,
	"text-align":     true,
	"text-transform": true,
	"visibility":     true,
	"white-space":    true,
	"word-spacing":   true,
}

// ComputedStyle is the cascaded value of every property set on or
// inherited by an element. Values are kept as written.
type ComputedStyle struct {
	values map[string]string
}

// Cascade resolves the matched declarations of an element. inlineStyle is
// the text of its style attribute, parent the style of its parent or nil.
// An inline style that does not parse is ignored; callers that need the
// error parse it with ParseInlineStyle and pass the result in matched.
func Cascade(matched []MatchedDeclaration, inlineStyle string, parent *ComputedStyle) *ComputedStyle {
	cs := &ComputedStyle{values: make(map[string]string)}
	if parent != nil {
		for prop, v := range parent.values {
			if inheritedProperties[prop] {
				cs.values[prop] = v
			}
		}
	}

	decls := slices.Clone(matched)
	if inlineStyle != "" {
		inline, _ := ParseInlineStyle(inlineStyle)
		decls = append(decls, inline...)
	}
	sortByPrecedence(decls)

	for _, d := range decls {
		switch strings.ToLower(d.Value) {
		case "inherit":
			if parent != nil {
				if v, ok := parent.values[d.Property]; ok {
					cs.values[d.Property] = v
					continue
				}
			}
			delete(cs.values, d.Property)
		case "initial", "unset":
			delete(cs.values, d.Property)
		default:
			cs.values[d.Property] = d.Value
		}
	}
	return cs
}

// ParseInlineStyle parses the text of a style attribute into declarations
// of the inline cascade layer. The last declaration may omit its ";".
func ParseInlineStyle(text string) ([]MatchedDeclaration, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if !strings.HasSuffix(text, ";") {
		text += ";"
	}
	parsed, err := parser.ParseDeclarations(text)
	if err != nil {
		return nil, fmt.Errorf("parse inline style: %w", err)
	}
	decls := make([]MatchedDeclaration, 0, len(parsed))
	for i, d := range parsed {
		decls = append(decls, MatchedDeclaration{
			Declaration: Declaration{Property: strings.ToLower(d.Property), Value: d.Value, Important: d.Important},
			Origin:      OriginAuthor,
			Order:       i,
			inline:      true,
		})
	}
	return decls, nil
}

// GetPropertyValue returns the value of property, or "" when unset.
func (cs *ComputedStyle) GetPropertyValue(property string) string {
	if cs == nil {
		return ""
	}
	return cs.values[strings.ToLower(property)]
}

// Properties returns the set property names in sorted order.
func (cs *ComputedStyle) Properties() []string {
	if cs == nil {
		return nil
	}
	props := make([]string, 0, len(cs.values))
	for p := range cs.values {
		props = append(props, p)
	}
	slices.Sort(props)
	return props
}

// Equal reports whether both styles hold the same values.
func (cs *ComputedStyle) Equal(o *ComputedStyle) bool {
	if cs == nil || o == nil {
		return cs == o
	}
	if len(cs.values) != len(o.values) {
		return false
	}
	for k, v := range cs.values {
		if ov, ok := o.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
