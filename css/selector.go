package css

import (
	"strconv"
	"strings"
)

// SelectorList is a comma separated list of complex selectors.
type SelectorList struct {
	Complex []*ComplexSelector
}

// ComplexSelector is a chain of compound selectors separated by combinators,
// stored left to right.
type ComplexSelector struct {
	Compounds []*CompoundSelector

	// Relative selectors are the arguments of :has(). LeadingCombinator
	// relates the leftmost compound to the :has() anchor element.
	Relative          bool
	LeadingCombinator Combinator
}

// CompoundSelector is a sequence of simple selectors.
type CompoundSelector struct {
	Simples    []*SimpleSelector
	Combinator Combinator // Combinator following this compound selector

	// Implicit compounds stand in for the host part of "::slotted(x)" or
	// "::part(x)" written without anything to their left.
	Implicit bool
}

// Combinator relates two compound selectors.
type Combinator int

const (
	CombinatorNone              Combinator = iota
	CombinatorDescendant                   // (whitespace)
	CombinatorChild                        // >
	CombinatorNextSibling                  // +
	CombinatorSubsequentSibling            // ~

	// Implicit relations introduced by pseudo-elements that reach into or
	// out of a shadow tree.
	CombinatorUAShadow   // ::-webkit-custom
	CombinatorShadowSlot // ::slotted()
	CombinatorShadowPart // ::part()

	// combinatorSubSelector relates simple selectors inside one compound.
	combinatorSubSelector
)

// IsAdjacent reports whether c is a sibling combinator.
func (c Combinator) IsAdjacent() bool {
	return c == CombinatorNextSibling || c == CombinatorSubsequentSibling
}

// IsShadow reports whether c crosses a shadow tree boundary.
func (c Combinator) IsShadow() bool {
	return c == CombinatorUAShadow || c == CombinatorShadowSlot || c == CombinatorShadowPart
}

func (c Combinator) String() string {
	switch c {
	case CombinatorDescendant:
		return " "
	case CombinatorChild:
		return " > "
	case CombinatorNextSibling:
		return " + "
	case CombinatorSubsequentSibling:
		return " ~ "
	}
	return ""
}

// MatchType is the kind of a simple selector.
type MatchType uint8

const (
	MatchUnknown MatchType = iota
	MatchTag
	MatchID
	MatchClass
	MatchAttribute
	MatchPseudoClass
	MatchPseudoElement
)

// AttributeOperator represents the operator in an attribute selector.
type AttributeOperator int

const (
	AttrExists    AttributeOperator = iota // [attr]
	AttrEquals                             // [attr=value]
	AttrIncludes                           // [attr~=value]
	AttrDashMatch                          // [attr|=value]
	AttrPrefix                             // [attr^=value]
	AttrSuffix                             // [attr$=value]
	AttrSubstring                          // [attr*=value]
)

var attrOperatorText = [...]string{"", "=", "~=", "|=", "^=", "$=", "*="}

// NthIndex is the An+B part of the nth-* pseudo-classes.
type NthIndex struct {
	A, B int
}

// Matches reports whether the 1-based position satisfies An+B.
func (n NthIndex) Matches(pos int) bool {
	if n.A == 0 {
		return pos == n.B
	}
	d := pos - n.B
	if d%n.A != 0 {
		return false
	}
	return d/n.A >= 0
}

func (n NthIndex) String() string {
	switch {
	case n.A == 0:
		return strconv.Itoa(n.B)
	case n.B == 0:
		return strconv.Itoa(n.A) + "n"
	case n.B > 0:
		return strconv.Itoa(n.A) + "n+" + strconv.Itoa(n.B)
	}
	return strconv.Itoa(n.A) + "n" + strconv.Itoa(n.B)
}

// SimpleSelector is one type, id, class, attribute, pseudo-class or
// pseudo-element selector.
type SimpleSelector struct {
	Match MatchType

	// Value is the tag name ("*" for universal), id, class or attribute
	// local name. Tag and attribute names are lowercase.
	Value     string
	Namespace string

	AttrOp          AttributeOperator
	AttrValue       string
	CaseInsensitive bool

	Pseudo     PseudoType
	PseudoName string
	// Argument holds the raw text of :lang(), :dir(), :state() and the
	// names of ::part().
	Argument     string
	SelectorList *SelectorList
	Nth          NthIndex
}

// IsUniversal reports whether s is the "*" type selector.
func (s *SimpleSelector) IsUniversal() bool {
	return s.Match == MatchTag && s.Value == "*"
}

// IsIDClassOrAttribute reports whether s is an id, class or attribute selector.
func (s *SimpleSelector) IsIDClassOrAttribute() bool {
	return s.Match == MatchID || s.Match == MatchClass || s.Match == MatchAttribute
}

// IsPseudoClass reports whether s is the pseudo-class t.
func (s *SimpleSelector) IsPseudoClass(t PseudoType) bool {
	return s.Match == MatchPseudoClass && s.Pseudo == t
}

// PartNames returns the names listed in ::part().
func (s *SimpleSelector) PartNames() []string {
	return strings.Fields(s.Argument)
}

// Rightmost returns the subject compound of c.
func (c *ComplexSelector) Rightmost() *CompoundSelector {
	if len(c.Compounds) == 0 {
		return nil
	}
	return c.Compounds[len(c.Compounds)-1]
}

// RelationLeftOf returns the combinator between compound i and the compound
// to its left. The leftmost compound of a relative selector relates to the
// :has() anchor through LeadingCombinator.
func (c *ComplexSelector) RelationLeftOf(i int) Combinator {
	if i > 0 {
		return c.Compounds[i-1].Combinator
	}
	if c.Relative {
		return c.LeadingCombinator
	}
	return CombinatorNone
}

// HasPseudo reports whether the compound contains the pseudo-class t.
func (c *CompoundSelector) HasPseudo(t PseudoType) bool {
	for _, s := range c.Simples {
		if s.Match == MatchPseudoClass && s.Pseudo == t {
			return true
		}
	}
	return false
}

// PseudoElement returns the pseudo-element of the compound, if any.
func (c *CompoundSelector) PseudoElement() *SimpleSelector {
	for _, s := range c.Simples {
		if s.Match == MatchPseudoElement {
			return s
		}
	}
	return nil
}

// String serializes the list.
func (l *SelectorList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, 0, len(l.Complex))
	for _, c := range l.Complex {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ", ")
}

func (c *ComplexSelector) String() string {
	var b strings.Builder
	if c.Relative {
		switch c.LeadingCombinator {
		case CombinatorChild:
			b.WriteString("> ")
		case CombinatorNextSibling:
			b.WriteString("+ ")
		case CombinatorSubsequentSibling:
			b.WriteString("~ ")
		}
	}
	for i, compound := range c.Compounds {
		if !compound.Implicit {
			compound.write(&b)
		}
		if i < len(c.Compounds)-1 {
			b.WriteString(compound.Combinator.String())
		}
	}
	return b.String()
}

func (c *CompoundSelector) String() string {
	var b strings.Builder
	c.write(&b)
	return b.String()
}

func (c *CompoundSelector) write(b *strings.Builder) {
	for _, s := range c.Simples {
		s.write(b)
	}
}

func (s *SimpleSelector) String() string {
	var b strings.Builder
	s.write(&b)
	return b.String()
}

func (s *SimpleSelector) write(b *strings.Builder) {
	switch s.Match {
	case MatchTag:
		if s.Namespace != "" {
			b.WriteString(s.Namespace)
			b.WriteByte('|')
		}
		b.WriteString(s.Value)
	case MatchID:
		b.WriteByte('#')
		b.WriteString(s.Value)
	case MatchClass:
		b.WriteByte('.')
		b.WriteString(s.Value)
	case MatchAttribute:
		b.WriteByte('[')
		b.WriteString(s.Value)
		if s.AttrOp != AttrExists {
			b.WriteString(attrOperatorText[s.AttrOp])
			b.WriteString(strconv.Quote(s.AttrValue))
			if s.CaseInsensitive {
				b.WriteString(" i")
			}
		}
		b.WriteByte(']')
	case MatchPseudoClass, MatchPseudoElement:
		b.WriteByte(':')
		if s.Match == MatchPseudoElement {
			b.WriteByte(':')
		}
		b.WriteString(s.PseudoName)
		switch {
		case s.Pseudo == PseudoNthChild || s.Pseudo == PseudoNthLastChild ||
			s.Pseudo == PseudoNthOfType || s.Pseudo == PseudoNthLastOfType:
			b.WriteByte('(')
			b.WriteString(s.Nth.String())
			if s.SelectorList != nil {
				b.WriteString(" of ")
				b.WriteString(s.SelectorList.String())
			}
			b.WriteByte(')')
		case s.SelectorList != nil:
			b.WriteByte('(')
			b.WriteString(s.SelectorList.String())
			b.WriteByte(')')
		case s.Argument != "":
			b.WriteByte('(')
			b.WriteString(s.Argument)
			b.WriteByte(')')
		}
	}
}

// Specificity represents CSS selector specificity.
// Per https://www.w3.org/TR/selectors-4/#specificity
type Specificity struct {
	A int // ID selectors
	B int // Class selectors, attribute selectors, pseudo-classes
	C int // Type selectors, pseudo-elements
}

// Compare compares two specificities. Returns -1, 0, or 1.
func (s Specificity) Compare(other Specificity) int {
	if s.A != other.A {
		if s.A > other.A {
			return 1
		}
		return -1
	}
	if s.B != other.B {
		if s.B > other.B {
			return 1
		}
		return -1
	}
	if s.C != other.C {
		if s.C > other.C {
			return 1
		}
		return -1
	}
	return 0
}

// Less returns true if this specificity is less than the other.
func (s Specificity) Less(other Specificity) bool {
	return s.Compare(other) < 0
}

func (s Specificity) add(o Specificity) Specificity {
	return Specificity{s.A + o.A, s.B + o.B, s.C + o.C}
}

// Specificity calculates the specificity of a complex selector.
func (c *ComplexSelector) Specificity() Specificity {
	var spec Specificity
	for _, compound := range c.Compounds {
		for _, s := range compound.Simples {
			spec = spec.add(s.specificity())
		}
	}
	return spec
}

// Specificity returns the maximum specificity of any complex selector.
func (l *SelectorList) Specificity() Specificity {
	var maxSpec Specificity
	if l == nil {
		return maxSpec
	}
	for _, c := range l.Complex {
		if spec := c.Specificity(); maxSpec.Less(spec) {
			maxSpec = spec
		}
	}
	return maxSpec
}

func (s *SimpleSelector) specificity() Specificity {
	switch s.Match {
	case MatchTag:
		if s.IsUniversal() {
			return Specificity{}
		}
		return Specificity{C: 1}
	case MatchID:
		return Specificity{A: 1}
	case MatchClass, MatchAttribute:
		return Specificity{B: 1}
	case MatchPseudoElement:
		spec := Specificity{C: 1}
		if s.SelectorList != nil {
			spec = spec.add(s.SelectorList.Specificity())
		}
		return spec
	}
	switch s.Pseudo {
	case PseudoWhere:
		return Specificity{}
	case PseudoIs, PseudoNot, PseudoHas, PseudoAny:
		return s.SelectorList.Specificity()
	}
	spec := Specificity{B: 1}
	if s.SelectorList != nil {
		spec = spec.add(s.SelectorList.Specificity())
	}
	return spec
}
