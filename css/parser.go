package css

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

var (
	// ErrInvalidSelector is returned for selector text that does not parse.
	ErrInvalidSelector = errors.New("invalid selector")
	// ErrEmptySelector is returned for selector text with no selectors.
	ErrEmptySelector = errors.New("empty selector")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSelector, fmt.Sprintf(format, args...))
}

type token struct {
	typ  css.TokenType
	text string
}

var eofToken = token{typ: css.ErrorToken}

func (t token) isDelim(c byte) bool {
	return t.typ == css.DelimToken && len(t.text) == 1 && t.text[0] == c
}

// tokenize runs the CSS lexer over selector text. Comments are dropped.
func tokenize(text string) ([]token, error) {
	l := css.NewLexer(parse.NewInputString(text))
	var tokens []token
	for {
		tt, data := l.Next()
		switch tt {
		case css.ErrorToken:
			if err := l.Err(); err != nil && err != io.EOF {
				return nil, invalid("%v", err)
			}
			return tokens, nil
		case css.CommentToken:
			continue
		case css.BadStringToken, css.BadURLToken:
			return nil, invalid("malformed token %q", data)
		}
		tokens = append(tokens, token{typ: tt, text: string(data)})
	}
}

// SelectorParser parses CSS selectors from lexer tokens.
type SelectorParser struct {
	tokens []token
	pos    int

	// inHas is set while parsing the argument of :has(), which may not
	// itself contain :has().
	inHas bool
}

// ParseSelector parses a selector list such as the prelude of a style rule.
func ParseSelector(text string) (*SelectorList, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &SelectorParser{tokens: tokens}
	p.skipWhitespace()
	if p.atEnd() {
		return nil, ErrEmptySelector
	}
	return p.parseSelectorList(false, false)
}

// ParseRelativeSelectorList parses the argument of :has().
func ParseRelativeSelectorList(text string) (*SelectorList, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &SelectorParser{tokens: tokens, inHas: true}
	p.skipWhitespace()
	if p.atEnd() {
		return nil, ErrEmptySelector
	}
	return p.parseSelectorList(false, true)
}

// MustParseSelector is like ParseSelector but panics on error.
func MustParseSelector(text string) *SelectorList {
	list, err := ParseSelector(text)
	if err != nil {
		panic(err)
	}
	return list
}

func (p *SelectorParser) sub(tokens []token) *SelectorParser {
	return &SelectorParser{tokens: tokens, inHas: p.inHas}
}

func (p *SelectorParser) current() token {
	if p.pos >= len(p.tokens) {
		return eofToken
	}
	return p.tokens[p.pos]
}

func (p *SelectorParser) peek(offset int) token {
	pos := p.pos + offset
	if pos >= len(p.tokens) || pos < 0 {
		return eofToken
	}
	return p.tokens[pos]
}

func (p *SelectorParser) consume() token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *SelectorParser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *SelectorParser) skipWhitespace() bool {
	skipped := false
	for p.current().typ == css.WhitespaceToken {
		p.consume()
		skipped = true
	}
	return skipped
}

// splitTopLevel splits the remaining tokens at commas outside any nesting.
func (p *SelectorParser) splitTopLevel() [][]token {
	var parts [][]token
	depth, start := 0, p.pos
	for i := p.pos; i < len(p.tokens); i++ {
		switch p.tokens[i].typ {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			depth--
		case css.CommaToken:
			if depth == 0 {
				parts = append(parts, p.tokens[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, p.tokens[start:])
	p.pos = len(p.tokens)
	return parts
}

// parseSelectorList parses the remaining tokens as a comma separated list.
// A forgiving list drops the branches that fail to parse.
func (p *SelectorParser) parseSelectorList(forgiving, relative bool) (*SelectorList, error) {
	list := &SelectorList{}
	for _, part := range p.splitTopLevel() {
		complex, err := p.sub(part).parseWholeComplex(relative)
		if err != nil {
			if forgiving {
				continue
			}
			return nil, err
		}
		list.Complex = append(list.Complex, complex)
	}
	return list, nil
}

// parseWholeComplex parses a complex selector that must span all tokens.
func (p *SelectorParser) parseWholeComplex(relative bool) (*ComplexSelector, error) {
	p.skipWhitespace()
	complex, err := p.parseComplexSelector(relative)
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if !p.atEnd() {
		return nil, invalid("unexpected %q", p.current().text)
	}
	return complex, nil
}

// parseComplexSelector parses a complex selector.
func (p *SelectorParser) parseComplexSelector(relative bool) (*ComplexSelector, error) {
	complex := &ComplexSelector{Relative: relative}

	if relative {
		complex.LeadingCombinator = CombinatorDescendant
		if c, ok := p.explicitCombinator(); ok {
			p.consume()
			p.skipWhitespace()
			complex.LeadingCombinator = c
		}
	}

	for {
		ok, err := p.parseCompoundSelector(complex)
		if err != nil {
			return nil, err
		}
		if !ok {
			if len(complex.Compounds) > 0 {
				return nil, invalid("dangling combinator")
			}
			break
		}
		last := complex.Compounds[len(complex.Compounds)-1]

		// Check for combinator
		hadWhitespace := p.skipWhitespace()
		if c, ok := p.explicitCombinator(); ok {
			p.consume()
			p.skipWhitespace()
			last.Combinator = c
			continue
		}
		if p.current().typ == css.ColumnToken {
			return nil, invalid("column combinator is not supported")
		}
		if p.atEnd() || !hadWhitespace {
			goto done
		}
		last.Combinator = CombinatorDescendant
	}

done:
	if len(complex.Compounds) == 0 {
		return nil, invalid("expected selector")
	}
	return complex, nil
}

func (p *SelectorParser) explicitCombinator() (Combinator, bool) {
	tok := p.current()
	switch {
	case tok.isDelim('>'):
		return CombinatorChild, true
	case tok.isDelim('+'):
		return CombinatorNextSibling, true
	case tok.isDelim('~'):
		return CombinatorSubsequentSibling, true
	}
	return CombinatorNone, false
}

// parseCompoundSelector parses one compound and appends it to complex.
// Pseudo-elements that cross a shadow boundary split the compound in two:
// "x::slotted(y)" becomes x, related by CombinatorShadowSlot to
// ::slotted(y). It reports false when no selector starts at the current
// position.
func (p *SelectorParser) parseCompoundSelector(complex *ComplexSelector) (bool, error) {
	compound := &CompoundSelector{}
	start := len(complex.Compounds)
	var pseudoElement *SimpleSelector

	if p.isTypeSelector() {
		ts, err := p.parseTypeSelector()
		if err != nil {
			return false, err
		}
		compound.Simples = append(compound.Simples, ts)
	}

	for {
		var simple *SimpleSelector
		var err error

		tok := p.current()
		switch {
		case tok.typ == css.HashToken:
			p.consume()
			simple = &SimpleSelector{Match: MatchID, Value: unescape(tok.text[1:])}
		case tok.isDelim('.'):
			p.consume()
			if p.current().typ != css.IdentToken {
				return false, invalid("expected class name")
			}
			simple = &SimpleSelector{Match: MatchClass, Value: unescape(p.consume().text)}
		case tok.typ == css.LeftBracketToken:
			simple, err = p.parseAttributeSelector()
		case tok.typ == css.ColonToken:
			p.consume()
			if p.current().typ == css.ColonToken {
				p.consume()
				simple, err = p.parsePseudoElement()
			} else {
				simple, err = p.parsePseudoClass()
			}
		case tok.isDelim('*') || tok.typ == css.IdentToken:
			return false, invalid("type selector must come first in a compound")
		default:
			goto done
		}
		if err != nil {
			return false, err
		}

		if simple.Match == MatchPseudoElement {
			if pseudoElement != nil && pseudoElement.Pseudo != PseudoSlotted && pseudoElement.Pseudo != PseudoPart {
				return false, invalid("multiple pseudo-elements")
			}
			if c := shadowCombinatorFor(simple.Pseudo); c != CombinatorNone {
				// Split: everything so far is the host side.
				if len(compound.Simples) == 0 {
					compound.Implicit = true
					compound.Simples = append(compound.Simples, &SimpleSelector{Match: MatchTag, Value: "*"})
				}
				compound.Combinator = c
				complex.Compounds = append(complex.Compounds, compound)
				compound = &CompoundSelector{}
			}
			pseudoElement = simple
		}
		compound.Simples = append(compound.Simples, simple)
	}

done:
	if len(compound.Simples) == 0 {
		if len(complex.Compounds) > start {
			return false, invalid("empty compound after pseudo-element")
		}
		return false, nil
	}
	complex.Compounds = append(complex.Compounds, compound)
	return true, nil
}

func shadowCombinatorFor(t PseudoType) Combinator {
	switch t {
	case PseudoSlotted:
		return CombinatorShadowSlot
	case PseudoPart:
		return CombinatorShadowPart
	case PseudoWebKitCustomElement:
		return CombinatorUAShadow
	}
	return CombinatorNone
}

// isTypeSelector checks if current position starts a type selector.
func (p *SelectorParser) isTypeSelector() bool {
	tok := p.current()
	return tok.typ == css.IdentToken || tok.isDelim('*') || tok.isDelim('|')
}

// parseTypeSelector parses a type selector.
func (p *SelectorParser) parseTypeSelector() (*SimpleSelector, error) {
	ts := &SimpleSelector{Match: MatchTag}

	tok := p.current()

	// Handle namespace prefix
	if tok.isDelim('*') {
		p.consume()
		if !p.current().isDelim('|') {
			ts.Value = "*"
			return ts, nil
		}
		p.consume()
		ts.Namespace = "*"
	} else if tok.isDelim('|') {
		p.consume()
	} else if next := p.peek(1); next.isDelim('|') {
		ts.Namespace = tok.text
		p.consume() // ident
		p.consume() // |
	}

	// Parse element name
	tok = p.current()
	switch {
	case tok.typ == css.IdentToken:
		ts.Value = strings.ToLower(unescape(p.consume().text))
	case tok.isDelim('*'):
		p.consume()
		ts.Value = "*"
	default:
		return nil, invalid("expected element name")
	}
	return ts, nil
}

// parseAttributeSelector parses an attribute selector.
func (p *SelectorParser) parseAttributeSelector() (*SimpleSelector, error) {
	p.consume() // [

	attr := &SimpleSelector{Match: MatchAttribute}

	p.skipWhitespace()

	// Parse namespace (if any) and attribute name
	tok := p.current()
	if tok.isDelim('*') && p.peek(1).isDelim('|') {
		p.consume()
		p.consume()
		attr.Namespace = "*"
	} else if tok.isDelim('|') {
		p.consume()
	} else if tok.typ == css.IdentToken && p.peek(1).isDelim('|') && p.peek(2).typ == css.IdentToken {
		attr.Namespace = tok.text
		p.consume() // ident
		p.consume() // |
	}

	if p.current().typ != css.IdentToken {
		return nil, invalid("expected attribute name")
	}
	attr.Value = strings.ToLower(unescape(p.consume().text))

	p.skipWhitespace()

	// Check for operator
	tok = p.current()
	switch {
	case tok.typ == css.RightBracketToken:
		p.consume()
		attr.AttrOp = AttrExists
		return attr, nil
	case tok.isDelim('='):
		attr.AttrOp = AttrEquals
	case tok.typ == css.IncludeMatchToken:
		attr.AttrOp = AttrIncludes
	case tok.typ == css.DashMatchToken:
		attr.AttrOp = AttrDashMatch
	case tok.typ == css.PrefixMatchToken:
		attr.AttrOp = AttrPrefix
	case tok.typ == css.SuffixMatchToken:
		attr.AttrOp = AttrSuffix
	case tok.typ == css.SubstringMatchToken:
		attr.AttrOp = AttrSubstring
	default:
		return nil, invalid("unexpected %q in attribute selector", tok.text)
	}
	p.consume()
	p.skipWhitespace()

	// Parse value
	tok = p.current()
	switch tok.typ {
	case css.StringToken:
		attr.AttrValue = unquote(p.consume().text)
	case css.IdentToken:
		attr.AttrValue = unescape(p.consume().text)
	default:
		return nil, invalid("expected attribute value")
	}

	p.skipWhitespace()

	// Check for case-insensitivity flag
	tok = p.current()
	if tok.typ == css.IdentToken {
		switch strings.ToLower(tok.text) {
		case "i":
			attr.CaseInsensitive = true
		case "s":
		default:
			return nil, invalid("unknown attribute flag %q", tok.text)
		}
		p.consume()
		p.skipWhitespace()
	}

	if p.current().typ != css.RightBracketToken {
		return nil, invalid("unterminated attribute selector")
	}
	p.consume()
	return attr, nil
}

// functionArguments consumes the tokens up to the parenthesis closing the
// function token that was just consumed.
func (p *SelectorParser) functionArguments() ([]token, error) {
	start := p.pos
	depth := 1
	for !p.atEnd() {
		tok := p.consume()
		switch tok.typ {
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			depth--
			if depth == 0 {
				return p.tokens[start : p.pos-1], nil
			}
		}
	}
	return nil, invalid("unterminated function")
}

func functionName(tok token) string {
	return strings.ToLower(unescape(strings.TrimSuffix(tok.text, "(")))
}

// parsePseudoClass parses a pseudo-class selector. The leading colon has
// been consumed.
func (p *SelectorParser) parsePseudoClass() (*SimpleSelector, error) {
	tok := p.consume()
	switch tok.typ {
	case css.IdentToken:
		name := strings.ToLower(unescape(tok.text))
		if legacyPseudoElements[name] {
			return &SimpleSelector{Match: MatchPseudoElement, Pseudo: pseudoElementNames[name], PseudoName: name}, nil
		}
		t := LookupPseudoClass(name)
		switch t {
		case PseudoUnknown:
			return nil, invalid("unknown pseudo-class :%s", name)
		case PseudoIs, PseudoWhere, PseudoNot, PseudoHas, PseudoAny, PseudoHostContext,
			PseudoNthChild, PseudoNthLastChild, PseudoNthOfType, PseudoNthLastOfType,
			PseudoLang, PseudoDir, PseudoState:
			return nil, invalid(":%s requires an argument", name)
		}
		return &SimpleSelector{Match: MatchPseudoClass, Pseudo: t, PseudoName: name}, nil

	case css.FunctionToken:
		name := functionName(tok)
		args, err := p.functionArguments()
		if err != nil {
			return nil, err
		}
		pc := &SimpleSelector{Match: MatchPseudoClass, Pseudo: LookupPseudoClass(name), PseudoName: name}
		if err := p.parsePseudoClassArguments(pc, args); err != nil {
			return nil, err
		}
		return pc, nil
	}
	return nil, invalid("expected pseudo-class name")
}

func (p *SelectorParser) parsePseudoClassArguments(pc *SimpleSelector, args []token) error {
	var err error
	switch pc.Pseudo {
	case PseudoIs, PseudoWhere:
		pc.SelectorList, err = p.sub(args).parseSelectorList(true, false)
	case PseudoNot, PseudoAny:
		pc.SelectorList, err = p.sub(args).parseSelectorList(false, false)
	case PseudoHas:
		if p.inHas {
			return invalid(":has() cannot be nested")
		}
		sub := p.sub(args)
		sub.inHas = true
		pc.SelectorList, err = sub.parseSelectorList(false, true)
	case PseudoNthChild, PseudoNthLastChild:
		nth, of := splitAtOf(args)
		if pc.Nth, err = parseAnPlusB(joinTokens(nth)); err != nil {
			return err
		}
		if of != nil {
			pc.SelectorList, err = p.sub(of).parseSelectorList(false, false)
		}
	case PseudoNthOfType, PseudoNthLastOfType:
		pc.Nth, err = parseAnPlusB(joinTokens(args))
	case PseudoHost, PseudoHostContext:
		pc.SelectorList, err = p.sub(args).parseCompoundArgument()
	case PseudoLang, PseudoDir, PseudoState:
		pc.Argument = unquote(strings.TrimSpace(joinTokens(args)))
		if pc.Argument == "" {
			return invalid(":%s requires an argument", pc.PseudoName)
		}
	case PseudoUnknown:
		return invalid("unknown pseudo-class :%s()", pc.PseudoName)
	default:
		return invalid(":%s does not take arguments", pc.PseudoName)
	}
	return err
}

// parsePseudoElement parses a pseudo-element selector. Both colons have been
// consumed.
func (p *SelectorParser) parsePseudoElement() (*SimpleSelector, error) {
	tok := p.consume()
	switch tok.typ {
	case css.IdentToken:
		name := strings.ToLower(unescape(tok.text))
		t := LookupPseudoElement(name)
		switch t {
		case PseudoUnknown:
			return nil, invalid("unknown pseudo-element ::%s", name)
		case PseudoSlotted, PseudoPart:
			return nil, invalid("::%s requires an argument", name)
		}
		return &SimpleSelector{Match: MatchPseudoElement, Pseudo: t, PseudoName: name}, nil

	case css.FunctionToken:
		name := functionName(tok)
		args, err := p.functionArguments()
		if err != nil {
			return nil, err
		}
		pe := &SimpleSelector{Match: MatchPseudoElement, Pseudo: LookupPseudoElement(name), PseudoName: name}
		switch pe.Pseudo {
		case PseudoSlotted:
			pe.SelectorList, err = p.sub(args).parseCompoundArgument()
			if err != nil {
				return nil, err
			}
		case PseudoPart:
			var names []string
			for _, t := range args {
				switch t.typ {
				case css.IdentToken:
					names = append(names, unescape(t.text))
				case css.WhitespaceToken:
				default:
					return nil, invalid("unexpected %q in ::part()", t.text)
				}
			}
			if len(names) == 0 {
				return nil, invalid("::part() requires a name")
			}
			pe.Argument = strings.Join(names, " ")
		default:
			return nil, invalid("unknown pseudo-element ::%s()", name)
		}
		return pe, nil
	}
	return nil, invalid("expected pseudo-element name")
}

// parseCompoundArgument parses the single compound taken by :host(),
// :host-context() and ::slotted().
func (p *SelectorParser) parseCompoundArgument() (*SelectorList, error) {
	complex, err := p.parseWholeComplex(false)
	if err != nil {
		return nil, err
	}
	if len(complex.Compounds) != 1 {
		return nil, invalid("expected a compound selector")
	}
	return &SelectorList{Complex: []*ComplexSelector{complex}}, nil
}

// splitAtOf splits nth-child arguments at a top-level "of" keyword.
func splitAtOf(args []token) (nth, of []token) {
	for i, t := range args {
		if t.typ == css.IdentToken && strings.EqualFold(t.text, "of") {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

func joinTokens(tokens []token) string {
	var b strings.Builder
	for _, t := range tokens {
		if t.typ == css.WhitespaceToken {
			b.WriteByte(' ')
			continue
		}
		b.WriteString(t.text)
	}
	return b.String()
}

// parseAnPlusB parses the An+B microsyntax: odd, even, 3, n, -n+2, 2n-1.
func parseAnPlusB(s string) (NthIndex, error) {
	s = strings.ToLower(strings.Join(strings.Fields(s), ""))
	switch s {
	case "":
		return NthIndex{}, invalid("empty An+B")
	case "odd":
		return NthIndex{A: 2, B: 1}, nil
	case "even":
		return NthIndex{A: 2, B: 0}, nil
	}

	idx := strings.IndexByte(s, 'n')
	if idx < 0 {
		b, err := strconv.Atoi(s)
		if err != nil {
			return NthIndex{}, invalid("bad An+B %q", s)
		}
		return NthIndex{B: b}, nil
	}

	var nth NthIndex
	switch a := s[:idx]; a {
	case "", "+":
		nth.A = 1
	case "-":
		nth.A = -1
	default:
		v, err := strconv.Atoi(a)
		if err != nil {
			return NthIndex{}, invalid("bad An+B %q", s)
		}
		nth.A = v
	}

	rest := s[idx+1:]
	if rest == "" {
		return nth, nil
	}
	if rest[0] != '+' && rest[0] != '-' {
		return NthIndex{}, invalid("bad An+B %q", s)
	}
	b, err := strconv.Atoi(rest)
	if err != nil {
		return NthIndex{}, invalid("bad An+B %q", s)
	}
	nth.B = b
	return nth, nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return unescape(s)
}

// unescape resolves CSS backslash escapes in an identifier or string body.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		j := i
		for j < len(s) && j-i < 6 && isHex(s[j]) {
			j++
		}
		if j == i {
			r, size := utf8.DecodeRuneInString(s[i:])
			b.WriteRune(r)
			i += size - 1
			continue
		}
		v, _ := strconv.ParseUint(s[i:j], 16, 32)
		if v == 0 || v > utf8.MaxRune {
			v = utf8.RuneError
		}
		b.WriteRune(rune(v))
		if j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n') {
			j++
		}
		i = j - 1
	}
	return b.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
