package css

import (
	"fmt"
	"strings"

	dcss "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"go.uber.org/multierr"
)

// CascadeOrigin is the origin of a stylesheet in the cascade.
type CascadeOrigin int

const (
	OriginUserAgent CascadeOrigin = iota
	OriginUser
	OriginAuthor
)

func (o CascadeOrigin) String() string {
	switch o {
	case OriginUserAgent:
		return "user-agent"
	case OriginUser:
		return "user"
	}
	return "author"
}

// RuleFlags summarize the non-style rules of a sheet. The style engine uses
// them to decide what else a sheet change invalidates.
type RuleFlags uint8

const (
	RuleFlagFontFace RuleFlags = 1 << iota
	RuleFlagKeyframes
	RuleFlagProperty
	RuleFlagCounterStyle
	// RuleFlagFullRecalc marks rule sets with selectors that cannot be
	// invalidated by feature and need a full style recalc when added or
	// removed.
	RuleFlagFullRecalc
)

// Declaration is a single property: value pair.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// StyleRule is a qualified rule whose prelude parsed as a selector list.
type StyleRule struct {
	SelectorText string
	Selectors    *SelectorList
	Declarations []Declaration
}

// StyleSheet is a parsed stylesheet.
type StyleSheet struct {
	Origin CascadeOrigin
	Rules  []*StyleRule
	Flags  RuleFlags
}

// ParseStyleSheet parses stylesheet text. Rules inside @media and @supports
// are kept as if the condition held.
//
// A rule with an invalid selector is dropped and its error collected; the
// returned sheet is still usable when err is non-nil.
func ParseStyleSheet(text string, origin CascadeOrigin) (*StyleSheet, error) {
	parsed, err := parser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse stylesheet: %w", err)
	}
	sheet := &StyleSheet{Origin: origin}
	err = sheet.addRules(parsed.Rules)
	return sheet, err
}

// MustParseStyleSheet is like ParseStyleSheet but panics on any error.
func MustParseStyleSheet(text string, origin CascadeOrigin) *StyleSheet {
	sheet, err := ParseStyleSheet(text, origin)
	if err != nil {
		panic(err)
	}
	return sheet
}

func (s *StyleSheet) addRules(rules []*dcss.Rule) error {
	var errs error
	for _, r := range rules {
		if r.Kind == dcss.AtRule {
			errs = multierr.Append(errs, s.addAtRule(r))
			continue
		}
		list, err := ParseSelector(r.Prelude)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rule %q: %w", r.Prelude, err))
			continue
		}
		rule := &StyleRule{SelectorText: strings.TrimSpace(r.Prelude), Selectors: list}
		for _, d := range r.Declarations {
			rule.Declarations = append(rule.Declarations, Declaration{
				Property:  strings.ToLower(d.Property),
				Value:     d.Value,
				Important: d.Important,
			})
		}
		s.Rules = append(s.Rules, rule)
	}
	return errs
}

func (s *StyleSheet) addAtRule(r *dcss.Rule) error {
	switch strings.ToLower(strings.TrimPrefix(r.Name, "@")) {
	case "media", "supports", "layer", "container":
		return s.addRules(r.Rules)
	case "font-face":
		s.Flags |= RuleFlagFontFace
	case "keyframes", "-webkit-keyframes":
		s.Flags |= RuleFlagKeyframes
	case "property":
		s.Flags |= RuleFlagProperty
	case "counter-style":
		s.Flags |= RuleFlagCounterStyle
	}
	return nil
}

// String returns the sheet in a normalized form.
func (s *StyleSheet) String() string {
	var sb strings.Builder
	for _, r := range s.Rules {
		sb.WriteString(r.Selectors.String())
		sb.WriteString(" {")
		for _, d := range r.Declarations {
			sb.WriteString(" " + d.Property + ": " + d.Value)
			if d.Important {
				sb.WriteString(" !important")
			}
			sb.WriteString(";")
		}
		sb.WriteString(" }\n")
	}
	return sb.String()
}
