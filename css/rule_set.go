package css

import "go.uber.org/zap"

// RuleData is one complex selector of a style rule.
type RuleData struct {
	Rule        *StyleRule
	Selector    *ComplexSelector
	Specificity Specificity
	Origin      CascadeOrigin
	// Position is the index of the rule in the sheets added so far.
	Position int
}

// RuleSet holds the rules of one or more stylesheets together with the
// feature set indexing their selectors.
type RuleSet struct {
	log      *zap.Logger
	rules    []RuleData
	features *RuleFeatureSet
	flags    RuleFlags

	hasSlottedRules bool
	position        int
}

// NewRuleSet returns an empty rule set.
func NewRuleSet(opts FeatureSetOptions, log *zap.Logger) *RuleSet {
	if log == nil {
		log = zap.NewNop()
	}
	return &RuleSet{log: log, features: NewRuleFeatureSet(opts, log)}
}

// NewRuleSetFromSheet builds a rule set for a single sheet.
func NewRuleSetFromSheet(sheet *StyleSheet, opts FeatureSetOptions, log *zap.Logger) *RuleSet {
	rs := NewRuleSet(opts, log)
	rs.AddStyleSheet(sheet)
	return rs
}

// AddStyleSheet adds every rule of sheet.
func (rs *RuleSet) AddStyleSheet(sheet *StyleSheet) {
	rs.flags |= sheet.Flags
	for _, rule := range sheet.Rules {
		for _, c := range rule.Selectors.Complex {
			rs.addRule(rule, c, sheet.Origin)
		}
		rs.position++
	}
}

// AddSelectors adds bare selectors without declarations, as used for
// watched selectors.
func (rs *RuleSet) AddSelectors(list *SelectorList) {
	rule := &StyleRule{SelectorText: list.String(), Selectors: list}
	for _, c := range list.Complex {
		rs.addRule(rule, c, OriginAuthor)
	}
	rs.position++
}

func (rs *RuleSet) addRule(rule *StyleRule, c *ComplexSelector, origin CascadeOrigin) {
	if rs.features.CollectFeaturesFromSelector(c) == SelectorNeverMatches {
		rs.log.Debug("selector never matches", zap.Stringer("selector", c))
		return
	}
	if subject := c.Rightmost(); subject != nil {
		if pe := subject.PseudoElement(); pe != nil && pe.Pseudo == PseudoSlotted {
			rs.hasSlottedRules = true
		}
	}
	rs.rules = append(rs.rules, RuleData{
		Rule:        rule,
		Selector:    c,
		Specificity: c.Specificity(),
		Origin:      origin,
		Position:    rs.position,
	})
}

// Rules returns the rules in insertion order.
func (rs *RuleSet) Rules() []RuleData { return rs.rules }

// Features returns the feature set of the rule set.
func (rs *RuleSet) Features() *RuleFeatureSet { return rs.features }

// HasSlottedRules reports whether any rule targets ::slotted().
func (rs *RuleSet) HasSlottedRules() bool { return rs.hasSlottedRules }

// Flags returns the sheet flags, plus RuleFlagFullRecalc when some selector
// cannot be invalidated by feature.
func (rs *RuleSet) Flags() RuleFlags {
	flags := rs.flags
	if rs.features.NeedsFullRecalcForRuleSetInvalidation() {
		flags |= RuleFlagFullRecalc
	}
	return flags
}

// IsEmpty reports whether the rule set has no rules.
func (rs *RuleSet) IsEmpty() bool { return len(rs.rules) == 0 }
