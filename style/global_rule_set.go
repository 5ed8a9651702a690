package style

import (
	"go.uber.org/zap"

	"github.com/chrisuehlinger/invalidator/css"
)

// CSSGlobalRuleSet aggregates the features of every active stylesheet of a
// document into one RuleFeatureSet. Any change to the active sheets marks
// it dirty; the next read rebuilds it.
type CSSGlobalRuleSet struct {
	log  *zap.Logger
	opts css.FeatureSetOptions

	features               *css.RuleFeatureSet
	watchedSelectors       *css.RuleSet
	documentRulesSelectors *css.RuleSet
	hasFullscreenUAStyle   bool
	dirty                  bool
}

// NewCSSGlobalRuleSet returns a dirty, empty aggregate.
func NewCSSGlobalRuleSet(opts css.FeatureSetOptions, log *zap.Logger) *CSSGlobalRuleSet {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("global-rule-set")
	return &CSSGlobalRuleSet{
		log:      log,
		opts:     opts,
		features: css.NewRuleFeatureSet(opts, log),
		dirty:    true,
	}
}

// MarkDirty schedules a rebuild.
func (g *CSSGlobalRuleSet) MarkDirty() { g.dirty = true }

// IsDirty reports whether a rebuild is pending.
func (g *CSSGlobalRuleSet) IsDirty() bool { return g.dirty }

// Features returns the aggregate. It is stale while IsDirty is true.
func (g *CSSGlobalRuleSet) Features() *css.RuleFeatureSet { return g.features }

// HasFullscreenUAStyle reports whether the fullscreen user agent sheet was
// part of the last rebuild.
func (g *CSSGlobalRuleSet) HasFullscreenUAStyle() bool { return g.hasFullscreenUAStyle }

// WatchedSelectorsRuleSet returns the rule set of the watched selectors, or
// nil when none are set.
func (g *CSSGlobalRuleSet) WatchedSelectorsRuleSet() *css.RuleSet { return g.watchedSelectors }

// DocumentRulesSelectorsRuleSet returns the rule set of the document rule
// selectors, or nil when none are set.
func (g *CSSGlobalRuleSet) DocumentRulesSelectorsRuleSet() *css.RuleSet {
	return g.documentRulesSelectors
}

// UpdateWatchedSelectors replaces the watched selectors.
func (g *CSSGlobalRuleSet) UpdateWatchedSelectors(lists []*css.SelectorList) {
	g.watchedSelectors = g.selectorRuleSet(lists)
	g.MarkDirty()
}

// UpdateDocumentRulesSelectors replaces the selectors of document rules.
func (g *CSSGlobalRuleSet) UpdateDocumentRulesSelectors(lists []*css.SelectorList) {
	g.documentRulesSelectors = g.selectorRuleSet(lists)
	g.MarkDirty()
}

func (g *CSSGlobalRuleSet) selectorRuleSet(lists []*css.SelectorList) *css.RuleSet {
	if len(lists) == 0 {
		return nil
	}
	rs := css.NewRuleSet(g.opts, g.log)
	for _, list := range lists {
		rs.AddSelectors(list)
	}
	return rs
}

// Update rebuilds the aggregate from the engine's active sheets when dirty.
func (g *CSSGlobalRuleSet) Update(e *Engine) {
	if !g.dirty {
		return
	}
	g.features.Clear()
	g.features.Merge(e.uaRuleSet.Features())
	g.hasFullscreenUAStyle = e.fullscreenUA
	if g.watchedSelectors != nil {
		g.features.Merge(g.watchedSelectors.Features())
	}
	if g.documentRulesSelectors != nil {
		g.features.Merge(g.documentRulesSelectors.Features())
	}
	e.CollectFeaturesTo(g.features)
	g.dirty = false

	e.metrics.RecordGlobalRuleSetRebuild()
	g.log.Debug("rebuilt global rule set",
		zap.Uint32("max_direct_adjacent", g.features.MaxDirectAdjacentSelectors()),
		zap.Bool("fullscreen", g.hasFullscreenUAStyle))
}

// Dispose drops everything and leaves the aggregate dirty.
func (g *CSSGlobalRuleSet) Dispose() {
	g.features.Clear()
	g.watchedSelectors = nil
	g.documentRulesSelectors = nil
	g.hasFullscreenUAStyle = false
	g.dirty = true
}
