// Package style implements the style engine of a document: it keeps the
// active stylesheets of every tree scope, aggregates their selector
// features, turns DOM mutations into scheduled invalidation sets and
// recomputes the style of the elements those sets reach.
package style

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/chrisuehlinger/invalidator/css"
	"github.com/chrisuehlinger/invalidator/dom"
	"github.com/chrisuehlinger/invalidator/invalidation"
)

// Options configures an Engine.
type Options struct {
	Features css.FeatureSetOptions

	// HasInvalidation enables :has() invalidation. When off, documents
	// using :has() are only correct after a full recalc.
	HasInvalidation bool

	// MaxRecalcPasses bounds UpdateStyleAndLayoutTree.
	MaxRecalcPasses int

	// Metrics receives engine counters. Nil means no metrics.
	Metrics MetricsCollector
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Features:        css.DefaultFeatureSetOptions(),
		HasInvalidation: true,
		MaxRecalcPasses: 4,
	}
}

type injectedSheet struct {
	key   string
	sheet *css.StyleSheet
}

// Engine is the style engine of one document. It observes the document and
// schedules invalidation synchronously from every mutation.
type Engine struct {
	doc     *dom.Document
	log     *zap.Logger
	opts    Options
	metrics MetricsCollector

	pending       *invalidation.PendingInvalidations
	globalRuleSet *CSSGlobalRuleSet

	documentCollection *DocumentStyleSheetCollection
	shadowCollections  map[dom.NodeID]*ShadowTreeStyleSheetCollection
	dirtyTreeScopes    map[dom.NodeID]struct{}
	documentScopeDirty bool
	userStyleDirty     bool

	injectedUserSheets    []injectedSheet
	injectedAuthorSheets  []injectedSheet
	activeUserStyleSheets []ActiveStyleSheet

	sheetCache   map[string]*css.StyleSheet
	ruleSetCache map[*css.StyleSheet]*css.RuleSet
	uaRuleSet    *css.RuleSet
	fullscreenUA bool

	styles map[dom.NodeID]*css.ComputedStyle
}

var _ dom.StyleObserver = (*Engine)(nil)

// NewEngine creates the style engine of doc and registers it as the
// document's style observer. Every element starts out needing style.
func NewEngine(doc *dom.Document, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxRecalcPasses <= 0 {
		opts.MaxRecalcPasses = DefaultOptions().MaxRecalcPasses
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetricsCollector{}
	}
	e := &Engine{
		doc:               doc,
		log:               log.Named("style-engine"),
		opts:              opts,
		metrics:           opts.Metrics,
		shadowCollections: make(map[dom.NodeID]*ShadowTreeStyleSheetCollection),
		dirtyTreeScopes:   make(map[dom.NodeID]struct{}),
		sheetCache:        make(map[string]*css.StyleSheet),
		ruleSetCache:      make(map[*css.StyleSheet]*css.RuleSet),
		styles:            make(map[dom.NodeID]*css.ComputedStyle),
	}
	e.pending = invalidation.NewPendingInvalidations(doc, e, log)
	e.globalRuleSet = NewCSSGlobalRuleSet(opts.Features, log)
	e.documentCollection = NewDocumentStyleSheetCollection(doc, e.log)
	e.uaRuleSet = css.NewRuleSetFromSheet(css.UserAgentStyleSheet(), opts.Features, log)

	e.forEachShadowIncludingNode(doc.Root(), func(n dom.NodeID) {
		if e.isStyleElement(n) {
			e.AddStyleSheetCandidateNode(n)
		}
	})
	e.documentScopeDirty = true
	doc.SetNeedsStyleRecalc(doc.Root(), dom.SubtreeStyleChange)
	doc.AddObserver(e)
	return e
}

// Document returns the observed document.
func (e *Engine) Document() *dom.Document { return e.doc }

// PendingInvalidations returns the accumulator drained by InvalidateStyle.
func (e *Engine) PendingInvalidations() *invalidation.PendingInvalidations { return e.pending }

// GlobalRuleSet returns the aggregate of the active sheets.
func (e *Engine) GlobalRuleSet() *CSSGlobalRuleSet { return e.globalRuleSet }

// Close detaches the engine from its document and drops all state.
func (e *Engine) Close() {
	e.doc.RemoveObserver(e)
	e.pending.Clear()
	e.globalRuleSet.Dispose()
	clear(e.styles)
}

// RuleFeatureSet returns the aggregate feature set of the active sheets,
// rebuilding it first when stale.
func (e *Engine) RuleFeatureSet() *css.RuleFeatureSet {
	if e.globalRuleSet.IsDirty() {
		e.globalRuleSet.Update(e)
	}
	return e.globalRuleSet.Features()
}

// HasRulesForId reports whether some active selector uses id.
func (e *Engine) HasRulesForId(id string) bool {
	return e.RuleFeatureSet().HasSelectorForID(id)
}

// UsesFirstLineRules reports whether some active selector uses ::first-line.
func (e *Engine) UsesFirstLineRules() bool { return e.RuleFeatureSet().UsesFirstLineRules() }

// MaxDirectAdjacentSelectors returns the longest run of "+" combinators in
// the active selectors.
func (e *Engine) MaxDirectAdjacentSelectors() uint32 {
	return e.RuleFeatureSet().MaxDirectAdjacentSelectors()
}

// InvalidatesParts reports whether some active selector uses ::part().
func (e *Engine) InvalidatesParts() bool { return e.RuleFeatureSet().InvalidatesParts() }

// ShouldSkipInvalidationFor reports whether mutations on el need no
// invalidation: it is not in the document, or style recalc is running.
func (e *Engine) ShouldSkipInvalidationFor(el dom.NodeID) bool {
	if !e.doc.IsConnected(el) {
		return true
	}
	return e.doc.InStyleRecalc()
}

// IsSubtreeAndSiblingsStyleDirty reports whether a pending subtree recalc
// already covers el and its siblings.
func (e *Engine) IsSubtreeAndSiblingsStyleDirty(el dom.NodeID) bool {
	doc := e.doc
	if doc.StyleChange(doc.Root()) == dom.SubtreeStyleChange {
		return true
	}
	root := doc.DocumentElement()
	if !root.Valid() || doc.StyleChange(root) == dom.SubtreeStyleChange {
		return true
	}
	parent := doc.Parent(el)
	if !parent.Valid() {
		return true
	}
	return doc.StyleChange(parent) == dom.SubtreeStyleChange
}

// Stylesheet bookkeeping.

func (e *Engine) isStyleElement(n dom.NodeID) bool {
	return e.doc.IsElement(n) && e.doc.LocalName(n) == "style"
}

// sheetForNode returns the sheet of a <style> element. Sheets are shared
// between elements with the same text.
func (e *Engine) sheetForNode(node dom.NodeID) *css.StyleSheet {
	text := e.doc.TextContent(node)
	if sheet, ok := e.sheetCache[text]; ok {
		return sheet
	}
	sheet, err := css.ParseStyleSheet(text, css.OriginAuthor)
	if err != nil {
		e.log.Warn("invalid stylesheet", zap.String("node", e.doc.Describe(node)), zap.Error(err))
	}
	e.sheetCache[text] = sheet
	return sheet
}

// ruleSetForSheet returns the rule set compiled from sheet, building it once.
func (e *Engine) ruleSetForSheet(sheet *css.StyleSheet) *css.RuleSet {
	if rs, ok := e.ruleSetCache[sheet]; ok {
		return rs
	}
	rs := css.NewRuleSetFromSheet(sheet, e.opts.Features, e.log)
	e.ruleSetCache[sheet] = rs
	return rs
}

// collectionFor returns the collection of a tree scope, creating shadow
// tree collections on demand.
func (e *Engine) collectionFor(scope dom.NodeID) *TreeScopeStyleSheetCollection {
	if scope == e.doc.Root() {
		return &e.documentCollection.TreeScopeStyleSheetCollection
	}
	if !e.doc.IsShadowRoot(scope) {
		return nil
	}
	c, ok := e.shadowCollections[scope]
	if !ok {
		c = NewShadowTreeStyleSheetCollection(e.doc, scope, e.log)
		e.shadowCollections[scope] = c
	}
	return &c.TreeScopeStyleSheetCollection
}

// AddStyleSheetCandidateNode registers a connected <style> element with the
// collection of its tree scope.
func (e *Engine) AddStyleSheetCandidateNode(node dom.NodeID) {
	if !e.doc.IsConnected(node) {
		return
	}
	scope := e.doc.TreeScope(node)
	c := e.collectionFor(scope)
	if c == nil {
		return
	}
	c.AddStyleSheetCandidateNode(node)
	e.MarkTreeScopeDirty(scope)
}

// RemoveStyleSheetCandidateNode unregisters a <style> element from the
// collection of scope, the tree scope it was removed from.
func (e *Engine) RemoveStyleSheetCandidateNode(node, scope dom.NodeID) {
	c := e.collectionFor(scope)
	if c == nil {
		return
	}
	c.RemoveStyleSheetCandidateNode(node)
	e.MarkTreeScopeDirty(scope)
}

// ModifiedStyleSheetCandidateNode is called when the text of a registered
// <style> element changed.
func (e *Engine) ModifiedStyleSheetCandidateNode(node dom.NodeID) {
	if !e.doc.IsConnected(node) {
		return
	}
	scope := e.doc.TreeScope(node)
	if c := e.collectionFor(scope); c != nil {
		c.MarkSheetListDirty()
	}
	e.MarkTreeScopeDirty(scope)
}

// AdoptedStyleSheetAdded appends sheet to the adopted sheets of scope, the
// document node or a shadow root.
func (e *Engine) AdoptedStyleSheetAdded(scope dom.NodeID, sheet *css.StyleSheet) {
	c := e.collectionFor(scope)
	if c == nil || sheet == nil {
		return
	}
	c.AdoptStyleSheet(sheet)
	e.MarkTreeScopeDirty(scope)
}

// AdoptedStyleSheetRemoved removes sheet from the adopted sheets of scope.
func (e *Engine) AdoptedStyleSheetRemoved(scope dom.NodeID, sheet *css.StyleSheet) {
	c := e.collectionFor(scope)
	if c == nil || !c.RemoveAdoptedStyleSheet(sheet) {
		return
	}
	e.MarkTreeScopeDirty(scope)
}

// InjectUserSheet adds a user origin sheet under key.
func (e *Engine) InjectUserSheet(key string, sheet *css.StyleSheet) {
	e.injectedUserSheets = append(e.injectedUserSheets, injectedSheet{key: key, sheet: sheet})
	e.MarkUserStyleDirty()
}

// InjectAuthorSheet adds an author sheet under key. Injected author sheets
// precede the sheets of the document.
func (e *Engine) InjectAuthorSheet(key string, sheet *css.StyleSheet) {
	e.injectedAuthorSheets = append(e.injectedAuthorSheets, injectedSheet{key: key, sheet: sheet})
	e.MarkDocumentDirty()
}

// RemoveInjectedSheet removes the last sheet injected under key with the
// given origin.
func (e *Engine) RemoveInjectedSheet(key string, origin css.CascadeOrigin) {
	list := &e.injectedAuthorSheets
	if origin == css.OriginUser {
		list = &e.injectedUserSheets
	}
	for i := len(*list) - 1; i >= 0; i-- {
		if (*list)[i].key != key {
			continue
		}
		*list = slices.Delete(*list, i, i+1)
		if origin == css.OriginUser {
			e.MarkUserStyleDirty()
		} else {
			e.MarkDocumentDirty()
		}
		return
	}
}

// SetWatchedSelectors replaces the selectors watched by the embedder.
func (e *Engine) SetWatchedSelectors(selectors []string) error {
	lists, err := parseSelectorLists(selectors)
	if err != nil {
		return err
	}
	e.globalRuleSet.UpdateWatchedSelectors(lists)
	e.WatchedSelectorsChanged()
	return nil
}

// WatchedSelectorsChanged recomputes the whole document so that the watched
// selectors are evaluated everywhere.
func (e *Engine) WatchedSelectorsChanged() {
	e.globalRuleSet.MarkDirty()
	e.doc.SetNeedsStyleRecalc(e.doc.Root(), dom.SubtreeStyleChange)
}

// SetDocumentRulesSelectors replaces the selectors of document rules.
func (e *Engine) SetDocumentRulesSelectors(selectors []string) error {
	lists, err := parseSelectorLists(selectors)
	if err != nil {
		return err
	}
	e.globalRuleSet.UpdateDocumentRulesSelectors(lists)
	e.doc.SetNeedsStyleRecalc(e.doc.Root(), dom.SubtreeStyleChange)
	return nil
}

func parseSelectorLists(selectors []string) ([]*css.SelectorList, error) {
	lists := make([]*css.SelectorList, 0, len(selectors))
	for _, s := range selectors {
		list, err := css.ParseSelector(s)
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", s, err)
		}
		lists = append(lists, list)
	}
	return lists, nil
}

// MarkDocumentDirty schedules an update of the document scope sheets.
func (e *Engine) MarkDocumentDirty() { e.documentScopeDirty = true }

// MarkTreeScopeDirty schedules an update of the sheets of scope.
func (e *Engine) MarkTreeScopeDirty(scope dom.NodeID) {
	if scope == e.doc.Root() {
		e.MarkDocumentDirty()
		return
	}
	e.dirtyTreeScopes[scope] = struct{}{}
}

// MarkUserStyleDirty schedules an update of the user sheets.
func (e *Engine) MarkUserStyleDirty() { e.userStyleDirty = true }

// NeedsActiveStyleUpdate reports whether some sheet list is stale.
func (e *Engine) NeedsActiveStyleUpdate() bool {
	return e.documentScopeDirty || e.userStyleDirty || len(e.dirtyTreeScopes) > 0
}

// UpdateActiveStyleSheets recollects the sheets of every dirty scope and
// applies the difference to the invalidation state.
func (e *Engine) UpdateActiveStyleSheets() {
	if !e.NeedsActiveStyleUpdate() {
		return
	}
	if e.userStyleDirty {
		e.updateActiveUserStyleSheets()
	}
	if e.documentScopeDirty {
		e.documentCollection.UpdateActiveStyleSheets(e)
	}
	for _, scope := range sortedScopes(e.dirtyTreeScopes) {
		c, ok := e.shadowCollections[scope]
		if !ok {
			continue
		}
		if !e.doc.IsConnected(scope) {
			e.dropShadowCollection(scope)
			continue
		}
		c.UpdateActiveStyleSheets(e)
		if !c.HasStyleSheetCandidateNodes() && !c.HasAdoptedStyleSheets() {
			delete(e.shadowCollections, scope)
		}
	}
	clear(e.dirtyTreeScopes)
	e.documentScopeDirty = false
	e.userStyleDirty = false
}

func (e *Engine) updateActiveUserStyleSheets() {
	sheets := make([]ActiveStyleSheet, 0, len(e.injectedUserSheets))
	for _, injected := range e.injectedUserSheets {
		sheets = append(sheets, ActiveStyleSheet{Sheet: injected.sheet, RuleSet: e.ruleSetForSheet(injected.sheet)})
	}
	e.ApplyUserRuleSetChanges(e.activeUserStyleSheets, sheets)
	e.activeUserStyleSheets = sheets
}

// dropShadowCollection forgets the sheets of a shadow root that left the
// document.
func (e *Engine) dropShadowCollection(scope dom.NodeID) {
	c, ok := e.shadowCollections[scope]
	if !ok {
		return
	}
	if len(c.ActiveStyleSheets()) > 0 {
		e.globalRuleSet.MarkDirty()
	}
	delete(e.shadowCollections, scope)
	delete(e.dirtyTreeScopes, scope)
}

// UpdateActiveStyle brings the active sheets and the aggregate feature set
// up to date.
func (e *Engine) UpdateActiveStyle() {
	e.UpdateActiveStyleSheets()
	if e.globalRuleSet.IsDirty() {
		e.globalRuleSet.Update(e)
	}
}

// CollectFeaturesTo merges the features of the applied user sheets and the
// applied author sheets of every tree scope into features.
func (e *Engine) CollectFeaturesTo(features *css.RuleFeatureSet) {
	seen := make(map[*css.RuleSet]struct{})
	merge := func(sheets []ActiveStyleSheet) {
		for _, s := range sheets {
			if s.RuleSet == nil {
				continue
			}
			if _, ok := seen[s.RuleSet]; ok {
				continue
			}
			seen[s.RuleSet] = struct{}{}
			features.Merge(s.RuleSet.Features())
		}
	}
	merge(e.activeUserStyleSheets)
	merge(e.documentCollection.ActiveStyleSheets())
	for _, scope := range sortedScopes(e.shadowCollections) {
		merge(e.shadowCollections[scope].ActiveStyleSheets())
	}
}

// ensureUAStyleForFullscreen adds the fullscreen sheet to the user agent
// rules the first time an element goes fullscreen.
func (e *Engine) ensureUAStyleForFullscreen() {
	if e.fullscreenUA {
		return
	}
	e.uaRuleSet.AddStyleSheet(css.FullscreenStyleSheet())
	e.fullscreenUA = true
	e.globalRuleSet.MarkDirty()
	e.globalRuleSet.Update(e)
}

func sortedScopes[V any](m map[dom.NodeID]V) []dom.NodeID {
	scopes := make([]dom.NodeID, 0, len(m))
	for s := range m {
		scopes = append(scopes, s)
	}
	slices.Sort(scopes)
	return scopes
}

// forEachShadowIncludingNode visits root and every node below it in tree
// order, entering shadow roots before the light children of their host.
func (e *Engine) forEachShadowIncludingNode(root dom.NodeID, fn func(dom.NodeID)) {
	fn(root)
	if sr := e.doc.ShadowRoot(root); sr.Valid() {
		e.forEachShadowIncludingNode(sr, fn)
	}
	for c := e.doc.FirstChild(root); c.Valid(); c = e.doc.NextSibling(c) {
		e.forEachShadowIncludingNode(c, fn)
	}
}
