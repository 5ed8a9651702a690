package style

import (
	"slices"

	"go.uber.org/zap"

	"github.com/chrisuehlinger/invalidator/css"
	"github.com/chrisuehlinger/invalidator/dom"
)

// ActiveStyleSheet pairs a sheet with the rule set compiled from it.
type ActiveStyleSheet struct {
	Sheet   *css.StyleSheet
	RuleSet *css.RuleSet
}

// ActiveSheetsChange classifies the difference between two active sheet
// lists.
type ActiveSheetsChange uint8

const (
	NoActiveSheetsChanged ActiveSheetsChange = iota
	ActiveSheetsAppended
	ActiveSheetsChanged
)

func (c ActiveSheetsChange) String() string {
	switch c {
	case NoActiveSheetsChanged:
		return "unchanged"
	case ActiveSheetsAppended:
		return "appended"
	}
	return "changed"
}

// CompareActiveStyleSheets returns how newSheets differs from oldSheets and
// the rule sets that were added or removed. Sheets are compared by
// identity, so an unchanged sheet keeps its rule set out of the result.
func CompareActiveStyleSheets(oldSheets, newSheets []ActiveStyleSheet) (ActiveSheetsChange, []*css.RuleSet) {
	var changed []*css.RuleSet
	add := func(rs *css.RuleSet) {
		if rs != nil && !slices.Contains(changed, rs) {
			changed = append(changed, rs)
		}
	}

	index := 0
	for ; index < min(len(oldSheets), len(newSheets)) && oldSheets[index].Sheet == newSheets[index].Sheet; index++ {
		if oldSheets[index].RuleSet == newSheets[index].RuleSet {
			continue
		}
		add(newSheets[index].RuleSet)
		add(oldSheets[index].RuleSet)
	}

	if index == len(oldSheets) {
		if index == len(newSheets) {
			if len(changed) == 0 {
				return NoActiveSheetsChanged, nil
			}
			return ActiveSheetsChanged, changed
		}
		for _, s := range newSheets[index:] {
			add(s.RuleSet)
		}
		return ActiveSheetsAppended, changed
	}

	if index == len(newSheets) {
		for _, s := range oldSheets[index:] {
			add(s.RuleSet)
		}
		if len(changed) == 0 {
			return NoActiveSheetsChanged, nil
		}
		return ActiveSheetsChanged, changed
	}

	// Mixed change: every pair present on only one side contributes its
	// rule set.
	remaining := make(map[ActiveStyleSheet]int)
	for _, s := range oldSheets[index:] {
		remaining[s]++
	}
	for _, s := range newSheets[index:] {
		if remaining[s] > 0 {
			remaining[s]--
			continue
		}
		add(s.RuleSet)
	}
	for _, s := range oldSheets[index:] {
		if remaining[s] > 0 {
			remaining[s]--
			add(s.RuleSet)
		}
	}
	if len(changed) == 0 {
		return NoActiveSheetsChanged, nil
	}
	return ActiveSheetsChanged, changed
}

// TreeScopeStyleSheetCollection tracks the sheets of one tree scope: the
// <style> elements in it and the sheets adopted by it.
type TreeScopeStyleSheetCollection struct {
	doc   *dom.Document
	scope dom.NodeID
	log   *zap.Logger

	candidates     []dom.NodeID
	adopted        []*css.StyleSheet
	active         []ActiveStyleSheet
	sheetListDirty bool
}

func newTreeScopeStyleSheetCollection(doc *dom.Document, scope dom.NodeID, log *zap.Logger) TreeScopeStyleSheetCollection {
	return TreeScopeStyleSheetCollection{doc: doc, scope: scope, log: log, sheetListDirty: true}
}

// Scope returns the document or shadow root node the collection serves.
func (c *TreeScopeStyleSheetCollection) Scope() dom.NodeID { return c.scope }

// AddStyleSheetCandidateNode registers a <style> element of the scope.
func (c *TreeScopeStyleSheetCollection) AddStyleSheetCandidateNode(node dom.NodeID) {
	if slices.Contains(c.candidates, node) {
		return
	}
	c.candidates = append(c.candidates, node)
	c.MarkSheetListDirty()
}

// RemoveStyleSheetCandidateNode forgets a <style> element.
func (c *TreeScopeStyleSheetCollection) RemoveStyleSheetCandidateNode(node dom.NodeID) {
	c.candidates = slices.DeleteFunc(c.candidates, func(n dom.NodeID) bool { return n == node })
	c.MarkSheetListDirty()
}

// HasStyleSheetCandidateNodes reports whether any <style> element is
// registered.
func (c *TreeScopeStyleSheetCollection) HasStyleSheetCandidateNodes() bool {
	return len(c.candidates) > 0
}

// AdoptStyleSheet appends sheet to the adopted sheets of the scope.
func (c *TreeScopeStyleSheetCollection) AdoptStyleSheet(sheet *css.StyleSheet) {
	c.adopted = append(c.adopted, sheet)
	c.MarkSheetListDirty()
}

// RemoveAdoptedStyleSheet removes the last adoption of sheet. It reports
// whether the sheet was adopted.
func (c *TreeScopeStyleSheetCollection) RemoveAdoptedStyleSheet(sheet *css.StyleSheet) bool {
	i := slices.Index(c.adopted, sheet)
	for j := i + 1; i >= 0 && j < len(c.adopted); j++ {
		if c.adopted[j] == sheet {
			i = j
		}
	}
	if i < 0 {
		return false
	}
	c.adopted = slices.Delete(c.adopted, i, i+1)
	c.MarkSheetListDirty()
	return true
}

// HasAdoptedStyleSheets reports whether the scope adopted any sheet.
func (c *TreeScopeStyleSheetCollection) HasAdoptedStyleSheets() bool { return len(c.adopted) > 0 }

// MarkSheetListDirty makes the next update recollect the sheets.
func (c *TreeScopeStyleSheetCollection) MarkSheetListDirty() { c.sheetListDirty = true }

// IsSheetListDirty reports whether the sheets need to be recollected.
func (c *TreeScopeStyleSheetCollection) IsSheetListDirty() bool { return c.sheetListDirty }

// ActiveStyleSheets returns the sheets applied by the last update.
func (c *TreeScopeStyleSheetCollection) ActiveStyleSheets() []ActiveStyleSheet { return c.active }

// collectStyleSheets returns the <style> sheets in tree order followed by
// the adopted sheets.
func (c *TreeScopeStyleSheetCollection) collectStyleSheets(e *Engine) []ActiveStyleSheet {
	c.sortCandidates()
	var sheets []ActiveStyleSheet
	for _, node := range c.candidates {
		sheet := e.sheetForNode(node)
		if sheet == nil {
			continue
		}
		sheets = append(sheets, ActiveStyleSheet{Sheet: sheet, RuleSet: e.ruleSetForSheet(sheet)})
	}
	for _, sheet := range c.adopted {
		sheets = append(sheets, ActiveStyleSheet{Sheet: sheet, RuleSet: e.ruleSetForSheet(sheet)})
	}
	return sheets
}

// sortCandidates puts the candidate nodes in tree order and drops nodes
// that left the scope.
func (c *TreeScopeStyleSheetCollection) sortCandidates() {
	order := make(map[dom.NodeID]int, len(c.candidates))
	pos := 0
	for n := c.doc.FirstChild(c.scope); n.Valid(); n = c.doc.Next(n, c.scope) {
		order[n] = pos
		pos++
	}
	c.candidates = slices.DeleteFunc(c.candidates, func(n dom.NodeID) bool {
		_, ok := order[n]
		return !ok
	})
	slices.SortFunc(c.candidates, func(a, b dom.NodeID) int { return order[a] - order[b] })
}

func (c *TreeScopeStyleSheetCollection) applyActiveStyleSheets(e *Engine, sheets []ActiveStyleSheet) {
	e.ApplyRuleSetChanges(c.scope, c.active, sheets)
	c.active = sheets
	c.sheetListDirty = false
}

// DocumentStyleSheetCollection is the collection of the document scope. It
// also carries the injected author sheets, which precede the document's
// own sheets.
type DocumentStyleSheetCollection struct {
	TreeScopeStyleSheetCollection
}

// NewDocumentStyleSheetCollection creates the document collection of doc.
func NewDocumentStyleSheetCollection(doc *dom.Document, log *zap.Logger) *DocumentStyleSheetCollection {
	return &DocumentStyleSheetCollection{newTreeScopeStyleSheetCollection(doc, doc.Root(), log)}
}

// UpdateActiveStyleSheets recollects the sheets and hands the difference to
// the engine.
func (c *DocumentStyleSheetCollection) UpdateActiveStyleSheets(e *Engine) {
	var sheets []ActiveStyleSheet
	for _, injected := range e.injectedAuthorSheets {
		sheets = append(sheets, ActiveStyleSheet{Sheet: injected.sheet, RuleSet: e.ruleSetForSheet(injected.sheet)})
	}
	sheets = append(sheets, c.collectStyleSheets(e)...)
	c.applyActiveStyleSheets(e, sheets)
}

// ShadowTreeStyleSheetCollection is the collection of a shadow root.
type ShadowTreeStyleSheetCollection struct {
	TreeScopeStyleSheetCollection
}

// NewShadowTreeStyleSheetCollection creates the collection of root.
func NewShadowTreeStyleSheetCollection(doc *dom.Document, root dom.NodeID, log *zap.Logger) *ShadowTreeStyleSheetCollection {
	return &ShadowTreeStyleSheetCollection{newTreeScopeStyleSheetCollection(doc, root, log)}
}

// UpdateActiveStyleSheets recollects the sheets and hands the difference to
// the engine.
func (c *ShadowTreeStyleSheetCollection) UpdateActiveStyleSheets(e *Engine) {
	c.applyActiveStyleSheets(e, c.collectStyleSheets(e))
}
