package dom

import "strings"

// PseudoState names an element state that dynamic pseudo-classes observe.
// Some states are toggled directly (hover, focus); others are derived from
// attributes and only serve as change notifications.
type PseudoState uint32

const (
	StateHover PseudoState = 1 << iota
	StateActive
	StateFocus
	StateFocusVisible
	StateFocusWithin
	StateChecked
	StateDisabled
	StateIndeterminate
	StateTarget
	StateVisited
	StateLink
	StateInvalid
	StateRequired
	StateReadOnly
	StatePlaceholderShown
	StateOpen
	StateFullscreen
	StatePlaying
	StateAutofill
	StateLang
	StateDir
)

var stateNames = []struct {
	state PseudoState
	name  string
}{
	{StateHover, "hover"},
	{StateActive, "active"},
	{StateFocus, "focus"},
	{StateFocusVisible, "focus-visible"},
	{StateFocusWithin, "focus-within"},
	{StateChecked, "checked"},
	{StateDisabled, "disabled"},
	{StateIndeterminate, "indeterminate"},
	{StateTarget, "target"},
	{StateVisited, "visited"},
	{StateLink, "link"},
	{StateInvalid, "invalid"},
	{StateRequired, "required"},
	{StateReadOnly, "read-only"},
	{StatePlaceholderShown, "placeholder-shown"},
	{StateOpen, "open"},
	{StateFullscreen, "fullscreen"},
	{StatePlaying, "playing"},
	{StateAutofill, "autofill"},
	{StateLang, "lang"},
	{StateDir, "dir"},
}

func (s PseudoState) String() string {
	var parts []string
	for _, e := range stateNames {
		if s&e.state != 0 {
			parts = append(parts, e.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParsePseudoState maps a state name as printed by String back to its bit.
func ParsePseudoState(name string) (PseudoState, bool) {
	for _, e := range stateNames {
		if e.name == name {
			return e.state, true
		}
	}
	return 0, false
}

// attributeStates lists attributes whose presence or value feeds the
// pseudo-classes of the element itself.
var attributeStates = map[string]PseudoState{
	"disabled":    StateDisabled,
	"checked":     StateChecked,
	"required":    StateRequired,
	"readonly":    StateReadOnly,
	"placeholder": StatePlaceholderShown,
	"value":       StatePlaceholderShown,
	"open":        StateOpen,
	"popover":     StateOpen,
	"href":        StateLink,
	"selected":    StateChecked,
	"type":        StateChecked | StateReadOnly,
}

// inheritedAttributeStates lists attributes that are inherited by the
// pseudo-classes of every descendant.
var inheritedAttributeStates = map[string]PseudoState{
	"lang": StateLang,
	"dir":  StateDir,
}

// PseudoStateBits returns the directly toggled states of an element.
func (d *Document) PseudoStateBits(id NodeID) PseudoState {
	if el := d.element(id); el != nil {
		return el.state
	}
	return 0
}

// HasPseudoState reports whether all bits of state are toggled on.
func (d *Document) HasPseudoState(id NodeID, state PseudoState) bool {
	return d.PseudoStateBits(id)&state == state
}

// SetPseudoState toggles state on or off and notifies observers when the
// value actually changes.
func (d *Document) SetPseudoState(id NodeID, state PseudoState, on bool) {
	el := d.element(id)
	if el == nil {
		return
	}
	next := el.state &^ state
	if on {
		next |= state
	}
	if next == el.state {
		return
	}
	el.state = next
	d.notify(func(o StyleObserver) { o.PseudoStateChanged(id, state) })
}
