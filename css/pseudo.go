package css

import "strings"

// PseudoType identifies a pseudo-class or pseudo-element.
type PseudoType uint8

const (
	PseudoUnknown PseudoType = iota

	// Structural
	PseudoEmpty
	PseudoFirstChild
	PseudoLastChild
	PseudoOnlyChild
	PseudoFirstOfType
	PseudoLastOfType
	PseudoOnlyOfType
	PseudoNthChild
	PseudoNthLastChild
	PseudoNthOfType
	PseudoNthLastOfType

	// Links and user action
	PseudoLink
	PseudoVisited
	PseudoAnyLink
	PseudoAutofill
	PseudoHover
	PseudoDrag
	PseudoFocus
	PseudoFocusVisible
	PseudoFocusWithin
	PseudoActive

	// Form state
	PseudoChecked
	PseudoEnabled
	PseudoDefault
	PseudoDisabled
	PseudoOptional
	PseudoPlaceholderShown
	PseudoRequired
	PseudoReadOnly
	PseudoReadWrite
	PseudoState
	PseudoUserInvalid
	PseudoUserValid
	PseudoValid
	PseudoInvalid
	PseudoIndeterminate
	PseudoInRange
	PseudoOutOfRange

	// Document, media and element state
	PseudoTarget
	PseudoLang
	PseudoDir
	PseudoFullscreen
	PseudoPaused
	PseudoPlaying
	PseudoDefined
	PseudoOpen
	PseudoClosed
	PseudoPopoverOpen
	PseudoModal
	PseudoRoot
	PseudoScope

	// Selector-list and shadow pseudo-classes
	PseudoIs
	PseudoWhere
	PseudoNot
	PseudoHas
	PseudoAny
	PseudoHost
	PseudoHostContext
	PseudoWindowInactive

	// Pseudo-elements
	PseudoFirstLine
	PseudoFirstLetter
	PseudoBefore
	PseudoAfter
	PseudoMarker
	PseudoPlaceholder
	PseudoSelection
	PseudoBackdrop
	PseudoSlotted
	PseudoPart
	PseudoWebKitCustomElement

	pseudoTypeCount
)

var pseudoClassNames = map[string]PseudoType{
	"empty":             PseudoEmpty,
	"first-child":       PseudoFirstChild,
	"last-child":        PseudoLastChild,
	"only-child":        PseudoOnlyChild,
	"first-of-type":     PseudoFirstOfType,
	"last-of-type":      PseudoLastOfType,
	"only-of-type":      PseudoOnlyOfType,
	"nth-child":         PseudoNthChild,
	"nth-last-child":    PseudoNthLastChild,
	"nth-of-type":       PseudoNthOfType,
	"nth-last-of-type":  PseudoNthLastOfType,
	"link":              PseudoLink,
	"visited":           PseudoVisited,
	"any-link":          PseudoAnyLink,
	"-webkit-any-link":  PseudoAnyLink,
	"autofill":          PseudoAutofill,
	"-webkit-autofill":  PseudoAutofill,
	"hover":             PseudoHover,
	"-webkit-drag":      PseudoDrag,
	"focus":             PseudoFocus,
	"focus-visible":     PseudoFocusVisible,
	"focus-within":      PseudoFocusWithin,
	"active":            PseudoActive,
	"checked":           PseudoChecked,
	"enabled":           PseudoEnabled,
	"default":           PseudoDefault,
	"disabled":          PseudoDisabled,
	"optional":          PseudoOptional,
	"placeholder-shown": PseudoPlaceholderShown,
	"required":          PseudoRequired,
	"read-only":         PseudoReadOnly,
	"read-write":        PseudoReadWrite,
	"state":             PseudoState,
	"user-invalid":      PseudoUserInvalid,
	"user-valid":        PseudoUserValid,
	"valid":             PseudoValid,
	"invalid":           PseudoInvalid,
	"indeterminate":     PseudoIndeterminate,
	"in-range":          PseudoInRange,
	"out-of-range":      PseudoOutOfRange,
	"target":            PseudoTarget,
	"lang":              PseudoLang,
	"dir":               PseudoDir,
	"fullscreen":        PseudoFullscreen,
	"paused":            PseudoPaused,
	"playing":           PseudoPlaying,
	"defined":           PseudoDefined,
	"open":              PseudoOpen,
	"closed":            PseudoClosed,
	"popover-open":      PseudoPopoverOpen,
	"modal":             PseudoModal,
	"root":              PseudoRoot,
	"scope":             PseudoScope,
	"is":                PseudoIs,
	"where":             PseudoWhere,
	"not":               PseudoNot,
	"has":               PseudoHas,
	"-webkit-any":       PseudoAny,
	"host":              PseudoHost,
	"host-context":      PseudoHostContext,
	"window-inactive":   PseudoWindowInactive,
}

var pseudoElementNames = map[string]PseudoType{
	"first-line":   PseudoFirstLine,
	"first-letter": PseudoFirstLetter,
	"before":       PseudoBefore,
	"after":        PseudoAfter,
	"marker":       PseudoMarker,
	"placeholder":  PseudoPlaceholder,
	"selection":    PseudoSelection,
	"backdrop":     PseudoBackdrop,
	"slotted":      PseudoSlotted,
	"part":         PseudoPart,
}

// Legacy pseudo-elements that may be written with a single colon.
var legacyPseudoElements = map[string]bool{
	"before":       true,
	"after":        true,
	"first-line":   true,
	"first-letter": true,
}

var pseudoTypeNames [pseudoTypeCount]string

func init() {
	pseudoClassNames["-webkit-full-screen"] = PseudoFullscreen
	for name, t := range pseudoClassNames {
		if strings.HasPrefix(name, "-webkit-") && t != PseudoAny && t != PseudoDrag {
			continue
		}
		pseudoTypeNames[t] = name
	}
	for name, t := range pseudoElementNames {
		pseudoTypeNames[t] = name
	}
	pseudoTypeNames[PseudoWebKitCustomElement] = "-webkit-custom"
	pseudoTypeNames[PseudoUnknown] = "unknown"
}

// LookupPseudoClass returns the pseudo-class type for a lowercase name.
func LookupPseudoClass(name string) PseudoType {
	return pseudoClassNames[name]
}

// LookupPseudoElement returns the pseudo-element type for a lowercase name.
// Names with a vendor prefix are custom pseudo-elements exposed by user agent
// shadow trees.
func LookupPseudoElement(name string) PseudoType {
	if t, ok := pseudoElementNames[name]; ok {
		return t
	}
	if strings.HasPrefix(name, "-webkit-") || strings.HasPrefix(name, "-internal-") {
		return PseudoWebKitCustomElement
	}
	return PseudoUnknown
}

func (t PseudoType) String() string {
	if int(t) < len(pseudoTypeNames) {
		return pseudoTypeNames[t]
	}
	return "unknown"
}

// IsElement reports whether t is a pseudo-element.
func (t PseudoType) IsElement() bool {
	return t >= PseudoFirstLine && t < pseudoTypeCount
}

// IsLogicalCombination reports whether t takes a selector list that is
// matched against the same element (:is, :where, :not and the legacy any).
func (t PseudoType) IsLogicalCombination() bool {
	switch t {
	case PseudoIs, PseudoWhere, PseudoNot, PseudoAny:
		return true
	}
	return false
}

// IsNth reports whether t is one of the index based structural pseudos.
func (t PseudoType) IsNth() bool {
	switch t {
	case PseudoFirstChild, PseudoLastChild, PseudoOnlyChild,
		PseudoFirstOfType, PseudoLastOfType, PseudoOnlyOfType,
		PseudoNthChild, PseudoNthLastChild, PseudoNthOfType, PseudoNthLastOfType:
		return true
	}
	return false
}

// IsHost reports whether t is :host or :host-context.
func (t PseudoType) IsHost() bool {
	return t == PseudoHost || t == PseudoHostContext
}
