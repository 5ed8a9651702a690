package dom

import (
	"errors"
	"fmt"
)

// DOMError represents a DOM exception with a name and message.
type DOMError struct {
	Name    string
	Message string
}

func (e *DOMError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Is matches DOM errors by name so callers can test against the sentinels.
func (e *DOMError) Is(target error) bool {
	var other *DOMError
	if !errors.As(target, &other) {
		return false
	}
	return other.Name == e.Name
}

var (
	// ErrNotFound is returned when a reference node is not a child of the
	// node being mutated.
	ErrNotFound = &DOMError{Name: "NotFoundError"}
	// ErrHierarchy is returned for insertions that would break the tree.
	ErrHierarchy = &DOMError{Name: "HierarchyRequestError"}
	// ErrNotSupported is returned when a shadow root cannot be attached.
	ErrNotSupported = &DOMError{Name: "NotSupportedError"}
)

func notFound(format string, args ...any) error {
	return &DOMError{Name: ErrNotFound.Name, Message: fmt.Sprintf(format, args...)}
}

func hierarchyRequest(format string, args ...any) error {
	return &DOMError{Name: ErrHierarchy.Name, Message: fmt.Sprintf(format, args...)}
}

func notSupported(format string, args ...any) error {
	return &DOMError{Name: ErrNotSupported.Name, Message: fmt.Sprintf(format, args...)}
}
