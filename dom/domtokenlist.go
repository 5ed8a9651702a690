package dom

import (
	"fmt"
	"slices"
	"strings"
)

// TokenValidationError represents an error during token validation.
type TokenValidationError struct {
	Type    string // "SyntaxError" or "InvalidCharacterError"
	Message string
}

func (e *TokenValidationError) Error() string {
	return e.Message
}

// validateToken checks if a token is valid for a token list.
func validateToken(token string) *TokenValidationError {
	if token == "" {
		return &TokenValidationError{
			Type:    "SyntaxError",
			Message: "The token provided must not be empty.",
		}
	}
	if strings.ContainsAny(token, " \t\n\r\f") {
		return &TokenValidationError{
			Type:    "InvalidCharacterError",
			Message: fmt.Sprintf("The token provided ('%s') contains HTML space characters, which are not valid in tokens.", token),
		}
	}
	return nil
}

// DOMTokenList is a live view of a space-separated attribute such as class
// or part. Every write goes through SetAttribute, so observers see one
// attribute change per call.
type DOMTokenList struct {
	doc      *Document
	element  NodeID
	attrName string
}

func newDOMTokenList(doc *Document, element NodeID, attrName string) *DOMTokenList {
	return &DOMTokenList{doc: doc, element: element, attrName: attrName}
}

func (dtl *DOMTokenList) tokens() []string {
	v, _ := dtl.doc.GetAttribute(dtl.element, dtl.attrName)
	return splitTokens(v)
}

// setTokens writes tokens back. The attribute is only created when there is
// something to store.
func (dtl *DOMTokenList) setTokens(tokens []string) {
	if len(tokens) > 0 {
		dtl.doc.SetAttribute(dtl.element, dtl.attrName, strings.Join(tokens, " "))
		return
	}
	if dtl.doc.HasAttribute(dtl.element, dtl.attrName) {
		dtl.doc.SetAttribute(dtl.element, dtl.attrName, "")
	}
}

// Length returns the number of tokens.
func (dtl *DOMTokenList) Length() int {
	return len(dtl.tokens())
}

// Item returns the token at index, or "" when out of range.
func (dtl *DOMTokenList) Item(index int) string {
	tokens := dtl.tokens()
	if index < 0 || index >= len(tokens) {
		return ""
	}
	return tokens[index]
}

// Contains returns false for invalid tokens instead of failing.
func (dtl *DOMTokenList) Contains(token string) bool {
	if validateToken(token) != nil {
		return false
	}
	return slices.Contains(dtl.tokens(), token)
}

// Add appends the tokens that are not present yet.
func (dtl *DOMTokenList) Add(tokens ...string) error {
	for _, token := range tokens {
		if err := validateToken(token); err != nil {
			return err
		}
	}
	current := dtl.tokens()
	for _, token := range tokens {
		if !slices.Contains(current, token) {
			current = append(current, token)
		}
	}
	dtl.setTokens(current)
	return nil
}

// Remove drops the given tokens.
func (dtl *DOMTokenList) Remove(tokens ...string) error {
	for _, token := range tokens {
		if err := validateToken(token); err != nil {
			return err
		}
	}
	current := slices.DeleteFunc(dtl.tokens(), func(t string) bool {
		return slices.Contains(tokens, t)
	})
	dtl.setTokens(current)
	return nil
}

// Toggle flips token, or forces it on or off when force is given. It
// returns whether the token is present afterwards.
func (dtl *DOMTokenList) Toggle(token string, force ...bool) (bool, error) {
	if err := validateToken(token); err != nil {
		return false, err
	}
	contains := dtl.Contains(token)
	want := !contains
	if len(force) > 0 {
		want = force[0]
	}
	switch {
	case want && !contains:
		return true, dtl.Add(token)
	case !want && contains:
		return false, dtl.Remove(token)
	}
	return want, nil
}

// Replace swaps token for newToken in place.
func (dtl *DOMTokenList) Replace(token, newToken string) (bool, error) {
	if err := validateToken(token); err != nil {
		return false, err
	}
	if err := validateToken(newToken); err != nil {
		return false, err
	}
	current := dtl.tokens()
	idx := slices.Index(current, token)
	if idx < 0 {
		return false, nil
	}
	if token == newToken {
		return true, nil
	}
	if slices.Contains(current, newToken) {
		current = slices.Delete(current, idx, idx+1)
	} else {
		current[idx] = newToken
	}
	dtl.setTokens(current)
	return true, nil
}

// Value returns the raw attribute value.
func (dtl *DOMTokenList) Value() string {
	v, _ := dtl.doc.GetAttribute(dtl.element, dtl.attrName)
	return v
}
