package domain

import (
	"strings"

	dErrors "famtree/pkg/domain-errors"
)

// Visibility controls which viewers may see a person in a tree view.
// Invariant: only the three declared levels grant anything; every other value
// (including the empty string) is treated as hidden.
type Visibility string

const (
	VisibilityPublic    Visibility = "PUBLIC"
	VisibilityPrivate   Visibility = "PRIVATE"
	VisibilityProtected Visibility = "PROTECTED"
)

var validVisibilities = map[Visibility]bool{
	VisibilityPublic:    true,
	VisibilityPrivate:   true,
	VisibilityProtected: true,
}

// ParseVisibility constructs a Visibility from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(strings.ToUpper(strings.TrimSpace(s)))
	if v == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "visibility cannot be empty")
	}
	if !v.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid visibility")
	}
	return v, nil
}

func (v Visibility) IsValid() bool {
	return validVisibilities[v]
}
