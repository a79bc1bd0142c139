// Package label defines the two content categories a chunk can be assigned
// and the Unknown value recorded when classification fails.
package label

import (
	"fmt"
	"strings"
)

// Label is the classification outcome for one chunk.
type Label uint8

const (
	Unknown Label = iota
	A
	B
)

// String returns the token used in audit logs and export paths.
func (l Label) String() string {
	switch l {
	case A:
		return "A"
	case B:
		return "B"
	default:
		return "unknown"
	}
}

// Known reports whether l is a concrete category.
func (l Label) Known() bool {
	return l == A || l == B
}

// Other returns the opposite category. Unknown has no opposite.
func (l Label) Other() (Label, bool) {
	switch l {
	case A:
		return B, true
	case B:
		return A, true
	default:
		return Unknown, false
	}
}

// Parse accepts a category name ("A", "b") or the unknown marker.
func Parse(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a":
		return A, nil
	case "b":
		return B, nil
	case "unknown", "none", "":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("unrecognized label %q", s)
}

// MustCategory parses s and fails unless it names A or B.
func MustCategory(s string) (Label, error) {
	l, err := Parse(s)
	if err != nil {
		return Unknown, err
	}
	if !l.Known() {
		return Unknown, fmt.Errorf("label %q is not a category", s)
	}
	return l, nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
