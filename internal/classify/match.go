package classify

import (
	"slices"
	"strings"

	"segcut/internal/config"
	"segcut/internal/label"
)

// Matcher maps oracle output to a category by configured tokens.
type Matcher struct {
	a []string
	b []string
}

// NewMatcher normalizes the configured tokens. Empty lists fall back to the
// category names.
func NewMatcher(tokens config.TokenConfig) Matcher {
	m := Matcher{a: normalizeTokens(tokens.A), b: normalizeTokens(tokens.B)}
	if len(m.a) == 0 {
		m.a = []string{"a"}
	}
	if len(m.b) == 0 {
		m.b = []string{"b"}
	}
	return m
}

func normalizeTokens(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Match scans output from its last line upwards and returns the category of
// the first line that is exactly one known token, optionally prefixed with
// "Prediction:". Lines naming tokens of both categories are skipped.
func (m Matcher) Match(output string) (label.Label, bool) {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		tok := strings.ToLower(strings.TrimSpace(lines[i]))
		if tok == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(tok, "prediction:"); ok {
			tok = strings.TrimSpace(rest)
		}
		inA := slices.Contains(m.a, tok)
		inB := slices.Contains(m.b, tok)
		switch {
		case inA && !inB:
			return label.A, true
		case inB && !inA:
			return label.B, true
		}
	}
	return label.Unknown, false
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
