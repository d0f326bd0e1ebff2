// Package normalize produces canonical comparison forms for player names.
// Every lookup key in the resolution pipeline comes through here so that
// "A.J. Brown", "AJ Brown" and "aj brown" land on the same key.
package normalize

import "strings"

// Key collapses a raw name to a single compact token: lower-cased with
// everything outside [a-z0-9] removed. Total and idempotent; an empty or
// all-punctuation input yields "". Callers must never look up an empty key.
func Key(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokens splits a raw name into lower-cased alphanumeric words for
// token-overlap scoring. Punctuation inside a word is dropped rather than
// splitting it, so "A.J." stays one token.
func Tokens(raw string) []string {
	fields := strings.Fields(strings.ToLower(raw))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := Key(f)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
