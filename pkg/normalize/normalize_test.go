package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple name", input: "Justin Jefferson", expected: "justinjefferson"},
		{name: "punctuated initials", input: "A.J. Brown", expected: "ajbrown"},
		{name: "no punctuation initials", input: "AJ Brown", expected: "ajbrown"},
		{name: "apostrophe", input: "Ja'Marr Chase", expected: "jamarrchase"},
		{name: "hyphenated", input: "Amon-Ra St. Brown", expected: "amonrastbrown"},
		{name: "suffix kept", input: "Kenneth Walker III", expected: "kennethwalkeriii"},
		{name: "digits kept", input: "D3 Defense", expected: "d3defense"},
		{name: "extra whitespace", input: "  Tyreek   Hill  ", expected: "tyreekhill"},
		{name: "empty", input: "", expected: ""},
		{name: "punctuation only", input: "...---", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Key(tt.input))
		})
	}
}

func TestKeyIdempotent(t *testing.T) {
	inputs := []string{"A.J. Brown", "Ja'Marr Chase", "Patrick Mahomes II", ""}
	for _, in := range inputs {
		once := Key(in)
		assert.Equal(t, once, Key(once), "Key should be idempotent for %q", in)
	}
}

func TestTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "two words", input: "Justin Jefferson", expected: []string{"justin", "jefferson"}},
		{name: "initials stay one token", input: "A.J. Brown", expected: []string{"aj", "brown"}},
		{name: "abbreviated first name", input: "J. Smith", expected: []string{"j", "smith"}},
		{name: "empty", input: "", expected: []string{}},
		{name: "punctuation only word dropped", input: "Smith ...", expected: []string{"smith"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokens(tt.input))
		})
	}
}
