// Package matching scores name similarity for the player resolver.
package matching

import (
	"strings"

	"github.com/Ramsey-B/clover/pkg/normalize"
)

// Scorer computes name similarity scores in [0, 1]
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Similarity scores two raw names. The score classes are part of the
// resolver's contract and feed directly into its thresholds:
//
//	1.0  identical compact keys
//	0.8  one compact key contains the other ("Pat Mahomes" vs "Patrick Mahomes" does not, "Mahomes" vs "Patrick Mahomes" does)
//	else shared-token count over the larger token count
func (s *Scorer) Similarity(a, b string) float64 {
	keyA := normalize.Key(a)
	keyB := normalize.Key(b)

	if keyA == "" || keyB == "" {
		return 0
	}

	if keyA == keyB {
		return 1.0
	}

	if strings.Contains(keyA, keyB) || strings.Contains(keyB, keyA) {
		return 0.8
	}

	return tokenOverlap(normalize.Tokens(a), normalize.Tokens(b))
}

func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}

	shared := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if set[t] && !seen[t] {
			shared++
			seen[t] = true
		}
	}

	max := len(a)
	if len(b) > max {
		max = len(b)
	}

	return float64(shared) / float64(max)
}
