package models

// Match types, in order of resolution precedence
const (
	MatchTypeExact = "exact"
	MatchTypeAlias = "alias"
	MatchTypeFuzzy = "fuzzy"
	MatchTypeNone  = "none"
)

// MatchContext carries a raw name plus whatever hints the source provides.
// Position and team are optional; source identifies the feed ("sleeper",
// "sportsdata", ...).
type MatchContext struct {
	RawName  string  `json:"raw_name" validate:"required"`
	Position *string `json:"position,omitempty"`
	Team     *string `json:"team,omitempty"`
	Source   string  `json:"source" validate:"required"`
}

// ResolutionResult is the outcome of resolving one MatchContext. An
// unresolved name is a normal result, not an error.
type ResolutionResult struct {
	PlayerID   *string `json:"player_id,omitempty"`
	Confidence float64 `json:"confidence"`
	MatchType  string  `json:"match_type"`
	Resolved   bool    `json:"resolved"`
	Ambiguous  bool    `json:"ambiguous,omitempty"`
}

// AutoApply reports whether the match is confident enough to apply without
// human review. The resolver accepts matches at a lower floor; callers that
// write through automatically must check this instead.
func (r ResolutionResult) AutoApply(threshold float64) bool {
	return r.Resolved && r.Confidence >= threshold
}
