package models

import "time"

// ValueBundle is one player's computed valuation snapshot. Once sealed by
// the integrity guard these fields must never change; a new epoch produces
// a new bundle.
type ValueBundle struct {
	PlayerID     string    `json:"player_id" db:"player_id"`
	Value        float64   `json:"value" db:"value"`
	Tier         int       `json:"tier" db:"tier"`
	OverallRank  int       `json:"overall_rank" db:"overall_rank"`
	PositionRank int       `json:"position_rank" db:"position_rank"`
	ValueEpoch   int64     `json:"value_epoch" db:"value_epoch"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
