package models

import "time"

// Player statuses
const (
	PlayerStatusActive   = "active"
	PlayerStatusInjured  = "injured"
	PlayerStatusInactive = "inactive"
	PlayerStatusRetired  = "retired"
)

// Positions tracked by the valuation product
const (
	PositionQB  = "QB"
	PositionRB  = "RB"
	PositionWR  = "WR"
	PositionTE  = "TE"
	PositionK   = "K"
	PositionDEF = "DEF"
	PositionDL  = "DL"
	PositionLB  = "LB"
	PositionDB  = "DB"
)

// ResolvableStatuses are the player statuses eligible for fuzzy matching.
// Retired players stay in the table but are never offered as candidates.
var ResolvableStatuses = []string{PlayerStatusActive, PlayerStatusInjured, PlayerStatusInactive}

// CanonicalPlayer is the authoritative player record. Clover reads these;
// the roster sync service owns writes.
type CanonicalPlayer struct {
	ID             string    `json:"id" db:"id"`
	DisplayName    string    `json:"display_name" db:"display_name"`
	NormalizedName string    `json:"normalized_name" db:"normalized_name"`
	Position       string    `json:"position" db:"position"`
	Team           *string   `json:"team,omitempty" db:"team"`
	Status         string    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// AliasEntry maps a known alternate spelling to a canonical player.
// Curated by operators; read-only for the resolver.
type AliasEntry struct {
	ID              string    `json:"id" db:"id"`
	NormalizedAlias string    `json:"normalized_alias" db:"normalized_alias"`
	PlayerID        string    `json:"player_id" db:"player_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
