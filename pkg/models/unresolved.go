package models

import "time"

// Unresolved entry statuses
const (
	UnresolvedStatusOpen     = "open"
	UnresolvedStatusResolved = "resolved"
)

// UnresolvedPlayer is a review-queue entry for a name that failed every
// resolution stage. Entries are deduplicated while open and are never
// deleted; resolving flips the status and records the chosen player.
type UnresolvedPlayer struct {
	ID               string     `json:"id" db:"id"`
	RawName          string     `json:"raw_name" db:"raw_name"`
	Position         *string    `json:"position,omitempty" db:"position"`
	Team             *string    `json:"team,omitempty" db:"team"`
	Source           string     `json:"source" db:"source"`
	Status           string     `json:"status" db:"status"`
	ResolvedPlayerID *string    `json:"resolved_player_id,omitempty" db:"resolved_player_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ResolveUnresolvedRequest assigns a canonical player to a review-queue entry
type ResolveUnresolvedRequest struct {
	PlayerID string `json:"player_id" validate:"required,uuid"`
}
