package models

import (
	"encoding/json"
	"time"
)

// Raw row statuses
const (
	RawRowStatusPending   = "pending"
	RawRowStatusProcessed = "processed"
	RawRowStatusFailed    = "failed"
)

// Batch metadata statuses
const (
	BatchStatusPending   = "pending"
	BatchStatusProcessed = "processed"
	BatchStatusFailed    = "failed"
)

// ArchivedBatch is the compressed, checksummed copy of a raw import batch.
// The checksum covers the serialized payload before compression. Originals
// are never deleted; replaying only bumps the counters.
type ArchivedBatch struct {
	BatchID           string     `json:"batch_id" db:"batch_id"`
	Source            string     `json:"source" db:"source"`
	TargetTable       string     `json:"target_table" db:"target_table"`
	CompressedPayload []byte     `json:"-" db:"compressed_payload"`
	RowCount          int        `json:"row_count" db:"row_count"`
	OriginalSize      int        `json:"original_size" db:"original_size"`
	CompressedSize    int        `json:"compressed_size" db:"compressed_size"`
	Checksum          string     `json:"checksum" db:"checksum"`
	CanReplay         bool       `json:"can_replay" db:"can_replay"`
	DisabledReason    *string    `json:"disabled_reason,omitempty" db:"disabled_reason"`
	ReplayCount       int        `json:"replay_count" db:"replay_count"`
	LastReplayedAt    *time.Time `json:"last_replayed_at,omitempty" db:"last_replayed_at"`
	ArchivedAt        time.Time  `json:"archived_at" db:"archived_at"`
}

// RawRow is one staged import row awaiting pipeline processing
type RawRow struct {
	ID          string          `json:"id" db:"id"`
	BatchID     string          `json:"batch_id" db:"batch_id"`
	Source      string          `json:"source" db:"source"`
	TargetTable string          `json:"target_table" db:"target_table"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	Status      string          `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// BatchMeta records one ingestion batch. ReplayOf links a replayed batch
// back to the archived original it was rebuilt from.
type BatchMeta struct {
	BatchID     string    `json:"batch_id" db:"batch_id"`
	Source      string    `json:"source" db:"source"`
	TargetTable string    `json:"target_table" db:"target_table"`
	RowCount    int       `json:"row_count" db:"row_count"`
	Status      string    `json:"status" db:"status"`
	ReplayOf    *string   `json:"replay_of,omitempty" db:"replay_of"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// MarkNonReplayableRequest disables replay for an archived batch
type MarkNonReplayableRequest struct {
	Reason string `json:"reason" validate:"required"`
}
