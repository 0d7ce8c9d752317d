package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User is the owner of saved snapshots, keyed by email
type User struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

// SnapshotRecord is a persisted snapshot together with whatever drift and
// suggestion output the caller computed for it
type SnapshotRecord struct {
	ID           uuid.UUID       `json:"id"`
	UserID       int64           `json:"-"`
	Stage        Stage           `json:"stage"`
	SnapshotJSON json.RawMessage `json:"snapshotJson"`
	DriftResult  json.RawMessage `json:"driftResult"`
	Suggestions  json.RawMessage `json:"suggestions"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Summary returns the listing view of the record
func (r *SnapshotRecord) Summary() SnapshotSummary {
	return SnapshotSummary{ID: r.ID, CreatedAt: r.CreatedAt, Stage: r.Stage}
}

// SnapshotSummary is the short form returned by listings and by create
type SnapshotSummary struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	Stage     Stage     `json:"stage" db:"stage"`
}
