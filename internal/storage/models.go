package storage

import (
	"time"

	"github.com/google/uuid"
)

// CommandRecord is one row of command execution history.
type CommandRecord struct {
	ID         uuid.UUID  `json:"id"`
	StationID  string     `json:"station_id"`
	CommandID  string     `json:"command_id"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Outcome    string     `json:"outcome,omitempty"` // complete | stopped | aborted
}

// SnapshotRecord is one published machine snapshot, persisted for
// diagnosis.
type SnapshotRecord struct {
	ID        uuid.UUID `json:"id"`
	StationID string    `json:"station_id"`
	State     string    `json:"state"`
	ActiveID  string    `json:"active_id,omitempty"`
	Queued    []string  `json:"queued"`
	CreatedAt time.Time `json:"created_at"`
}
