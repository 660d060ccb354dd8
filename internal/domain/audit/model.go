package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event maps to the audit_event table: one row per lifecycle transition or
// result capture, recording who did what to which entity.
type Event struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Actor      string    `db:"actor" json:"actor"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   uuid.UUID `db:"entity_id" json:"entity_id"`
	Outcome    string    `db:"outcome" json:"outcome"`
	Detail     *string   `db:"detail" json:"detail,omitempty"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// Outcome values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
