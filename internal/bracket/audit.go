package bracket

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditResultRecorded AuditAction = "result_recorded"
	AuditResultEdited   AuditAction = "result_edited"
	AuditResultRetried  AuditAction = "result_retried"
)

// AuditEntry is an append-only record of a result write.
type AuditEntry struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	MatchID      uuid.UUID   `db:"match_id" json:"match_id"`
	TournamentID uuid.UUID   `db:"tournament_id" json:"tournament_id"`
	ActorID      *uuid.UUID  `db:"actor_id" json:"actor_id,omitempty"`
	Action       AuditAction `db:"action" json:"action"`
	BeforeState  *string     `db:"before_state" json:"before_state,omitempty"`
	AfterState   string      `db:"after_state" json:"after_state"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}
