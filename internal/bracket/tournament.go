package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentDraft     TournamentStatus = "draft"
	TournamentStarted   TournamentStatus = "started"
	TournamentCompleted TournamentStatus = "completed"
)

type TournamentType string

const (
	SingleElimination TournamentType = "single"
	DoubleElimination TournamentType = "double"
	FullMix           TournamentType = "full_mix"
)

type Tournament struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	OwnerID          uuid.UUID        `db:"owner_id" json:"owner_id"`
	Name             string           `db:"name" json:"name"`
	Status           TournamentStatus `db:"status" json:"status"`
	Type             TournamentType   `db:"tournament_type" json:"type"`
	ScoreRequirement int              `db:"score_requirement" json:"score_requirement"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

func (t *Tournament) IsFullMix() bool {
	return t.Type == FullMix
}

// IsOver reports whether no further rounds or results are accepted.
func (t *Tournament) IsOver() bool {
	return t.Status == TournamentCompleted
}
