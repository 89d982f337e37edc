package bracket

import (
	"time"

	"github.com/google/uuid"
)

// Team is a bracket entrant. Rotating rounds create a fresh set of teams per
// round; fixed brackets keep RoundNumber nil and redraft only the members.
type Team struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	Name         string    `db:"name" json:"name"`
	Seed         int       `db:"seed" json:"seed"`
	RoundNumber  *int      `db:"round_number" json:"round_number,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type TeamMember struct {
	TeamID        uuid.UUID `db:"team_id" json:"team_id"`
	RoundNumber   int       `db:"round_number" json:"round_number"`
	ParticipantID uuid.UUID `db:"participant_id" json:"participant_id"`
	DisplayName   *string   `db:"display_name" json:"display_name,omitempty"`
}
