package bracket

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchCompleted MatchStatus = "completed"
)

type BracketSide string

const (
	WinnersSide  BracketSide = "winners"
	LosersSide   BracketSide = "losers"
	FinalsSide   BracketSide = "finals"
	RotationSide BracketSide = "rotation"
)

// MapScore is the per-map result of a multi-map series.
type MapScore struct {
	Name   string `json:"name,omitempty"`
	Score1 int    `json:"score_1" validate:"gte=0"`
	Score2 int    `json:"score_2" validate:"gte=0"`
}

// MapScores is stored as a JSON array in a TEXT column.
type MapScores []MapScore

func (m MapScores) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *MapScores) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported type for map scores: %T", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Wins counts the maps won by each side. Drawn maps count for neither.
func (m MapScores) Wins() (int, int) {
	var w1, w2 int
	for _, ms := range m {
		switch {
		case ms.Score1 > ms.Score2:
			w1++
		case ms.Score2 > ms.Score1:
			w2++
		}
	}
	return w1, w2
}

// Equal compares two map lists; nil and empty are the same.
func (m MapScores) Equal(o MapScores) bool {
	if len(m) != len(o) {
		return false
	}
	for i := range m {
		if m[i] != o[i] {
			return false
		}
	}
	return true
}

func (m MapScores) anyScored() bool {
	for _, ms := range m {
		if ms.Score1 != 0 || ms.Score2 != 0 {
			return true
		}
	}
	return false
}

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Position in the tournament for reconstructing the view
	BracketSide BracketSide `db:"bracket_side" json:"bracket_side"`
	RoundNumber int         `db:"round_number" json:"round_number"`
	MatchOrder  int         `db:"match_order" json:"match_order"`
	MatchNumber int         `db:"match_number" json:"match_number"`

	Team1ID *uuid.UUID `db:"team_1_id" json:"team_1_id"`
	Team2ID *uuid.UUID `db:"team_2_id" json:"team_2_id"`

	Score1 int         `db:"score_1" json:"score_1"`
	Score2 int         `db:"score_2" json:"score_2"`
	Maps   MapScores   `db:"maps" json:"maps"`
	Status MatchStatus `db:"status" json:"status"`

	// Forward edges are written once when the bracket is generated
	WinnerNextMatchID *uuid.UUID `db:"winner_next_match_id" json:"winner_next_match_id,omitempty"`
	LoserNextMatchID  *uuid.UUID `db:"loser_next_match_id" json:"loser_next_match_id,omitempty"`

	WinnerSlot *int `db:"winner_slot" json:"winner_slot"`
	IsBye      bool `db:"is_bye" json:"is_bye"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (m *Match) IsWinner(slot int) bool {
	return utils.Is(m.WinnerSlot, slot)
}

func (m *Match) IsLoser(slot int) bool {
	return m.WinnerSlot != nil && *m.WinnerSlot != slot
}

// IsCompleted reports whether the match carries any recorded outcome.
// A pending status with a non-trivial score still counts as completed.
func (m *Match) IsCompleted() bool {
	if m.WinnerSlot != nil || m.Status == MatchCompleted {
		return true
	}
	if m.Score1 != 0 || m.Score2 != 0 {
		return true
	}
	return m.Maps.anyScored()
}

// TeamInSlot returns the team occupying slot 1 or 2.
func (m *Match) TeamInSlot(slot int) *uuid.UUID {
	switch slot {
	case 1:
		return m.Team1ID
	case 2:
		return m.Team2ID
	}
	return nil
}

// SlotOf returns the slot holding teamID, or 0.
func (m *Match) SlotOf(teamID uuid.UUID) int {
	if utils.Is(m.Team1ID, teamID) {
		return 1
	}
	if utils.Is(m.Team2ID, teamID) {
		return 2
	}
	return 0
}

func (m *Match) HasTeam(teamID uuid.UUID) bool {
	return m.SlotOf(teamID) != 0
}

// IsReady reports whether both slots are filled.
func (m *Match) IsReady() bool {
	return m.Team1ID != nil && m.Team2ID != nil
}

func (m *Match) WinnerID() *uuid.UUID {
	if m.WinnerSlot == nil {
		return nil
	}
	return m.TeamInSlot(*m.WinnerSlot)
}

func (m *Match) LoserID() *uuid.UUID {
	if m.WinnerSlot == nil {
		return nil
	}
	return m.TeamInSlot(3 - *m.WinnerSlot)
}

// Participants lists the teams currently placed in the match.
func (m *Match) Participants() []uuid.UUID {
	ids := make([]uuid.UUID, 0, 2)
	if m.Team1ID != nil {
		ids = append(ids, *m.Team1ID)
	}
	if m.Team2ID != nil {
		ids = append(ids, *m.Team2ID)
	}
	return ids
}

// ScoreLine renders the score as "2-1".
func (m *Match) ScoreLine() string {
	return fmt.Sprintf("%d-%d", m.Score1, m.Score2)
}
