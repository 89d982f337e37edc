package bracket

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BracketMode string

const (
	BracketRotating BracketMode = "rotating"
	BracketSingle   BracketMode = "single"
	BracketDouble   BracketMode = "double"
)

type MilestoneMode string

const (
	MilestoneFinalists MilestoneMode = "finalists"
	MilestoneEliminate MilestoneMode = "eliminate"
)

type MilestoneOutcome string

const (
	OutcomeNone       MilestoneOutcome = "none"
	OutcomeFinalists  MilestoneOutcome = "finalists"
	OutcomeEliminated MilestoneOutcome = "eliminated"
	OutcomeExtraRound MilestoneOutcome = "extra_round"
)

// RoundSettings configures a Full Mix tournament.
type RoundSettings struct {
	TournamentID  uuid.UUID     `db:"tournament_id" json:"tournament_id"`
	TeamSize      int           `db:"team_size" json:"team_size"`
	WinsToWin     int           `db:"wins_to_win" json:"wins_to_win"`
	RatingMode    bool          `db:"rating_mode" json:"rating_mode"`
	BracketMode   BracketMode   `db:"bracket_mode" json:"bracket_mode"`
	MilestoneMode MilestoneMode `db:"milestone_mode" json:"milestone_mode"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// FixedTeams reports whether teams persist for the whole tournament.
func (s *RoundSettings) FixedTeams() bool {
	return s.BracketMode == BracketSingle || s.BracketMode == BracketDouble
}

// MilestoneSize is the finalist (or elimination) count, twice the team size.
func (s *RoundSettings) MilestoneSize() int {
	k := 2 * s.TeamSize
	if k < 2 {
		k = 2
	}
	return k
}

type RoundState string

const (
	RoundEmpty           RoundState = "empty"
	RoundTeamsDrafted    RoundState = "teams_drafted"
	RoundTeamsApproved   RoundState = "teams_approved"
	RoundMatchesApproved RoundState = "matches_approved"
	RoundCompleted       RoundState = "round_completed"
)

// RoundSnapshot is the per-round working document of a Full Mix tournament.
type RoundSnapshot struct {
	TournamentID    uuid.UUID     `db:"tournament_id" json:"tournament_id"`
	RoundNumber     int           `db:"round_number" json:"round_number"`
	Document        RoundDocument `db:"document" json:"document"`
	ApprovedTeams   bool          `db:"approved_teams" json:"approved_teams"`
	ApprovedMatches bool          `db:"approved_matches" json:"approved_matches"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

func (s *RoundSnapshot) State() RoundState {
	switch {
	case s == nil:
		return RoundEmpty
	case s.ApprovedMatches && s.Document.Metadata.Completed:
		return RoundCompleted
	case s.ApprovedMatches:
		return RoundMatchesApproved
	case s.ApprovedTeams:
		return RoundTeamsApproved
	case len(s.Document.Preview) > 0:
		return RoundTeamsDrafted
	}
	return RoundEmpty
}

type RoundDocument struct {
	Teams        []DraftTeam   `json:"teams"`
	Preview      []DraftTeam   `json:"preview,omitempty"`
	PairingDraft []Pairing     `json:"pairing_draft,omitempty"`
	Matches      []RoundMatch  `json:"matches"`
	Standings    []Standing    `json:"standings"`
	Metadata     RoundMetadata `json:"metadata"`
}

func (d RoundDocument) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *RoundDocument) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = RoundDocument{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported type for round document: %T", src)
	}
	*d = RoundDocument{}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, d)
}

// DraftTeam is a proposed or approved roster. ID is set once persisted.
type DraftTeam struct {
	ID      *uuid.UUID    `json:"id,omitempty"`
	Name    string        `json:"name"`
	Members []RosterEntry `json:"members"`
}

type RosterEntry struct {
	Ref    MemberRef `json:"ref"`
	Name   string    `json:"name,omitempty"`
	Rating int       `json:"rating,omitempty"`
}

// UnmarshalJSON accepts both {"ref": .., "name": ..} and a bare member
// reference in any of its legacy shapes.
func (e *RosterEntry) UnmarshalJSON(data []byte) error {
	var obj struct {
		Ref    *MemberRef `json:"ref"`
		Name   string     `json:"name"`
		Rating int        `json:"rating"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Ref != nil {
		*e = RosterEntry{Ref: *obj.Ref, Name: obj.Name, Rating: obj.Rating}
		return nil
	}

	var ref MemberRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return err
	}
	*e = RosterEntry{Ref: ref, Name: obj.Name, Rating: obj.Rating}
	return nil
}

// Pairing holds two indices into RoundDocument.Teams.
type Pairing [2]int

type RoundMatch struct {
	MatchID uuid.UUID  `json:"match_id"`
	Team1ID *uuid.UUID `json:"team_1_id,omitempty"`
	Team2ID *uuid.UUID `json:"team_2_id,omitempty"`
	Team1   string     `json:"team_1"`
	Team2   string     `json:"team_2"`
}

type RoundMetadata struct {
	Outcome            MilestoneOutcome `json:"outcome,omitempty"`
	Finalists          []MemberRef      `json:"finalists,omitempty"`
	Eliminated         []MemberRef      `json:"eliminated,omitempty"`
	MilestoneConfirmed bool             `json:"milestone_confirmed,omitempty"`
	Completed          bool             `json:"completed,omitempty"`
	Reshuffles         int              `json:"reshuffles,omitempty"`
}

// MilestonePending reports whether a milestone split has been decided but not
// yet confirmed.
func (m RoundMetadata) MilestonePending() bool {
	return !m.MilestoneConfirmed && (m.Outcome == OutcomeFinalists || m.Outcome == OutcomeEliminated)
}

// AddEliminated records refs once each.
func (m *RoundMetadata) AddEliminated(refs ...MemberRef) {
	seen := make(map[MemberRef]bool, len(m.Eliminated))
	for _, r := range m.Eliminated {
		seen[r] = true
	}
	for _, r := range refs {
		if !seen[r] {
			m.Eliminated = append(m.Eliminated, r)
			seen[r] = true
		}
	}
}

// RemoveEliminated drops refs from the eliminated list.
func (m *RoundMetadata) RemoveEliminated(refs ...MemberRef) {
	drop := make(map[MemberRef]bool, len(refs))
	for _, r := range refs {
		drop[r] = true
	}
	kept := m.Eliminated[:0]
	for _, r := range m.Eliminated {
		if !drop[r] {
			kept = append(kept, r)
		}
	}
	m.Eliminated = kept
}
