package store

import (
	"context"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RosterStore persists the Full Mix pool and the per-round team rosters.
type RosterStore struct {
	db *sqlx.DB
}

func NewRosterStore(db *sqlx.DB) *RosterStore {
	return &RosterStore{db: db}
}

const (
	insertParticipantQuery = `INSERT INTO participants (id, tournament_id, user_id, name, rating, status)
		VALUES (:id, :tournament_id, :user_id, :name, :rating, :status)`

	insertTeamMemberQuery = `INSERT INTO team_members (team_id, round_number, participant_id, display_name)
		VALUES (:team_id, :round_number, :participant_id, :display_name)`

	// Joined through teams so that rosters of deleted participants still resolve
	tournamentMembersQuery = `SELECT tm.team_id, tm.round_number, tm.participant_id, tm.display_name
		FROM team_members tm
		JOIN teams t ON t.id = tm.team_id
		WHERE t.tournament_id = ?
		ORDER BY tm.round_number ASC, t.seed ASC`
)

func (s *RosterStore) CreateParticipants(ctx context.Context, tx *sqlx.Tx, participants []bracket.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, insertParticipantQuery, participants)
	return err
}

func (s *RosterStore) GetParticipants(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Participant, error) {
	var participants []bracket.Participant
	err := s.db.SelectContext(ctx, &participants, "SELECT * FROM participants WHERE tournament_id = ? ORDER BY created_at ASC, name ASC", tournamentID)
	return participants, err
}

func (s *RosterStore) GetParticipantsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Participant, error) {
	var participants []bracket.Participant
	err := tx.SelectContext(ctx, &participants, "SELECT * FROM participants WHERE tournament_id = ? ORDER BY created_at ASC, name ASC", tournamentID)
	return participants, err
}

// GetActiveParticipantsTx returns the eligible pool for the next draft.
func (s *RosterStore) GetActiveParticipantsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Participant, error) {
	var participants []bracket.Participant
	err := tx.SelectContext(ctx, &participants,
		"SELECT * FROM participants WHERE tournament_id = ? AND status = ? ORDER BY name ASC, id ASC",
		tournamentID, bracket.ParticipantActive)
	return participants, err
}

func (s *RosterStore) GetParticipantTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Participant, error) {
	var p bracket.Participant
	err := tx.GetContext(ctx, &p, "SELECT * FROM participants WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *RosterStore) UpdateParticipantStatusTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, ids []uuid.UUID, status bracket.ParticipantStatus) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("UPDATE participants SET status = ? WHERE tournament_id = ? AND id IN (?)", status, tournamentID, ids)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
	return err
}

func (s *RosterStore) DeleteParticipant(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM participants WHERE id = ?", id)
	return err
}

func (s *RosterStore) AddTeamMembers(ctx context.Context, tx *sqlx.Tx, members []bracket.TeamMember) error {
	if len(members) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, insertTeamMemberQuery, members)
	return err
}

// ReplaceRoundMembers drops the round's roster of every given team and
// writes members in its place.
func (s *RosterStore) ReplaceRoundMembers(ctx context.Context, tx *sqlx.Tx, teamIDs []uuid.UUID, round int, members []bracket.TeamMember) error {
	if len(teamIDs) > 0 {
		query, args, err := sqlx.In("DELETE FROM team_members WHERE round_number = ? AND team_id IN (?)", round, teamIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return err
		}
	}
	return s.AddTeamMembers(ctx, tx, members)
}

func (s *RosterStore) GetTeamMembersTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID, round int) ([]bracket.TeamMember, error) {
	var members []bracket.TeamMember
	err := tx.SelectContext(ctx, &members,
		"SELECT * FROM team_members WHERE team_id = ? AND round_number = ? ORDER BY display_name ASC",
		teamID, round)
	return members, err
}

// GetTournamentMembers returns every roster row of every round.
func (s *RosterStore) GetTournamentMembers(ctx context.Context, tournamentID uuid.UUID) ([]bracket.TeamMember, error) {
	var members []bracket.TeamMember
	err := s.db.SelectContext(ctx, &members, tournamentMembersQuery, tournamentID)
	return members, err
}

func (s *RosterStore) GetTournamentMembersTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.TeamMember, error) {
	var members []bracket.TeamMember
	err := tx.SelectContext(ctx, &members, tournamentMembersQuery, tournamentID)
	return members, err
}

