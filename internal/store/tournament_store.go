package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const (
	insertMatchQuery = `INSERT INTO matches (id, tournament_id, bracket_side, round_number, match_order, match_number,
		team_1_id, team_2_id, score_1, score_2, maps, status, winner_slot, winner_next_match_id, loser_next_match_id, is_bye)
		VALUES (:id, :tournament_id, :bracket_side, :round_number, :match_order, :match_number,
		:team_1_id, :team_2_id, :score_1, :score_2, :maps, :status, :winner_slot, :winner_next_match_id, :loser_next_match_id, :is_bye)`

	// Forward edges and slots are never touched by a result update
	updateMatchResultQuery = `UPDATE matches SET
		score_1 = :score_1,
		score_2 = :score_2,
		maps = :maps,
		status = :status,
		winner_slot = :winner_slot,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = :id`

	matchOrdering = "ORDER BY round_number ASC, CASE bracket_side WHEN 'winners' THEN 0 WHEN 'rotation' THEN 0 WHEN 'losers' THEN 1 ELSE 2 END, match_order ASC"
)

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, owner_id, name, status, tournament_type, score_requirement)
        VALUES (:id, :owner_id, :name, :status, :tournament_type, :score_requirement)`, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := s.db.GetContext(ctx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := tx.GetContext(ctx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]bracket.Tournament, error) {
	var tournaments []bracket.Tournament
	err := s.db.SelectContext(ctx, &tournaments, "SELECT * FROM tournaments WHERE owner_id = ? ORDER BY created_at DESC", ownerID)
	return tournaments, err
}

func (s *TournamentStore) UpdateTournamentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status bracket.TournamentStatus) error {
	_, err := tx.ExecContext(ctx, "UPDATE tournaments SET status = ? WHERE id = ?", status, id)
	return err
}

func (s *TournamentStore) CreateTeams(ctx context.Context, tx *sqlx.Tx, teams []bracket.Team) error {
	if len(teams) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO teams (id, tournament_id, name, seed, round_number)
            VALUES (:id, :tournament_id, :name, :seed, :round_number)`, teams)
	return err
}

func (s *TournamentStore) GetTeams(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Team, error) {
	var teams []bracket.Team
	err := s.db.SelectContext(ctx, &teams, "SELECT * FROM teams WHERE tournament_id = ? ORDER BY round_number ASC, seed ASC", tournamentID)
	return teams, err
}

// GetFixedTeamsTx returns the teams that persist for the whole tournament.
func (s *TournamentStore) GetFixedTeamsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Team, error) {
	var teams []bracket.Team
	err := tx.SelectContext(ctx, &teams, "SELECT * FROM teams WHERE tournament_id = ? AND round_number IS NULL ORDER BY seed ASC", tournamentID)
	return teams, err
}

func (s *TournamentStore) GetTeam(ctx context.Context, id uuid.UUID) (*bracket.Team, error) {
	var team bracket.Team
	err := s.db.GetContext(ctx, &team, "SELECT * FROM teams WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *TournamentStore) DeleteRoundTeams(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, round int) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM teams WHERE tournament_id = ? AND round_number = ?", tournamentID, round)
	return err
}

// DeleteTeams removes every team of the tournament, fixed or per round.
func (s *TournamentStore) DeleteTeams(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM teams WHERE tournament_id = ?", tournamentID)
	return err
}

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, insertMatchQuery, matches)
	return err
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := s.db.SelectContext(ctx, &matches, "SELECT * FROM matches WHERE tournament_id = ? "+matchOrdering, tournamentID)
	return matches, err
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := tx.SelectContext(ctx, &matches, "SELECT * FROM matches WHERE tournament_id = ? "+matchOrdering, tournamentID)
	return matches, err
}

func (s *TournamentStore) GetRoundMatches(ctx context.Context, tournamentID uuid.UUID, round int) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := s.db.SelectContext(ctx, &matches, "SELECT * FROM matches WHERE tournament_id = ? AND round_number = ? "+matchOrdering, tournamentID, round)
	return matches, err
}

func (s *TournamentStore) GetRoundMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, round int) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := tx.SelectContext(ctx, &matches, "SELECT * FROM matches WHERE tournament_id = ? AND round_number = ? "+matchOrdering, tournamentID, round)
	return matches, err
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := s.db.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := tx.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// GetNextPendingMatch returns the earliest ready match without a result, or nil.
func (s *TournamentStore) GetNextPendingMatch(ctx context.Context, tournamentID uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := s.db.GetContext(ctx, &match, `SELECT * FROM matches
		WHERE tournament_id = ? AND status = ? AND is_bye = 0 AND team_1_id IS NOT NULL AND team_2_id IS NOT NULL
		`+matchOrdering+` LIMIT 1`, tournamentID, bracket.MatchPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) UpdateMatchResult(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	_, err := tx.NamedExecContext(ctx, updateMatchResultQuery, match)
	return err
}

func slotColumn(slot int) (string, error) {
	switch slot {
	case 1:
		return "team_1_id", nil
	case 2:
		return "team_2_id", nil
	}
	return "", fmt.Errorf("invalid slot %d", slot)
}

// ClaimSlot writes teamID into the slot only if the slot is still empty.
// It reports whether this call filled the slot.
func (s *TournamentStore) ClaimSlot(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, slot int, teamID uuid.UUID) (bool, error) {
	col, err := slotColumn(slot)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE matches SET "+col+" = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND "+col+" IS NULL",
		teamID, matchID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseSlot empties the slot only if it still holds teamID.
func (s *TournamentStore) ReleaseSlot(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, slot int, teamID uuid.UUID) (bool, error) {
	col, err := slotColumn(slot)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE matches SET "+col+" = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND "+col+" = ?",
		matchID, teamID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompleteBye records the only entrant of a bye match as its winner.
func (s *TournamentStore) CompleteBye(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, winnerSlot int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE matches SET status = ?, winner_slot = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND is_bye = 1",
		bracket.MatchCompleted, winnerSlot, matchID)
	return err
}

// ResetBye reopens an auto-completed bye after its only entrant was retracted.
func (s *TournamentStore) ResetBye(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE matches SET status = ?, winner_slot = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND is_bye = 1",
		bracket.MatchPending, matchID)
	return err
}

func (s *TournamentStore) DeleteMatches(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int64, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE tournament_id = ?", tournamentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TournamentStore) DeleteRoundMatches(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, round int) (int64, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE tournament_id = ? AND round_number = ?", tournamentID, round)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// NextMatchNumberTx returns the next tournament-wide match sequence number.
func (s *TournamentStore) NextMatchNumberTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, "SELECT COALESCE(MAX(match_number), 0) + 1 FROM matches WHERE tournament_id = ?", tournamentID)
	return n, err
}
