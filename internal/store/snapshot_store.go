package store

import (
	"context"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SnapshotStore keeps one working document per (tournament, round) plus the
// Full Mix settings of the tournament.
type SnapshotStore struct {
	db *sqlx.DB
}

func NewSnapshotStore(db *sqlx.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

const (
	upsertSettingsQuery = `INSERT INTO round_settings (tournament_id, team_size, wins_to_win, rating_mode, bracket_mode, milestone_mode)
		VALUES (:tournament_id, :team_size, :wins_to_win, :rating_mode, :bracket_mode, :milestone_mode)
		ON CONFLICT (tournament_id) DO UPDATE SET
		team_size = excluded.team_size,
		wins_to_win = excluded.wins_to_win,
		rating_mode = excluded.rating_mode,
		bracket_mode = excluded.bracket_mode,
		milestone_mode = excluded.milestone_mode`

	upsertSnapshotQuery = `INSERT INTO round_snapshots (tournament_id, round_number, document, approved_teams, approved_matches)
		VALUES (:tournament_id, :round_number, :document, :approved_teams, :approved_matches)
		ON CONFLICT (tournament_id, round_number) DO UPDATE SET
		document = excluded.document,
		approved_teams = excluded.approved_teams,
		approved_matches = excluded.approved_matches,
		updated_at = CURRENT_TIMESTAMP`
)

func (s *SnapshotStore) SaveSettings(ctx context.Context, tx *sqlx.Tx, settings *bracket.RoundSettings) error {
	_, err := tx.NamedExecContext(ctx, upsertSettingsQuery, settings)
	return err
}

func (s *SnapshotStore) GetSettings(ctx context.Context, tournamentID uuid.UUID) (*bracket.RoundSettings, error) {
	var settings bracket.RoundSettings
	err := s.db.GetContext(ctx, &settings, "SELECT * FROM round_settings WHERE tournament_id = ?", tournamentID)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *SnapshotStore) GetSettingsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (*bracket.RoundSettings, error) {
	var settings bracket.RoundSettings
	err := tx.GetContext(ctx, &settings, "SELECT * FROM round_settings WHERE tournament_id = ?", tournamentID)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *SnapshotStore) UpsertSnapshot(ctx context.Context, tx *sqlx.Tx, snapshot *bracket.RoundSnapshot) error {
	_, err := tx.NamedExecContext(ctx, upsertSnapshotQuery, snapshot)
	return err
}

func (s *SnapshotStore) GetSnapshot(ctx context.Context, tournamentID uuid.UUID, round int) (*bracket.RoundSnapshot, error) {
	var snapshot bracket.RoundSnapshot
	err := s.db.GetContext(ctx, &snapshot, "SELECT * FROM round_snapshots WHERE tournament_id = ? AND round_number = ?", tournamentID, round)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *SnapshotStore) GetSnapshotTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, round int) (*bracket.RoundSnapshot, error) {
	var snapshot bracket.RoundSnapshot
	err := tx.GetContext(ctx, &snapshot, "SELECT * FROM round_snapshots WHERE tournament_id = ? AND round_number = ?", tournamentID, round)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *SnapshotStore) GetSnapshots(ctx context.Context, tournamentID uuid.UUID) ([]bracket.RoundSnapshot, error) {
	var snapshots []bracket.RoundSnapshot
	err := s.db.SelectContext(ctx, &snapshots, "SELECT * FROM round_snapshots WHERE tournament_id = ? ORDER BY round_number ASC", tournamentID)
	return snapshots, err
}

func (s *SnapshotStore) GetSnapshotsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.RoundSnapshot, error) {
	var snapshots []bracket.RoundSnapshot
	err := tx.SelectContext(ctx, &snapshots, "SELECT * FROM round_snapshots WHERE tournament_id = ? ORDER BY round_number ASC", tournamentID)
	return snapshots, err
}

// MaxRound returns the highest round with a snapshot, or 0.
func (s *SnapshotStore) MaxRound(ctx context.Context, tournamentID uuid.UUID) (int, error) {
	var round int
	err := s.db.GetContext(ctx, &round, "SELECT COALESCE(MAX(round_number), 0) FROM round_snapshots WHERE tournament_id = ?", tournamentID)
	return round, err
}

func (s *SnapshotStore) MaxRoundTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var round int
	err := tx.GetContext(ctx, &round, "SELECT COALESCE(MAX(round_number), 0) FROM round_snapshots WHERE tournament_id = ?", tournamentID)
	return round, err
}

func (s *SnapshotStore) DeleteSnapshots(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM round_snapshots WHERE tournament_id = ?", tournamentID)
	return err
}

func (s *SnapshotStore) DeleteSettings(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM round_settings WHERE tournament_id = ?", tournamentID)
	return err
}
