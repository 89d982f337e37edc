package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// eliminates reports whether losing match knocks a team out of a Full Mix
// bracket. Rotating rounds never eliminate; the milestone does.
func eliminates(tournament *bracket.Tournament, match *bracket.Match) bool {
	return tournament.IsFullMix() &&
		match.BracketSide != bracket.RotationSide &&
		match.LoserNextMatchID == nil
}

func (s *MatchService) roundRoster(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID, round int) ([]uuid.UUID, []bracket.MemberRef, error) {
	members, err := s.roster.GetTeamMembersTx(ctx, tx, teamID, round)
	if err != nil {
		return nil, nil, storageErr("failed to get team members", err, nil)
	}
	ids := make([]uuid.UUID, len(members))
	refs := make([]bracket.MemberRef, len(members))
	for i, m := range members {
		ids[i] = m.ParticipantID
		refs[i] = bracket.ParticipantRef(m.ParticipantID)
	}
	return ids, refs, nil
}

// recordElimination marks every member of the losing team's round roster as
// eliminated and lists them on the round snapshot.
func (s *MatchService) recordElimination(ctx context.Context, tx *sqlx.Tx, match *bracket.Match, loserID uuid.UUID) error {
	ids, refs, err := s.roundRoster(ctx, tx, loserID, match.RoundNumber)
	if err != nil || len(ids) == 0 {
		return err
	}

	if err := s.roster.UpdateParticipantStatusTx(ctx, tx, match.TournamentID, ids, bracket.ParticipantEliminated); err != nil {
		return storageErr("failed to eliminate participants", err, nil)
	}

	return s.updateRoundMetadata(ctx, tx, match, func(meta *bracket.RoundMetadata) {
		meta.AddEliminated(refs...)
	})
}

func (s *MatchService) restoreElimination(ctx context.Context, tx *sqlx.Tx, match *bracket.Match, loserID uuid.UUID) error {
	ids, refs, err := s.roundRoster(ctx, tx, loserID, match.RoundNumber)
	if err != nil || len(ids) == 0 {
		return err
	}

	if err := s.roster.UpdateParticipantStatusTx(ctx, tx, match.TournamentID, ids, bracket.ParticipantActive); err != nil {
		return storageErr("failed to restore participants", err, nil)
	}

	return s.updateRoundMetadata(ctx, tx, match, func(meta *bracket.RoundMetadata) {
		meta.RemoveEliminated(refs...)
	})
}

func (s *MatchService) updateRoundMetadata(ctx context.Context, tx *sqlx.Tx, match *bracket.Match, update func(*bracket.RoundMetadata)) error {
	snapshot, err := s.snapshots.GetSnapshotTx(ctx, tx, match.TournamentID, match.RoundNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return storageErr("failed to get round snapshot", err, nil)
	}

	update(&snapshot.Document.Metadata)
	if err := s.snapshots.UpsertSnapshot(ctx, tx, snapshot); err != nil {
		return storageErr("failed to update round snapshot", err, nil)
	}
	return nil
}
