package service

import (
	"context"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// checkIntegrity rejects an edit of match when a downstream match already
// holds one of its participants and has a result. Byes are looked through.
func (s *MatchService) checkIntegrity(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	participants := match.Participants()
	if len(participants) == 0 {
		return nil
	}

	for _, targetID := range []*uuid.UUID{match.WinnerNextMatchID, match.LoserNextMatchID} {
		if targetID == nil {
			continue
		}
		conflict, err := s.downstreamConflict(ctx, tx, participants, *targetID)
		if err != nil {
			return err
		}
		if conflict != nil {
			s.logger.Warn("result edit blocked by downstream match",
				"match_id", match.ID,
				"downstream_match_id", conflict.ID,
				"downstream_match_number", conflict.MatchNumber,
			)
			if s.metrics != nil {
				s.metrics.IncIntegrityViolations()
			}
			return &IntegrityViolationError{
				MatchID:           match.ID,
				DownstreamMatchID: conflict.ID,
				DownstreamNumber:  conflict.MatchNumber,
				Score:             conflict.ScoreLine(),
			}
		}
	}
	return nil
}

func (s *MatchService) downstreamConflict(ctx context.Context, tx *sqlx.Tx, teams []uuid.UUID, targetID uuid.UUID) (*bracket.Match, error) {
	target, err := s.store.GetMatchTx(ctx, tx, targetID)
	if err != nil {
		return nil, storageErr("failed to load downstream match", err, ErrMatchNotFound)
	}

	holds := false
	for _, id := range teams {
		if target.HasTeam(id) {
			holds = true
			break
		}
	}
	if !holds {
		return nil, nil
	}

	if target.IsBye {
		if target.WinnerNextMatchID == nil {
			return nil, nil
		}
		return s.downstreamConflict(ctx, tx, teams, *target.WinnerNextMatchID)
	}
	if target.IsCompleted() {
		return target, nil
	}
	return nil, nil
}
