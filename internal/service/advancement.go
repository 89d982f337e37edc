package service

import (
	"context"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AdvanceRole string

const (
	RoleWinner AdvanceRole = "winner"
	RoleLoser  AdvanceRole = "loser"
)

type PlacementStatus string

const (
	PlacementPlaced        PlacementStatus = "placed"
	PlacementAlreadyPlaced PlacementStatus = "already_placed"
	PlacementRaceLost      PlacementStatus = "race_lost"
)

// Placement reports where advanceTeam put a team. Next is set when the
// target was a bye and the team moved on through it.
type Placement struct {
	TeamID  uuid.UUID       `json:"team_id"`
	MatchID uuid.UUID       `json:"match_id"`
	Role    AdvanceRole     `json:"role"`
	Status  PlacementStatus `json:"status"`
	Slot    int             `json:"slot,omitempty"`
	Ready   bool            `json:"ready"`
	Next    *Placement      `json:"next,omitempty"`
}

// advanceTeam places teamID into the first empty slot of the target match.
// Placing a team twice is a no-op, and a slot taken between the read and the
// conditional write is retried on the other slot before giving up.
func (s *MatchService) advanceTeam(ctx context.Context, tx *sqlx.Tx, teamID, targetID uuid.UUID, role AdvanceRole) (Placement, error) {
	p := Placement{TeamID: teamID, MatchID: targetID, Role: role}

	target, err := s.store.GetMatchTx(ctx, tx, targetID)
	if err != nil {
		return p, storageErr("failed to load target match", err, ErrMatchNotFound)
	}

	if slot := target.SlotOf(teamID); slot != 0 {
		p.Status, p.Slot = PlacementAlreadyPlaced, slot
	} else {
		if target.IsReady() {
			return p, s.structuralDefect(target, teamID, "unexpected full match")
		}

		p.Status = PlacementRaceLost
		for _, slot := range []int{1, 2} {
			if target.TeamInSlot(slot) != nil {
				continue
			}
			claimed, err := s.store.ClaimSlot(ctx, tx, targetID, slot, teamID)
			if err != nil {
				return p, storageErr("failed to claim slot", err, nil)
			}
			if claimed {
				p.Status, p.Slot = PlacementPlaced, slot
				break
			}

			target, err = s.store.GetMatchTx(ctx, tx, targetID)
			if err != nil {
				return p, storageErr("failed to reload target match", err, ErrMatchNotFound)
			}
			if current := target.SlotOf(teamID); current != 0 {
				p.Status, p.Slot = PlacementAlreadyPlaced, current
				break
			}
		}

		if p.Status == PlacementRaceLost {
			s.logger.Info("advancement lost the race for a slot", "match_id", targetID, "team_id", teamID, "role", role)
			return p, nil
		}

		target, err = s.store.GetMatchTx(ctx, tx, targetID)
		if err != nil {
			return p, storageErr("failed to reload target match", err, ErrMatchNotFound)
		}
	}

	p.Ready = target.IsReady()

	if target.IsBye {
		if target.WinnerSlot == nil {
			if err := s.store.CompleteBye(ctx, tx, target.ID, p.Slot); err != nil {
				return p, storageErr("failed to complete bye", err, nil)
			}
		}
		if target.WinnerNextMatchID != nil {
			next, err := s.advanceTeam(ctx, tx, teamID, *target.WinnerNextMatchID, RoleWinner)
			if err != nil {
				return p, err
			}
			p.Next = &next
		}
	}

	return p, nil
}

// retractTeam removes teamID from a target it was advanced into by a result
// that is being replaced. Byes it passed through are reopened.
func (s *MatchService) retractTeam(ctx context.Context, tx *sqlx.Tx, teamID, targetID uuid.UUID) error {
	target, err := s.store.GetMatchTx(ctx, tx, targetID)
	if err != nil {
		return storageErr("failed to load target match", err, ErrMatchNotFound)
	}

	slot := target.SlotOf(teamID)
	if slot == 0 {
		return nil
	}
	if _, err := s.store.ReleaseSlot(ctx, tx, targetID, slot, teamID); err != nil {
		return storageErr("failed to release slot", err, nil)
	}

	if target.IsBye && target.WinnerSlot != nil {
		if err := s.store.ResetBye(ctx, tx, targetID); err != nil {
			return storageErr("failed to reopen bye", err, nil)
		}
		if target.WinnerNextMatchID != nil {
			return s.retractTeam(ctx, tx, teamID, *target.WinnerNextMatchID)
		}
	}
	return nil
}

func (s *MatchService) structuralDefect(target *bracket.Match, teamID uuid.UUID, reason string) error {
	s.logger.Error("structural defect in bracket graph",
		"match_id", target.ID,
		"match_number", target.MatchNumber,
		"team_id", teamID,
		"reason", reason,
	)
	if s.metrics != nil {
		s.metrics.IncStructuralDefects()
	}
	return &StructuralDefectError{MatchID: target.ID, TeamID: teamID, Reason: reason}
}
