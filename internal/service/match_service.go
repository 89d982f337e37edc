package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/metrics"
	"github.com/AdamBeresnev/op-tournament/internal/notify"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	db         *sqlx.DB
	store      *store.TournamentStore
	roster     *store.RosterStore
	snapshots  *store.SnapshotStore
	audit      *store.AuditStore
	dispatcher *notify.Dispatcher
	metrics    metrics.Metrics
	logger     *slog.Logger
}

func NewMatchService(db *sqlx.DB, stores *store.Stores, dispatcher *notify.Dispatcher, m metrics.Metrics, logger *slog.Logger) *MatchService {
	return &MatchService{
		db:         db,
		store:      stores.Tournaments,
		roster:     stores.Rosters,
		snapshots:  stores.Snapshots,
		audit:      stores.Audit,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
	}
}

type SubmitResultInput struct {
	MatchID    uuid.UUID          `json:"match_id" validate:"required"`
	WinnerSlot int                `json:"winner_slot" validate:"gte=0,lte=2"`
	Score1     int                `json:"score_1" validate:"gte=0"`
	Score2     int                `json:"score_2" validate:"gte=0"`
	Maps       []bracket.MapScore `json:"maps" validate:"omitempty,dive"`
	ActorID    *uuid.UUID         `json:"-"`
}

type ResultOutcome struct {
	Match          *bracket.Match `json:"match"`
	Advancement    []Placement    `json:"advancement"`
	Edited         bool           `json:"edited"`
	RoundCompleted bool           `json:"round_completed,omitempty"`
}

type MatchData struct {
	Match *bracket.Match `json:"match"`
	Team1 *bracket.Team  `json:"team_1,omitempty"`
	Team2 *bracket.Team  `json:"team_2,omitempty"`
}

func (s *MatchService) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	if _, err := s.store.GetTournament(ctx, tournamentID); err != nil {
		return nil, storageErr("failed to get tournament", err, ErrTournamentNotFound)
	}
	matches, err := s.store.GetMatches(ctx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get matches", err, nil)
	}
	return matches, nil
}

func (s *MatchService) GetMatch(ctx context.Context, matchID uuid.UUID) (*MatchData, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, storageErr("failed to get match", err, ErrMatchNotFound)
	}

	data := &MatchData{Match: match}
	if match.Team1ID != nil {
		if data.Team1, err = s.store.GetTeam(ctx, *match.Team1ID); err != nil {
			return nil, storageErr("failed to get team 1", err, ErrTeamNotFound)
		}
	}
	if match.Team2ID != nil {
		if data.Team2, err = s.store.GetTeam(ctx, *match.Team2ID); err != nil {
			return nil, storageErr("failed to get team 2", err, ErrTeamNotFound)
		}
	}
	return data, nil
}

type resultState struct {
	WinnerSlot int               `json:"winner_slot"`
	Score1     int               `json:"score_1"`
	Score2     int               `json:"score_2"`
	Maps       bracket.MapScores `json:"maps,omitempty"`
}

func stateOf(m *bracket.Match) resultState {
	st := resultState{Score1: m.Score1, Score2: m.Score2, Maps: m.Maps}
	if m.WinnerSlot != nil {
		st.WinnerSlot = *m.WinnerSlot
	}
	return st
}

func (st resultState) String() string {
	b, _ := json.Marshal(st)
	return string(b)
}

// resolveResult derives the stored result from a submission. With two or
// more maps the score is the number of maps won per side and a map count
// with a leader decides the winner. A named winner may only break a drawn
// score.
func resolveResult(match *bracket.Match, in SubmitResultInput, scoreRequirement int) (resultState, error) {
	res := resultState{WinnerSlot: in.WinnerSlot, Score1: in.Score1, Score2: in.Score2, Maps: in.Maps}
	fromMaps := len(res.Maps) >= 2
	if fromMaps {
		res.Score1, res.Score2 = res.Maps.Wins()
	}

	leader := 0
	switch {
	case res.Score1 > res.Score2:
		leader = 1
	case res.Score2 > res.Score1:
		leader = 2
	}

	switch {
	case leader == 0 && res.WinnerSlot == 0:
		return res, &ValidationError{Field: "WinnerSlot", Message: "cannot derive a winner from a drawn score"}
	case leader != 0 && fromMaps:
		res.WinnerSlot = leader
	case leader != 0 && res.WinnerSlot == 0:
		res.WinnerSlot = leader
	case leader != 0 && res.WinnerSlot != leader:
		return res, &ValidationError{
			Field:   "WinnerSlot",
			Message: fmt.Sprintf("slot %d cannot win with a score of %d-%d", res.WinnerSlot, res.Score1, res.Score2),
		}
	}

	if match.TeamInSlot(res.WinnerSlot) == nil {
		return res, &ValidationError{Field: "WinnerSlot", Message: fmt.Sprintf("slot %d has no team", res.WinnerSlot)}
	}

	if scoreRequirement > 0 {
		winnerScore := res.Score1
		if res.WinnerSlot == 2 {
			winnerScore = res.Score2
		}
		if winnerScore < scoreRequirement {
			return res, &ValidationError{Field: "Score", Message: fmt.Sprintf("winner needs at least %d", scoreRequirement)}
		}
	}
	return res, nil
}

func sameResult(match *bracket.Match, res resultState) bool {
	return match.WinnerSlot != nil &&
		*match.WinnerSlot == res.WinnerSlot &&
		match.Score1 == res.Score1 &&
		match.Score2 == res.Score2 &&
		match.Maps.Equal(res.Maps)
}

// SubmitResult records a match result and advances its winner and loser in
// one transaction. Resubmitting the stored result returns ErrUnchanged along
// with the outcome of re-running advancement.
func (s *MatchService) SubmitResult(ctx context.Context, in SubmitResultInput) (*ResultOutcome, error) {
	start := time.Now()

	if err := validateInput(in); err != nil {
		s.logger.Warn("invalid result submission", "match_id", in.MatchID, "error", err)
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	match, err := s.store.GetMatchTx(ctx, tx, in.MatchID)
	if err != nil {
		return nil, storageErr("failed to get match", err, ErrMatchNotFound)
	}
	tournament, err := s.store.GetTournamentTx(ctx, tx, match.TournamentID)
	if err != nil {
		return nil, storageErr("failed to get tournament", err, ErrTournamentNotFound)
	}

	if match.IsBye {
		return nil, &ValidationError{Field: "MatchID", Message: "bye matches are resolved automatically"}
	}
	if !match.IsReady() {
		return nil, &ValidationError{Field: "MatchID", Message: "match is still waiting for a team"}
	}
	if tournament.IsFullMix() {
		if err := s.requireOpenRound(ctx, tx, match); err != nil {
			return nil, err
		}
	}

	res, err := resolveResult(match, in, tournament.ScoreRequirement)
	if err != nil {
		s.logger.Warn("invalid result submission", "match_id", match.ID, "error", err)
		return nil, err
	}

	outcome := &ResultOutcome{Match: match}

	if sameResult(match, res) {
		placements, err := s.propagate(ctx, tx, match)
		if err != nil {
			return nil, err
		}
		outcome.Advancement = placements
		if healed(placements) {
			if err := s.recordAudit(ctx, tx, match, bracket.AuditResultRetried, nil, res, in.ActorID); err != nil {
				return nil, err
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, storageErr("failed to commit", err, nil)
		}
		return outcome, ErrUnchanged
	}

	if err := s.checkIntegrity(ctx, tx, match); err != nil {
		return nil, err
	}

	previous := *match
	outcome.Edited = previous.IsCompleted()

	if previous.WinnerSlot != nil && *previous.WinnerSlot != res.WinnerSlot {
		if err := s.retractResult(ctx, tx, tournament, &previous); err != nil {
			return nil, err
		}
	}

	match.WinnerSlot = &res.WinnerSlot
	match.Score1, match.Score2 = res.Score1, res.Score2
	match.Maps = res.Maps
	match.Status = bracket.MatchCompleted
	if err := s.store.UpdateMatchResult(ctx, tx, match); err != nil {
		return nil, storageErr("failed to update match", err, nil)
	}

	placements, err := s.propagate(ctx, tx, match)
	if err != nil {
		return nil, err
	}
	outcome.Advancement = placements

	if loser := match.LoserID(); loser != nil && eliminates(tournament, match) {
		if err := s.recordElimination(ctx, tx, match, *loser); err != nil {
			return nil, err
		}
	}

	action := bracket.AuditResultRecorded
	var before *resultState
	if outcome.Edited {
		action = bracket.AuditResultEdited
		st := stateOf(&previous)
		before = &st
	}
	if err := s.recordAudit(ctx, tx, match, action, before, res, in.ActorID); err != nil {
		return nil, err
	}

	if match.WinnerNextMatchID == nil && match.BracketSide != bracket.RotationSide {
		if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournament.ID, bracket.TournamentCompleted); err != nil {
			return nil, storageErr("failed to update tournament status", err, nil)
		}
	}

	if tournament.IsFullMix() {
		outcome.RoundCompleted, err = s.markRoundCompletion(ctx, tx, tournament.ID, match.RoundNumber)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit", err, nil)
	}

	if s.metrics != nil {
		s.metrics.IncResultsSubmitted()
		s.metrics.ObserveSubmitDuration(time.Since(start).Seconds())
	}
	s.logger.Info("match result recorded",
		"match_id", match.ID,
		"tournament_id", tournament.ID,
		"winner_slot", res.WinnerSlot,
		"score", match.ScoreLine(),
		"edited", outcome.Edited,
	)

	s.publishResult(ctx, tournament, match, outcome)
	return outcome, nil
}

// propagate advances the winner and, where the bracket has a loser path, the
// loser of a decided match.
func (s *MatchService) propagate(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) ([]Placement, error) {
	var placements []Placement

	if winner := match.WinnerID(); winner != nil && match.WinnerNextMatchID != nil {
		p, err := s.advanceTeam(ctx, tx, *winner, *match.WinnerNextMatchID, RoleWinner)
		if err != nil {
			return nil, err
		}
		placements = append(placements, p)
	}
	if loser := match.LoserID(); loser != nil && match.LoserNextMatchID != nil {
		p, err := s.advanceTeam(ctx, tx, *loser, *match.LoserNextMatchID, RoleLoser)
		if err != nil {
			return nil, err
		}
		placements = append(placements, p)
	}
	return placements, nil
}

// retractResult undoes the placements and eliminations of the result being
// replaced.
func (s *MatchService) retractResult(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, previous *bracket.Match) error {
	if winner := previous.WinnerID(); winner != nil && previous.WinnerNextMatchID != nil {
		if err := s.retractTeam(ctx, tx, *winner, *previous.WinnerNextMatchID); err != nil {
			return err
		}
	}
	loser := previous.LoserID()
	if loser == nil {
		return nil
	}
	if previous.LoserNextMatchID != nil {
		if err := s.retractTeam(ctx, tx, *loser, *previous.LoserNextMatchID); err != nil {
			return err
		}
	}
	if eliminates(tournament, previous) {
		return s.restoreElimination(ctx, tx, previous, *loser)
	}
	return nil
}

func healed(placements []Placement) bool {
	for _, p := range placements {
		for cur := &p; cur != nil; cur = cur.Next {
			if cur.Status == PlacementPlaced {
				return true
			}
		}
	}
	return false
}

func (s *MatchService) recordAudit(ctx context.Context, tx *sqlx.Tx, match *bracket.Match, action bracket.AuditAction, before *resultState, after resultState, actorID *uuid.UUID) error {
	entry := &bracket.AuditEntry{
		ID:           uuid.New(),
		MatchID:      match.ID,
		TournamentID: match.TournamentID,
		ActorID:      actorID,
		Action:       action,
		AfterState:   after.String(),
	}
	if before != nil {
		b := before.String()
		entry.BeforeState = &b
	}
	if err := s.audit.Record(ctx, tx, entry); err != nil {
		return storageErr("failed to record audit entry", err, nil)
	}
	return nil
}

// requireOpenRound rejects results for Full Mix rounds whose matches have
// not been approved yet.
func (s *MatchService) requireOpenRound(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	snapshot, err := s.snapshots.GetSnapshotTx(ctx, tx, match.TournamentID, match.RoundNumber)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storageErr("failed to get round snapshot", err, nil)
	}
	if snapshot == nil || !snapshot.ApprovedMatches {
		return &ValidationError{Field: "MatchID", Message: fmt.Sprintf("round %d matches are not approved", match.RoundNumber)}
	}
	return nil
}

func roundComplete(matches []bracket.Match) bool {
	played := 0
	for i := range matches {
		if matches[i].IsBye {
			continue
		}
		if matches[i].WinnerSlot == nil {
			return false
		}
		played++
	}
	return played > 0
}

// markRoundCompletion flips the completed flag of an active round snapshot
// and reports whether this call completed the round.
func (s *MatchService) markRoundCompletion(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, round int) (bool, error) {
	snapshot, err := s.snapshots.GetSnapshotTx(ctx, tx, tournamentID, round)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, storageErr("failed to get round snapshot", err, nil)
	}
	if !snapshot.ApprovedMatches || snapshot.Document.Metadata.Completed {
		return false, nil
	}

	matches, err := s.store.GetRoundMatchesTx(ctx, tx, tournamentID, round)
	if err != nil {
		return false, storageErr("failed to get round matches", err, nil)
	}
	if !roundComplete(matches) {
		return false, nil
	}

	snapshot.Document.Metadata.Completed = true
	if err := s.snapshots.UpsertSnapshot(ctx, tx, snapshot); err != nil {
		return false, storageErr("failed to update round snapshot", err, nil)
	}
	return true, nil
}

func (s *MatchService) teamName(ctx context.Context, id *uuid.UUID) string {
	if id == nil {
		return "TBD"
	}
	team, err := s.store.GetTeam(ctx, *id)
	if err != nil {
		return "TBD"
	}
	return team.Name
}

func (s *MatchService) publishResult(ctx context.Context, tournament *bracket.Tournament, match *bracket.Match, outcome *ResultOutcome) {
	text := fmt.Sprintf("%s, match #%d: %s %s %s",
		tournament.Name, match.MatchNumber,
		s.teamName(ctx, match.Team1ID), match.ScoreLine(), s.teamName(ctx, match.Team2ID))
	s.dispatcher.Publish(ctx, tournament.ID, text, &notify.Event{Type: notify.EventMatchUpdated, Payload: outcome})

	if !outcome.RoundCompleted {
		return
	}
	roundText := fmt.Sprintf("%s: round %d is complete", tournament.Name, match.RoundNumber)
	s.dispatcher.Publish(ctx, tournament.ID, "", &notify.Event{
		Type:    notify.EventRoundComplete,
		Payload: map[string]int{"round": match.RoundNumber},
	})
	s.dispatcher.NotifyUser(ctx, tournament.OwnerID, roundText, map[string]string{
		"tournament_id": tournament.ID.String(),
		"round":         fmt.Sprint(match.RoundNumber),
	})
}
