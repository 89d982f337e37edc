package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/fullmix"
	"github.com/AdamBeresnev/op-tournament/internal/notify"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// FullMixService runs the rotating-team rounds of Full Mix tournaments.
type FullMixService struct {
	db         *sqlx.DB
	store      *store.TournamentStore
	roster     *store.RosterStore
	snapshots  *store.SnapshotStore
	names      NameResolver
	dispatcher *notify.Dispatcher
	logger     *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type FullMixOption func(*FullMixService)

// WithRand replaces the random source used for drafts and pairings.
func WithRand(rng *rand.Rand) FullMixOption {
	return func(s *FullMixService) {
		s.rng = rng
	}
}

func NewFullMixService(db *sqlx.DB, stores *store.Stores, names NameResolver, dispatcher *notify.Dispatcher, logger *slog.Logger, opts ...FullMixOption) *FullMixService {
	s := &FullMixService{
		db:         db,
		store:      stores.Tournaments,
		roster:     stores.Rosters,
		snapshots:  stores.Snapshots,
		names:      names,
		dispatcher: dispatcher,
		logger:     logger,
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type FullMixOptions struct {
	WinsToWin     int                   `json:"wins_to_win" validate:"gte=1"`
	RatingMode    bool                  `json:"rating_mode"`
	TeamSize      int                   `json:"team_size" validate:"gte=0,lte=16"`
	BracketMode   bracket.BracketMode   `json:"bracket_mode" validate:"omitempty,oneof=rotating single double"`
	MilestoneMode bracket.MilestoneMode `json:"milestone_mode" validate:"omitempty,oneof=finalists eliminate"`
}

func (o FullMixOptions) settings(tournamentID uuid.UUID) *bracket.RoundSettings {
	settings := &bracket.RoundSettings{
		TournamentID:  tournamentID,
		TeamSize:      o.TeamSize,
		WinsToWin:     o.WinsToWin,
		RatingMode:    o.RatingMode,
		BracketMode:   o.BracketMode,
		MilestoneMode: o.MilestoneMode,
	}
	if settings.TeamSize == 0 {
		settings.TeamSize = 2
	}
	if settings.BracketMode == "" {
		settings.BracketMode = bracket.BracketRotating
	}
	if settings.MilestoneMode == "" {
		settings.MilestoneMode = bracket.MilestoneFinalists
	}
	return settings
}

// roundState is everything an operation on one round reads first.
type roundState struct {
	tournament *bracket.Tournament
	settings   *bracket.RoundSettings
	snapshot   *bracket.RoundSnapshot
}

func (s *FullMixService) loadTournament(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (*bracket.Tournament, *bracket.RoundSettings, error) {
	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, nil, storageErr("failed to get tournament", err, ErrTournamentNotFound)
	}
	if !tournament.IsFullMix() {
		return nil, nil, ErrNotFullMix
	}
	settings, err := s.snapshots.GetSettingsTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, nil, storageErr("failed to get settings", err, ErrSettingsNotFound)
	}
	return tournament, settings, nil
}

func (s *FullMixService) loadRound(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, round int) (*roundState, error) {
	tournament, settings, err := s.loadTournament(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.snapshots.GetSnapshotTx(ctx, tx, tournamentID, round)
	if err != nil {
		return nil, storageErr("failed to get round snapshot", err, ErrRoundNotFound)
	}
	return &roundState{tournament: tournament, settings: settings, snapshot: snapshot}, nil
}

func (s *FullMixService) withRand(fn func(rng *rand.Rand) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.rng)
}

// StartFullMix stores the settings, creates the fixed teams and their bracket
// when the bracket mode asks for one, and drafts round 1.
func (s *FullMixService) StartFullMix(ctx context.Context, tournamentID uuid.UUID, opts FullMixOptions, actorID *uuid.UUID) (*bracket.RoundSnapshot, error) {
	if err := validateInput(opts); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get tournament", err, ErrTournamentNotFound)
	}
	if !tournament.IsFullMix() {
		return nil, ErrNotFullMix
	}
	current, err := s.snapshots.MaxRoundTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get current round", err, nil)
	}
	if current > 0 {
		return nil, ErrFullMixStarted
	}

	settings := opts.settings(tournamentID)
	if err := s.snapshots.SaveSettings(ctx, tx, settings); err != nil {
		return nil, storageErr("failed to save settings", err, nil)
	}

	if settings.FixedTeams() {
		if err := s.createFixedBracket(ctx, tx, settings); err != nil {
			return nil, err
		}
	}

	preview, err := s.draftPreview(ctx, tx, settings, 1)
	if err != nil {
		return nil, poolErr(err)
	}

	snapshot := &bracket.RoundSnapshot{
		TournamentID: tournamentID,
		RoundNumber:  1,
		Document:     bracket.RoundDocument{Preview: preview},
	}
	if err := s.snapshots.UpsertSnapshot(ctx, tx, snapshot); err != nil {
		return nil, storageErr("failed to save round snapshot", err, nil)
	}
	if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournamentID, bracket.TournamentStarted); err != nil {
		return nil, storageErr("failed to update tournament status", err, nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit", err, nil)
	}

	s.logger.Info("full mix started",
		"tournament_id", tournamentID,
		"team_size", settings.TeamSize,
		"bracket_mode", settings.BracketMode,
		"actor_id", actorID,
	)
	s.publishRound(ctx, tournament, snapshot, fmt.Sprintf("%s: Full Mix started, round 1 teams drafted", tournament.Name))
	return snapshot, nil
}

func (s *FullMixService) createFixedBracket(ctx context.Context, tx *sqlx.Tx, settings *bracket.RoundSettings) error {
	pool, err := s.roster.GetActiveParticipantsTx(ctx, tx, settings.TournamentID)
	if err != nil {
		return storageErr("failed to get participants", err, nil)
	}
	count, err := fullmix.TeamCount(len(pool), settings.TeamSize)
	if err != nil {
		return &ValidationError{Field: "participants", Message: err.Error()}
	}

	teams := make([]bracket.Team, count)
	for i := range teams {
		teams[i] = bracket.Team{
			ID:           uuid.New(),
			TournamentID: settings.TournamentID,
			Name:         fmt.Sprintf("Team %d", i+1),
			Seed:         i + 1,
		}
	}
	if err := s.store.CreateTeams(ctx, tx, teams); err != nil {
		return storageErr("failed to create teams", err, nil)
	}

	var matches []bracket.Match
	if settings.BracketMode == bracket.BracketDouble {
		matches = GenerateDoubleElimBracket(settings.TournamentID, teams)
	} else {
		matches = GenerateSingleElimBracket(settings.TournamentID, teams)
	}
	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return storageErr("failed to create matches", err, nil)
	}
	return nil
}

func candidates(participants []bracket.Participant) []fullmix.Candidate {
	pool := make([]fullmix.Candidate, len(participants))
	for i, p := range participants {
		pool[i] = fullmix.Candidate{Ref: p.Ref(), Name: p.Name, Rating: p.Rating}
	}
	return pool
}

// draftPreview proposes the rosters of a round from the active pool. Fixed
// brackets spread the pool over the teams still alive.
func (s *FullMixService) draftPreview(ctx context.Context, tx *sqlx.Tx, settings *bracket.RoundSettings, round int) ([]bracket.DraftTeam, error) {
	participants, err := s.roster.GetActiveParticipantsTx(ctx, tx, settings.TournamentID)
	if err != nil {
		return nil, storageErr("failed to get participants", err, nil)
	}
	pool := candidates(participants)

	var (
		alive []bracket.Team
		count int
		size  = settings.TeamSize
	)
	if settings.FixedTeams() {
		alive, err = s.aliveTeams(ctx, tx, settings.TournamentID)
		if err != nil {
			return nil, err
		}
		count = len(alive)
		if count == 0 || len(pool)/count < 1 {
			return nil, fullmix.ErrPoolTooSmall
		}
		size = len(pool) / count
	} else {
		count, err = fullmix.TeamCount(len(pool), settings.TeamSize)
		if err != nil {
			return nil, err
		}
	}

	var rosters [][]fullmix.Candidate
	err = s.withRand(func(rng *rand.Rand) error {
		var err error
		rosters, err = fullmix.FormTeams(pool, count, size, settings.RatingMode, rng)
		return err
	})
	if err != nil {
		return nil, err
	}

	teams := fullmix.DraftTeams(rosters)
	for i := range alive {
		teams[i].ID = utils.Ptr(alive[i].ID)
		teams[i].Name = alive[i].Name
	}

	s.logger.Debug("round drafted", "tournament_id", settings.TournamentID, "round", round, "teams", count, "pool", len(pool))
	return teams, nil
}

// aliveTeams returns the fixed teams that have not lost a match without a
// loser path.
func (s *FullMixService) aliveTeams(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Team, error) {
	teams, err := s.store.GetFixedTeamsTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get teams", err, nil)
	}
	matches, err := s.store.GetMatchesTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get matches", err, nil)
	}

	out := make(map[uuid.UUID]bool)
	for i := range matches {
		m := &matches[i]
		if m.IsBye || m.BracketSide == bracket.RotationSide || m.LoserNextMatchID != nil {
			continue
		}
		if loser := m.LoserID(); loser != nil {
			out[*loser] = true
		}
	}

	alive := teams[:0]
	for _, t := range teams {
		if !out[t.ID] {
			alive = append(alive, t)
		}
	}
	return alive, nil
}

// DraftRound regenerates the team preview of a round that has no approved
// teams yet.
func (s *FullMixService) DraftRound(ctx context.Context, tournamentID uuid.UUID, round int) (*bracket.RoundSnapshot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	rs, err := s.loadRound(ctx, tx, tournamentID, round)
	if err != nil {
		return nil, err
	}
	if rs.snapshot.ApprovedTeams {
		return nil, ErrTeamsApproved
	}

	preview, err := s.draftPreview(ctx, tx, rs.settings, round)
	if err != nil {
		return nil, poolErr(err)
	}
	rs.snapshot.Document.Preview = preview
	rs.snapshot.Document.PairingDraft = nil
	if err := s.snapshots.UpsertSnapshot(ctx, tx, rs.snapshot); err != nil {
		return nil, storageErr("failed to save round snapshot", err, nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit", err, nil)
	}
	s.publishRound(ctx, rs.tournament, rs.snapshot, "")
	return rs.snapshot, nil
}

func poolErr(err error) error {
	if errors.Is(err, fullmix.ErrPoolTooSmall) {
		return &ValidationError{Field: "participants", Message: err.Error()}
	}
	return err
}

// ApproveTeams persists the previewed rosters. Rotating rounds replace the
// round's teams and matches; fixed brackets replace the round's members of
// the fixed teams.
func (s *FullMixService) ApproveTeams(ctx context.Context, tournamentID uuid.UUID, round int, actorID *uuid.UUID) (*bracket.RoundSnapshot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	rs, err := s.loadRound(ctx, tx, tournamentID, round)
	if err != nil {
		return nil, err
	}
	doc := &rs.snapshot.Document
	if rs.snapshot.ApprovedTeams {
		return nil, ErrTeamsApproved
	}
	if len(doc.Preview) == 0 {
		return nil, &ValidationError{Field: "round", Message: "round has no drafted teams"}
	}

	teams := doc.Preview
	if rs.settings.FixedTeams() {
		teamIDs := make([]uuid.UUID, 0, len(teams))
		for _, t := range teams {
			if t.ID == nil {
				return nil, &ValidationError{Field: "round", Message: fmt.Sprintf("drafted team %q has no bracket team", t.Name)}
			}
			teamIDs = append(teamIDs, *t.ID)
		}
		if err := s.roster.ReplaceRoundMembers(ctx, tx, teamIDs, round, roundMembers(teams, round)); err != nil {
			return nil, storageErr("failed to save team members", err, nil)
		}
	} else {
		if _, err := s.store.DeleteRoundMatches(ctx, tx, tournamentID, round); err != nil {
			return nil, storageErr("failed to delete round matches", err, nil)
		}
		if err := s.store.DeleteRoundTeams(ctx, tx, tournamentID, round); err != nil {
			return nil, storageErr("failed to delete round teams", err, nil)
		}

		rows := make([]bracket.Team, len(teams))
		for i := range teams {
			teams[i].ID = utils.Ptr(uuid.New())
			rows[i] = bracket.Team{
				ID:           *teams[i].ID,
				TournamentID: tournamentID,
				Name:         teams[i].Name,
				Seed:         i + 1,
				RoundNumber:  utils.Ptr(round),
			}
		}
		if err := s.store.CreateTeams(ctx, tx, rows); err != nil {
			return nil, storageErr("failed to create teams", err, nil)
		}
		if err := s.roster.AddTeamMembers(ctx, tx, roundMembers(teams, round)); err != nil {
			return nil, storageErr("failed to save team members", err, nil)
		}
	}

	doc.Teams = teams
	rs.snapshot.ApprovedTeams = true
	if err := s.snapshots.UpsertSnapshot(ctx, tx, rs.snapshot); err != nil {
		return nil, storageErr("failed to save round snapshot", err, nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit", err, nil)
	}

	s.logger.Info("round teams approved", "tournament_id", tournamentID, "round", round, "teams", len(teams), "actor_id", actorID)
	s.publishRound(ctx, rs.tournament, rs.snapshot, fmt.Sprintf("%s: round %d teams are set", rs.tournament.Name, round))
	return rs.snapshot, nil
}

func roundMembers(teams []bracket.DraftTeam, round int) []bracket.TeamMember {
	var members []bracket.TeamMember
	for _, t := range teams {
		for _, e := range t.Members {
			pid, ok := e.Ref.ParticipantID()
			if !ok {
				continue
			}
			members = append(members, bracket.TeamMember{
				TeamID:        *t.ID,
				RoundNumber:   round,
				ParticipantID: pid,
				DisplayName:   utils.StringOrNil(e.Name),
			})
		}
	}
	return members
}

// DraftPairing stores a pairing of the approved teams of a rotating round.
// A nil pairs argument draws a random pairing.
func (s *FullMixService) DraftPairing(ctx context.Context, tournamentID uuid.UUID, round int, pairs []bracket.Pairing) ([]bracket.Pairing, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	rs, err := s.loadRound(ctx, tx, tournamentID, round)
	if err != nil {
		return nil, err
	}
	if rs.settings.FixedTeams() {
		return nil, ErrRotatingModeOnly
	}
	if !rs.snapshot.ApprovedTeams {
		return nil, ErrTeamsNotApproved
	}
	if rs.snapshot.ApprovedMatches {
		return nil, ErrMatchesApproved
	}

	n := len(rs.snapshot.Document.Teams)
	if pairs == nil {
		err = s.withRand(func(rng *rand.Rand) error {
			var err error
			pairs, err = fullmix.PairTeams(n, rng)
			return err
		})
		if err != nil {
			return nil, err
		}
	} else if err := fullmix.ValidatePairing(pairs, n); err != nil {
		return nil, &ValidationError{Field: "pairs", Message: err.Error()}
	}

	rs.snapshot.Document.PairingDraft = pairs
	if err := s.snapshots.UpsertSnapshot(ctx, tx, rs.snapshot); err != nil {
		return nil, storageErr("failed to save round snapshot", err, nil)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit", err, nil)
	}
	return pairs, nil
}

// ApproveMatches opens a round for play. Rotating rounds get their matches
// from the pairing draft or a fresh random pairing; fixed brackets list the
// bracket matches of the round. The preview and pairing draft are dropped.
func (s *FullMixService) ApproveMatches(ctx context.Context, tournamentID uuid.UUID, round int, actorID *uuid.UUID) (*bracket.RoundSnapshot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	rs, err := s.loadRound(ctx, tx, tournamentID, round)
	if err != nil {
		return nil, err
	}
	doc := &rs.snapshot.Document
	if !rs.snapshot.ApprovedTeams {
		return nil, ErrTeamsNotApproved
	}
	if rs.snapshot.ApprovedMatches {
		return nil, ErrMatchesApproved
	}

	names := make(map[uuid.UUID]string, len(doc.Teams))
	for _, t := range doc.Teams {
		if t.ID != nil {
			names[*t.ID] = t.Name
		}
	}

	var matches []bracket.Match
	if rs.settings.FixedTeams() {
		matches, err = s.store.GetRoundMatchesTx(ctx, tx, tournamentID, round)
		if err != nil {
			return nil, storageErr("failed to get round matches", err, nil)
		}
	} else {
		matches, err = s.createRotationMatches(ctx, tx, rs.snapshot, round)
		if err != nil {
			return nil, err
		}
	}

	doc.Matches = doc.Matches[:0]
	for _, m := range matches {
		if m.IsBye {
			continue
		}
		rm := bracket.RoundMatch{MatchID: m.ID, Team1ID: m.Team1ID, Team2ID: m.Team2ID}
		if m.Team1ID != nil {
			rm.Team1 = names[*m.Team1ID]
		}
		if m.Team2ID != nil {
			rm.Team2 = names[*m.Team2ID]
		}
		doc.Matches = append(doc.Matches, rm)
	}

	doc.Preview = nil
	doc.PairingDraft = nil
	rs.snapshot.ApprovedMatches = true
	if err := s.snapshots.UpsertSnapshot(ctx, tx, rs.snapshot); err != nil {
		return nil, storageErr("failed to save round snapshot", err, nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit", err, nil)
	}

	s.logger.Info("round matches approved", "tournament_id", tournamentID, "round", round, "matches", len(doc.Matches), "actor_id", actorID)
	s.publishRound(ctx, rs.tournament, rs.snapshot, fmt.Sprintf("%s: round %d is on, %d matches", rs.tournament.Name, round, len(doc.Matches)))
	return rs.snapshot, nil
}

func (s *FullMixService) createRotationMatches(ctx context.Context, tx *sqlx.Tx, snapshot *bracket.RoundSnapshot, round int) ([]bracket.Match, error) {
	teams := snapshot.Document.Teams
	pairs := snapshot.Document.PairingDraft
	if len(pairs) == 0 {
		err := s.withRand(func(rng *rand.Rand) error {
			var err error
			pairs, err = fullmix.PairTeams(len(teams), rng)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	if err := fullmix.ValidatePairing(pairs, len(teams)); err != nil {
		return nil, &ValidationError{Field: "pairs", Message: err.Error()}
	}

	next, err := s.store.NextMatchNumberTx(ctx, tx, snapshot.TournamentID)
	if err != nil {
		return nil, storageErr("failed to number matches", err, nil)
	}

	matches := make([]bracket.Match, len(pairs))
	for i, p := range pairs {
		matches[i] = bracket.Match{
			ID:           uuid.New(),
			TournamentID: snapshot.TournamentID,
			BracketSide:  bracket.RotationSide,
			RoundNumber:  round,
			MatchOrder:   i + 1,
			MatchNumber:  next + i,
			Team1ID:      teams[p[0]].ID,
			Team2ID:      teams[p[1]].ID,
			Status:       bracket.MatchPending,
		}
	}
	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, storageErr("failed to create matches", err, nil)
	}
	return matches, nil
}

// ReshuffleRound throws away the round's teams and draws new ones. Approved
// rounds lose their persisted teams and rotation matches too. A round with a
// recorded result cannot be reshuffled.
func (s *FullMixService) ReshuffleRound(ctx context.Context, tournamentID uuid.UUID, round int, actorID *uuid.UUID) (*bracket.RoundSnapshot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	rs, err := s.loadRound(ctx, tx, tournamentID, round)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.GetRoundMatchesTx(ctx, tx, tournamentID, round)
	if err != nil {
		return nil, storageErr("failed to get round matches", err, nil)
	}
	for i := range matches {
		if !matches[i].IsBye && matches[i].IsCompleted() {
			return nil, ErrRoundLocked
		}
	}

	if rs.snapshot.ApprovedTeams {
		if rs.settings.FixedTeams() {
			teamIDs := make([]uuid.UUID, 0, len(rs.snapshot.Document.Teams))
			for _, t := range rs.snapshot.Document.Teams {
				if t.ID != nil {
					teamIDs = append(teamIDs, *t.ID)
				}
			}
			if err := s.roster.ReplaceRoundMembers(ctx, tx, teamIDs, round, nil); err != nil {
				return nil, storageErr("failed to delete team members", err, nil)
			}
		} else {
			if _, err := s.store.DeleteRoundMatches(ctx, tx, tournamentID, round); err != nil {
				return nil, storageErr("failed to delete round matches", err, nil)
			}
			if err := s.store.DeleteRoundTeams(ctx, tx, tournamentID, round); err != nil {
				return nil, storageErr("failed to delete round teams", err, nil)
			}
		}
	}

	preview, err := s.draftPreview(ctx, tx, rs.settings, round)
	if err != nil {
		return nil, poolErr(err)
	}

	doc := &rs.snapshot.Document
	doc.Teams = nil
	doc.Matches = nil
	doc.PairingDraft = nil
	doc.Preview = preview
	doc.Metadata.Completed = false
	doc.Metadata.Reshuffles++
	rs.snapshot.ApprovedTeams = false
	rs.snapshot.ApprovedMatches = false
	if err := s.snapshots.UpsertSnapshot(ctx, tx, rs.snapshot); err != nil {
		return nil, storageErr("failed to save round snapshot", err, nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit", err, nil)
	}

	s.logger.Info("round reshuffled", "tournament_id", tournamentID, "round", round, "reshuffles", doc.Metadata.Reshuffles, "actor_id", actorID)
	s.publishRound(ctx, rs.tournament, rs.snapshot, fmt.Sprintf("%s: round %d teams reshuffled", rs.tournament.Name, round))
	return rs.snapshot, nil
}

// IsRoundComplete reports whether the round has at least one played match
// and every non-bye match has a winner.
func (s *FullMixService) IsRoundComplete(ctx context.Context, tournamentID uuid.UUID, round int) (bool, error) {
	if _, err := s.snapshots.GetSnapshot(ctx, tournamentID, round); err != nil {
		return false, storageErr("failed to get round snapshot", err, ErrRoundNotFound)
	}
	matches, err := s.store.GetRoundMatches(ctx, tournamentID, round)
	if err != nil {
		return false, storageErr("failed to get round matches", err, nil)
	}
	return roundComplete(matches), nil
}

// CurrentRound returns the highest round with a snapshot, 0 before the start.
func (s *FullMixService) CurrentRound(ctx context.Context, tournamentID uuid.UUID) (int, error) {
	round, err := s.snapshots.MaxRound(ctx, tournamentID)
	if err != nil {
		return 0, storageErr("failed to get current round", err, nil)
	}
	return round, nil
}

func (s *FullMixService) GetRound(ctx context.Context, tournamentID uuid.UUID, round int) (*bracket.RoundSnapshot, error) {
	snapshot, err := s.snapshots.GetSnapshot(ctx, tournamentID, round)
	if err != nil {
		return nil, storageErr("failed to get round snapshot", err, ErrRoundNotFound)
	}
	return snapshot, nil
}

// GetStandings tallies every completed match of the tournament, crediting
// each result to the roster the team had in that round.
func (s *FullMixService) GetStandings(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Standing, error) {
	tournament, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get tournament", err, ErrTournamentNotFound)
	}
	if !tournament.IsFullMix() {
		return nil, ErrNotFullMix
	}

	matches, err := s.store.GetMatches(ctx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get matches", err, nil)
	}
	members, err := s.roster.GetTournamentMembers(ctx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get team members", err, nil)
	}
	participants, err := s.roster.GetParticipants(ctx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get participants", err, nil)
	}
	return s.standings(ctx, tournamentID, matches, members, participants, false), nil
}

func (s *FullMixService) standingsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, activeOnly bool) ([]bracket.Standing, error) {
	matches, err := s.store.GetMatchesTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get matches", err, nil)
	}
	members, err := s.roster.GetTournamentMembersTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get team members", err, nil)
	}
	participants, err := s.roster.GetParticipantsTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get participants", err, nil)
	}
	return s.standings(ctx, tournamentID, matches, members, participants, activeOnly), nil
}

// standings seeds every registered participant, tallies the matches and
// names the rows. activeOnly keeps the active pool alone.
func (s *FullMixService) standings(ctx context.Context, tournamentID uuid.UUID, matches []bracket.Match, members []bracket.TeamMember, participants []bracket.Participant, activeOnly bool) []bracket.Standing {
	var seed []bracket.MemberRef
	active := make(map[bracket.MemberRef]bool)
	for _, p := range participants {
		if p.Status == bracket.ParticipantRemoved {
			continue
		}
		seed = append(seed, p.Ref())
		if p.Status == bracket.ParticipantActive {
			active[p.Ref()] = true
		}
	}

	rows := fullmix.Tally(matches, members, seed)
	if activeOnly {
		kept := rows[:0]
		for _, r := range rows {
			if active[r.Ref] {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	names := s.names.ResolveNames(ctx, tournamentID, fullmix.Refs(rows))
	for i := range rows {
		rows[i].Name = names[rows[i].Ref]
	}
	bracket.SortStandings(rows)
	return rows
}

// ResolveMilestone decides the milestone split of a completed round and
// stores the decision on the round snapshot. Rounds before WinsToWin and
// fixed brackets have no milestone.
func (s *FullMixService) ResolveMilestone(ctx context.Context, tournamentID uuid.UUID, round int) (*fullmix.Decision, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	rs, err := s.loadRound(ctx, tx, tournamentID, round)
	if err != nil {
		return nil, err
	}
	if rs.settings.FixedTeams() || round < rs.settings.WinsToWin {
		return &fullmix.Decision{Outcome: bracket.OutcomeNone}, nil
	}
	if rs.snapshot.Document.Metadata.MilestoneConfirmed {
		return nil, ErrMilestoneResolved
	}

	decision, err := s.decideMilestone(ctx, tx, rs)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit", err, nil)
	}
	return decision, nil
}

func (s *FullMixService) decideMilestone(ctx context.Context, tx *sqlx.Tx, rs *roundState) (*fullmix.Decision, error) {
	matches, err := s.store.GetRoundMatchesTx(ctx, tx, rs.tournament.ID, rs.snapshot.RoundNumber)
	if err != nil {
		return nil, storageErr("failed to get round matches", err, nil)
	}
	if !roundComplete(matches) {
		return nil, ErrRoundIncomplete
	}

	standings, err := s.standingsTx(ctx, tx, rs.tournament.ID, true)
	if err != nil {
		return nil, err
	}
	decision := fullmix.ResolveMilestone(standings, rs.settings.MilestoneSize(), rs.settings.MilestoneMode)

	meta := &rs.snapshot.Document.Metadata
	meta.Outcome = decision.Outcome
	meta.Finalists = fullmix.Refs(decision.Finalists)
	meta.Eliminated = fullmix.Refs(decision.Eliminated)
	if err := s.snapshots.UpsertSnapshot(ctx, tx, rs.snapshot); err != nil {
		return nil, storageErr("failed to save round snapshot", err, nil)
	}

	s.logger.Info("milestone resolved",
		"tournament_id", rs.tournament.ID,
		"round", rs.snapshot.RoundNumber,
		"outcome", decision.Outcome,
		"finalists", len(decision.Finalists),
		"eliminated", len(decision.Eliminated),
	)
	return &decision, nil
}

// ConfirmMilestone applies the stored milestone decision of a round: the
// eliminated members leave the pool.
func (s *FullMixService) ConfirmMilestone(ctx context.Context, tournamentID uuid.UUID, round int, actorID *uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	rs, err := s.loadRound(ctx, tx, tournamentID, round)
	if err != nil {
		return err
	}
	meta := &rs.snapshot.Document.Metadata
	if meta.MilestoneConfirmed {
		return ErrMilestoneResolved
	}
	if meta.Outcome != bracket.OutcomeFinalists && meta.Outcome != bracket.OutcomeEliminated {
		return &ValidationError{Field: "round", Message: "round has no milestone decision to confirm"}
	}

	var ids []uuid.UUID
	for _, ref := range meta.Eliminated {
		if id, ok := ref.ParticipantID(); ok {
			ids = append(ids, id)
		}
	}
	if err := s.roster.UpdateParticipantStatusTx(ctx, tx, tournamentID, ids, bracket.ParticipantEliminated); err != nil {
		return storageErr("failed to eliminate participants", err, nil)
	}

	meta.MilestoneConfirmed = true
	if err := s.snapshots.UpsertSnapshot(ctx, tx, rs.snapshot); err != nil {
		return storageErr("failed to save round snapshot", err, nil)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("failed to commit", err, nil)
	}

	s.logger.Info("milestone confirmed", "tournament_id", tournamentID, "round", round, "outcome", meta.Outcome, "actor_id", actorID)
	text := fmt.Sprintf("%s: %d players are out after round %d", rs.tournament.Name, len(ids), round)
	if meta.Outcome == bracket.OutcomeFinalists {
		text = fmt.Sprintf("%s: %d finalists decided after round %d", rs.tournament.Name, len(meta.Finalists), round)
	}
	s.publishRound(ctx, rs.tournament, rs.snapshot, text)
	return nil
}

// NextRound closes the current round and opens the next one with the
// standings at its start and a fresh draft. A due milestone is resolved
// first and must be confirmed before play goes on: until then NextRound
// returns the current round's snapshot carrying the decision, for which
// Metadata.MilestonePending reports true.
func (s *FullMixService) NextRound(ctx context.Context, tournamentID uuid.UUID, actorID *uuid.UUID) (*bracket.RoundSnapshot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	current, err := s.snapshots.MaxRoundTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, storageErr("failed to get current round", err, nil)
	}
	if current == 0 {
		return nil, ErrRoundNotFound
	}
	rs, err := s.loadRound(ctx, tx, tournamentID, current)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.GetRoundMatchesTx(ctx, tx, tournamentID, current)
	if err != nil {
		return nil, storageErr("failed to get round matches", err, nil)
	}
	if !rs.snapshot.ApprovedMatches || !roundComplete(matches) {
		return nil, ErrRoundIncomplete
	}

	if over, err := s.finished(ctx, tx, rs); err != nil {
		return nil, err
	} else if over {
		return nil, s.finish(ctx, tx, rs.tournament)
	}

	meta := &rs.snapshot.Document.Metadata
	if !rs.settings.FixedTeams() && current >= rs.settings.WinsToWin && !meta.MilestoneConfirmed {
		if meta.Outcome == "" {
			if _, err := s.decideMilestone(ctx, tx, rs); err != nil {
				return nil, err
			}
		}
		if meta.MilestonePending() {
			if err := tx.Commit(); err != nil {
				return nil, storageErr("failed to commit", err, nil)
			}
			s.logger.Info("next round waits for milestone", "tournament_id", tournamentID, "round", current, "outcome", meta.Outcome)
			return rs.snapshot, nil
		}
	}

	standings, err := s.standingsTx(ctx, tx, tournamentID, false)
	if err != nil {
		return nil, err
	}
	preview, err := s.draftPreview(ctx, tx, rs.settings, current+1)
	if errors.Is(err, fullmix.ErrPoolTooSmall) {
		return nil, s.finish(ctx, tx, rs.tournament)
	}
	if err != nil {
		return nil, err
	}

	next := &bracket.RoundSnapshot{
		TournamentID: tournamentID,
		RoundNumber:  current + 1,
		Document:     bracket.RoundDocument{Preview: preview, Standings: standings},
	}
	if err := s.snapshots.UpsertSnapshot(ctx, tx, next); err != nil {
		return nil, storageErr("failed to save round snapshot", err, nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit", err, nil)
	}

	s.logger.Info("round opened", "tournament_id", tournamentID, "round", next.RoundNumber, "actor_id", actorID)
	s.publishRound(ctx, rs.tournament, next, fmt.Sprintf("%s: round %d teams drafted", rs.tournament.Name, next.RoundNumber))
	return next, nil
}

// finished reports whether the tournament has no round after the current
// one: a fixed bracket is over when its final is decided or no matches are
// scheduled next, a rotating one once the round after a confirmed finalists
// milestone has been played.
func (s *FullMixService) finished(ctx context.Context, tx *sqlx.Tx, rs *roundState) (bool, error) {
	current := rs.snapshot.RoundNumber
	if rs.settings.FixedTeams() {
		if rs.tournament.IsOver() {
			return true, nil
		}
		next, err := s.store.GetRoundMatchesTx(ctx, tx, rs.tournament.ID, current+1)
		if err != nil {
			return false, storageErr("failed to get round matches", err, nil)
		}
		return len(next) == 0, nil
	}

	snapshots, err := s.snapshots.GetSnapshotsTx(ctx, tx, rs.tournament.ID)
	if err != nil {
		return false, storageErr("failed to get round snapshots", err, nil)
	}
	for _, snap := range snapshots {
		meta := snap.Document.Metadata
		if snap.RoundNumber < current && meta.MilestoneConfirmed && meta.Outcome == bracket.OutcomeFinalists {
			return true, nil
		}
	}
	return false, nil
}

func (s *FullMixService) finish(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournament.ID, bracket.TournamentCompleted); err != nil {
		return storageErr("failed to update tournament status", err, nil)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("failed to commit", err, nil)
	}
	s.logger.Info("full mix finished", "tournament_id", tournament.ID)
	return ErrTournamentOver
}

// RecoverParticipant returns an eliminated participant to the pool and drops
// them from every round's eliminated list.
func (s *FullMixService) RecoverParticipant(ctx context.Context, tournamentID, participantID uuid.UUID, actorID *uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	if _, _, err := s.loadTournament(ctx, tx, tournamentID); err != nil {
		return err
	}
	p, err := s.roster.GetParticipantTx(ctx, tx, participantID)
	if err != nil {
		return storageErr("failed to get participant", err, ErrParticipantNotFound)
	}
	if p.TournamentID != tournamentID {
		return ErrParticipantNotFound
	}
	if p.Status != bracket.ParticipantEliminated {
		return &ValidationError{Field: "participant", Message: "participant is not eliminated"}
	}

	if err := s.roster.UpdateParticipantStatusTx(ctx, tx, tournamentID, []uuid.UUID{participantID}, bracket.ParticipantActive); err != nil {
		return storageErr("failed to recover participant", err, nil)
	}

	snapshots, err := s.snapshots.GetSnapshotsTx(ctx, tx, tournamentID)
	if err != nil {
		return storageErr("failed to get round snapshots", err, nil)
	}
	for i := range snapshots {
		meta := &snapshots[i].Document.Metadata
		before := len(meta.Eliminated)
		meta.RemoveEliminated(p.Ref())
		if len(meta.Eliminated) == before {
			continue
		}
		if err := s.snapshots.UpsertSnapshot(ctx, tx, &snapshots[i]); err != nil {
			return storageErr("failed to save round snapshot", err, nil)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("failed to commit", err, nil)
	}

	s.logger.Info("participant recovered", "tournament_id", tournamentID, "participant_id", participantID, "actor_id", actorID)
	return nil
}

func (s *FullMixService) publishRound(ctx context.Context, tournament *bracket.Tournament, snapshot *bracket.RoundSnapshot, text string) {
	s.dispatcher.Publish(ctx, tournament.ID, text, &notify.Event{
		Type:    notify.EventRoundUpdated,
		Payload: snapshot,
	})
}
