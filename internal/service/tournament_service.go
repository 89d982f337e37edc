package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/middleware"
	"github.com/AdamBeresnev/op-tournament/internal/notify"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentService struct {
	db         *sqlx.DB
	store      *store.TournamentStore
	roster     *store.RosterStore
	snapshots  *store.SnapshotStore
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

func NewTournamentService(db *sqlx.DB, stores *store.Stores, dispatcher *notify.Dispatcher, logger *slog.Logger) *TournamentService {
	return &TournamentService{
		db:         db,
		store:      stores.Tournaments,
		roster:     stores.Rosters,
		snapshots:  stores.Snapshots,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

type EntryInput struct {
	Name string `json:"name" validate:"required,max=50"`
}

type CreateTournamentInput struct {
	Name             string                 `json:"name" validate:"required,max=100"`
	Type             bracket.TournamentType `json:"type" validate:"required,oneof=single double full_mix"`
	ScoreRequirement int                    `json:"score_requirement" validate:"gte=0"`
	Entries          []EntryInput           `json:"entries" validate:"omitempty,dive"`
}

type TournamentData struct {
	Tournament   *bracket.Tournament   `json:"tournament"`
	Teams        []bracket.Team        `json:"teams"`
	Participants []bracket.Participant `json:"participants,omitempty"`
	Matches      []bracket.Match       `json:"matches"`
	NextMatchID  *uuid.UUID            `json:"next_match_id,omitempty"`
}

func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, storageErr("failed to get tournament", err, ErrTournamentNotFound)
	}

	teams, err := s.store.GetTeams(ctx, id)
	if err != nil {
		return nil, storageErr("failed to get teams", err, nil)
	}

	participants, err := s.roster.GetParticipants(ctx, id)
	if err != nil {
		return nil, storageErr("failed to get participants", err, nil)
	}

	matches, err := s.store.GetMatches(ctx, id)
	if err != nil {
		return nil, storageErr("failed to get matches", err, nil)
	}

	next, err := s.store.GetNextPendingMatch(ctx, id)
	if err != nil {
		return nil, storageErr("failed to get next match", err, nil)
	}

	var nextMatchID *uuid.UUID
	if next != nil {
		nextMatchID = &next.ID
	}

	return &TournamentData{
		Tournament:   tournament,
		Teams:        teams,
		Participants: participants,
		Matches:      matches,
		NextMatchID:  nextMatchID,
	}, nil
}

func (s *TournamentService) GetTournamentsForUser(ctx context.Context) ([]bracket.Tournament, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("user ID not found in the context")
	}
	return s.store.GetTournamentsByOwner(ctx, userID)
}

// CreateTournament stores the tournament and, for elimination types, its
// teams and generated bracket. Full Mix tournaments start empty and get their
// pool through participant registration.
func (s *TournamentService) CreateTournament(ctx context.Context, in CreateTournamentInput) (uuid.UUID, error) {
	if err := validateInput(in); err != nil {
		return uuid.Nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	tournamentID := uuid.New()
	ownerID, _ := middleware.GetUserIDFromContext(ctx)
	tournament := bracket.Tournament{
		ID:               tournamentID,
		OwnerID:          ownerID,
		Name:             in.Name,
		Status:           bracket.TournamentStarted,
		Type:             in.Type,
		ScoreRequirement: in.ScoreRequirement,
	}
	if in.Type == bracket.FullMix {
		tournament.Status = bracket.TournamentDraft
	}

	if err := s.store.CreateTournament(ctx, tx, &tournament); err != nil {
		return uuid.Nil, storageErr("failed to create tournament", err, nil)
	}

	if in.Type != bracket.FullMix {
		teams := make([]bracket.Team, 0, len(in.Entries))
		for i, input := range in.Entries {
			teams = append(teams, bracket.Team{
				ID:           uuid.New(),
				TournamentID: tournamentID,
				Name:         input.Name,
				Seed:         i + 1,
			})
		}

		if err := s.store.CreateTeams(ctx, tx, teams); err != nil {
			return uuid.Nil, storageErr("failed to create teams", err, nil)
		}

		var matches []bracket.Match
		if in.Type == bracket.DoubleElimination {
			matches = GenerateDoubleElimBracket(tournamentID, teams)
		} else {
			matches = GenerateSingleElimBracket(tournamentID, teams)
		}

		if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
			return uuid.Nil, storageErr("failed to create matches", err, nil)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, storageErr("failed to commit", err, nil)
	}

	s.logger.Info("tournament created", "tournament_id", tournamentID, "type", in.Type, "entries", len(in.Entries))
	return tournamentID, nil
}

// ClearBracket deletes every match of the tournament and returns how many
// were removed. Full Mix tournaments also lose their teams, round snapshots
// and settings, and eliminated participants rejoin the pool.
func (s *TournamentService) ClearBracket(ctx context.Context, tournamentID uuid.UUID, actorID *uuid.UUID) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return 0, storageErr("failed to get tournament", err, ErrTournamentNotFound)
	}

	deleted, err := s.store.DeleteMatches(ctx, tx, tournamentID)
	if err != nil {
		return 0, storageErr("failed to delete matches", err, nil)
	}

	if tournament.IsFullMix() {
		if err := s.store.DeleteTeams(ctx, tx, tournamentID); err != nil {
			return 0, storageErr("failed to delete teams", err, nil)
		}
		if err := s.snapshots.DeleteSnapshots(ctx, tx, tournamentID); err != nil {
			return 0, storageErr("failed to delete round snapshots", err, nil)
		}
		if err := s.snapshots.DeleteSettings(ctx, tx, tournamentID); err != nil {
			return 0, storageErr("failed to delete settings", err, nil)
		}

		participants, err := s.roster.GetParticipantsTx(ctx, tx, tournamentID)
		if err != nil {
			return 0, storageErr("failed to get participants", err, nil)
		}
		var eliminated []uuid.UUID
		for _, p := range participants {
			if p.Status == bracket.ParticipantEliminated {
				eliminated = append(eliminated, p.ID)
			}
		}
		if err := s.roster.UpdateParticipantStatusTx(ctx, tx, tournamentID, eliminated, bracket.ParticipantActive); err != nil {
			return 0, storageErr("failed to reset participants", err, nil)
		}
	}

	if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournamentID, bracket.TournamentDraft); err != nil {
		return 0, storageErr("failed to update tournament status", err, nil)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("failed to commit", err, nil)
	}

	s.logger.Info("bracket cleared", "tournament_id", tournamentID, "deleted_matches", deleted, "actor_id", actorID)
	s.dispatcher.Publish(ctx, tournamentID, fmt.Sprintf("%s: bracket cleared", tournament.Name), &notify.Event{
		Type:    notify.EventBracketCleared,
		Payload: map[string]int64{"deleted_matches": deleted},
	})
	return deleted, nil
}
