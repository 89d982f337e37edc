package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const maxParticipantName = 50

type ParticipantService struct {
	db     *sqlx.DB
	store  *store.TournamentStore
	roster *store.RosterStore
	logger *slog.Logger
}

func NewParticipantService(db *sqlx.DB, stores *store.Stores, logger *slog.Logger) *ParticipantService {
	return &ParticipantService{db: db, store: stores.Tournaments, roster: stores.Rosters, logger: logger}
}

// RegisterParticipants adds one participant per non-empty line of rosterText.
// A line is "name" or "name,rating".
func (s *ParticipantService) RegisterParticipants(ctx context.Context, tournamentID uuid.UUID, rosterText string) ([]bracket.Participant, error) {
	participants, err := parseRoster(tournamentID, rosterText)
	if err != nil {
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

	if err := s.roster.CreateParticipants(ctx, tx, participants); err != nil {
		return nil, storageErr("failed to create participants", err, nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("failed to commit", err, nil)
	}

	s.logger.Info("participants registered", "tournament_id", tournamentID, "count", len(participants))
	return participants, nil
}

func parseRoster(tournamentID uuid.UUID, rosterText string) ([]bracket.Participant, error) {
	var participants []bracket.Participant
	for i, line := range strings.Split(rosterText, "\n") {
		fields := strings.SplitN(line, ",", 2)
		name := utils.StringOrNil(fields[0])
		if name == nil {
			continue
		}
		if len(*name) > maxParticipantName {
			return nil, &ValidationError{Field: "roster", Message: fmt.Sprintf("line %d: name longer than %d characters", i+1, maxParticipantName)}
		}

		rating := 0
		if len(fields) == 2 {
			if raw := utils.StringOrNil(fields[1]); raw != nil {
				r, err := strconv.Atoi(*raw)
				if err != nil {
					return nil, &ValidationError{Field: "roster", Message: fmt.Sprintf("line %d: invalid rating %q", i+1, *raw)}
				}
				rating = r
			}
		}

		participants = append(participants, bracket.Participant{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Name:         *name,
			Rating:       rating,
			Status:       bracket.ParticipantActive,
		})
	}

	if len(participants) == 0 {
		return nil, &ValidationError{Field: "roster", Message: "no participants given"}
	}
	return participants, nil
}

// RemoveParticipant takes a participant out of the pool. Their past rosters
// and results stay in place.
func (s *ParticipantService) RemoveParticipant(ctx context.Context, tournamentID, participantID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("failed to begin transaction", err, nil)
	}
	defer tx.Rollback()

	p, err := s.roster.GetParticipantTx(ctx, tx, participantID)
	if err != nil {
		return storageErr("failed to get participant", err, ErrParticipantNotFound)
	}
	if p.TournamentID != tournamentID {
		return ErrParticipantNotFound
	}

	if err := s.roster.UpdateParticipantStatusTx(ctx, tx, tournamentID, []uuid.UUID{participantID}, bracket.ParticipantRemoved); err != nil {
		return storageErr("failed to remove participant", err, nil)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("failed to commit", err, nil)
	}

	s.logger.Info("participant removed", "tournament_id", tournamentID, "participant_id", participantID)
	return nil
}
