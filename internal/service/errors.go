package service

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/google/uuid"
)

// NotFoundError represents an error when an entity is not found
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

// Is matches any NotFoundError of the same entity
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	if !ok {
		return false
	}
	return e.Entity == t.Entity
}

var (
	ErrTournamentNotFound  = &NotFoundError{Entity: "tournament"}
	ErrMatchNotFound       = &NotFoundError{Entity: "match"}
	ErrTeamNotFound        = &NotFoundError{Entity: "team"}
	ErrParticipantNotFound = &NotFoundError{Entity: "participant"}
	ErrRoundNotFound       = &NotFoundError{Entity: "round"}
	ErrSettingsNotFound    = &NotFoundError{Entity: "full mix settings"}
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

var (
	// ErrUnchanged is returned when a submission matches the stored result.
	ErrUnchanged = errors.New("result unchanged")

	ErrTeamsNotApproved  = errors.New("teams must be approved before matches")
	ErrTeamsApproved     = errors.New("teams are already approved for this round")
	ErrMatchesApproved   = errors.New("matches are already approved for this round")
	ErrRoundLocked       = errors.New("round has completed matches")
	ErrRoundIncomplete   = errors.New("round is not complete")
	ErrNotFullMix        = errors.New("tournament is not a full mix tournament")
	ErrIntegrity         = errors.New("integrity violation")
	ErrStructuralDefect  = errors.New("structural defect")
	ErrTransient         = errors.New("transient storage failure")
	ErrRotatingModeOnly  = errors.New("operation requires rotating teams")
	ErrMilestoneResolved = errors.New("milestone already confirmed")
	ErrFullMixStarted    = errors.New("full mix already started")
	ErrTournamentOver    = errors.New("tournament has no further rounds")
)

// IntegrityViolationError rejects an edit whose participants already played
// a completed downstream match.
type IntegrityViolationError struct {
	MatchID           uuid.UUID
	DownstreamMatchID uuid.UUID
	DownstreamNumber  int
	Score             string
}

func (e *IntegrityViolationError) Error() string {
	return fmt.Sprintf("match %s cannot be edited: downstream match #%d (%s) is already completed with score %s",
		e.MatchID, e.DownstreamNumber, e.DownstreamMatchID, e.Score)
}

func (e *IntegrityViolationError) Is(target error) bool {
	return target == ErrIntegrity
}

// StructuralDefectError means the bracket graph routes more than two teams
// into a match.
type StructuralDefectError struct {
	MatchID uuid.UUID
	TeamID  uuid.UUID
	Reason  string
}

func (e *StructuralDefectError) Error() string {
	return fmt.Sprintf("structural defect at match %s placing team %s: %s", e.MatchID, e.TeamID, e.Reason)
}

func (e *StructuralDefectError) Is(target error) bool {
	return target == ErrStructuralDefect
}

// TransientError wraps a storage failure that is safe to retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// storageErr maps a store error: missing rows become notFound, lock
// contention becomes a TransientError, anything else is wrapped with op.
func storageErr(op string, err error, notFound *NotFoundError) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	if store.IsTransient(err) {
		return &TransientError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
