package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/op-tournament/internal/service"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	JSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	JSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	JSON(w, http.StatusNotFound, errorBody{Error: msg})
}

// Conflicting workflow states all answer 409.
var conflicts = []error{
	service.ErrUnchanged,
	service.ErrIntegrity,
	service.ErrStructuralDefect,
	service.ErrTeamsNotApproved,
	service.ErrTeamsApproved,
	service.ErrMatchesApproved,
	service.ErrRoundLocked,
	service.ErrRoundIncomplete,
	service.ErrMilestoneResolved,
	service.ErrFullMixStarted,
	service.ErrTournamentOver,
	service.ErrNotFullMix,
	service.ErrRotatingModeOnly,
}

// WriteError maps a service error to its status code and writes it.
func WriteError(w http.ResponseWriter, msg string, err error) {
	var (
		notFound   *service.NotFoundError
		validation *service.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		NotFound(w, err.Error(), err)
	case errors.As(err, &validation):
		slog.Warn("bad request", "message", msg, "error", err)
		JSON(w, http.StatusBadRequest, errorBody{Error: validation.Message, Field: validation.Field})
	case errors.Is(err, service.ErrTransient):
		slog.Warn("transient storage failure", "message", msg, "error", err)
		w.Header().Set("Retry-After", "1")
		JSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage busy, retry"})
	case isConflict(err):
		slog.Warn("conflict", "message", msg, "error", err)
		JSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		InternalServerError(w, msg, err)
	}
}

func isConflict(err error) bool {
	for _, target := range conflicts {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
