package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/httputil"
	"github.com/AdamBeresnev/op-tournament/internal/metrics"
	"github.com/AdamBeresnev/op-tournament/internal/middleware"
	"github.com/AdamBeresnev/op-tournament/internal/notify"
	"github.com/AdamBeresnev/op-tournament/internal/service"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth/gothic"
)

const maxRosterBytes = 64 << 10

type app struct {
	users        *store.UserStore
	tournaments  *service.TournamentService
	matches      *service.MatchService
	participants *service.ParticipantService
	fullMix      *service.FullMixService
	userService  *service.UserService
	hub          *notify.Hub
	logger       *slog.Logger
}

func newApp(db *sqlx.DB, stores *store.Stores, dispatcher *notify.Dispatcher, m metrics.Metrics, hub *notify.Hub, logger *slog.Logger) *app {
	return &app{
		users:        stores.Users,
		tournaments:  service.NewTournamentService(db, stores, dispatcher, logger),
		matches:      service.NewMatchService(db, stores, dispatcher, m, logger),
		participants: service.NewParticipantService(db, stores, logger),
		fullMix:      service.NewFullMixService(db, stores, service.NewNameResolver(stores, logger), dispatcher, logger),
		userService:  service.NewUserService(db, stores.Users),
		hub:          hub,
		logger:       logger,
	}
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func roundParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil || round < 1 {
		httputil.BadRequest(w, "Invalid round", err)
		return 0, false
	}
	return round, true
}

func (a *app) routes(sessionManager *scs.SessionManager, trustActorHeader bool) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(sessionManager.LoadAndSave)
	r.Use(middleware.LoadActor(sessionManager, a.users, trustActorHeader))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.NewMetricsHandler())

	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		user, err := a.userService.EnsureGuestUser(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to login as guest", err)
			return
		}
		if err := sessionManager.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		sessionManager.Put(r.Context(), "userID", user.ID.String())
		httputil.JSON(w, http.StatusOK, user)
	})

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		r = gothic.GetContextWithProvider(r, chi.URLParam(r, "provider"))
		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		r = gothic.GetContextWithProvider(r, chi.URLParam(r, "provider"))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}
		user, err := a.userService.FindOrCreateUserByProvider(r.Context(), gothUser)
		if err != nil {
			httputil.WriteError(w, "Failed to find or create user", err)
			return
		}
		if err := sessionManager.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		sessionManager.Put(r.Context(), "userID", user.ID.String())
		httputil.JSON(w, http.StatusOK, user)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := sessionManager.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to logout", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/ws/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		a.hub.ServeWS(w, r, id)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			httputil.JSON(w, http.StatusOK, middleware.GetAuthenticatedUser(r.Context()))
		})

		r.Get("/tournaments", func(w http.ResponseWriter, r *http.Request) {
			tournaments, err := a.tournaments.GetTournamentsForUser(r.Context())
			if err != nil {
				httputil.InternalServerError(w, "Failed to get tournaments", err)
				return
			}
			httputil.JSON(w, http.StatusOK, tournaments)
		})

		r.Post("/tournaments", func(w http.ResponseWriter, r *http.Request) {
			var in service.CreateTournamentInput
			if err := httputil.Decode(r, &in); err != nil {
				httputil.BadRequest(w, "Invalid tournament", err)
				return
			}
			id, err := a.tournaments.CreateTournament(r.Context(), in)
			if err != nil {
				httputil.WriteError(w, "Failed to create tournament", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, map[string]uuid.UUID{"id": id})
		})

		r.Route("/tournaments/{id}", func(r chi.Router) {
			r.Get("/", a.getTournament)
			r.Get("/bracket", a.getBracket)
			r.Get("/matches", a.getMatches)
			r.Delete("/matches", a.clearBracket)
			r.Post("/participants", a.registerParticipants)
			r.Delete("/participants/{participantID}", a.removeParticipant)
			r.Post("/participants/{participantID}/recover", a.recoverParticipant)
			r.Get("/standings", a.getStandings)
			r.Post("/fullmix", a.startFullMix)
			r.Get("/rounds/current", a.currentRound)
			r.Post("/rounds/next", a.nextRound)

			r.Route("/rounds/{round}", func(r chi.Router) {
				r.Get("/", a.getRound)
				r.Get("/complete", a.isRoundComplete)
				r.Post("/draft", a.draftRound)
				r.Post("/approve-teams", a.approveTeams)
				r.Post("/pairing", a.draftPairing)
				r.Post("/approve-matches", a.approveMatches)
				r.Post("/reshuffle", a.reshuffleRound)
				r.Post("/milestone", a.resolveMilestone)
				r.Post("/milestone/confirm", a.confirmMilestone)
			})
		})

		r.Get("/matches/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := uuidParam(w, r, "id")
			if !ok {
				return
			}
			data, err := a.matches.GetMatch(r.Context(), id)
			if err != nil {
				httputil.WriteError(w, "Failed to get match", err)
				return
			}
			httputil.JSON(w, http.StatusOK, data)
		})

		r.Post("/matches/{id}/result", a.submitResult)
	})

	return r
}

func (a *app) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	data, err := a.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get tournament", err)
		return
	}
	httputil.JSON(w, http.StatusOK, data)
}

func (a *app) getBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	data, err := a.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get bracket", err)
		return
	}
	httputil.JSON(w, http.StatusOK, bracket.PrepareLayout(data.Teams, data.Matches))
}

func (a *app) getMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	matches, err := a.matches.GetMatches(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get matches", err)
		return
	}
	httputil.JSON(w, http.StatusOK, matches)
}

func (a *app) clearBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	deleted, err := a.tournaments.ClearBracket(r.Context(), id, middleware.ActorID(r.Context()))
	if err != nil {
		httputil.WriteError(w, "Failed to clear bracket", err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]int64{"deleted_matches": deleted})
}

func (a *app) submitResult(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var in service.SubmitResultInput
	if err := httputil.Decode(r, &in); err != nil {
		httputil.BadRequest(w, "Invalid result", err)
		return
	}
	in.MatchID = id
	in.ActorID = middleware.ActorID(r.Context())

	outcome, err := a.matches.SubmitResult(r.Context(), in)
	if errors.Is(err, service.ErrUnchanged) {
		httputil.JSON(w, http.StatusOK, map[string]any{"unchanged": true, "outcome": outcome})
		return
	}
	if err != nil {
		httputil.WriteError(w, "Failed to submit result", err)
		return
	}
	httputil.JSON(w, http.StatusOK, outcome)
}

// registerParticipants takes the roster as a plain text body, one
// "name[,rating]" per line.
func (a *app) registerParticipants(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRosterBytes))
	if err != nil {
		httputil.BadRequest(w, "Invalid roster", err)
		return
	}
	participants, err := a.participants.RegisterParticipants(r.Context(), id, string(body))
	if err != nil {
		httputil.WriteError(w, "Failed to register participants", err)
		return
	}
	httputil.JSON(w, http.StatusCreated, participants)
}

func (a *app) removeParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	participantID, ok := uuidParam(w, r, "participantID")
	if !ok {
		return
	}
	if err := a.participants.RemoveParticipant(r.Context(), id, participantID); err != nil {
		httputil.WriteError(w, "Failed to remove participant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) recoverParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	participantID, ok := uuidParam(w, r, "participantID")
	if !ok {
		return
	}
	if err := a.fullMix.RecoverParticipant(r.Context(), id, participantID, middleware.ActorID(r.Context())); err != nil {
		httputil.WriteError(w, "Failed to recover participant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) getStandings(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	standings, err := a.fullMix.GetStandings(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get standings", err)
		return
	}
	httputil.JSON(w, http.StatusOK, standings)
}

func (a *app) startFullMix(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var opts service.FullMixOptions
	if err := httputil.Decode(r, &opts); err != nil {
		httputil.BadRequest(w, "Invalid options", err)
		return
	}
	snapshot, err := a.fullMix.StartFullMix(r.Context(), id, opts, middleware.ActorID(r.Context()))
	if err != nil {
		httputil.WriteError(w, "Failed to start full mix", err)
		return
	}
	httputil.JSON(w, http.StatusCreated, snapshot)
}

func (a *app) currentRound(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	round, err := a.fullMix.CurrentRound(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, "Failed to get current round", err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]int{"round": round})
}

func (a *app) nextRound(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	snapshot, err := a.fullMix.NextRound(r.Context(), id, middleware.ActorID(r.Context()))
	if err != nil {
		httputil.WriteError(w, "Failed to open next round", err)
		return
	}
	// A due milestone was decided and stored, but no round was opened
	if snapshot.Document.Metadata.MilestonePending() {
		httputil.JSON(w, http.StatusOK, pendingMilestoneResponse{MilestonePending: true, Round: snapshot})
		return
	}
	httputil.JSON(w, http.StatusCreated, snapshot)
}

type pendingMilestoneResponse struct {
	MilestonePending bool                   `json:"milestone_pending"`
	Round            *bracket.RoundSnapshot `json:"round"`
}

// roundHandler parses the tournament id and round number before calling fn.
func roundHandler(fn func(w http.ResponseWriter, r *http.Request, id uuid.UUID, round int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		round, ok := roundParam(w, r)
		if !ok {
			return
		}
		fn(w, r, id, round)
	}
}

func (a *app) getRound(w http.ResponseWriter, r *http.Request) {
	roundHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID, round int) {
		snapshot, err := a.fullMix.GetRound(r.Context(), id, round)
		if err != nil {
			httputil.WriteError(w, "Failed to get round", err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]any{"state": snapshot.State(), "round": snapshot})
	})(w, r)
}

func (a *app) isRoundComplete(w http.ResponseWriter, r *http.Request) {
	roundHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID, round int) {
		complete, err := a.fullMix.IsRoundComplete(r.Context(), id, round)
		if err != nil {
			httputil.WriteError(w, "Failed to check round", err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]bool{"complete": complete})
	})(w, r)
}

func (a *app) draftRound(w http.ResponseWriter, r *http.Request) {
	roundHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID, round int) {
		snapshot, err := a.fullMix.DraftRound(r.Context(), id, round)
		if err != nil {
			httputil.WriteError(w, "Failed to draft round", err)
			return
		}
		httputil.JSON(w, http.StatusOK, snapshot)
	})(w, r)
}

func (a *app) approveTeams(w http.ResponseWriter, r *http.Request) {
	roundHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID, round int) {
		snapshot, err := a.fullMix.ApproveTeams(r.Context(), id, round, middleware.ActorID(r.Context()))
		if err != nil {
			httputil.WriteError(w, "Failed to approve teams", err)
			return
		}
		httputil.JSON(w, http.StatusOK, snapshot)
	})(w, r)
}

// draftPairing accepts {"pairs": [[0,3],[1,2]]}. An empty body draws a
// random pairing.
func (a *app) draftPairing(w http.ResponseWriter, r *http.Request) {
	roundHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID, round int) {
		var body struct {
			Pairs []bracket.Pairing `json:"pairs"`
		}
		if err := httputil.Decode(r, &body); err != nil && !errors.Is(err, io.EOF) {
			httputil.BadRequest(w, "Invalid pairing", err)
			return
		}
		pairs, err := a.fullMix.DraftPairing(r.Context(), id, round, body.Pairs)
		if err != nil {
			httputil.WriteError(w, "Failed to draft pairing", err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]any{"pairs": pairs})
	})(w, r)
}

func (a *app) approveMatches(w http.ResponseWriter, r *http.Request) {
	roundHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID, round int) {
		snapshot, err := a.fullMix.ApproveMatches(r.Context(), id, round, middleware.ActorID(r.Context()))
		if err != nil {
			httputil.WriteError(w, "Failed to approve matches", err)
			return
		}
		httputil.JSON(w, http.StatusOK, snapshot)
	})(w, r)
}

func (a *app) reshuffleRound(w http.ResponseWriter, r *http.Request) {
	roundHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID, round int) {
		snapshot, err := a.fullMix.ReshuffleRound(r.Context(), id, round, middleware.ActorID(r.Context()))
		if err != nil {
			httputil.WriteError(w, "Failed to reshuffle round", err)
			return
		}
		httputil.JSON(w, http.StatusOK, snapshot)
	})(w, r)
}

func (a *app) resolveMilestone(w http.ResponseWriter, r *http.Request) {
	roundHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID, round int) {
		decision, err := a.fullMix.ResolveMilestone(r.Context(), id, round)
		if err != nil {
			httputil.WriteError(w, "Failed to resolve milestone", err)
			return
		}
		httputil.JSON(w, http.StatusOK, decision)
	})(w, r)
}

func (a *app) confirmMilestone(w http.ResponseWriter, r *http.Request) {
	roundHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID, round int) {
		if err := a.fullMix.ConfirmMilestone(r.Context(), id, round, middleware.ActorID(r.Context())); err != nil {
			httputil.WriteError(w, "Failed to confirm milestone", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})(w, r)
}
