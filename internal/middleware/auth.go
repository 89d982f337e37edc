package middleware

import (
	"context"
	"net/http"

	"github.com/AdamBeresnev/op-tournament/internal/store"
	users "github.com/AdamBeresnev/op-tournament/internal/user"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	slackauth "github.com/markbates/goth/providers/slack"
)

type ContextKey string

const UserIDKey ContextKey = "userID"
const SuperUserID = "00000000-0000-0000-0000-000000000001"

// ActorHeader names the acting user on development servers started with
// DEV_ACTOR_HEADER.
const ActorHeader = "X-Actor-ID"

// InitAuth registers the Slack sign in provider and the cookie store gothic
// keeps the OAuth state in.
func InitAuth(clientID, clientSecret, callbackURL, sessionSecret string) {
	cookieStore := sessions.NewCookieStore([]byte(sessionSecret))
	cookieStore.Options.HttpOnly = true
	gothic.Store = cookieStore

	goth.UseProviders(
		slackauth.New(clientID, clientSecret, callbackURL),
	)
}

// LoadActor resolves the acting user from the session and stores it in the
// request context. With trustActorHeader set, requests without a session may
// name the actor through X-Actor-ID.
func LoadActor(sessionManager *scs.SessionManager, userStore *store.UserStore, trustActorHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userIDStr := sessionManager.GetString(r.Context(), "userID")
			if userIDStr == "" && trustActorHeader {
				userIDStr = r.Header.Get(ActorHeader)
			}
			if userIDStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := uuid.Parse(userIDStr)
			if err != nil {
				sessionManager.Remove(r.Context(), "userID")
				next.ServeHTTP(w, r)
				return
			}

			// Unknown ids are not actors
			user, err := userStore.GetUser(r.Context(), userID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserIDFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns ctx carrying user as the acting user.
func WithUser(ctx context.Context, user *users.User) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, user.ID)
	return context.WithValue(ctx, users.UserKey, user)
}

func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(UserIDKey)
	if val == nil {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	return id, ok
}

// ActorID returns the acting user id, or nil when the request is anonymous.
func ActorID(ctx context.Context) *uuid.UUID {
	id, ok := GetUserIDFromContext(ctx)
	if !ok {
		return nil
	}
	return &id
}

func GetAuthenticatedUser(ctx context.Context) *users.User {
	val := ctx.Value(users.UserKey)
	if val == nil {
		return nil
	}
	user, ok := val.(*users.User)
	if !ok {
		return nil
	}
	return user
}
