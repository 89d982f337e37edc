package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AdamBeresnev/op-tournament/internal/db/dbtest"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	users "github.com/AdamBeresnev/op-tournament/internal/user"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAuth(t *testing.T) {
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), uuid.New()))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestActorID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, ActorID(req.Context()))
	assert.Nil(t, GetAuthenticatedUser(req.Context()))

	user := &users.User{ID: uuid.New(), Username: "alice"}
	ctx := WithUser(req.Context(), user)

	actor := ActorID(ctx)
	require.NotNil(t, actor)
	assert.Equal(t, user.ID, *actor)
	assert.Same(t, user, GetAuthenticatedUser(ctx))
}

func TestLoadActor_ActorHeader(t *testing.T) {
	db := dbtest.SetupTestDB(t)
	userStore := store.NewUserStore(db)
	user := &users.User{ID: uuid.New(), Email: "alice@example.com", Username: "alice"}
	require.NoError(t, userStore.CreateUser(context.Background(), user))

	testCases := []struct {
		name        string
		trustHeader bool
		header      string
		expected    *uuid.UUID
	}{
		{name: "header ignored by default", trustHeader: false, header: user.ID.String(), expected: nil},
		{name: "header trusted in development", trustHeader: true, header: user.ID.String(), expected: &user.ID},
		{name: "unknown user is not an actor", trustHeader: true, header: uuid.NewString(), expected: nil},
		{name: "malformed id is not an actor", trustHeader: true, header: "alice", expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sessionManager := scs.New()
			var actor *uuid.UUID
			handler := sessionManager.LoadAndSave(LoadActor(sessionManager, userStore, tc.trustHeader)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					actor = ActorID(r.Context())
				}),
			))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(ActorHeader, tc.header)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tc.expected, actor)
		})
	}
}
