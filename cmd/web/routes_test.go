package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-tournament/internal/db/dbtest"
	"github.com/AdamBeresnev/op-tournament/internal/metrics"
	"github.com/AdamBeresnev/op-tournament/internal/middleware"
	"github.com/AdamBeresnev/op-tournament/internal/notify"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, trustActorHeader bool) http.Handler {
	t.Helper()

	database := dbtest.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMock()
	hub := notify.NewHub(logger)
	dispatcher := notify.NewDispatcher(logger, m, time.Second, notify.WithBroadcaster(hub))
	t.Cleanup(dispatcher.Wait)

	app := newApp(database, store.NewStores(database), dispatcher, m, hub, logger)
	return app.routes(scs.New(), trustActorHeader)
}

func TestSlackLoginRedirectsToProvider(t *testing.T) {
	middleware.InitAuth("client-id", "client-secret", "http://localhost:8080/auth/slack/callback", "0123456789abcdef0123456789abcdef")
	router := newTestRouter(t, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/slack", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "slack.com")
	assert.Contains(t, location, "client_id=client-id")

	// A callback without the provider's code and state does not log anyone in
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/slack/callback?state=forged&code=forged", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	for _, c := range rec.Result().Cookies() {
		assert.NotEqual(t, "session", c.Name)
	}
}

func TestSelfAssertedIdentityIsRejected(t *testing.T) {
	router := newTestRouter(t, false)

	body := `{"provider":"slack","provider_id":"U123","username":"mallory"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/slack", strings.NewReader(body)))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestActorHeaderNeedsDevelopmentMode(t *testing.T) {
	testCases := []struct {
		name        string
		trustHeader bool
		expected    int
	}{
		{name: "production", trustHeader: false, expected: http.StatusUnauthorized},
		{name: "development", trustHeader: true, expected: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, tc.trustHeader)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/guest", nil))
			require.Equal(t, http.StatusOK, rec.Code)

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set(middleware.ActorHeader, middleware.SuperUserID)
			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.expected, rec.Code)
		})
	}
}
