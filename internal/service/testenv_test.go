package service

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/db/dbtest"
	"github.com/AdamBeresnev/op-tournament/internal/metrics"
	"github.com/AdamBeresnev/op-tournament/internal/middleware"
	"github.com/AdamBeresnev/op-tournament/internal/notify"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []notify.Event
}

func (b *recordingBroadcaster) Broadcast(ctx context.Context, tournamentID uuid.UUID, event notify.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	db           *sqlx.DB
	stores       *store.Stores
	metrics      *metrics.Mock
	broadcaster  *recordingBroadcaster
	dispatcher   *notify.Dispatcher
	tournaments  *TournamentService
	matches      *MatchService
	participants *ParticipantService
	fullMix      *FullMixService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := dbtest.SetupTestDB(t)
	stores := store.NewStores(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMock()
	b := &recordingBroadcaster{}
	d := notify.NewDispatcher(logger, m, time.Second, notify.WithBroadcaster(b))
	t.Cleanup(d.Wait)

	return &testEnv{
		db:           db,
		stores:       stores,
		metrics:      m,
		broadcaster:  b,
		dispatcher:   d,
		tournaments:  NewTournamentService(db, stores, d, logger),
		matches:      NewMatchService(db, stores, d, m, logger),
		participants: NewParticipantService(db, stores, logger),
		fullMix: NewFullMixService(db, stores, NewNameResolver(stores, logger), d, logger,
			WithRand(rand.New(rand.NewPCG(7, 11)))),
	}
}

func testContext() context.Context {
	return middleware.WithUserID(context.Background(), uuid.MustParse(middleware.SuperUserID))
}

func (e *testEnv) createBracket(t *testing.T, kind bracket.TournamentType, names ...string) uuid.UUID {
	t.Helper()
	entries := make([]EntryInput, len(names))
	for i, n := range names {
		entries[i] = EntryInput{Name: n}
	}
	id, err := e.tournaments.CreateTournament(testContext(), CreateTournamentInput{
		Name:    "Test Tournament",
		Type:    kind,
		Entries: entries,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) findMatch(t *testing.T, tournamentID uuid.UUID, side bracket.BracketSide, round, order int) *bracket.Match {
	t.Helper()
	matches, err := e.stores.Tournaments.GetMatches(context.Background(), tournamentID)
	require.NoError(t, err)
	for _, m := range matches {
		if m.BracketSide == side && m.RoundNumber == round && m.MatchOrder == order {
			return &m
		}
	}
	return nil
}

func (e *testEnv) reload(t *testing.T, id uuid.UUID) *bracket.Match {
	t.Helper()
	m, err := e.stores.Tournaments.GetMatch(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (e *testEnv) submit(t *testing.T, matchID uuid.UUID, winnerSlot, score1, score2 int) *ResultOutcome {
	t.Helper()
	outcome, err := e.matches.SubmitResult(testContext(), SubmitResultInput{
		MatchID:    matchID,
		WinnerSlot: winnerSlot,
		Score1:     score1,
		Score2:     score2,
	})
	require.NoError(t, err)
	return outcome
}

// win records a 2-0 result for slot.
func (e *testEnv) win(t *testing.T, matchID uuid.UUID, slot int) *ResultOutcome {
	t.Helper()
	if slot == 2 {
		return e.submit(t, matchID, 2, 0, 2)
	}
	return e.submit(t, matchID, 1, 2, 0)
}

func teamsBySeed(t *testing.T, e *testEnv, tournamentID uuid.UUID) map[int]uuid.UUID {
	t.Helper()
	teams, err := e.stores.Tournaments.GetTeams(context.Background(), tournamentID)
	require.NoError(t, err)
	out := make(map[int]uuid.UUID, len(teams))
	for _, team := range teams {
		out[team.Seed] = team.ID
	}
	return out
}
