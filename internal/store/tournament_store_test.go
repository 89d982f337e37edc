package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/AdamBeresnev/op-tournament/internal/db/dbtest"
	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSuperUserID = "00000000-0000-0000-0000-000000000001"

func createTestTournament(t *testing.T, db *sqlx.DB, store *TournamentStore) *bracket.Tournament {
	t.Helper()

	tournament := &bracket.Tournament{
		ID:               uuid.New(),
		OwnerID:          uuid.MustParse(testSuperUserID),
		Name:             "Test Tournament",
		Status:           bracket.TournamentDraft,
		Type:             bracket.SingleElimination,
		ScoreRequirement: 0,
		CreatedAt:        time.Now().UTC(),
	}

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateTournament(context.Background(), tx, tournament))
	require.NoError(t, tx.Commit())
	return tournament
}

func createTestTeams(t *testing.T, db *sqlx.DB, store *TournamentStore, tournamentID uuid.UUID, n int) []bracket.Team {
	t.Helper()

	teams := make([]bracket.Team, n)
	for i := range teams {
		teams[i] = bracket.Team{ID: uuid.New(), TournamentID: tournamentID, Name: "Team " + string(rune('A'+i)), Seed: i + 1}
	}

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateTeams(context.Background(), tx, teams))
	require.NoError(t, tx.Commit())
	return teams
}

func TestCreateTournament(t *testing.T) {
	db := dbtest.SetupTestDB(t)
	store := NewTournamentStore(db)

	tournament := createTestTournament(t, db, store)

	fetched, err := store.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	assert.Equal(t, tournament.ID, fetched.ID)
	assert.Equal(t, tournament.OwnerID, fetched.OwnerID)
	assert.Equal(t, tournament.Name, fetched.Name)
	assert.Equal(t, tournament.Status, fetched.Status)
	assert.Equal(t, tournament.Type, fetched.Type)
	assert.Equal(t, tournament.ScoreRequirement, fetched.ScoreRequirement)
	assert.WithinDuration(t, tournament.CreatedAt, fetched.CreatedAt, time.Minute)

	owned, err := store.GetTournamentsByOwner(context.Background(), tournament.OwnerID)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestCreateTeams(t *testing.T) {
	db := dbtest.SetupTestDB(t)
	store := NewTournamentStore(db)
	tournament := createTestTournament(t, db, store)

	teams := createTestTeams(t, db, store, tournament.ID, 2)

	rotating := bracket.Team{ID: uuid.New(), TournamentID: tournament.ID, Name: "Round team", Seed: 1, RoundNumber: utils.Ptr(3)}
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateTeams(context.Background(), tx, []bracket.Team{rotating}))
	require.NoError(t, tx.Commit())

	fetched, err := store.GetTeams(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, fetched, 3)

	tx, err = db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	fixed, err := store.GetFixedTeamsTx(context.Background(), tx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, fixed, 2)
	assert.Equal(t, teams[0].ID, fixed[0].ID)
	assert.Nil(t, fixed[0].RoundNumber)

	require.NoError(t, store.DeleteRoundTeams(context.Background(), tx, tournament.ID, 3))
	require.NoError(t, tx.Commit())

	fetched, err = store.GetTeams(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Len(t, fetched, 2)
}

func TestCreateMatches(t *testing.T) {
	db := dbtest.SetupTestDB(t)
	store := NewTournamentStore(db)
	tournament := createTestTournament(t, db, store)

	finalID := uuid.New()
	loserTarget := uuid.New()

	matches := []bracket.Match{
		{
			ID:                uuid.New(),
			TournamentID:      tournament.ID,
			BracketSide:       bracket.WinnersSide,
			RoundNumber:       1,
			MatchOrder:        1,
			MatchNumber:       1,
			Status:            bracket.MatchPending,
			WinnerNextMatchID: &finalID,
			LoserNextMatchID:  &loserTarget,
		},
		{
			ID:           loserTarget,
			TournamentID: tournament.ID,
			BracketSide:  bracket.LosersSide,
			RoundNumber:  1,
			MatchOrder:   1,
			MatchNumber:  2,
			Status:       bracket.MatchPending,
		},
		{
			ID:           finalID,
			TournamentID: tournament.ID,
			BracketSide:  bracket.WinnersSide,
			RoundNumber:  2,
			MatchOrder:   1,
			MatchNumber:  3,
			Status:       bracket.MatchPending,
			Maps:         bracket.MapScores{{Name: "Nuke"}},
		},
	}

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateMatches(context.Background(), tx, matches))
	require.NoError(t, tx.Commit())

	fetched, err := store.GetMatches(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, fetched, 3)

	// winners side sorts ahead of losers within a round
	assert.Equal(t, matches[0].ID, fetched[0].ID)
	assert.Equal(t, matches[1].ID, fetched[1].ID)
	assert.Equal(t, matches[2].ID, fetched[2].ID)

	require.NotNil(t, fetched[0].WinnerNextMatchID)
	assert.Equal(t, finalID, *fetched[0].WinnerNextMatchID)
	require.NotNil(t, fetched[0].LoserNextMatchID)
	assert.Equal(t, loserTarget, *fetched[0].LoserNextMatchID)
	assert.Nil(t, fetched[1].WinnerNextMatchID)
	assert.Equal(t, bracket.MapScores{{Name: "Nuke"}}, fetched[2].Maps)

	tx, err = db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	next, err := store.NextMatchNumberTx(context.Background(), tx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, next)
	require.NoError(t, tx.Rollback())
}

func TestClaimSlot(t *testing.T) {
	db := dbtest.SetupTestDB(t)
	store := NewTournamentStore(db)
	tournament := createTestTournament(t, db, store)
	teams := createTestTeams(t, db, store, tournament.ID, 3)

	match := bracket.Match{ID: uuid.New(), TournamentID: tournament.ID, BracketSide: bracket.WinnersSide, RoundNumber: 2, MatchOrder: 1, Status: bracket.MatchPending}
	ctx := context.Background()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, store.CreateMatches(ctx, tx, []bracket.Match{match}))

	claimed, err := store.ClaimSlot(ctx, tx, match.ID, 1, teams[0].ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	// the slot is taken, a second claim affects nothing
	claimed, err = store.ClaimSlot(ctx, tx, match.ID, 1, teams[1].ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = store.ClaimSlot(ctx, tx, match.ID, 2, teams[1].ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	_, err = store.ClaimSlot(ctx, tx, match.ID, 3, teams[2].ID)
	assert.Error(t, err)

	fetched, err := store.GetMatchTx(ctx, tx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, teams[0].ID, *fetched.Team1ID)
	assert.Equal(t, teams[1].ID, *fetched.Team2ID)

	released, err := store.ReleaseSlot(ctx, tx, match.ID, 1, teams[2].ID)
	require.NoError(t, err)
	assert.False(t, released, "slot holds a different team")

	released, err = store.ReleaseSlot(ctx, tx, match.ID, 1, teams[0].ID)
	require.NoError(t, err)
	assert.True(t, released)

	fetched, err = store.GetMatchTx(ctx, tx, match.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched.Team1ID)
}

func TestUpdateMatchResult_LeavesEdgesAlone(t *testing.T) {
	db := dbtest.SetupTestDB(t)
	store := NewTournamentStore(db)
	tournament := createTestTournament(t, db, store)
	teams := createTestTeams(t, db, store, tournament.ID, 2)
	ctx := context.Background()

	next := uuid.New()
	match := bracket.Match{
		ID: uuid.New(), TournamentID: tournament.ID, BracketSide: bracket.WinnersSide, RoundNumber: 1, MatchOrder: 1,
		Team1ID: &teams[0].ID, Team2ID: &teams[1].ID, Status: bracket.MatchPending, WinnerNextMatchID: &next,
	}

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateMatches(ctx, tx, []bracket.Match{match}))

	match.Score1, match.Score2 = 2, 1
	match.Maps = bracket.MapScores{{Score1: 13, Score2: 4}, {Score1: 2, Score2: 13}, {Score1: 13, Score2: 11}}
	match.Status = bracket.MatchCompleted
	match.WinnerSlot = utils.Ptr(1)
	match.WinnerNextMatchID = nil
	match.Team1ID = nil
	require.NoError(t, store.UpdateMatchResult(ctx, tx, &match))
	require.NoError(t, tx.Commit())

	fetched, err := store.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fetched.Score1)
	assert.Equal(t, 1, fetched.Score2)
	assert.Len(t, fetched.Maps, 3)
	assert.Equal(t, bracket.MatchCompleted, fetched.Status)
	require.NotNil(t, fetched.WinnerSlot)
	assert.Equal(t, 1, *fetched.WinnerSlot)
	require.NotNil(t, fetched.WinnerNextMatchID)
	assert.Equal(t, next, *fetched.WinnerNextMatchID)
	require.NotNil(t, fetched.Team1ID)
	assert.Equal(t, teams[0].ID, *fetched.Team1ID)
}

func TestGetNextPendingMatch(t *testing.T) {
	db := dbtest.SetupTestDB(t)
	store := NewTournamentStore(db)
	tournament := createTestTournament(t, db, store)
	teams := createTestTeams(t, db, store, tournament.ID, 2)
	ctx := context.Background()

	none, err := store.GetNextPendingMatch(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	waiting := bracket.Match{ID: uuid.New(), TournamentID: tournament.ID, BracketSide: bracket.WinnersSide, RoundNumber: 1, MatchOrder: 1, Team1ID: &teams[0].ID, Status: bracket.MatchPending}
	ready := bracket.Match{ID: uuid.New(), TournamentID: tournament.ID, BracketSide: bracket.WinnersSide, RoundNumber: 1, MatchOrder: 2, Team1ID: &teams[0].ID, Team2ID: &teams[1].ID, Status: bracket.MatchPending}

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateMatches(ctx, tx, []bracket.Match{waiting, ready}))
	require.NoError(t, tx.Commit())

	next, err := store.GetNextPendingMatch(ctx, tournament.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, ready.ID, next.ID)
}
