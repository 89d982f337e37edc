package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterParticipants(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.tournaments.CreateTournament(testContext(), CreateTournamentInput{Name: "Mix", Type: bracket.FullMix})
	require.NoError(t, err)

	participants, err := env.participants.RegisterParticipants(context.Background(), id, "Alice,1500\n\n  Bob  \nCarol, 1200 \nDave,\n")
	require.NoError(t, err)
	require.Len(t, participants, 4)

	assert.Equal(t, "Alice", participants[0].Name)
	assert.Equal(t, 1500, participants[0].Rating)
	assert.Equal(t, "Bob", participants[1].Name)
	assert.Equal(t, 0, participants[1].Rating)
	assert.Equal(t, 1200, participants[2].Rating)
	assert.Equal(t, "Dave", participants[3].Name)

	stored, err := env.stores.Rosters.GetParticipants(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
	for _, p := range stored {
		assert.Equal(t, bracket.ParticipantActive, p.Status)
	}
}

func TestRegisterParticipants_Invalid(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.tournaments.CreateTournament(testContext(), CreateTournamentInput{Name: "Mix", Type: bracket.FullMix})
	require.NoError(t, err)

	testCases := []struct {
		name   string
		roster string
	}{
		{name: "empty roster", roster: "\n  \n"},
		{name: "bad rating", roster: "Alice,strong"},
		{name: "name too long", roster: "Bartholomew Maximilian Fitzgerald-Worthington the Third"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.participants.RegisterParticipants(context.Background(), id, tc.roster)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "roster", vErr.Field)
		})
	}

	stored, err := env.stores.Rosters.GetParticipants(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, stored)

	bracketID := env.createBracket(t, bracket.SingleElimination, "1", "2")
	_, err = env.participants.RegisterParticipants(context.Background(), bracketID, "Alice")
	assert.ErrorIs(t, err, ErrNotFullMix)

	_, err = env.participants.RegisterParticipants(context.Background(), uuid.New(), "Alice")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestRemoveParticipant(t *testing.T) {
	env := newTestEnv(t)
	first, participants := env.createFullMix(t, 2)
	second, _ := env.createFullMix(t, 2)

	err := env.participants.RemoveParticipant(context.Background(), second, participants[0].ID)
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	err = env.participants.RemoveParticipant(context.Background(), first, uuid.New())
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	require.NoError(t, env.participants.RemoveParticipant(context.Background(), first, participants[0].ID))
	statuses := participantStatuses(t, env, first)
	assert.Equal(t, 1, statuses[bracket.ParticipantRemoved])
	assert.Equal(t, 1, statuses[bracket.ParticipantActive])
}
