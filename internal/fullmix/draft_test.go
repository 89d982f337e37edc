package fullmix

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(n int) []Candidate {
	pool := make([]Candidate, n)
	for i := range pool {
		pool[i] = Candidate{
			Ref:    bracket.UserRef(fmt.Sprintf("%02d", i+1)),
			Name:   fmt.Sprintf("P%02d", i+1),
			Rating: 1000 + 100*(n-i),
		}
	}
	return pool
}

func TestTeamCount(t *testing.T) {
	testCases := []struct {
		name     string
		pool     int
		teamSize int
		expected int
		wantErr  bool
	}{
		{name: "8 players in pairs", pool: 8, teamSize: 2, expected: 4},
		{name: "odd team count rounds down", pool: 15, teamSize: 5, expected: 2},
		{name: "leftover players", pool: 11, teamSize: 2, expected: 4},
		{name: "solo teams", pool: 5, teamSize: 1, expected: 4},
		{name: "too small", pool: 3, teamSize: 2, wantErr: true},
		{name: "invalid size", pool: 10, teamSize: 0, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := TeamCount(tc.pool, tc.teamSize)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, n)
		})
	}
}

func TestFormTeams_Random(t *testing.T) {
	pool := testPool(8)
	rng := rand.New(rand.NewPCG(1, 2))

	teams, err := FormTeams(pool, 4, 2, false, rng)
	require.NoError(t, err)
	require.Len(t, teams, 4)

	seen := make(map[bracket.MemberRef]bool)
	for _, team := range teams {
		assert.Len(t, team, 2)
		for _, c := range team {
			assert.False(t, seen[c.Ref], "member drafted twice")
			seen[c.Ref] = true
		}
	}
	assert.Len(t, seen, 8)

	// the input pool is not reordered
	assert.Equal(t, testPool(8), pool)
}

func TestFormTeams_RandomIsSeedDeterministic(t *testing.T) {
	a, err := FormTeams(testPool(10), 4, 2, false, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	b, err := FormTeams(testPool(10), 4, 2, false, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFormTeams_SnakeDraft(t *testing.T) {
	// ratings descend with index: P01 is the strongest
	pool := testPool(9)
	rand.New(rand.NewPCG(3, 4)).Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	teams, err := FormTeams(pool, 4, 2, true, nil)
	require.NoError(t, err)

	names := func(team []Candidate) []string {
		out := make([]string, len(team))
		for i, c := range team {
			out[i] = c.Name
		}
		return out
	}

	// pick order 1,2,3,4 then 4,3,2,1; P09 is the leftover
	assert.Equal(t, []string{"P01", "P08", "P09"}, names(teams[0]))
	assert.Equal(t, []string{"P02", "P07"}, names(teams[1]))
	assert.Equal(t, []string{"P03", "P06"}, names(teams[2]))
	assert.Equal(t, []string{"P04", "P05"}, names(teams[3]))
}

func TestFormTeams_TooSmall(t *testing.T) {
	_, err := FormTeams(testPool(3), 2, 2, false, rand.New(rand.NewPCG(1, 1)))
	assert.ErrorIs(t, err, ErrPoolTooSmall)
}

func TestDraftTeams(t *testing.T) {
	teams := DraftTeams([][]Candidate{testPool(2), testPool(1)})
	require.Len(t, teams, 2)
	assert.Equal(t, "Team 1", teams[0].Name)
	assert.Equal(t, "Team 2", teams[1].Name)
	assert.Len(t, teams[0].Members, 2)
	assert.Equal(t, "P01", teams[0].Members[0].Name)
	assert.Nil(t, teams[0].ID)
}

func TestPairTeams(t *testing.T) {
	pairs, err := PairTeams(6, rand.New(rand.NewPCG(5, 6)))
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	require.NoError(t, ValidatePairing(pairs, 6))

	_, err = PairTeams(3, rand.New(rand.NewPCG(5, 6)))
	assert.Error(t, err)
}

func TestValidatePairing(t *testing.T) {
	assert.NoError(t, ValidatePairing([]bracket.Pairing{{0, 3}, {2, 1}}, 4))
	assert.Error(t, ValidatePairing([]bracket.Pairing{{0, 1}}, 4))
	assert.Error(t, ValidatePairing([]bracket.Pairing{{0, 1}, {1, 2}}, 4))
	assert.Error(t, ValidatePairing([]bracket.Pairing{{0, 1}, {2, 4}}, 4))
}
