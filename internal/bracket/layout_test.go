package bracket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareLayout(t *testing.T) {
	teamA := Team{ID: uuid.New(), Name: "A"}
	teamB := Team{ID: uuid.New(), Name: "B"}

	matches := []Match{
		{ID: uuid.New(), BracketSide: FinalsSide, RoundNumber: 1, MatchOrder: 0},
		{ID: uuid.New(), BracketSide: WinnersSide, RoundNumber: 2, MatchOrder: 0},
		{ID: uuid.New(), BracketSide: WinnersSide, RoundNumber: 1, MatchOrder: 1},
		{ID: uuid.New(), BracketSide: WinnersSide, RoundNumber: 1, MatchOrder: 0},
		{ID: uuid.New(), BracketSide: LosersSide, RoundNumber: 1, MatchOrder: 0},
	}

	layout := PrepareLayout([]Team{teamA, teamB}, matches)

	require.Len(t, layout.Winners, 2)
	assert.Equal(t, 1, layout.Winners[0].Number)
	require.Len(t, layout.Winners[0].Matches, 2)
	assert.Equal(t, 0, layout.Winners[0].Matches[0].MatchOrder)
	assert.Equal(t, 1, layout.Winners[0].Matches[1].MatchOrder)
	assert.Equal(t, 2, layout.Winners[1].Number)

	assert.Len(t, layout.Losers, 1)
	assert.Len(t, layout.Finals, 1)
	assert.Nil(t, layout.Rotation)
	assert.Equal(t, "B", layout.Teams[teamB.ID].Name)
}
