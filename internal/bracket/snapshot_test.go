package bracket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortStandings(t *testing.T) {
	standings := []Standing{
		{Ref: UserRef("1"), Name: "Cleo", Wins: 2, Losses: 1},
		{Ref: UserRef("2"), Name: "Abe", Wins: 2, Losses: 1},
		{Ref: UserRef("3"), Name: "Bo", Wins: 3, Losses: 0},
		{Ref: UserRef("4"), Name: "Dee", Wins: 2, Losses: 0},
		{Ref: UserRef("6"), Name: "Eve", Wins: 0, Losses: 3},
		{Ref: UserRef("5"), Name: "Eve", Wins: 0, Losses: 3},
	}

	SortStandings(standings)

	names := make([]string, len(standings))
	for i, s := range standings {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"Bo", "Dee", "Abe", "Cleo", "Eve", "Eve"}, names)
	assert.Equal(t, "5", standings[4].Ref.Value)
	assert.Equal(t, "6", standings[5].Ref.Value)
}

func TestRoundDocument_LegacyMembers(t *testing.T) {
	raw := `{
		"teams": [{"name": "Team 1", "members": [12, {"user_id": 13, "name": "Jo"}, {"ref": {"kind":"user","value":"14"}, "name": "Ky"}]}],
		"matches": [],
		"standings": [],
		"metadata": {"outcome": "extra_round"}
	}`

	var doc RoundDocument
	require.NoError(t, doc.Scan(raw))
	require.Len(t, doc.Teams, 1)
	require.Len(t, doc.Teams[0].Members, 3)

	assert.Equal(t, UserRef("12"), doc.Teams[0].Members[0].Ref)
	assert.Equal(t, UserRef("13"), doc.Teams[0].Members[1].Ref)
	assert.Equal(t, "Jo", doc.Teams[0].Members[1].Name)
	assert.Equal(t, UserRef("14"), doc.Teams[0].Members[2].Ref)
	assert.Equal(t, "Ky", doc.Teams[0].Members[2].Name)
	assert.Equal(t, OutcomeExtraRound, doc.Metadata.Outcome)

	v, err := doc.Value()
	require.NoError(t, err)
	var again RoundDocument
	require.NoError(t, json.Unmarshal([]byte(v.(string)), &again))
	assert.Equal(t, doc.Teams, again.Teams)
}

func TestRoundSnapshotState(t *testing.T) {
	var missing *RoundSnapshot
	assert.Equal(t, RoundEmpty, missing.State())

	s := &RoundSnapshot{}
	assert.Equal(t, RoundEmpty, s.State())

	s.Document.Preview = []DraftTeam{{Name: "Team 1"}}
	assert.Equal(t, RoundTeamsDrafted, s.State())

	s.ApprovedTeams = true
	assert.Equal(t, RoundTeamsApproved, s.State())

	s.ApprovedMatches = true
	assert.Equal(t, RoundMatchesApproved, s.State())

	s.Document.Metadata.Completed = true
	assert.Equal(t, RoundCompleted, s.State())
}

func TestRoundSettingsMilestoneSize(t *testing.T) {
	assert.Equal(t, 10, (&RoundSettings{TeamSize: 5}).MilestoneSize())
	assert.Equal(t, 2, (&RoundSettings{TeamSize: 1}).MilestoneSize())
	assert.Equal(t, 2, (&RoundSettings{TeamSize: 0}).MilestoneSize())
}

func TestAddEliminatedDeduplicates(t *testing.T) {
	var m RoundMetadata
	m.AddEliminated(UserRef("1"), UserRef("2"))
	m.AddEliminated(UserRef("2"), UserRef("3"))
	assert.Equal(t, []MemberRef{UserRef("1"), UserRef("2"), UserRef("3")}, m.Eliminated)
}

func TestRoundMetadataMilestonePending(t *testing.T) {
	tests := []struct {
		name string
		meta RoundMetadata
		want bool
	}{
		{"no decision", RoundMetadata{}, false},
		{"extra round", RoundMetadata{Outcome: OutcomeExtraRound}, false},
		{"finalists decided", RoundMetadata{Outcome: OutcomeFinalists}, true},
		{"eliminations decided", RoundMetadata{Outcome: OutcomeEliminated}, true},
		{"confirmed", RoundMetadata{Outcome: OutcomeEliminated, MilestoneConfirmed: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.meta.MilestonePending())
		})
	}
}
