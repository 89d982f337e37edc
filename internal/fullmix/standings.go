package fullmix

import (
	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
)

type rosterKey struct {
	team  uuid.UUID
	round int
}

// Tally counts wins and losses per member across every completed match.
// A team's members are taken from its roster for the match's round. seed
// lists members that appear with 0-0 even without a game. Names are left
// empty for the caller to resolve.
func Tally(matches []bracket.Match, members []bracket.TeamMember, seed []bracket.MemberRef) []bracket.Standing {
	rosters := make(map[rosterKey][]bracket.MemberRef)
	for _, m := range members {
		key := rosterKey{team: m.TeamID, round: m.RoundNumber}
		rosters[key] = append(rosters[key], bracket.ParticipantRef(m.ParticipantID))
	}

	index := make(map[bracket.MemberRef]int)
	var out []bracket.Standing
	row := func(ref bracket.MemberRef) *bracket.Standing {
		i, ok := index[ref]
		if !ok {
			i = len(out)
			index[ref] = i
			out = append(out, bracket.Standing{Ref: ref})
		}
		return &out[i]
	}

	for _, ref := range seed {
		row(ref)
	}

	for i := range matches {
		m := &matches[i]
		if m.IsBye || !m.IsReady() {
			continue
		}
		winner, loser := m.WinnerID(), m.LoserID()
		if winner == nil || loser == nil {
			continue
		}
		for _, ref := range rosters[rosterKey{team: *winner, round: m.RoundNumber}] {
			row(ref).Wins++
		}
		for _, ref := range rosters[rosterKey{team: *loser, round: m.RoundNumber}] {
			row(ref).Losses++
		}
	}
	return out
}
