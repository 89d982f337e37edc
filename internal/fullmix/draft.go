// Package fullmix holds the pure algorithms of rotating-team rounds: team
// formation, pairing, standings tallies and the milestone split.
package fullmix

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
)

var ErrPoolTooSmall = errors.New("not enough participants to form two teams")

// Candidate is a pool member eligible for the next draft.
type Candidate struct {
	Ref    bracket.MemberRef
	Name   string
	Rating int
}

func (c Candidate) Entry() bracket.RosterEntry {
	return bracket.RosterEntry{Ref: c.Ref, Name: c.Name, Rating: c.Rating}
}

// TeamCount returns how many teams a pool forms: pool/teamSize rounded down
// to an even number so every team is paired.
func TeamCount(poolSize, teamSize int) (int, error) {
	if teamSize < 1 {
		return 0, fmt.Errorf("team size must be positive, got %d", teamSize)
	}
	n := poolSize / teamSize
	if n%2 == 1 {
		n--
	}
	if n < 2 {
		return 0, ErrPoolTooSmall
	}
	return n, nil
}

// FormTeams partitions pool into count rosters of size members. Rating mode
// snake-drafts by rating; otherwise the pool is shuffled and cut into
// consecutive chunks. Players beyond count*size are appended round-robin.
func FormTeams(pool []Candidate, count, size int, ratingMode bool, rng *rand.Rand) ([][]Candidate, error) {
	if count < 1 || size < 1 {
		return nil, fmt.Errorf("invalid team layout %d x %d", count, size)
	}
	if count*size > len(pool) {
		return nil, ErrPoolTooSmall
	}

	ordered := make([]Candidate, len(pool))
	copy(ordered, pool)

	teams := make([][]Candidate, count)
	core := count * size

	if ratingMode {
		sortByRating(ordered)
		for i, c := range ordered[:core] {
			pos := i % count
			if (i/count)%2 == 1 {
				pos = count - 1 - pos
			}
			teams[pos] = append(teams[pos], c)
		}
	} else {
		rng.Shuffle(len(ordered), func(i, j int) { ordered[i], ordered[j] = ordered[j], ordered[i] })
		for i, c := range ordered[:core] {
			teams[i/size] = append(teams[i/size], c)
		}
	}

	for j, c := range ordered[core:] {
		teams[j%count] = append(teams[j%count], c)
	}
	return teams, nil
}

func sortByRating(pool []Candidate) {
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Rating != pool[j].Rating {
			return pool[i].Rating > pool[j].Rating
		}
		if pool[i].Name != pool[j].Name {
			return pool[i].Name < pool[j].Name
		}
		return pool[i].Ref.String() < pool[j].Ref.String()
	})
}

// DraftTeams names rosters "Team 1".."Team N".
func DraftTeams(rosters [][]Candidate) []bracket.DraftTeam {
	teams := make([]bracket.DraftTeam, len(rosters))
	for i, roster := range rosters {
		members := make([]bracket.RosterEntry, len(roster))
		for j, c := range roster {
			members[j] = c.Entry()
		}
		teams[i] = bracket.DraftTeam{Name: fmt.Sprintf("Team %d", i+1), Members: members}
	}
	return teams
}
