package bracket

import (
	"sort"

	"github.com/google/uuid"
)

// Round is one column of a bracket side.
type Round struct {
	Number  int     `json:"number"`
	Matches []Match `json:"matches"`
}

// Layout groups a tournament's matches by side and round for display.
type Layout struct {
	Winners  []Round            `json:"winners"`
	Losers   []Round            `json:"losers,omitempty"`
	Finals   []Round            `json:"finals,omitempty"`
	Rotation []Round            `json:"rotation,omitempty"`
	Teams    map[uuid.UUID]Team `json:"teams"`
}

func PrepareLayout(teams []Team, matches []Match) Layout {
	teamMap := make(map[uuid.UUID]Team, len(teams))
	for _, t := range teams {
		teamMap[t.ID] = t
	}

	sides := make(map[BracketSide]map[int][]Match)
	for _, m := range matches {
		rounds, ok := sides[m.BracketSide]
		if !ok {
			rounds = make(map[int][]Match)
			sides[m.BracketSide] = rounds
		}
		rounds[m.RoundNumber] = append(rounds[m.RoundNumber], m)
	}

	return Layout{
		Winners:  sortRounds(sides[WinnersSide]),
		Losers:   sortRounds(sides[LosersSide]),
		Finals:   sortRounds(sides[FinalsSide]),
		Rotation: sortRounds(sides[RotationSide]),
		Teams:    teamMap,
	}
}

func sortRounds(rounds map[int][]Match) []Round {
	if len(rounds) == 0 {
		return nil
	}

	out := make([]Round, 0, len(rounds))
	for n, ms := range rounds {
		sort.Slice(ms, func(i, j int) bool {
			return ms[i].MatchOrder < ms[j].MatchOrder
		})
		out = append(out, Round{Number: n, Matches: ms})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Number < out[j].Number
	})
	return out
}
