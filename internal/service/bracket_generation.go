package service

import (
	"math"
	"sort"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
	"github.com/google/uuid"
)

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		matchup := [2]int{rounds[i], rounds[i+1]}
		pairs = append(pairs, matchup)
	}

	return pairs
}

type matchKey struct {
	side  bracket.BracketSide
	round int
	order int
}

func newMatch(tournamentID uuid.UUID, side bracket.BracketSide, round, order int) bracket.Match {
	return bracket.Match{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		BracketSide:  side,
		RoundNumber:  round,
		MatchOrder:   order,
		Status:       bracket.MatchPending,
	}
}

// buildWinnersBracket lays out totalRounds rounds of side, each match sending
// its winner to match (order+1)/2 of the next round.
func buildWinnersBracket(tournamentID uuid.UUID, side bracket.BracketSide, totalRounds int) []bracket.Match {
	var matches []bracket.Match

	nextRoundMatchIDs := make(map[int]uuid.UUID)

	// Significantly easier to start from the last round and work backwards
	for r := totalRounds; r >= 1; r-- {
		matchesInCurrentRound := int(math.Pow(2, float64(totalRounds-r)))
		currentRoundMatchIDs := make(map[int]uuid.UUID)

		for i := 0; i < matchesInCurrentRound; i++ {
			matchOrder := i + 1
			m := newMatch(tournamentID, side, r, matchOrder)

			if r < totalRounds {
				parentID := nextRoundMatchIDs[(matchOrder+1)/2]
				m.WinnerNextMatchID = &parentID
			}

			matches = append(matches, m)
			currentRoundMatchIDs[matchOrder] = m.ID
		}
		nextRoundMatchIDs = currentRoundMatchIDs
	}

	return matches
}

// GenerateSingleElimBracket builds and seeds a single elimination bracket for
// teams ordered by seed.
func GenerateSingleElimBracket(tournamentID uuid.UUID, teams []bracket.Team) []bracket.Match {
	if len(teams) < 2 {
		return nil
	}

	bracketSize := calcBracketSize(len(teams))
	totalRounds := int(math.Log2(float64(bracketSize)))

	matches := buildWinnersBracket(tournamentID, bracket.WinnersSide, totalRounds)
	return finalizeBracket(matches, teams, bracketSize)
}

// GenerateDoubleElimBracket builds a winners bracket of R rounds, a losers
// bracket of 2(R-1) rounds and a grand final. Fewer than three teams fall
// back to single elimination.
func GenerateDoubleElimBracket(tournamentID uuid.UUID, teams []bracket.Team) []bracket.Match {
	if len(teams) < 3 {
		return GenerateSingleElimBracket(tournamentID, teams)
	}

	bracketSize := calcBracketSize(len(teams))
	totalRounds := int(math.Log2(float64(bracketSize)))
	losersRounds := 2 * (totalRounds - 1)

	matches := buildWinnersBracket(tournamentID, bracket.WinnersSide, totalRounds)
	for lr := 1; lr <= losersRounds; lr++ {
		count := bracketSize >> ((lr+1)/2 + 1)
		for i := 1; i <= count; i++ {
			matches = append(matches, newMatch(tournamentID, bracket.LosersSide, lr, i))
		}
	}
	matches = append(matches, newMatch(tournamentID, bracket.FinalsSide, 2*totalRounds-1, 1))

	index := make(map[matchKey]*bracket.Match, len(matches))
	for i := range matches {
		m := &matches[i]
		index[matchKey{m.BracketSide, m.RoundNumber, m.MatchOrder}] = m
	}
	link := func(m *bracket.Match, winner bool, target matchKey) {
		id := index[target].ID
		if winner {
			m.WinnerNextMatchID = &id
		} else {
			m.LoserNextMatchID = &id
		}
	}
	grandFinal := matchKey{bracket.FinalsSide, 2*totalRounds - 1, 1}

	for i := range matches {
		m := &matches[i]
		switch m.BracketSide {
		case bracket.WinnersSide:
			if m.RoundNumber == 1 {
				link(m, false, matchKey{bracket.LosersSide, 1, (m.MatchOrder + 1) / 2})
			} else {
				link(m, false, matchKey{bracket.LosersSide, 2 * (m.RoundNumber - 1), m.MatchOrder})
			}
			if m.RoundNumber == totalRounds {
				link(m, true, grandFinal)
			}
		case bracket.LosersSide:
			switch {
			case m.RoundNumber%2 == 1:
				link(m, true, matchKey{bracket.LosersSide, m.RoundNumber + 1, m.MatchOrder})
			case m.RoundNumber == losersRounds:
				link(m, true, grandFinal)
			default:
				link(m, true, matchKey{bracket.LosersSide, m.RoundNumber + 1, (m.MatchOrder + 1) / 2})
			}
		}
	}

	return finalizeBracket(matches, teams, bracketSize)
}

func sideRank(side bracket.BracketSide) int {
	switch side {
	case bracket.WinnersSide, bracket.RotationSide:
		return 0
	case bracket.LosersSide:
		return 1
	}
	return 2
}

// finalizeBracket orders the matches so every match comes after the matches
// feeding it, seeds round 1, flags byes and numbers the matches.
func finalizeBracket(matches []bracket.Match, teams []bracket.Team, bracketSize int) []bracket.Match {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.RoundNumber != b.RoundNumber {
			return a.RoundNumber < b.RoundNumber
		}
		if sideRank(a.BracketSide) != sideRank(b.BracketSide) {
			return sideRank(a.BracketSide) < sideRank(b.BracketSide)
		}
		return a.MatchOrder < b.MatchOrder
	})

	byID := make(map[uuid.UUID]*bracket.Match, len(matches))
	var round1 []*bracket.Match
	for i := range matches {
		m := &matches[i]
		m.MatchNumber = i + 1
		byID[m.ID] = m
		if m.BracketSide == bracket.WinnersSide && m.RoundNumber == 1 {
			round1 = append(round1, m)
		}
	}

	for i, pair := range generateRound1Pairs(bracketSize) {
		if i >= len(round1) {
			break
		}
		m := round1[i]
		if pair[0] < len(teams) {
			m.Team1ID = &teams[pair[0]].ID
		}
		if pair[1] < len(teams) {
			m.Team2ID = &teams[pair[1]].ID
		}
	}

	// Count the teams that can ever reach each match. A source produces a
	// winner once it has an entrant and a loser only when it is a real game.
	contributors := make(map[uuid.UUID]int, len(matches))
	for _, m := range round1 {
		contributors[m.ID] = len(m.Participants())
	}
	for i := range matches {
		m := &matches[i]
		n := contributors[m.ID]
		m.IsBye = n < 2
		if n >= 1 && m.WinnerNextMatchID != nil {
			contributors[*m.WinnerNextMatchID]++
		}
		if n == 2 && m.LoserNextMatchID != nil {
			contributors[*m.LoserNextMatchID]++
		}
	}

	for _, m := range round1 {
		if !m.IsBye {
			continue
		}
		slot := 1
		if m.Team1ID == nil {
			slot = 2
		}
		winner := m.TeamInSlot(slot)
		if winner == nil {
			continue
		}
		m.WinnerSlot = &slot
		m.Status = bracket.MatchCompleted

		if m.WinnerNextMatchID == nil {
			continue
		}
		next := byID[*m.WinnerNextMatchID]
		if next.Team1ID == nil {
			next.Team1ID = winner
		} else if next.Team2ID == nil {
			next.Team2ID = winner
		}
	}

	return matches
}
