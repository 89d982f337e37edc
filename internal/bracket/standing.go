package bracket

import "sort"

type Standing struct {
	Ref    MemberRef `json:"ref"`
	Name   string    `json:"name"`
	Wins   int       `json:"wins"`
	Losses int       `json:"losses"`
}

// SameRecord reports whether two standings share (wins, losses).
func (s Standing) SameRecord(o Standing) bool {
	return s.Wins == o.Wins && s.Losses == o.Losses
}

// SortStandings orders by wins desc, losses asc, name asc. The ref value
// breaks the remaining ties so the order never depends on input order.
func SortStandings(standings []Standing) {
	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Losses != b.Losses {
			return a.Losses < b.Losses
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Ref.String() < b.Ref.String()
	})
}
