package fullmix

import "github.com/AdamBeresnev/op-tournament/internal/bracket"

// Decision is the result of a milestone split attempt.
type Decision struct {
	Outcome    bracket.MilestoneOutcome
	Finalists  []bracket.Standing
	Eliminated []bracket.Standing
}

// ResolveMilestone splits standings at k. In finalists mode the top k
// advance and the rest are eliminated; in eliminate mode the bottom k are
// eliminated. The split happens only when the records on both sides of the
// boundary differ, otherwise the outcome is extra_round. Ties are never
// broken by name or any other secondary key.
func ResolveMilestone(standings []bracket.Standing, k int, mode bracket.MilestoneMode) Decision {
	sorted := make([]bracket.Standing, len(standings))
	copy(sorted, standings)
	bracket.SortStandings(sorted)

	n := len(sorted)
	if k < 1 {
		return Decision{Outcome: bracket.OutcomeNone}
	}

	switch mode {
	case bracket.MilestoneEliminate:
		if n <= k {
			return Decision{Outcome: bracket.OutcomeNone}
		}
		cut := n - k
		if sorted[cut-1].SameRecord(sorted[cut]) {
			return Decision{Outcome: bracket.OutcomeExtraRound}
		}
		return Decision{Outcome: bracket.OutcomeEliminated, Eliminated: sorted[cut:]}

	default:
		if n <= k {
			return Decision{Outcome: bracket.OutcomeFinalists, Finalists: sorted}
		}
		if sorted[k-1].SameRecord(sorted[k]) {
			return Decision{Outcome: bracket.OutcomeExtraRound}
		}
		return Decision{Outcome: bracket.OutcomeFinalists, Finalists: sorted[:k], Eliminated: sorted[k:]}
	}
}

// Refs returns the member refs of standings in order.
func Refs(standings []bracket.Standing) []bracket.MemberRef {
	refs := make([]bracket.MemberRef, len(standings))
	for i, s := range standings {
		refs[i] = s.Ref
	}
	return refs
}
