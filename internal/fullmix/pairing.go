package fullmix

import (
	"fmt"
	"math/rand/v2"

	"github.com/AdamBeresnev/op-tournament/internal/bracket"
)

// PairTeams shuffles team indices 0..n-1 and pairs them in order.
func PairTeams(n int, rng *rand.Rand) ([]bracket.Pairing, error) {
	if n < 2 || n%2 != 0 {
		return nil, fmt.Errorf("cannot pair %d teams", n)
	}
	order := rng.Perm(n)
	pairs := make([]bracket.Pairing, 0, n/2)
	for i := 0; i < n; i += 2 {
		pairs = append(pairs, bracket.Pairing{order[i], order[i+1]})
	}
	return pairs, nil
}

// ValidatePairing checks that pairs uses every team index exactly once.
func ValidatePairing(pairs []bracket.Pairing, n int) error {
	if len(pairs)*2 != n {
		return fmt.Errorf("pairing covers %d teams, round has %d", len(pairs)*2, n)
	}
	seen := make([]bool, n)
	for _, p := range pairs {
		for _, idx := range p {
			if idx < 0 || idx >= n {
				return fmt.Errorf("team index %d out of range", idx)
			}
			if seen[idx] {
				return fmt.Errorf("team index %d paired twice", idx)
			}
			seen[idx] = true
		}
	}
	return nil
}
