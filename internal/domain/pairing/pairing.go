// Package pairing builds the match schedule for one tournament round.
package pairing

import (
	"math/rand"
	"sort"

	"github.com/okian/agon/internal/domain/model"
)

// Policy produces the pairings for a round from a frozen roster.
type Policy interface {
	// Pairs returns the round's pairings plus the ID of the competitor
	// sitting the round out, or an empty string when the roster is even.
	// Every competitor appears in at most one pairing and never against
	// itself. The same roster, seed, and round always yield the same
	// schedule regardless of roster order.
	Pairs(round int, ids []string) ([]model.Pairing, string)
}

// shufflePolicy pairs adjacent competitors after a seeded shuffle. Each
// round derives its own generator from the base seed and the round index,
// so rounds differ from each other but reruns do not.
type shufflePolicy struct {
	seed int64
}

// roundMix spreads consecutive round indices across the seed space. It is
// the int64 bit pattern of the uint64 constant 0x9E3779B97F4A7C15.
const roundMix int64 = -0x61C8864680B583EB

// NewShufflePolicy creates a seeded shuffle pairing policy.
func NewShufflePolicy(opts ...Option) Policy {
	p := &shufflePolicy{}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Pairs implements Policy.
func (p *shufflePolicy) Pairs(round int, ids []string) ([]model.Pairing, string) {
	if len(ids) < 2 {
		if len(ids) == 1 {
			return nil, ids[0]
		}

		return nil, ""
	}

	// Canonical order first so registration order never leaks into the
	// schedule.
	order := make([]string, len(ids))
	copy(order, ids)
	sort.Strings(order)

	rng := rand.New(rand.NewSource(p.seed + int64(round)*roundMix))
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	bye := ""
	if len(order)%2 == 1 {
		bye = order[len(order)-1]
		order = order[:len(order)-1]
	}

	pairs := make([]model.Pairing, 0, len(order)/2)
	for i := 0; i < len(order); i += 2 {
		pairs = append(pairs, model.Pairing{
			Round: round,
			AID:   order[i],
			BID:   order[i+1],
		})
	}

	return pairs, bye
}
