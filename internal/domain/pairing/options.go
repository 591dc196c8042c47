// Package pairing builds the match schedule for one tournament round.
package pairing

// Option applies a configuration option to the shuffle policy.
type Option func(*shufflePolicy)

// WithSeed fixes the base seed of the schedule. Two policies with the same
// seed produce identical schedules for identical rosters.
func WithSeed(seed int64) Option {
	return func(p *shufflePolicy) {
		p.seed = seed
	}
}
