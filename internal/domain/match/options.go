// Package match runs a single pairing through a judge to a settled outcome.
package match

import (
	"time"

	"github.com/okian/agon/pkg/logger"
)

// Option applies a configuration option to the executor.
type Option func(*executor)

// WithGoal sets the arena goal handed to the judge with every comparison.
func WithGoal(goal string) Option {
	return func(e *executor) {
		e.goal = goal
	}
}

// WithMaxAttempts sets how many judge calls a match may consume before it
// settles as indeterminate.
func WithMaxAttempts(n int) Option {
	return func(e *executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithAttemptTimeout bounds a single judge call.
func WithAttemptTimeout(d time.Duration) Option {
	return func(e *executor) {
		if d > 0 {
			e.attemptTimeout = d
		}
	}
}

// WithSeed fixes the position-swap derivation so reruns stay reproducible.
func WithSeed(seed int64) Option {
	return func(e *executor) {
		e.seed = seed
	}
}

// WithLogger overrides the executor's logger.
func WithLogger(l logger.Logger) Option {
	return func(e *executor) {
		if l != nil {
			e.logger = l
		}
	}
}
