package tournament

import (
	"github.com/okian/agon/internal/adapters/archive"
	"github.com/okian/agon/pkg/logger"
)

// Option configures the scheduler.
type Option func(*Scheduler)

// WithRounds sets the round count used when Run is called without one.
// Values below 1 are ignored.
func WithRounds(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.rounds = n
		}
	}
}

// WithConcurrency bounds how many matches run at once. Zero means
// unbounded: the pool is sized so a whole round can run simultaneously.
// Negative values are ignored.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n >= 0 {
			s.concurrency = n
		}
	}
}

// WithCommitMode selects when working state reaches the store. Unknown
// modes are ignored.
func WithCommitMode(m CommitMode) Option {
	return func(s *Scheduler) {
		if m == CommitEveryRound || m == CommitAtEnd {
			s.commitMode = m
		}
	}
}

// WithHistory toggles in-memory match history recording.
func WithHistory(enabled bool) Option {
	return func(s *Scheduler) {
		s.recordHistory = enabled
	}
}

// WithArchive attaches a durable archive, written at every commit point.
func WithArchive(a archive.Archive) Option {
	return func(s *Scheduler) {
		if a != nil {
			s.archive = a
		}
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l.Named("tournament")
		}
	}
}
