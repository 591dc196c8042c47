package service

import (
	"time"

	"github.com/okian/agon/internal/adapters/judge"
	"github.com/okian/agon/internal/tournament"
	"github.com/okian/agon/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithInitialRating sets the rating new competitors start from.
func WithInitialRating(r float64) Option {
	return func(s *Service) {
		if r > 0 {
			s.initialRating = r
		}
	}
}

// WithInitialDeviation sets the deviation new competitors start from.
func WithInitialDeviation(d float64) Option {
	return func(s *Service) {
		if d > 0 {
			s.initialDeviation = d
		}
	}
}

// WithInitialVolatility sets the volatility new competitors start from.
func WithInitialVolatility(v float64) Option {
	return func(s *Service) {
		if v > 0 {
			s.initialVolatility = v
		}
	}
}

// WithTau sets the volatility constraint of the rating system.
func WithTau(t float64) Option {
	return func(s *Service) {
		if t > 0 {
			s.tau = t
		}
	}
}

// WithRounds sets the default round count for runs.
func WithRounds(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rounds = n
		}
	}
}

// WithConcurrency bounds in-flight matches per round. Zero lets a whole
// round run at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.concurrency = n
		}
	}
}

// WithMaxAttempts bounds judge attempts per match.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithAttemptTimeout bounds a single judge call.
func WithAttemptTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.attemptTimeout = d
		}
	}
}

// WithCommitMode selects when ratings become visible in the store.
func WithCommitMode(mode string) Option {
	return func(s *Service) {
		switch tournament.CommitMode(mode) {
		case tournament.CommitEveryRound, tournament.CommitAtEnd:
			s.commitMode = tournament.CommitMode(mode)
		}
	}
}

// WithHistory toggles in-memory match history.
func WithHistory(enabled bool) Option {
	return func(s *Service) {
		s.recordHistory = enabled
	}
}

// WithPairingSeed fixes the pairing schedule and the position-swap coin.
// Zero keeps time-based seeding.
func WithPairingSeed(seed int64) Option {
	return func(s *Service) {
		s.pairingSeed = seed
	}
}

// WithJudgeProvider selects the comparison backend by name: openai,
// ollama, scripted, or heuristic.
func WithJudgeProvider(provider string) Option {
	return func(s *Service) {
		if provider != "" {
			s.provider = provider
		}
	}
}

// WithJudgeModel overrides the provider's default model.
func WithJudgeModel(model string) Option {
	return func(s *Service) {
		s.model = model
	}
}

// WithJudgeBaseURL overrides the provider endpoint.
func WithJudgeBaseURL(url string) Option {
	return func(s *Service) {
		s.baseURL = url
	}
}

// WithJudgeAPIKey authenticates against the OpenAI-compatible backend.
func WithJudgeAPIKey(key string) Option {
	return func(s *Service) {
		s.apiKey = key
	}
}

// WithJudgeRate throttles judge calls to perSecond with the given burst.
// A zero rate disables throttling.
func WithJudgeRate(perSecond float64, burst int) Option {
	return func(s *Service) {
		if perSecond > 0 {
			s.ratePerSec = perSecond
		}
		if burst > 0 {
			s.burst = burst
		}
	}
}

// WithJudge injects a ready-made judge, bypassing provider selection.
func WithJudge(j judge.Judge) Option {
	return func(s *Service) {
		if j != nil {
			s.judge = j
		}
	}
}

// WithGoal sets the judging goal text shown to the judge.
func WithGoal(goal string) Option {
	return func(s *Service) {
		s.goal = goal
	}
}

// WithArchivePath enables the SQLite archive at the given path.
func WithArchivePath(path string) Option {
	return func(s *Service) {
		s.archivePath = path
	}
}

// WithDedupeSize sets the size of the registration deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSnapshotInterval sets the store's read-snapshot rebuild cadence.
func WithSnapshotInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.snapshotInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
