// Package match runs a single pairing through a judge to a settled outcome.
package match

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"github.com/okian/agon/internal/adapters/judge"
	"github.com/okian/agon/internal/domain/model"
	"github.com/okian/agon/pkg/logger"
	"github.com/okian/agon/pkg/metrics"
)

// Defaults for match execution.
const (
	// DefaultMaxAttempts is how many times a match is put to the judge
	// before it settles as indeterminate.
	DefaultMaxAttempts = 3
	// DefaultAttemptTimeout bounds one judge call.
	DefaultAttemptTimeout = 120 * time.Second
)

// Executor resolves one pairing to an outcome. It never fabricates a
// verdict: a pairing whose judging attempts all fail settles as
// indeterminate and stays out of the rating math.
type Executor interface {
	Run(ctx context.Context, p model.Pairing, a, b model.Competitor) model.MatchOutcome
}

// executor implements Executor on top of a Judge.
type executor struct {
	judge          judge.Judge
	goal           string
	maxAttempts    int
	attemptTimeout time.Duration
	seed           int64
	logger         logger.Logger
}

// NewExecutor creates a match executor around the given judge.
func NewExecutor(j judge.Judge, opts ...Option) Executor {
	e := &executor{
		judge:          j,
		maxAttempts:    DefaultMaxAttempts,
		attemptTimeout: DefaultAttemptTimeout,
		logger:         logger.Get().Named("match"),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run implements Executor. Competitor states must be the pre-round
// snapshots; the outcome carries them so history survives later updates.
func (e *executor) Run(ctx context.Context, p model.Pairing, a, b model.Competitor) model.MatchOutcome {
	started := time.Now()
	out := model.MatchOutcome{
		Round:         p.Round,
		AID:           p.AID,
		BID:           p.BID,
		RatingABefore: a.Rating,
		RatingBBefore: b.Rating,
	}

	// Either side takes the first slot with equal probability so the
	// judge's positional bias cancels out across matches. The flip is
	// derived from the pairing, keeping reruns reproducible.
	swapped := e.swapPositions(p)
	contentA, contentB := a.Content, b.Content
	if swapped {
		contentA, contentB = contentB, contentA
	}
	comparison := judge.Comparison{
		Goal:     e.goal,
		ContentA: contentA,
		ContentB: contentB,
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		out.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
		attemptStart := time.Now()
		decision, err := e.judge.Compare(attemptCtx, comparison)
		cancel()
		metrics.RecordJudgeLatency(float64(time.Since(attemptStart).Milliseconds()))

		if err == nil {
			verdict := decision.Verdict
			if swapped {
				verdict = verdict.Swap()
			}
			out.Status = model.StatusJudged
			out.Verdict = verdict
			out.Rationale = decision.Rationale
			out.TS = time.Now()
			metrics.RecordMatchJudged(string(verdict))
			metrics.RecordMatchLatency(float64(time.Since(started).Milliseconds()))

			return out
		}

		lastErr = err
		metrics.RecordJudgeFailure(failureReason(err))

		// Run-level cancellation ends the match; attempt-level timeouts
		// just burn one attempt.
		if ctx.Err() != nil {
			break
		}
		if attempt < e.maxAttempts {
			metrics.RecordJudgeRetry()
			e.logger.Warn(ctx, "judge attempt failed, retrying",
				logger.Int("round", p.Round),
				logger.String("a", p.AID),
				logger.String("b", p.BID),
				logger.Int("attempt", attempt),
				logger.Error(err))
		}
	}

	e.logger.Warn(ctx, "match settled as indeterminate",
		logger.Int("round", p.Round),
		logger.String("a", p.AID),
		logger.String("b", p.BID),
		logger.Int("attempts", out.Attempts),
		logger.Error(lastErr))

	out.Status = model.StatusIndeterminate
	out.TS = time.Now()
	metrics.RecordMatchIndeterminate()
	metrics.RecordMatchLatency(float64(time.Since(started).Milliseconds()))

	return out
}

// swapPositions derives a stable coin flip from the pairing identity.
func (e *executor) swapPositions(p model.Pairing) bool {
	h := fnv.New64a()
	_, _ = h.Write([]byte{byte(e.seed), byte(e.seed >> 8), byte(e.seed >> 16), byte(e.seed >> 24)})
	_, _ = h.Write([]byte{byte(p.Round), byte(p.Round >> 8)})
	_, _ = h.Write([]byte(p.AID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(p.BID))

	return h.Sum64()&1 == 1
}

// failureReason classifies a judge error for metrics.
func failureReason(err error) string {
	switch {
	case errors.Is(err, judge.ErrMalformedVerdict):
		return "malformed"
	case errors.Is(err, judge.ErrEmptyReply):
		return "empty"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, judge.ErrTransient):
		return "transient"
	default:
		return "other"
	}
}
