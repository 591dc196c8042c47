// Package tournament drives multi-round runs over the registered
// population: pairing, concurrent match execution, the round barrier, and
// the batched rating commit. Final ratings live in the store; the recorded
// history is available through History and, durably, through the archive.
package tournament

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/agon/internal/adapters/archive"
	"github.com/okian/agon/internal/adapters/mq/queue"
	"github.com/okian/agon/internal/adapters/mq/worker"
	"github.com/okian/agon/internal/adapters/repository"
	"github.com/okian/agon/internal/domain/match"
	"github.com/okian/agon/internal/domain/model"
	"github.com/okian/agon/internal/domain/pairing"
	"github.com/okian/agon/internal/domain/rating"
	"github.com/okian/agon/pkg/logger"
	"github.com/okian/agon/pkg/metrics"
)

// CommitMode controls when working rating state becomes visible in the
// store. The round math always reads the working pre-round copy, so the
// mode changes visibility only, never results.
type CommitMode string

// Commit modes.
const (
	// CommitEveryRound pushes the working state after each round.
	CommitEveryRound CommitMode = "round"
	// CommitAtEnd pushes the working state once, after the final round.
	CommitAtEnd CommitMode = "end"
)

// Defaults for tournament runs.
const (
	DefaultRounds = 10

	poolShutdownTimeout = 30 * time.Second
)

// Report summarizes a finished run.
type Report struct {
	RunID               string
	Rounds              int  // rounds fully processed
	Matches             int  // settled outcomes, judged and indeterminate
	Judged              int
	Indeterminate       int
	Anomalies           int  // rounds with zero usable outcomes
	ConvergenceFailures int
	Inflations          int  // inactivity steps applied
	Stopped             bool // the run ended on cancellation
	Started             time.Time
	Finished            time.Time
}

// Status is the live view of the scheduler while a run is in flight.
type Status struct {
	RunID               string
	Active              bool
	CurrentRound        int // 1-based round in progress, 0 when idle
	TotalRounds         int
	MatchesPlayed       int
	Indeterminate       int
	Anomalies           int
	ConvergenceFailures int
}

// Scheduler runs tournaments over the store's population. At most one run
// is active at a time. The population is frozen when a run starts, so
// competitors registered mid-run join the next run.
type Scheduler struct {
	store    repository.Store
	updater  rating.Updater
	policy   pairing.Policy
	executor match.Executor
	archive  archive.Archive // nil disables archiving

	rounds        int
	concurrency   int
	commitMode    CommitMode
	recordHistory bool

	mu      sync.Mutex
	running bool
	status  Status
	history []model.MatchOutcome

	logger logger.Logger
}

// New creates a scheduler around the given collaborators.
func New(store repository.Store, updater rating.Updater, policy pairing.Policy, executor match.Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:         store,
		updater:       updater,
		policy:        policy,
		executor:      executor,
		rounds:        DefaultRounds,
		commitMode:    CommitEveryRound,
		recordHistory: true,
		logger:        logger.Get().Named("tournament"),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// resultCollector funnels settled outcomes from the workers back into the
// round barrier.
type resultCollector struct {
	results chan model.MatchOutcome
}

func (c *resultCollector) Collect(ctx context.Context, out model.MatchOutcome) { //nolint:gocritic // hugeParam: MatchOutcome must be passed by value for channel semantics
	select {
	case c.results <- out:
	case <-ctx.Done():
	}
}

// Run executes a tournament of the given number of rounds and blocks until
// it finishes. Zero or negative rounds fall back to the configured default.
// Cancellation is not an error: the run stops at the last committed state,
// discards the open round, and reports Stopped.
func (s *Scheduler) Run(ctx context.Context, rounds int) (Report, error) {
	return s.RunWithID(ctx, uuid.NewString(), rounds)
}

// RunWithID is Run with a caller-chosen run id, for callers that must
// announce the id before the run finishes.
func (s *Scheduler) RunWithID(ctx context.Context, runID string, rounds int) (Report, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	if rounds <= 0 {
		rounds = s.rounds
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Report{}, ErrRunInProgress
	}
	s.running = true
	s.status = Status{RunID: runID, Active: true, TotalRounds: rounds}
	s.history = nil
	s.mu.Unlock()

	metrics.UpdateRunActive(true)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.status.Active = false
		s.status.CurrentRound = 0
		s.mu.Unlock()
		metrics.UpdateRunActive(false)
		metrics.UpdateCurrentRound(0)
	}()

	report := Report{RunID: runID, Started: time.Now()}

	population := s.store.Competitors(ctx)
	if len(population) < 2 {
		metrics.RecordRunFinished("failed")
		return report, fmt.Errorf("%d registered: %w", len(population), ErrPopulationTooSmall)
	}

	// Working state carries rating changes between rounds; the store sees
	// them only at commit points.
	working := make(map[string]model.Competitor, len(population))
	ids := make([]string, 0, len(population))
	for i := range population {
		working[population[i].ID] = population[i]
		ids = append(ids, population[i].ID)
	}

	maxPairs := len(population) / 2
	workerCount := s.concurrency
	if workerCount <= 0 || workerCount > maxPairs {
		// Zero is "unbounded": a whole round may run at once.
		workerCount = maxPairs
	}

	q := queue.NewInMemoryQueue(
		queue.WithCapacity(maxPairs),
		queue.WithBufferSize(maxPairs),
	)
	collector := &resultCollector{results: make(chan model.MatchOutcome, maxPairs)}
	pool := worker.NewPool(workerCount, q, s.executor, collector)
	pool.Start(ctx)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
		defer cancel()
		_ = pool.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "run started",
		logger.String("run", runID),
		logger.Int("population", len(population)),
		logger.Int("rounds", rounds),
		logger.Int("workers", workerCount),
		logger.String("commit_mode", string(s.commitMode)))

	// Outcomes not yet mirrored to the archive.
	var pending []model.MatchOutcome

	for round := 0; round < rounds; round++ {
		if ctx.Err() != nil {
			return s.finishStopped(report), nil
		}

		roundStart := time.Now()
		s.setCurrentRound(round + 1)
		metrics.UpdateCurrentRound(round + 1)

		pairs, bye := s.policy.Pairs(round, ids)
		if bye != "" {
			s.logger.Debug(ctx, "competitor sits out",
				logger.Int("round", round),
				logger.String("id", bye))
		}

		dispatched := 0
		for _, p := range pairs {
			task := queue.Task{Pairing: p, A: working[p.AID], B: working[p.BID]}
			if q.Enqueue(ctx, task) {
				dispatched++
				continue
			}
			// Not expected with a round-sized queue; the pair simply does
			// not play this round and both sides take the inactivity step.
			s.logger.Error(ctx, "pairing dropped at enqueue",
				logger.Int("round", round),
				logger.String("a", p.AID),
				logger.String("b", p.BID))
		}

		outcomes, settled := s.collectRound(ctx, collector.results, dispatched)
		if !settled {
			// Cancelled mid-round: the partial round is discarded whole.
			return s.finishStopped(report), nil
		}

		usable := 0
		for i := range outcomes {
			if outcomes[i].Usable() {
				usable++
			}
		}

		var stats roundStats
		if usable == 0 {
			// No usable outcome in the whole round: ratings and
			// deviations stay exactly as they were. Reported, not fatal.
			metrics.RecordRoundAnomaly()
			report.Anomalies++
			s.logger.Warn(ctx, "round produced no usable outcomes",
				logger.Int("round", round),
				logger.Int("settled", len(outcomes)))
		} else {
			working, stats = s.applyRound(ctx, working, outcomes)
		}

		fillAfterRatings(outcomes, working)
		s.appendHistory(outcomes)
		pending = append(pending, outcomes...)

		report.Rounds++
		report.Matches += len(outcomes)
		report.Judged += usable
		report.Indeterminate += len(outcomes) - usable
		report.ConvergenceFailures += stats.convergenceFailures
		report.Inflations += stats.inflations
		s.noteRound(len(outcomes), usable, stats.convergenceFailures, usable == 0)

		if s.commitMode == CommitEveryRound {
			if err := s.commit(ctx, runID, working, &pending); err != nil {
				metrics.RecordRunFinished("failed")
				return report, err
			}
		}

		metrics.RecordRoundCompleted()
		metrics.RecordRoundDuration(float64(time.Since(roundStart).Milliseconds()))
		s.logger.Info(ctx, "round complete",
			logger.Int("round", round),
			logger.Int("matches", len(outcomes)),
			logger.Int("judged", usable),
			logger.Int("indeterminate", len(outcomes)-usable),
			logger.Duration("took", time.Since(roundStart)))
	}

	if s.commitMode == CommitAtEnd {
		if err := s.commit(ctx, runID, working, &pending); err != nil {
			metrics.RecordRunFinished("failed")
			return report, err
		}
	}

	report.Finished = time.Now()
	metrics.RecordRunFinished("completed")
	s.logger.Info(ctx, "run finished",
		logger.String("run", runID),
		logger.Int("rounds", report.Rounds),
		logger.Int("matches", report.Matches),
		logger.Int("indeterminate", report.Indeterminate),
		logger.Duration("took", report.Finished.Sub(report.Started)))

	return report, nil
}

// Status returns a point-in-time copy of the live run counters.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// History returns the recorded outcomes of the current or most recent run
// in settle order, optionally narrowed to one round. A negative round
// returns everything.
func (s *Scheduler) History(round int) []model.MatchOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if round < 0 {
		out := make([]model.MatchOutcome, len(s.history))
		copy(out, s.history)

		return out
	}

	var out []model.MatchOutcome
	for i := range s.history {
		if s.history[i].Round == round {
			out = append(out, s.history[i])
		}
	}

	return out
}

// roundStats aggregates what the rating step did in one round.
type roundStats struct {
	updated             int
	inflations          int
	convergenceFailures int
}

// applyRound computes post-round states for the whole working population:
// the Glicko-2 period update for competitors with usable outcomes, the
// inactivity step for everyone else. Every opponent number is a pre-round
// value, so settle order cannot affect the result.
func (s *Scheduler) applyRound(ctx context.Context, working map[string]model.Competitor, outcomes []model.MatchOutcome) (map[string]model.Competitor, roundStats) {
	var stats roundStats

	opponents := make(map[string][]rating.Opponent)
	for i := range outcomes {
		out := &outcomes[i]
		if !out.Usable() {
			continue
		}
		a := working[out.AID]
		b := working[out.BID]
		scoreA := scoreFor(out.Verdict)
		opponents[out.AID] = append(opponents[out.AID], rating.Opponent{
			Rating:    b.Rating,
			Deviation: b.Deviation,
			Score:     scoreA,
		})
		opponents[out.BID] = append(opponents[out.BID], rating.Opponent{
			Rating:    a.Rating,
			Deviation: a.Deviation,
			Score:     1 - scoreA,
		})
	}

	next := make(map[string]model.Competitor, len(working))
	for id, c := range working {
		opps, played := opponents[id]
		if !played {
			st := s.updater.Inflate(rating.State{
				Rating:     c.Rating,
				Deviation:  c.Deviation,
				Volatility: c.Volatility,
			})
			c.Deviation = st.Deviation
			stats.inflations++
			next[id] = c

			continue
		}

		st, err := s.updater.Update(rating.State{
			Rating:     c.Rating,
			Deviation:  c.Deviation,
			Volatility: c.Volatility,
		}, opps)
		if err != nil && errors.Is(err, rating.ErrConvergence) {
			// The returned state is computed with the prior volatility
			// and remains usable.
			stats.convergenceFailures++
			metrics.RecordConvergenceFailure()
			s.logger.Warn(ctx, "volatility solver did not converge, keeping prior volatility",
				logger.String("id", id),
				logger.Error(err))
		}
		c.Rating = st.Rating
		c.Deviation = st.Deviation
		c.Volatility = st.Volatility
		stats.updated++
		next[id] = c
	}

	for i := range outcomes {
		out := &outcomes[i]
		if !out.Usable() {
			continue
		}
		a := next[out.AID]
		b := next[out.BID]
		switch out.Verdict {
		case model.VerdictAWins:
			a.Wins++
			b.Losses++
		case model.VerdictBWins:
			b.Wins++
			a.Losses++
		case model.VerdictDraw:
			a.Draws++
			b.Draws++
		}
		next[out.AID] = a
		next[out.BID] = b
	}

	metrics.RecordRatingUpdates(stats.updated)
	metrics.RecordInactivityInflations(stats.inflations)

	return next, stats
}

// collectRound blocks until every dispatched match of the round settles.
// Returns false when the run context ends first.
func (s *Scheduler) collectRound(ctx context.Context, results <-chan model.MatchOutcome, dispatched int) ([]model.MatchOutcome, bool) {
	outcomes := make([]model.MatchOutcome, 0, dispatched)
	for len(outcomes) < dispatched {
		select {
		case out := <-results:
			outcomes = append(outcomes, out)
		case <-ctx.Done():
			return nil, false
		}
	}

	return outcomes, true
}

// commit pushes the working state into the store and mirrors the commit
// point to the archive. The store is authoritative; archive failures are
// logged and the unwritten outcomes are kept for the next commit point.
func (s *Scheduler) commit(ctx context.Context, runID string, working map[string]model.Competitor, pending *[]model.MatchOutcome) error {
	batch := make([]model.Competitor, 0, len(working))
	for _, c := range working {
		batch = append(batch, c)
	}
	if err := s.store.ApplyRoundUpdate(ctx, batch); err != nil {
		return fmt.Errorf("commit round update: %w", err)
	}

	if s.archive == nil {
		*pending = (*pending)[:0]

		return nil
	}

	if err := s.archive.SaveCompetitors(ctx, batch); err != nil {
		s.logger.Error(ctx, "archiving competitors failed", logger.Error(err))
	}
	if err := s.archive.SaveOutcomes(ctx, runID, *pending); err != nil {
		s.logger.Error(ctx, "archiving matches failed, retrying at next commit", logger.Error(err))

		return nil
	}
	*pending = (*pending)[:0]

	return nil
}

// finishStopped finalizes a cancelled run. Whatever the store holds from
// the last commit stands; the open round's outcomes are discarded.
func (s *Scheduler) finishStopped(report Report) Report {
	report.Stopped = true
	report.Finished = time.Now()
	metrics.RecordRunFinished("stopped")
	s.logger.Info(context.Background(), "run stopped",
		logger.String("run", report.RunID),
		logger.Int("rounds_completed", report.Rounds))

	return report
}

func (s *Scheduler) setCurrentRound(round int) {
	s.mu.Lock()
	s.status.CurrentRound = round
	s.mu.Unlock()
}

func (s *Scheduler) noteRound(settled, usable, convergenceFailures int, anomaly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.MatchesPlayed += settled
	s.status.Indeterminate += settled - usable
	s.status.ConvergenceFailures += convergenceFailures
	if anomaly {
		s.status.Anomalies++
	}
}

func (s *Scheduler) appendHistory(outcomes []model.MatchOutcome) {
	if !s.recordHistory {
		return
	}

	s.mu.Lock()
	s.history = append(s.history, outcomes...)
	s.mu.Unlock()
}

// fillAfterRatings stamps post-round ratings onto the round's outcomes.
// Indeterminate outcomes get their pre-round values back since nothing
// moved for them.
func fillAfterRatings(outcomes []model.MatchOutcome, working map[string]model.Competitor) {
	for i := range outcomes {
		outcomes[i].RatingAAfter = working[outcomes[i].AID].Rating
		outcomes[i].RatingBAfter = working[outcomes[i].BID].Rating
	}
}

// scoreFor maps a verdict to the A side's Glicko-2 score.
func scoreFor(v model.Verdict) float64 {
	switch v {
	case model.VerdictAWins:
		return rating.ScoreWin
	case model.VerdictBWins:
		return rating.ScoreLoss
	default:
		return rating.ScoreDraw
	}
}
