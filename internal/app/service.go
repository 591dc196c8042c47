// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/agon/internal/adapters/archive"
	"github.com/okian/agon/internal/adapters/judge"
	"github.com/okian/agon/internal/adapters/repository"
	"github.com/okian/agon/internal/domain/dedupe"
	"github.com/okian/agon/internal/domain/match"
	"github.com/okian/agon/internal/domain/model"
	"github.com/okian/agon/internal/domain/pairing"
	"github.com/okian/agon/internal/domain/rating"
	"github.com/okian/agon/internal/domain/types"
	"github.com/okian/agon/internal/tournament"
	"github.com/okian/agon/pkg/logger"
	"github.com/okian/agon/pkg/metrics"
)

// ErrNotStarted is returned by operations invoked before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the arena.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	deduper   dedupe.Deduper
	judge     judge.Judge
	executor  match.Executor
	updater   rating.Updater
	policy    pairing.Policy
	scheduler *tournament.Scheduler
	archive   archive.Archive

	// Configuration
	initialRating     float64
	initialDeviation  float64
	initialVolatility float64
	tau               float64
	rounds            int
	concurrency       int
	maxAttempts       int
	attemptTimeout    time.Duration
	commitMode        tournament.CommitMode
	recordHistory     bool
	pairingSeed       int64
	provider          string
	model             string
	baseURL           string
	apiKey            string
	ratePerSec        float64
	burst             int
	goal              string
	archivePath       string
	dedupeSize        int
	snapshotInterval  time.Duration

	// Run lifecycle. runBase outlives individual requests so a run keeps
	// going after the POST that started it returns.
	runMu         sync.Mutex
	runBase       context.Context
	runBaseCancel context.CancelFunc
	runCancel     context.CancelFunc
	runID         string
	runWG         sync.WaitGroup
	lastReport    *tournament.Report

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		initialRating:     rating.DefaultInitialRating,
		initialDeviation:  rating.DefaultInitialDeviation,
		initialVolatility: rating.DefaultInitialVolatility,
		tau:               rating.DefaultTau,
		rounds:            tournament.DefaultRounds,
		concurrency:       8,
		maxAttempts:       match.DefaultMaxAttempts,
		attemptTimeout:    match.DefaultAttemptTimeout,
		commitMode:        tournament.CommitEveryRound,
		recordHistory:     true,
		provider:          "heuristic",
		burst:             1,
		dedupeSize:        50000, // default dedupe cache size
		logger:            nil,   // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting arena service...")

	// Initialize components
	s.store = repository.NewTreapStore(ctx,
		repository.WithSnapshotInterval(s.snapshotInterval),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.updater = rating.NewGlicko2Updater(
		rating.WithInitialRating(s.initialRating),
		rating.WithInitialDeviation(s.initialDeviation),
		rating.WithInitialVolatility(s.initialVolatility),
		rating.WithTau(s.tau),
	)

	// A zero seed would replay the same schedule on every process start.
	seed := s.pairingSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.policy = pairing.NewShufflePolicy(pairing.WithSeed(seed))

	if s.judge == nil {
		s.judge = s.buildJudge()
	}
	if s.ratePerSec > 0 {
		s.judge = judge.NewRateLimited(s.judge, s.ratePerSec, s.burst)
	}
	s.executor = match.NewExecutor(s.judge,
		match.WithGoal(s.goal),
		match.WithMaxAttempts(s.maxAttempts),
		match.WithAttemptTimeout(s.attemptTimeout),
		match.WithSeed(seed),
	)

	if s.archivePath != "" {
		arch, err := archive.NewSQLite(ctx, s.archivePath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		s.archive = arch
		s.logger.Info(ctx, "archiving to sqlite", logger.String("path", s.archivePath))
	}

	s.scheduler = tournament.New(s.store, s.updater, s.policy, s.executor,
		tournament.WithRounds(s.rounds),
		tournament.WithConcurrency(s.concurrency),
		tournament.WithCommitMode(s.commitMode),
		tournament.WithHistory(s.recordHistory),
		tournament.WithArchive(s.archive),
	)

	s.runBase, s.runBaseCancel = context.WithCancel(ctx)

	s.started = true
	s.logger.Info(ctx, "arena service started",
		logger.String("judge", s.provider),
		logger.Int("rounds", s.rounds),
		logger.Int("concurrency", s.concurrency),
		logger.String("commitMode", string(s.commitMode)),
	)

	return nil
}

// buildJudge selects the comparison backend from configuration. Callers
// that need full control inject one with WithJudge instead.
func (s *Service) buildJudge() judge.Judge {
	switch s.provider {
	case "openai":
		opts := []judge.OpenAIOption{judge.WithOpenAIKey(s.apiKey)}
		if s.model != "" {
			opts = append(opts, judge.WithOpenAIModel(s.model))
		}
		if s.baseURL != "" {
			opts = append(opts, judge.WithOpenAIBaseURL(s.baseURL))
		}
		return judge.NewOpenAIJudge(opts...)
	case "ollama":
		var opts []judge.OllamaOption
		if s.model != "" {
			opts = append(opts, judge.WithOllamaModel(s.model))
		}
		if s.baseURL != "" {
			opts = append(opts, judge.WithOllamaBaseURL(s.baseURL))
		}
		return judge.NewOllamaJudge(opts...)
	case "scripted":
		return judge.NewScriptedJudge()
	default:
		return judge.NewHeuristicJudge()
	}
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping arena service...")

	// Cancel any in-flight run and wait for it to settle at the last
	// committed state.
	if s.runBaseCancel != nil {
		s.runBaseCancel()
	}
	s.runWG.Wait()

	// Close rating store
	if s.store != nil {
		if closer, ok := s.store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	// Close archive
	if s.archive != nil {
		_ = s.archive.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "arena service stopped")
}

// Register adds a competitor to the population. A blank id gets a
// generated UUID. Returns the effective id and whether the id had been
// registered before; duplicates leave the existing record untouched.
func (s *Service) Register(ctx context.Context, id, content, origin string) (string, bool, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return "", false, ErrNotStarted
	}
	store, deduper, arch := s.store, s.deduper, s.archive
	initial := s.updater.Initial()
	s.mu.RUnlock()

	if id == "" {
		id = uuid.NewString()
	}

	if deduper.SeenAndRecord(ctx, id) {
		metrics.RecordRegistrationDuplicate()
		return id, true, nil
	}

	c := model.Competitor{
		ID:         id,
		Content:    content,
		Origin:     origin,
		Rating:     initial.Rating,
		Deviation:  initial.Deviation,
		Volatility: initial.Volatility,
	}
	if err := store.Register(ctx, c); err != nil {
		if errors.Is(err, repository.ErrAlreadyRegistered) {
			// The dedupe cache is bounded; the store stays the authority.
			metrics.RecordRegistrationDuplicate()
			return id, true, nil
		}
		deduper.Unrecord(ctx, id)
		return "", false, err
	}

	metrics.RecordCompetitorRegistered()
	metrics.UpdatePopulationSize(store.Count(ctx))

	if arch != nil {
		if err := arch.SaveCompetitors(ctx, []model.Competitor{c}); err != nil {
			s.logger.Warn(ctx, "archiving registration failed",
				logger.String("id", id), logger.Error(err))
		}
	}

	return id, false, nil
}

// StartRun launches a tournament over the current population and returns
// its run id without waiting for completion. At most one run is active;
// a second request fails with tournament.ErrRunInProgress.
func (s *Service) StartRun(ctx context.Context, rounds int) (string, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return "", ErrNotStarted
	}
	store, sched, base := s.store, s.scheduler, s.runBase
	s.mu.RUnlock()

	// Surface the obvious failure before accepting the run.
	if store.Count(ctx) < 2 {
		return "", tournament.ErrPopulationTooSmall
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.runCancel != nil {
		return "", tournament.ErrRunInProgress
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(base)
	s.runCancel = cancel
	s.runID = runID

	s.runWG.Add(1)
	go func() {
		defer s.runWG.Done()
		defer cancel()

		report, err := sched.RunWithID(runCtx, runID, rounds)
		if err != nil {
			s.logger.Error(runCtx, "run failed",
				logger.String("run", runID), logger.Error(err))
		}

		s.runMu.Lock()
		s.lastReport = &report
		s.runCancel = nil
		s.runMu.Unlock()
	}()

	return runID, nil
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil, ErrNotStarted
	}
	store := s.store
	s.mu.RUnlock()

	entries, err := store.TopN(ctx, n)
	if err != nil {
		return nil, err
	}

	// Convert to API format
	apiEntries := make([]types.Entry, len(entries))
	for i, entry := range entries {
		apiEntries[i] = toAPIEntry(entry)
	}

	return apiEntries, nil
}

// Rank returns the leaderboard entry for a single competitor.
func (s *Service) Rank(ctx context.Context, id string) (types.Entry, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return types.Entry{}, ErrNotStarted
	}
	store := s.store
	s.mu.RUnlock()

	entry, err := store.Rank(ctx, id)
	if err != nil {
		return types.Entry{}, err
	}

	return toAPIEntry(entry), nil
}

// History returns recorded match outcomes. An empty run selects the
// current or most recent run from memory; any other run id is answered
// from the archive when one is configured. A negative round means all
// rounds.
func (s *Service) History(ctx context.Context, run string, round int) ([]model.MatchOutcome, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil, ErrNotStarted
	}
	sched, arch := s.scheduler, s.archive
	s.mu.RUnlock()

	s.runMu.Lock()
	current := s.runID
	s.runMu.Unlock()

	if run == "" || run == current {
		return sched.History(round), nil
	}
	if arch == nil {
		return nil, nil
	}
	return arch.Matches(ctx, run, round)
}

// RunStatus returns the live view of the scheduler. It keeps answering
// after Stop so callers can read the final state of an interrupted run.
func (s *Service) RunStatus() tournament.Status {
	s.mu.RLock()
	sched := s.scheduler
	s.mu.RUnlock()

	if sched == nil {
		return tournament.Status{}
	}

	return sched.Status()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"judgeProvider": s.provider,
		"rounds":        s.rounds,
		"concurrency":   s.concurrency,
		"commitMode":    string(s.commitMode),
	}

	if !s.started {
		return stats
	}

	population := s.store.Count(ctx)
	stats["population"] = population
	stats["dedupeSize"] = s.deduper.Size()

	st := s.scheduler.Status()
	stats["runActive"] = st.Active
	stats["runID"] = st.RunID
	stats["currentRound"] = st.CurrentRound
	stats["totalRounds"] = st.TotalRounds
	stats["matchesPlayed"] = st.MatchesPlayed
	stats["indeterminate"] = st.Indeterminate
	stats["anomalies"] = st.Anomalies
	stats["convergenceFailures"] = st.ConvergenceFailures

	s.runMu.Lock()
	if s.lastReport != nil {
		stats["lastRun"] = map[string]interface{}{
			"runID":         s.lastReport.RunID,
			"rounds":        s.lastReport.Rounds,
			"matches":       s.lastReport.Matches,
			"judged":        s.lastReport.Judged,
			"indeterminate": s.lastReport.Indeterminate,
			"anomalies":     s.lastReport.Anomalies,
			"inflations":    s.lastReport.Inflations,
			"stopped":       s.lastReport.Stopped,
		}
	}
	s.runMu.Unlock()

	// Update metrics
	metrics.UpdatePopulationSize(population)
	s.updateRatingGauges(ctx)

	return stats
}

// updateRatingGauges refreshes the population-wide gauges. Linear in the
// population, so it runs only on stats pulls, not in any hot path.
func (s *Service) updateRatingGauges(ctx context.Context) {
	competitors := s.store.Competitors(ctx)
	if len(competitors) == 0 {
		return
	}

	top := competitors[0].Rating
	sum := 0.0
	for i := range competitors {
		if competitors[i].Rating > top {
			top = competitors[i].Rating
		}
		sum += competitors[i].Deviation
	}
	metrics.UpdateTopRating(top)
	metrics.UpdateMeanDeviation(sum / float64(len(competitors)))
}

// toAPIEntry converts a store entry to the API representation.
func toAPIEntry(e repository.Entry) types.Entry {
	return types.Entry{
		Rank:       e.Rank,
		ID:         e.ID,
		Rating:     e.Rating,
		Deviation:  e.Deviation,
		Volatility: e.Volatility,
		Matches:    e.Matches,
		Wins:       e.Wins,
		Losses:     e.Losses,
		Draws:      e.Draws,
		WinRate:    e.WinRate,
	}
}
