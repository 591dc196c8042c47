package tournament_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	archive "github.com/okian/agon/internal/adapters/archive"
	judge "github.com/okian/agon/internal/adapters/judge"
	repository "github.com/okian/agon/internal/adapters/repository"
	match "github.com/okian/agon/internal/domain/match"
	"github.com/okian/agon/internal/domain/model"
	pairing "github.com/okian/agon/internal/domain/pairing"
	rating "github.com/okian/agon/internal/domain/rating"
	tournament "github.com/okian/agon/internal/tournament"
	"github.com/okian/agon/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func seedCompetitor(id string, quality float64) model.Competitor {
	return model.Competitor{
		ID:         id,
		Content:    "piece " + id + " " + judge.QualityMarker(quality),
		Origin:     "seed",
		Rating:     1500,
		Deviation:  350,
		Volatility: 0.06,
	}
}

func register(ctx context.Context, store repository.Store, competitors ...model.Competitor) error {
	for i := range competitors {
		if err := store.Register(ctx, competitors[i]); err != nil {
			return err
		}
	}

	return nil
}

// settle builds the judged shell every test executor fills in.
func settle(p model.Pairing, a, b model.Competitor) model.MatchOutcome { //nolint:gocritic // hugeParam: competitors are snapshots passed by value
	return model.MatchOutcome{
		Round:         p.Round,
		AID:           p.AID,
		BID:           p.BID,
		Attempts:      1,
		RatingABefore: a.Rating,
		RatingBBefore: b.Rating,
		TS:            time.Now(),
	}
}

// strengthExecutor settles matches instantly from a fixed strength table.
type strengthExecutor struct {
	strength map[string]float64
}

func (e *strengthExecutor) Run(_ context.Context, p model.Pairing, a, b model.Competitor) model.MatchOutcome {
	out := settle(p, a, b)
	out.Status = model.StatusJudged
	sa, sb := e.strength[p.AID], e.strength[p.BID]
	switch {
	case sa > sb:
		out.Verdict = model.VerdictAWins
	case sb > sa:
		out.Verdict = model.VerdictBWins
	default:
		out.Verdict = model.VerdictDraw
	}

	return out
}

// failingExecutor settles every match as indeterminate.
type failingExecutor struct{}

func (e *failingExecutor) Run(_ context.Context, p model.Pairing, a, b model.Competitor) model.MatchOutcome {
	out := settle(p, a, b)
	out.Status = model.StatusIndeterminate
	out.Attempts = 3

	return out
}

// gatedExecutor blocks each match on a token so tests control run pacing.
// Matches interrupted by cancellation settle as indeterminate, like a real
// judge losing its context mid-call.
type gatedExecutor struct {
	tokens  chan struct{}
	started chan struct{}
}

func newGatedExecutor() *gatedExecutor {
	return &gatedExecutor{
		tokens:  make(chan struct{}, 16),
		started: make(chan struct{}, 16),
	}
}

func (e *gatedExecutor) Run(ctx context.Context, p model.Pairing, a, b model.Competitor) model.MatchOutcome {
	select {
	case e.started <- struct{}{}:
	default:
	}

	out := settle(p, a, b)
	select {
	case <-e.tokens:
		out.Status = model.StatusJudged
		out.Verdict = model.VerdictAWins
	case <-ctx.Done():
		out.Status = model.StatusIndeterminate
	}

	return out
}

// gaugeExecutor records the peak number of concurrently running matches.
type gaugeExecutor struct {
	delay   time.Duration
	mu      sync.Mutex
	current int
	peak    int
}

func (e *gaugeExecutor) Run(_ context.Context, p model.Pairing, a, b model.Competitor) model.MatchOutcome {
	e.mu.Lock()
	e.current++
	if e.current > e.peak {
		e.peak = e.current
	}
	e.mu.Unlock()

	time.Sleep(e.delay)

	e.mu.Lock()
	e.current--
	e.mu.Unlock()

	out := settle(p, a, b)
	out.Status = model.StatusJudged
	out.Verdict = model.VerdictAWins

	return out
}

func (e *gaugeExecutor) peakConcurrency() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.peak
}

type runResult struct {
	report tournament.Report
	err    error
}

func TestSchedulerRun(t *testing.T) {
	Convey("Given four competitors with fixed strengths", t, func() {
		ctx := context.Background()
		store := repository.NewTreapStore(ctx)
		defer func() { _ = store.Close() }()

		So(register(ctx, store,
			seedCompetitor("alpha", 9),
			seedCompetitor("bravo", 7),
			seedCompetitor("charlie", 5),
			seedCompetitor("delta", 3),
		), ShouldBeNil)

		exec := &strengthExecutor{strength: map[string]float64{
			"alpha": 9, "bravo": 7, "charlie": 5, "delta": 3,
		}}
		sched := tournament.New(store,
			rating.NewGlicko2Updater(),
			pairing.NewShufflePolicy(pairing.WithSeed(7)),
			exec)

		Convey("When a three round tournament runs", func() {
			report, err := sched.Run(ctx, 3)
			So(err, ShouldBeNil)
			So(report.RunID, ShouldNotBeEmpty)
			So(report.Stopped, ShouldBeFalse)
			So(report.Rounds, ShouldEqual, 3)
			So(report.Matches, ShouldEqual, 6)
			So(report.Judged, ShouldEqual, 6)
			So(report.Indeterminate, ShouldEqual, 0)
			So(report.Anomalies, ShouldEqual, 0)

			Convey("Then the strongest is unbeaten and the weakest winless", func() {
				top, err := store.Get(ctx, "alpha")
				So(err, ShouldBeNil)
				So(top.Rating, ShouldBeGreaterThan, 1500)
				So(top.Wins, ShouldEqual, 3)
				So(top.Losses, ShouldEqual, 0)
				So(top.Draws, ShouldEqual, 0)

				bottom, err := store.Get(ctx, "delta")
				So(err, ShouldBeNil)
				So(bottom.Rating, ShouldBeLessThan, 1500)
				So(bottom.Wins, ShouldEqual, 0)
				So(bottom.Losses, ShouldEqual, 3)
			})

			Convey("Then deviations shrink for everyone who played", func() {
				for _, c := range store.Competitors(ctx) {
					So(c.Deviation, ShouldBeLessThan, 350)
				}
			})

			Convey("Then history holds every outcome with its round index", func() {
				all := sched.History(-1)
				So(len(all), ShouldEqual, 6)

				round0 := sched.History(0)
				So(len(round0), ShouldEqual, 2)
				for _, out := range round0 {
					So(out.Round, ShouldEqual, 0)
					So(out.RatingAAfter, ShouldBeGreaterThan, 0)
					So(out.RatingBAfter, ShouldBeGreaterThan, 0)
				}
			})

			Convey("Then the scheduler is idle again", func() {
				st := sched.Status()
				So(st.Active, ShouldBeFalse)
				So(st.CurrentRound, ShouldEqual, 0)
				So(st.MatchesPlayed, ShouldEqual, 6)
			})
		})
	})
}

func TestSchedulerSmallPopulation(t *testing.T) {
	Convey("Given a store with too few competitors", t, func() {
		ctx := context.Background()
		store := repository.NewTreapStore(ctx)
		defer func() { _ = store.Close() }()

		sched := tournament.New(store,
			rating.NewGlicko2Updater(),
			pairing.NewShufflePolicy(pairing.WithSeed(1)),
			&strengthExecutor{})

		Convey("When the store is empty", func() {
			_, err := sched.Run(ctx, 2)
			So(errors.Is(err, tournament.ErrPopulationTooSmall), ShouldBeTrue)
		})

		Convey("When a single competitor is registered", func() {
			So(register(ctx, store, seedCompetitor("solo", 5)), ShouldBeNil)
			_, err := sched.Run(ctx, 2)
			So(errors.Is(err, tournament.ErrPopulationTooSmall), ShouldBeTrue)
		})
	})
}

func TestSchedulerRunInProgress(t *testing.T) {
	Convey("Given a run blocked inside its first match", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := repository.NewTreapStore(ctx)
		defer func() { _ = store.Close() }()
		So(register(ctx, store,
			seedCompetitor("alpha", 9),
			seedCompetitor("bravo", 3),
		), ShouldBeNil)

		exec := newGatedExecutor()
		sched := tournament.New(store,
			rating.NewGlicko2Updater(),
			pairing.NewShufflePolicy(pairing.WithSeed(2)),
			exec)

		results := make(chan runResult, 1)
		go func() {
			report, err := sched.Run(ctx, 3)
			results <- runResult{report: report, err: err}
		}()
		<-exec.started

		Convey("When a second run is requested", func() {
			_, err := sched.Run(ctx, 1)
			So(errors.Is(err, tournament.ErrRunInProgress), ShouldBeTrue)
		})

		Convey("Then status reports the run in flight", func() {
			st := sched.Status()
			So(st.Active, ShouldBeTrue)
			So(st.RunID, ShouldNotBeEmpty)
			So(st.TotalRounds, ShouldEqual, 3)
			So(st.CurrentRound, ShouldEqual, 1)
		})

		cancel()
		res := <-results
		So(res.err, ShouldBeNil)
		So(res.report.Stopped, ShouldBeTrue)
		So(res.report.Rounds, ShouldEqual, 0)
	})
}

func TestSchedulerAllIndeterminate(t *testing.T) {
	Convey("Given a judge that never produces a verdict", t, func() {
		ctx := context.Background()
		store := repository.NewTreapStore(ctx)
		defer func() { _ = store.Close() }()

		So(register(ctx, store,
			seedCompetitor("alpha", 9),
			seedCompetitor("bravo", 7),
			seedCompetitor("charlie", 5),
			seedCompetitor("delta", 3),
		), ShouldBeNil)

		sched := tournament.New(store,
			rating.NewGlicko2Updater(),
			pairing.NewShufflePolicy(pairing.WithSeed(4)),
			&failingExecutor{})

		report, err := sched.Run(ctx, 2)
		So(err, ShouldBeNil)
		So(report.Rounds, ShouldEqual, 2)
		So(report.Anomalies, ShouldEqual, 2)
		So(report.Judged, ShouldEqual, 0)
		So(report.Indeterminate, ShouldEqual, 4)
		So(report.Stopped, ShouldBeFalse)

		Convey("Then ratings and deviations stay exactly put", func() {
			for _, c := range store.Competitors(ctx) {
				So(c.Rating, ShouldEqual, 1500)
				So(c.Deviation, ShouldEqual, 350)
				So(c.Volatility, ShouldEqual, 0.06)
				So(c.Matches(), ShouldEqual, 0)
			}
		})

		Convey("Then history keeps the outcomes with their explicit status", func() {
			all := sched.History(-1)
			So(len(all), ShouldEqual, 4)
			for _, out := range all {
				So(out.Status, ShouldEqual, model.StatusIndeterminate)
				So(out.Usable(), ShouldBeFalse)
				So(out.RatingAAfter, ShouldEqual, out.RatingABefore)
			}
		})
	})
}

func TestSchedulerCancellationMidRound(t *testing.T) {
	Convey("Given a run gated one match at a time", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := repository.NewTreapStore(ctx)
		defer func() { _ = store.Close() }()
		So(register(ctx, store,
			seedCompetitor("alpha", 9),
			seedCompetitor("bravo", 3),
		), ShouldBeNil)

		exec := newGatedExecutor()
		exec.tokens <- struct{}{} // round one may pass
		sched := tournament.New(store,
			rating.NewGlicko2Updater(),
			pairing.NewShufflePolicy(pairing.WithSeed(3)),
			exec)

		results := make(chan runResult, 1)
		go func() {
			report, err := sched.Run(ctx, 5)
			results <- runResult{report: report, err: err}
		}()

		// Round two starting proves round one is committed.
		<-exec.started
		<-exec.started

		Convey("When the run is cancelled mid round", func() {
			cancel()
			res := <-results
			So(res.err, ShouldBeNil)
			So(res.report.Stopped, ShouldBeTrue)
			So(res.report.Rounds, ShouldEqual, 1)

			Convey("Then the store holds exactly the last committed round", func() {
				ordered := store.Competitors(ctx)
				So(len(ordered), ShouldEqual, 2)
				So(ordered[0].Wins, ShouldEqual, 1)
				So(ordered[0].Rating, ShouldBeGreaterThan, 1500)
				So(ordered[1].Losses, ShouldEqual, 1)
				So(ordered[1].Rating, ShouldBeLessThan, 1500)
				So(len(sched.History(-1)), ShouldEqual, 1)
			})
		})
	})
}

func TestSchedulerBoundedConcurrency(t *testing.T) {
	Convey("Given eight competitors and a concurrency limit of two", t, func() {
		ctx := context.Background()
		store := repository.NewTreapStore(ctx)
		defer func() { _ = store.Close() }()

		for i := 0; i < 8; i++ {
			id := fmt.Sprintf("piece-%d", i)
			So(store.Register(ctx, seedCompetitor(id, float64(i))), ShouldBeNil)
		}

		exec := &gaugeExecutor{delay: 30 * time.Millisecond}
		sched := tournament.New(store,
			rating.NewGlicko2Updater(),
			pairing.NewShufflePolicy(pairing.WithSeed(6)),
			exec,
			tournament.WithConcurrency(2))

		Convey("When two rounds run", func() {
			report, err := sched.Run(ctx, 2)
			So(err, ShouldBeNil)
			So(report.Matches, ShouldEqual, 8)
			So(exec.peakConcurrency(), ShouldBeGreaterThan, 0)
			So(exec.peakConcurrency(), ShouldBeLessThanOrEqualTo, 2)
		})
	})
}

func TestSchedulerCommitAtEnd(t *testing.T) {
	Convey("Given a run committing only at the end", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := repository.NewTreapStore(ctx)
		defer func() { _ = store.Close() }()
		So(register(ctx, store,
			seedCompetitor("alpha", 9),
			seedCompetitor("bravo", 3),
		), ShouldBeNil)

		exec := newGatedExecutor()
		exec.tokens <- struct{}{} // round one may pass
		sched := tournament.New(store,
			rating.NewGlicko2Updater(),
			pairing.NewShufflePolicy(pairing.WithSeed(8)),
			exec,
			tournament.WithCommitMode(tournament.CommitAtEnd))

		results := make(chan runResult, 1)
		go func() {
			report, err := sched.Run(ctx, 2)
			results <- runResult{report: report, err: err}
		}()

		// Round two starting proves round one is fully processed.
		<-exec.started
		<-exec.started

		Convey("Then mid-run reads still see the starting state", func() {
			for _, c := range store.Competitors(ctx) {
				So(c.Rating, ShouldEqual, 1500)
				So(c.Matches(), ShouldEqual, 0)
			}
		})

		exec.tokens <- struct{}{} // release round two
		res := <-results
		So(res.err, ShouldBeNil)
		So(res.report.Rounds, ShouldEqual, 2)
		So(res.report.Stopped, ShouldBeFalse)

		Convey("Then the final commit lands after the last round", func() {
			totalWins := 0
			for _, c := range store.Competitors(ctx) {
				So(c.Matches(), ShouldEqual, 2)
				totalWins += c.Wins
			}
			So(totalWins, ShouldEqual, 2)
		})
	})
}

func TestSchedulerOddPopulation(t *testing.T) {
	Convey("Given three competitors so every round has a bye", t, func() {
		ctx := context.Background()
		store := repository.NewTreapStore(ctx)
		defer func() { _ = store.Close() }()

		So(register(ctx, store,
			seedCompetitor("alpha", 9),
			seedCompetitor("bravo", 5),
			seedCompetitor("charlie", 1),
		), ShouldBeNil)

		exec := &strengthExecutor{strength: map[string]float64{
			"alpha": 9, "bravo": 5, "charlie": 1,
		}}
		sched := tournament.New(store,
			rating.NewGlicko2Updater(),
			pairing.NewShufflePolicy(pairing.WithSeed(5)),
			exec,
			tournament.WithRounds(2))

		Convey("When the run uses the configured default rounds", func() {
			report, err := sched.Run(ctx, 0)
			So(err, ShouldBeNil)
			So(report.Rounds, ShouldEqual, 2)
			So(report.Matches, ShouldEqual, 2)
			So(report.Judged, ShouldEqual, 2)
			So(report.Inflations, ShouldEqual, 2)

			Convey("Then tallies and deviations reflect one pairing per round", func() {
				played := 0
				totalWins, totalLosses := 0, 0
				for _, c := range store.Competitors(ctx) {
					So(c.Deviation, ShouldBeLessThanOrEqualTo, 350)
					if c.Deviation < 350 {
						played++
					}
					totalWins += c.Wins
					totalLosses += c.Losses
				}
				So(played, ShouldBeGreaterThanOrEqualTo, 2)
				So(totalWins, ShouldEqual, 2)
				So(totalLosses, ShouldEqual, 2)
			})
		})
	})
}

func TestSchedulerEndToEnd(t *testing.T) {
	Convey("Given a population judged by embedded quality markers", t, func() {
		ctx := context.Background()
		store := repository.NewTreapStore(ctx)
		defer func() { _ = store.Close() }()

		arch, err := archive.NewSQLite(ctx, filepath.Join(t.TempDir(), "arena.db"))
		So(err, ShouldBeNil)
		defer func() { _ = arch.Close() }()

		So(register(ctx, store,
			seedCompetitor("ember", 9.5),
			seedCompetitor("frost", 7.0),
			seedCompetitor("gale", 5.0),
			seedCompetitor("haze", 2.0),
		), ShouldBeNil)

		executor := match.NewExecutor(judge.NewScriptedJudge())
		sched := tournament.New(store,
			rating.NewGlicko2Updater(),
			pairing.NewShufflePolicy(pairing.WithSeed(11)),
			executor,
			tournament.WithArchive(arch))

		report, err := sched.Run(ctx, 4)
		So(err, ShouldBeNil)
		So(report.Matches, ShouldEqual, 8)
		So(report.Judged, ShouldEqual, 8)
		So(report.Indeterminate, ShouldEqual, 0)

		Convey("Then the best piece is unbeaten and the worst winless", func() {
			best, err := store.Get(ctx, "ember")
			So(err, ShouldBeNil)
			So(best.Wins, ShouldEqual, 4)
			So(best.Losses, ShouldEqual, 0)
			So(best.Rating, ShouldBeGreaterThan, 1500)

			worst, err := store.Get(ctx, "haze")
			So(err, ShouldBeNil)
			So(worst.Wins, ShouldEqual, 0)
			So(worst.Rating, ShouldBeLessThan, 1500)
		})

		Convey("Then outcomes carry the judge's rationale", func() {
			all := sched.History(-1)
			So(len(all), ShouldEqual, 8)
			So(all[0].Rationale, ShouldContainSubstring, "marker")
		})

		Convey("Then the archive mirrors competitors and matches", func() {
			archived, err := arch.Competitors(ctx)
			So(err, ShouldBeNil)
			So(len(archived), ShouldEqual, 4)
			So(archived[0].ID, ShouldEqual, "ember")

			outs, err := arch.Matches(ctx, report.RunID, -1)
			So(err, ShouldBeNil)
			So(len(outs), ShouldEqual, 8)
			So(outs[0].Rationale, ShouldNotBeEmpty)
			So(outs[0].RatingAAfter, ShouldBeGreaterThan, 0)
		})
	})
}
