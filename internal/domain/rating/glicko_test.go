package rating_test

import (
	"errors"
	"math"
	"testing"

	rating "github.com/okian/agon/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGlicko2Updater_Update(t *testing.T) {
	Convey("Given an updater with default parameters", t, func() {
		updater := rating.NewGlicko2Updater()

		Convey("When applying the worked example from the Glicko-2 paper", func() {
			// Player at 1500/200/0.06 beats 1400/30 and loses to
			// 1550/100 and 1700/300 in one period with tau 0.5.
			prior := rating.State{Rating: 1500, Deviation: 200, Volatility: 0.06}
			opponents := []rating.Opponent{
				{Rating: 1400, Deviation: 30, Score: rating.ScoreWin},
				{Rating: 1550, Deviation: 100, Score: rating.ScoreLoss},
				{Rating: 1700, Deviation: 300, Score: rating.ScoreLoss},
			}

			next, err := updater.Update(prior, opponents)

			Convey("Then it should reproduce the published results", func() {
				So(err, ShouldBeNil)
				So(next.Rating, ShouldAlmostEqual, 1464.06, 0.5)
				So(next.Deviation, ShouldAlmostEqual, 151.52, 0.5)
				So(next.Volatility, ShouldAlmostEqual, 0.05999, 0.001)
			})
		})

		Convey("When two identical competitors draw", func() {
			prior := rating.State{Rating: 1500, Deviation: 200, Volatility: 0.06}
			opponents := []rating.Opponent{
				{Rating: 1500, Deviation: 200, Score: rating.ScoreDraw},
			}

			next, err := updater.Update(prior, opponents)

			Convey("Then the rating should not move", func() {
				So(err, ShouldBeNil)
				So(next.Rating, ShouldAlmostEqual, 1500, 1e-9)
			})

			Convey("And the deviation should shrink", func() {
				// A draw against an equal is still information.
				So(err, ShouldBeNil)
				So(next.Deviation, ShouldAlmostEqual, 180.1, 0.5)
				So(next.Deviation, ShouldBeLessThan, prior.Deviation)
			})
		})

		Convey("When two identical competitors play a decisive match", func() {
			prior := rating.State{Rating: 1500, Deviation: 350, Volatility: 0.06}
			winner, errW := updater.Update(prior, []rating.Opponent{
				{Rating: 1500, Deviation: 350, Score: rating.ScoreWin},
			})
			loser, errL := updater.Update(prior, []rating.Opponent{
				{Rating: 1500, Deviation: 350, Score: rating.ScoreLoss},
			})

			Convey("Then the winner should gain and the loser should lose", func() {
				So(errW, ShouldBeNil)
				So(errL, ShouldBeNil)
				So(winner.Rating, ShouldBeGreaterThan, 1500)
				So(loser.Rating, ShouldBeLessThan, 1500)
			})

			Convey("And the adjustments should mirror each other", func() {
				So(errW, ShouldBeNil)
				So(errL, ShouldBeNil)
				So(winner.Rating-1500, ShouldAlmostEqual, 1500-loser.Rating, 1e-9)
				So(winner.Deviation, ShouldAlmostEqual, loser.Deviation, 1e-9)
			})
		})

		Convey("When beating opponents of different certainty", func() {
			prior := rating.State{Rating: 1500, Deviation: 200, Volatility: 0.06}
			vsCertain, err1 := updater.Update(prior, []rating.Opponent{
				{Rating: 1400, Deviation: 30, Score: rating.ScoreWin},
			})
			vsUncertain, err2 := updater.Update(prior, []rating.Opponent{
				{Rating: 1400, Deviation: 300, Score: rating.ScoreWin},
			})

			Convey("Then the certain opponent should move the rating more", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(vsCertain.Rating-prior.Rating, ShouldBeGreaterThan, vsUncertain.Rating-prior.Rating)
			})
		})

		Convey("When an opponent has zero deviation", func() {
			prior := rating.State{Rating: 1500, Deviation: 200, Volatility: 0.06}
			next, err := updater.Update(prior, []rating.Opponent{
				{Rating: 1600, Deviation: 0, Score: rating.ScoreWin},
			})

			Convey("Then the result should stay finite", func() {
				So(err, ShouldBeNil)
				So(math.IsNaN(next.Rating), ShouldBeFalse)
				So(math.IsInf(next.Rating, 0), ShouldBeFalse)
				So(next.Deviation, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the opponent slice is empty", func() {
			prior := rating.State{Rating: 1480, Deviation: 120, Volatility: 0.055}

			next, err := updater.Update(prior, nil)

			Convey("Then it should match the inactivity step", func() {
				So(err, ShouldBeNil)
				So(next, ShouldResemble, updater.Inflate(prior))
			})
		})
	})
}

func TestGlicko2Updater_Inactivity(t *testing.T) {
	Convey("Given an updater with default parameters", t, func() {
		updater := rating.NewGlicko2Updater()

		Convey("When a competitor sits a round out", func() {
			prior := rating.State{Rating: 1500, Deviation: 200, Volatility: 0.06}
			next := updater.Inflate(prior)

			Convey("Then the rating and volatility should not move", func() {
				So(next.Rating, ShouldEqual, prior.Rating)
				So(next.Volatility, ShouldEqual, prior.Volatility)
			})

			Convey("And the deviation should grow slightly", func() {
				// sqrt(200^2 + (0.06 * 173.7178)^2) on the display scale.
				So(next.Deviation, ShouldAlmostEqual, 200.27, 0.05)
			})
		})

		Convey("When an idle competitor already has near-initial deviation", func() {
			prior := rating.State{Rating: 1500, Deviation: 349.5, Volatility: 5.0}
			next := updater.Inflate(prior)

			Convey("Then the deviation should cap at the initial deviation", func() {
				So(next.Deviation, ShouldEqual, rating.DefaultInitialDeviation)
			})
		})

		Convey("When a competitor idles for many rounds", func() {
			state := rating.State{Rating: 1620, Deviation: 80, Volatility: 0.06}
			for i := 0; i < 500; i++ {
				state = updater.Inflate(state)
			}

			Convey("Then the deviation should never exceed the initial deviation", func() {
				So(state.Deviation, ShouldBeLessThanOrEqualTo, rating.DefaultInitialDeviation)
				So(state.Rating, ShouldEqual, 1620)
			})
		})
	})
}

func TestGlicko2Updater_Convergence(t *testing.T) {
	Convey("Given an updater with a starved iteration budget", t, func() {
		updater := rating.NewGlicko2Updater(rating.WithMaxIterations(1))

		Convey("When the volatility solver cannot close its bracket", func() {
			prior := rating.State{Rating: 1500, Deviation: 350, Volatility: 0.06}
			next, err := updater.Update(prior, []rating.Opponent{
				{Rating: 1500, Deviation: 350, Score: rating.ScoreWin},
			})

			Convey("Then it should report a convergence error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, rating.ErrConvergence), ShouldBeTrue)
			})

			Convey("And the state should fall back to the prior volatility", func() {
				So(next.Volatility, ShouldEqual, prior.Volatility)
			})

			Convey("And the rating and deviation should still update", func() {
				So(next.Rating, ShouldBeGreaterThan, 1500)
				So(next.Deviation, ShouldBeLessThan, prior.Deviation)
			})
		})
	})

	Convey("Given an updater with the default iteration budget", t, func() {
		updater := rating.NewGlicko2Updater()

		Convey("When solving across a spread of realistic inputs", func() {
			priors := []rating.State{
				{Rating: 1500, Deviation: 350, Volatility: 0.06},
				{Rating: 1850, Deviation: 60, Volatility: 0.04},
				{Rating: 1100, Deviation: 250, Volatility: 0.09},
			}
			scores := []float64{rating.ScoreWin, rating.ScoreDraw, rating.ScoreLoss}

			Convey("Then every update should converge", func() {
				for _, prior := range priors {
					for _, score := range scores {
						_, err := updater.Update(prior, []rating.Opponent{
							{Rating: 1500, Deviation: 200, Score: score},
						})
						So(err, ShouldBeNil)
					}
				}
			})
		})
	})
}

func TestGlicko2Updater_Options(t *testing.T) {
	Convey("Given custom initial parameters", t, func() {
		updater := rating.NewGlicko2Updater(
			rating.WithInitialRating(1200),
			rating.WithInitialDeviation(250),
			rating.WithInitialVolatility(0.05),
			rating.WithTau(0.3),
		)

		Convey("When asking for a fresh state", func() {
			initial := updater.Initial()

			Convey("Then it should carry the configured values", func() {
				So(initial.Rating, ShouldEqual, 1200)
				So(initial.Deviation, ShouldEqual, 250)
				So(initial.Volatility, ShouldEqual, 0.05)
			})
		})

		Convey("When two equal competitors draw at the shifted center", func() {
			prior := updater.Initial()
			next, err := updater.Update(prior, []rating.Opponent{
				{Rating: 1200, Deviation: 250, Score: rating.ScoreDraw},
			})

			Convey("Then the rating should hold at the new center", func() {
				So(err, ShouldBeNil)
				So(next.Rating, ShouldAlmostEqual, 1200, 1e-9)
			})
		})
	})

	Convey("Given a deviation floor", t, func() {
		updater := rating.NewGlicko2Updater(rating.WithDeviationFloor(200))

		Convey("When an update would shrink the deviation below it", func() {
			prior := rating.State{Rating: 1500, Deviation: 200, Volatility: 0.06}
			next, err := updater.Update(prior, []rating.Opponent{
				{Rating: 1500, Deviation: 200, Score: rating.ScoreDraw},
			})

			Convey("Then the deviation should clamp at the floor", func() {
				So(err, ShouldBeNil)
				So(next.Deviation, ShouldEqual, 200)
			})
		})
	})

	Convey("Given invalid option values", t, func() {
		updater := rating.NewGlicko2Updater(
			rating.WithInitialRating(-10),
			rating.WithInitialDeviation(0),
			rating.WithInitialVolatility(-1),
			rating.WithTau(0),
			rating.WithMaxIterations(-5),
			rating.WithTolerance(0),
			rating.WithVolatilityFloor(0),
		)

		Convey("When asking for a fresh state", func() {
			initial := updater.Initial()

			Convey("Then the defaults should survive", func() {
				So(initial.Rating, ShouldEqual, rating.DefaultInitialRating)
				So(initial.Deviation, ShouldEqual, rating.DefaultInitialDeviation)
				So(initial.Volatility, ShouldEqual, rating.DefaultInitialVolatility)
			})
		})
	})
}

func TestGlicko2Updater_LongRun(t *testing.T) {
	Convey("Given two fresh competitors where one always wins", t, func() {
		updater := rating.NewGlicko2Updater()
		a := updater.Initial()
		b := updater.Initial()

		Convey("When playing twenty one-match rounds", func() {
			for round := 0; round < 20; round++ {
				preA, preB := a, b
				nextA, errA := updater.Update(preA, []rating.Opponent{
					{Rating: preB.Rating, Deviation: preB.Deviation, Score: rating.ScoreWin},
				})
				nextB, errB := updater.Update(preB, []rating.Opponent{
					{Rating: preA.Rating, Deviation: preA.Deviation, Score: rating.ScoreLoss},
				})
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				a, b = nextA, nextB
			}

			Convey("Then the winner should rank strictly above the loser", func() {
				So(a.Rating, ShouldBeGreaterThan, 1700)
				So(b.Rating, ShouldBeLessThan, 1300)
				So(a.Rating-1500, ShouldAlmostEqual, 1500-b.Rating, 1e-6)
			})

			Convey("And both deviations should have tightened", func() {
				So(a.Deviation, ShouldBeBetween, 50, 300)
				So(b.Deviation, ShouldBeBetween, 50, 300)
			})

			Convey("And the volatilities should stay bounded", func() {
				So(a.Volatility, ShouldBeBetween, 0.03, 0.09)
				So(b.Volatility, ShouldBeBetween, 0.03, 0.09)
			})
		})
	})
}
