package model_test

import (
	"testing"
	"time"

	model "github.com/okian/agon/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestCompetitor(t *testing.T) {
	convey.Convey("Given a Competitor struct", t, func() {
		convey.Convey("When creating a new competitor", func() {
			competitor := model.Competitor{
				ID:         "piece-123",
				Content:    "Once upon a midnight dreary...",
				Origin:     "batch-1",
				Rating:     1500.0,
				Deviation:  350.0,
				Volatility: 0.06,
			}

			convey.Convey("Then it should have the correct values", func() {
				convey.So(competitor.ID, convey.ShouldEqual, "piece-123")
				convey.So(competitor.Content, convey.ShouldContainSubstring, "midnight")
				convey.So(competitor.Origin, convey.ShouldEqual, "batch-1")
				convey.So(competitor.Rating, convey.ShouldEqual, 1500.0)
				convey.So(competitor.Deviation, convey.ShouldEqual, 350.0)
				convey.So(competitor.Volatility, convey.ShouldEqual, 0.06)
			})

			convey.Convey("And it should have no matches played", func() {
				convey.So(competitor.Matches(), convey.ShouldEqual, 0)
				convey.So(competitor.WinRate(), convey.ShouldEqual, 0.0)
			})
		})

		convey.Convey("When a competitor has match tallies", func() {
			competitor := model.Competitor{
				ID:     "piece-456",
				Wins:   6,
				Losses: 3,
				Draws:  1,
			}

			convey.Convey("Then matches and win rate should derive from tallies", func() {
				convey.So(competitor.Matches(), convey.ShouldEqual, 10)
				convey.So(competitor.WinRate(), convey.ShouldEqual, 0.6)
			})
		})

		convey.Convey("When creating a competitor with zero values", func() {
			competitor := model.Competitor{}

			convey.Convey("Then it should have default values", func() {
				convey.So(competitor.ID, convey.ShouldEqual, "")
				convey.So(competitor.Rating, convey.ShouldEqual, 0.0)
				convey.So(competitor.Deviation, convey.ShouldEqual, 0.0)
				convey.So(competitor.Volatility, convey.ShouldEqual, 0.0)
				convey.So(competitor.WinRate(), convey.ShouldEqual, 0.0)
			})
		})

		convey.Convey("When a competitor has only losses", func() {
			competitor := model.Competitor{ID: "piece-789", Losses: 5}

			convey.Convey("Then win rate should be zero, not NaN", func() {
				convey.So(competitor.Matches(), convey.ShouldEqual, 5)
				convey.So(competitor.WinRate(), convey.ShouldEqual, 0.0)
			})
		})
	})
}

func TestVerdict(t *testing.T) {
	convey.Convey("Given verdict values", t, func() {
		convey.Convey("When swapping orientation", func() {
			convey.Convey("Then a-wins becomes b-wins and back", func() {
				convey.So(model.VerdictAWins.Swap(), convey.ShouldEqual, model.VerdictBWins)
				convey.So(model.VerdictBWins.Swap(), convey.ShouldEqual, model.VerdictAWins)
			})

			convey.Convey("And a draw stays a draw", func() {
				convey.So(model.VerdictDraw.Swap(), convey.ShouldEqual, model.VerdictDraw)
			})

			convey.Convey("And double swap is identity", func() {
				for _, v := range []model.Verdict{model.VerdictAWins, model.VerdictBWins, model.VerdictDraw} {
					convey.So(v.Swap().Swap(), convey.ShouldEqual, v)
				}
			})
		})
	})
}

func TestMatchOutcome(t *testing.T) {
	convey.Convey("Given a MatchOutcome struct", t, func() {
		convey.Convey("When creating a judged outcome", func() {
			ts := time.Now()
			outcome := model.MatchOutcome{
				Round:     3,
				AID:       "piece-1",
				BID:       "piece-2",
				Status:    model.StatusJudged,
				Verdict:   model.VerdictAWins,
				Rationale: "stronger imagery throughout",
				Attempts:  1,
				TS:        ts,
			}

			convey.Convey("Then it should carry the verdict and be usable", func() {
				convey.So(outcome.Usable(), convey.ShouldBeTrue)
				convey.So(outcome.Verdict, convey.ShouldEqual, model.VerdictAWins)
				convey.So(outcome.Round, convey.ShouldEqual, 3)
				convey.So(outcome.TS, convey.ShouldEqual, ts)
			})
		})

		convey.Convey("When creating an indeterminate outcome", func() {
			outcome := model.MatchOutcome{
				Round:    1,
				AID:      "piece-1",
				BID:      "piece-2",
				Status:   model.StatusIndeterminate,
				Attempts: 3,
			}

			convey.Convey("Then it should not be usable for rating math", func() {
				convey.So(outcome.Usable(), convey.ShouldBeFalse)
			})

			convey.Convey("And it should still record the attempts spent", func() {
				convey.So(outcome.Attempts, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When an outcome carries before/after ratings", func() {
			outcome := model.MatchOutcome{
				Status:        model.StatusJudged,
				Verdict:       model.VerdictBWins,
				RatingABefore: 1500.0,
				RatingAAfter:  1436.5,
				RatingBBefore: 1500.0,
				RatingBAfter:  1563.5,
			}

			convey.Convey("Then the fields should round-trip", func() {
				convey.So(outcome.RatingAAfter, convey.ShouldBeLessThan, outcome.RatingABefore)
				convey.So(outcome.RatingBAfter, convey.ShouldBeGreaterThan, outcome.RatingBBefore)
			})
		})
	})
}

func TestPairing(t *testing.T) {
	convey.Convey("Given a Pairing struct", t, func() {
		convey.Convey("When creating a pairing", func() {
			pairing := model.Pairing{Round: 2, AID: "piece-a", BID: "piece-b"}

			convey.Convey("Then it should hold distinct sides", func() {
				convey.So(pairing.AID, convey.ShouldNotEqual, pairing.BID)
				convey.So(pairing.Round, convey.ShouldEqual, 2)
			})
		})
	})
}
