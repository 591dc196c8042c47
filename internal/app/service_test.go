package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/agon/internal/app"
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

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithRounds(4),
			service.WithConcurrency(2),
			service.WithCommitMode("end"),
			service.WithPairingSeed(42),
			service.WithDedupeSize(25_000),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
			})

			Convey("And starting again should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := svc.Start(ctx)
		So(err, ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Register(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := svc.Start(ctx)
		So(err, ShouldBeNil)
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When registering a new competitor", func() {
			id, duplicate, err := svc.Register(ctx, "piece-123", "a fine piece of text", "seed")

			Convey("Then it should be recorded under its own id", func() {
				So(err, ShouldBeNil)
				So(duplicate, ShouldBeFalse)
				So(id, ShouldEqual, "piece-123")
			})
		})

		Convey("When registering the same id twice", func() {
			_, _, err := svc.Register(ctx, "piece-456", "first text", "seed")
			So(err, ShouldBeNil)
			id, duplicate, err := svc.Register(ctx, "piece-456", "second text", "seed")

			Convey("Then the second registration should be flagged as duplicate", func() {
				So(err, ShouldBeNil)
				So(duplicate, ShouldBeTrue)
				So(id, ShouldEqual, "piece-456")
			})

			Convey("And the original content should survive", func() {
				entry, err := svc.Rank(ctx, "piece-456")
				So(err, ShouldBeNil)
				So(entry.ID, ShouldEqual, "piece-456")
			})
		})

		Convey("When registering without an id", func() {
			id, duplicate, err := svc.Register(ctx, "", "anonymous text", "seed")

			Convey("Then an id should be generated", func() {
				So(err, ShouldBeNil)
				So(duplicate, ShouldBeFalse)
				So(id, ShouldNotBeEmpty)
				So(len(id), ShouldEqual, 36) // UUID
			})
		})

		Convey("When registering a fresh competitor", func() {
			id, _, err := svc.Register(ctx, "piece-fresh", "fresh text", "seed")
			So(err, ShouldBeNil)

			Convey("Then it should carry the initial rating state", func() {
				entry, err := svc.Rank(ctx, id)
				So(err, ShouldBeNil)
				So(entry.Rating, ShouldEqual, 1500.0)
				So(entry.Deviation, ShouldEqual, 350.0)
				So(entry.Matches, ShouldEqual, 0)
			})
		})
	})
}

func TestService_NotStarted(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("When registering a competitor", func() {
			_, _, err := svc.Register(ctx, "piece-1", "text", "seed")

			Convey("Then it should refuse", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When starting a run", func() {
			_, err := svc.StartRun(ctx, 3)

			Convey("Then it should refuse", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When querying the leaderboard", func() {
			_, err := svc.TopN(ctx, 10)

			Convey("Then it should refuse", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_GetStats(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()

		Convey("When getting stats before starting", func() {
			stats := svc.GetStats()

			Convey("Then it should return basic stats", func() {
				So(stats, ShouldNotBeNil)
				So(stats["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given a started service with competitors", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		_, _, err := svc.Register(ctx, "piece-1", "one", "seed")
		So(err, ShouldBeNil)
		_, _, err = svc.Register(ctx, "piece-2", "two", "seed")
		So(err, ShouldBeNil)

		Convey("When getting stats", func() {
			stats := svc.GetStats()

			Convey("Then it should report the population and run state", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["population"], ShouldEqual, 2)
				So(stats["runActive"], ShouldEqual, false)
			})
		})
	})
}
