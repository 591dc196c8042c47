// Package repository defines the rating store interface and errors.
package repository

import (
	"context"

	"github.com/okian/agon/internal/domain/model"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank       int
	ID         string
	Rating     float64
	Deviation  float64
	Volatility float64
	Matches    int
	Wins       int
	Losses     int
	Draws      int
	WinRate    float64
}

// Store provides read/write access to the committed rating state.
//
// Writes land in batches: a whole round of rating changes is applied in
// one call, and readers observe either all of it or none of it. Working
// state for an open round never enters the store.
type Store interface {
	// Register adds a new competitor.
	// Returns ErrAlreadyRegistered if the id is already taken.
	Register(ctx context.Context, c model.Competitor) error

	// Get returns the committed state of one competitor.
	// Returns ErrUnknownCompetitor if the id is unknown.
	Get(ctx context.Context, id string) (model.Competitor, error)

	// Competitors returns every competitor in leaderboard order.
	Competitors(ctx context.Context) []model.Competitor

	// ApplyRoundUpdate commits a round of rating changes atomically.
	// Every id must already be registered; otherwise nothing is applied
	// and ErrUnknownCompetitor is returned.
	ApplyRoundUpdate(ctx context.Context, updates []model.Competitor) error

	// Rank returns the current rank and rating fields for a competitor.
	// Returns ErrUnknownCompetitor if the id is unknown.
	Rank(ctx context.Context, id string) (Entry, error)

	// TopN returns the top-N entries in leaderboard order.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of registered competitors.
	Count(ctx context.Context) int
}
