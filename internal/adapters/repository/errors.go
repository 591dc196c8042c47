package repository

import "errors"

// Sentinel kinds for rating store errors.
var (
	ErrUnknownCompetitor = errors.New("unknown competitor")
	ErrAlreadyRegistered = errors.New("competitor already registered")
	ErrInvalidLimit      = errors.New("invalid leaderboard limit")
)
