package rating

import "errors"

// Sentinel kinds for rating update errors.
var (
	ErrConvergence = errors.New("volatility solver did not converge")
)
