package tournament

import "errors"

// Sentinel errors for run control.
var (
	// ErrRunInProgress is returned when a run is requested while another
	// one is still active.
	ErrRunInProgress = errors.New("a tournament run is already in progress")

	// ErrPopulationTooSmall is returned when fewer than two competitors
	// are registered at run start.
	ErrPopulationTooSmall = errors.New("population too small for a tournament")
)
