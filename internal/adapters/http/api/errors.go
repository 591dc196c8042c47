package api

import "errors"

// Sentinel kinds for API errors.
var (
	// ErrBadRequest marks client errors so handlers and tests can assert
	// the kind without matching on message text.
	ErrBadRequest = errors.New("bad request")
)
