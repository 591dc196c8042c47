package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/agon/internal/tournament"
)

// TournamentsHandler handles run lifecycle requests.
type TournamentsHandler struct {
	deps Dependencies
}

// NewTournamentsHandler creates a new tournaments handler.
func NewTournamentsHandler(deps Dependencies) *TournamentsHandler {
	return &TournamentsHandler{deps: deps}
}

// runRequest mirrors the OpenAPI schema for POST /tournaments. A zero or
// omitted round count means "use the configured default".
type runRequest struct {
	Rounds int `json:"rounds"`
}

type runResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// HandlePostTournament handles POST /tournaments requests.
func (h *TournamentsHandler) HandlePostTournament(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_tournament"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		// An empty body is a valid "run with defaults" request.
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %v", op, ErrBadRequest, err))
		return
	}
	if req.Rounds < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: rounds must not be negative", op, ErrBadRequest))
		return
	}

	runID, err := h.deps.StartRun(r.Context(), req.Rounds)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, runResponse{Status: "accepted", RunID: runID})
	case errors.Is(err, tournament.ErrRunInProgress):
		writeError(w, http.StatusConflict, "run_in_progress", err)
	case errors.Is(err, tournament.ErrPopulationTooSmall):
		writeError(w, http.StatusBadRequest, "population_too_small", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
