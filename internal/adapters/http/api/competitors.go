// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// CompetitorsHandler handles competitor registration requests.
type CompetitorsHandler struct {
	deps Dependencies
}

// NewCompetitorsHandler creates a new competitors handler.
func NewCompetitorsHandler(deps Dependencies) *CompetitorsHandler {
	return &CompetitorsHandler{deps: deps}
}

// HandlePostCompetitor handles POST /competitors requests.
func (h *CompetitorsHandler) HandlePostCompetitor(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_competitor"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req competitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %v", op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %v", op, ErrBadRequest, err))
		return
	}

	// The service generates an id when the request leaves it blank and
	// reports duplicates idempotently.
	id, duplicate, err := h.deps.Register(r.Context(), req.ID, req.Content, req.Origin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", ID: id, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: id, Duplicate: false})
}
