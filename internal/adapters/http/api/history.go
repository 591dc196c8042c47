package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/agon/internal/domain/model"
)

// HistoryDependencies defines the interface for history queries.
type HistoryDependencies interface {
	History(ctx context.Context, run string, round int) ([]model.MatchOutcome, error)
}

// HistoryHandler handles match history requests.
type HistoryHandler struct {
	deps HistoryDependencies
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies) *HistoryHandler {
	return &HistoryHandler{deps: deps}
}

// historyEntry flattens a recorded outcome the same way the archive does:
// judged outcomes carry the verdict in result, indeterminate ones the
// status marker.
type historyEntry struct {
	Round         int     `json:"round"`
	CompetitorA   string  `json:"competitor_a"`
	CompetitorB   string  `json:"competitor_b"`
	Status        string  `json:"status"`
	Result        string  `json:"result"`
	Rationale     string  `json:"rationale,omitempty"`
	Attempts      int     `json:"attempts"`
	RatingABefore float64 `json:"rating_a_before"`
	RatingAAfter  float64 `json:"rating_a_after"`
	RatingBBefore float64 `json:"rating_b_before"`
	RatingBAfter  float64 `json:"rating_b_after"`
	TS            string  `json:"ts"`
}

// HandleGetHistory handles GET /history?round=K&run=R requests. Round
// defaults to all rounds, run to the run currently in memory.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	round := -1
	if s := r.URL.Query().Get("round"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: round must be a non-negative integer", op, ErrBadRequest))
			return
		}
		round = n
	}
	run := r.URL.Query().Get("run")

	outcomes, err := h.deps.History(r.Context(), run, round)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	entries := make([]historyEntry, 0, len(outcomes))
	for i := range outcomes {
		entries = append(entries, toHistoryEntry(&outcomes[i]))
	}
	writeJSON(w, http.StatusOK, entries)
}

func toHistoryEntry(o *model.MatchOutcome) historyEntry {
	result := string(model.StatusIndeterminate)
	if o.Status == model.StatusJudged {
		result = string(o.Verdict)
	}
	return historyEntry{
		Round:         o.Round,
		CompetitorA:   o.AID,
		CompetitorB:   o.BID,
		Status:        string(o.Status),
		Result:        result,
		Rationale:     o.Rationale,
		Attempts:      o.Attempts,
		RatingABefore: o.RatingABefore,
		RatingAAfter:  o.RatingAAfter,
		RatingBBefore: o.RatingBBefore,
		RatingBAfter:  o.RatingBAfter,
		TS:            o.TS.UTC().Format(time.RFC3339Nano),
	}
}
