// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/agon/internal/adapters/repository"
	"github.com/okian/agon/internal/domain/model"
	"github.com/okian/agon/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Register admits a competitor into the population. A blank id means
	// the caller wants one generated; the returned id is authoritative.
	Register(ctx context.Context, id, content, origin string) (string, bool, error)

	// StartRun launches an asynchronous tournament run and returns its id.
	StartRun(ctx context.Context, rounds int) (string, error)

	// Read operations expose leaderboard and history data.
	TopN(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, id string) (Entry, error)
	History(ctx context.Context, run string, round int) ([]model.MatchOutcome, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	competitorsHandler *CompetitorsHandler
	tournamentsHandler *TournamentsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	historyHandler     *HistoryHandler
	dashboardHandler   *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		competitorsHandler: NewCompetitorsHandler(deps),
		tournamentsHandler: NewTournamentsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		historyHandler:     NewHistoryHandler(deps),
		dashboardHandler:   newdashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/competitors", MetricsMiddleware(s.competitorsHandler.HandlePostCompetitor, "competitors"))
	mux.HandleFunc("/tournaments", MetricsMiddleware(s.tournamentsHandler.HandlePostTournament, "tournaments"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/history", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
}

// competitorRequest mirrors the OpenAPI schema for POST /competitors.
type competitorRequest struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Origin  string `json:"origin"`
}

func (c competitorRequest) validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return errors.New("missing content")
	}
	return nil
}

type ackResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound translates upstream unknown-competitor errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrUnknownCompetitor)
}
