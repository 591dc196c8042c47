package testarena

import "time"

// Config holds configuration for the arena test
type Config struct {
	BaseURL    string        // Base URL of the service
	NumPieces  int           // Number of pieces to generate
	Rounds     int           // Rounds to request (0 = service default)
	TopN       int           // Number of top entries to fetch
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for pieces
	LogFile    string        // Log file for test output
	Verbose    bool          // Enable verbose logging
}

// Piece represents a competitor to be registered
type Piece struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Origin  string  `json:"origin"`
	Quality float64 `json:"-"` // marker value embedded in Content, kept for verification
}

// Entry represents a leaderboard entry
type Entry struct {
	Rank       int     `json:"rank"`
	ID         string  `json:"id"`
	Rating     float64 `json:"rating"`
	Deviation  float64 `json:"deviation"`
	Volatility float64 `json:"volatility"`
	Matches    int     `json:"matches"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Draws      int     `json:"draws"`
	WinRate    float64 `json:"win_rate"`
}

// AckResponse represents the response from competitor registration
type AckResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// RunResponse represents the response from starting a tournament
type RunResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// MatchRecord represents one archived match from the history endpoint
type MatchRecord struct {
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

// Stats holds test statistics
type Stats struct {
	PiecesGenerated    int
	PiecesSubmitted    int
	PiecesAccepted     int
	PiecesDuplicate    int
	PiecesFailed       int
	RunID              string
	MatchesPlayed      int
	HistoryRecords     int
	RankingsRetrieved  int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
