// Package types contains common types used across the application
package types

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
