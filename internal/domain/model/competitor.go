// Package model contains domain models passed between layers.
package model

// Competitor represents one evolvable text piece tracked by the arena.
type Competitor struct {
	ID         string  // unique id, immutable for the competitor's lifetime
	Content    string  // the piece text presented to the judge
	Origin     string  // generation/batch that produced it (lineage only)
	Rating     float64 // Glicko-2 rating
	Deviation  float64 // rating deviation, always > 0
	Volatility float64 // rating volatility, always > 0
	Wins       int
	Losses     int
	Draws      int
}

// Matches returns the number of decisive or drawn matches played.
func (c Competitor) Matches() int {
	return c.Wins + c.Losses + c.Draws
}

// WinRate returns wins over played matches, 0 when none were played.
func (c Competitor) WinRate() float64 {
	played := c.Matches()
	if played == 0 {
		return 0
	}
	return float64(c.Wins) / float64(played)
}
