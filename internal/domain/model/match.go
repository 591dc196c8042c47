package model

import "time"

// Verdict is a judged comparison result, oriented to the pairing:
// VerdictAWins means the pairing's A side won regardless of the order
// the pieces were shown to the judge.
type Verdict string

// Verdict values.
const (
	VerdictAWins Verdict = "a_wins"
	VerdictBWins Verdict = "b_wins"
	VerdictDraw  Verdict = "draw"
)

// Swap returns the verdict as seen from the opposite orientation.
func (v Verdict) Swap() Verdict {
	switch v {
	case VerdictAWins:
		return VerdictBWins
	case VerdictBWins:
		return VerdictAWins
	default:
		return v
	}
}

// MatchStatus separates judged outcomes from infrastructure failures.
type MatchStatus string

// MatchStatus values.
const (
	StatusJudged        MatchStatus = "judged"
	StatusIndeterminate MatchStatus = "indeterminate"
)

// Pairing is an unordered pair of distinct competitors scheduled for a round.
type Pairing struct {
	Round int
	AID   string
	BID   string
}

// MatchTask is a scheduled pairing bundled with the frozen pre-round
// snapshots of both sides. Workers judge the task without touching the
// store, so a commit landing mid-round never leaks into an open match.
type MatchTask struct {
	Pairing Pairing
	A       Competitor
	B       Competitor
}

// MatchOutcome records the result of one executed pairing.
// Verdict and Rationale are meaningful only when Status is StatusJudged;
// indeterminate outcomes are kept for audit and excluded from rating math.
type MatchOutcome struct {
	Round     int
	AID       string
	BID       string
	Status    MatchStatus
	Verdict   Verdict
	Rationale string
	Attempts  int // judge attempts consumed, including the successful one

	// Pre/post-round ratings filled in at commit time for history/archive.
	RatingABefore float64
	RatingAAfter  float64
	RatingBBefore float64
	RatingBAfter  float64

	TS time.Time
}

// Usable reports whether the outcome carries rating signal.
func (o MatchOutcome) Usable() bool {
	return o.Status == StatusJudged
}
