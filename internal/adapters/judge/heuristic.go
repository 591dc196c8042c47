package judge

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// defaultDrawMargin is the relative score gap below which the heuristic
// declares a draw.
const defaultDrawMargin = 0.02

// HeuristicJudge ranks content without a model behind it. It scores length,
// vocabulary, and structure deterministically, which makes it useful for
// demos, load tests, and offline runs where a real judge is unavailable.
type HeuristicJudge struct {
	drawMargin float64
}

// HeuristicOption configures the heuristic judge.
type HeuristicOption func(*HeuristicJudge)

// WithDrawMargin sets the relative score gap treated as a draw.
func WithDrawMargin(m float64) HeuristicOption {
	return func(j *HeuristicJudge) {
		if m >= 0 {
			j.drawMargin = m
		}
	}
}

// NewHeuristicJudge creates a deterministic offline judge.
func NewHeuristicJudge(opts ...HeuristicOption) *HeuristicJudge {
	j := &HeuristicJudge{
		drawMargin: defaultDrawMargin,
	}
	for _, opt := range opts {
		opt(j)
	}

	return j
}

// Compare implements Judge.
func (j *HeuristicJudge) Compare(ctx context.Context, c Comparison) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	scoreA := contentScore(c.ContentA)
	scoreB := contentScore(c.ContentB)

	reference := math.Max(math.Max(scoreA, scoreB), 1)
	rationale := fmt.Sprintf("scored %.2f against %.2f on length, vocabulary, and structure", scoreA, scoreB)

	switch {
	case math.Abs(scoreA-scoreB) <= j.drawMargin*reference:
		return Decision{Verdict: verdictFromToken("DRAW"), Rationale: rationale}, nil
	case scoreA > scoreB:
		return Decision{Verdict: verdictFromToken("A"), Rationale: rationale}, nil
	default:
		return Decision{Verdict: verdictFromToken("B"), Rationale: rationale}, nil
	}
}

// contentScore rewards longer pieces with diminishing returns, richer
// vocabulary, and sentence structure. It is intentionally crude; its job is
// ordering test content, not literary criticism.
func contentScore(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(strings.Trim(w, ".,;:!?\"'()[]"))] = struct{}{}
	}
	richness := float64(len(unique)) / float64(len(words))

	sentences := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")

	return math.Sqrt(float64(len(words)))*(0.5+richness) + 0.25*float64(sentences)
}
