package judge

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/okian/agon/internal/domain/model"
)

// qualityPattern finds the scripted marker, e.g. "[quality: 7.25]".
var qualityPattern = regexp.MustCompile(`\[quality:\s*([0-9]+(?:\.[0-9]+)?)\]`)

// QualityMarker renders the marker the scripted judge looks for. Test
// populations embed it so match results follow a known ordering.
func QualityMarker(q float64) string {
	return fmt.Sprintf("[quality: %.2f]", q)
}

// ScriptedJudge rules by a numeric quality marker embedded in each piece:
// higher wins, equal draws. A piece without a marker fails as a malformed
// verdict, which exercises the retry path the same way a misbehaving model
// would.
type ScriptedJudge struct{}

// NewScriptedJudge creates a marker-driven judge.
func NewScriptedJudge() *ScriptedJudge {
	return &ScriptedJudge{}
}

// Compare implements Judge.
func (j *ScriptedJudge) Compare(ctx context.Context, c Comparison) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	qa, okA := qualityOf(c.ContentA)
	qb, okB := qualityOf(c.ContentB)
	if !okA || !okB {
		return Decision{}, fmt.Errorf("%w: no quality marker found", ErrMalformedVerdict)
	}

	rationale := fmt.Sprintf("marker %.2f against %.2f", qa, qb)
	switch {
	case qa > qb:
		return Decision{Verdict: model.VerdictAWins, Rationale: rationale}, nil
	case qb > qa:
		return Decision{Verdict: model.VerdictBWins, Rationale: rationale}, nil
	default:
		return Decision{Verdict: model.VerdictDraw, Rationale: rationale}, nil
	}
}

func qualityOf(content string) (float64, bool) {
	m := qualityPattern.FindStringSubmatch(content)
	if m == nil {
		return 0, false
	}

	q, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	return q, true
}
