// Package judge defines the interface for pairwise content evaluation and
// the backends that implement it.
package judge

import (
	"context"

	"github.com/okian/agon/internal/domain/model"
)

// Comparison is one head-to-head evaluation request. The position labels A
// and B are assigned by the caller; backends must treat them as opaque and
// never favor a side for its position.
type Comparison struct {
	Goal     string
	ContentA string
	ContentB string
}

// Decision is a parsed judge reply.
type Decision struct {
	Verdict   model.Verdict
	Rationale string
}

// Judge decides which of two content pieces better serves the goal.
type Judge interface {
	// Compare returns a decision or an error. Errors wrapping
	// ErrTransient or ErrMalformedVerdict are worth retrying; context
	// errors are not.
	Compare(ctx context.Context, c Comparison) (Decision, error)
}

// Func adapts a plain function to the Judge interface.
type Func func(ctx context.Context, c Comparison) (Decision, error)

// Compare implements Judge.
func (f Func) Compare(ctx context.Context, c Comparison) (Decision, error) {
	return f(ctx, c)
}
