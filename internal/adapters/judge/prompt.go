package judge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/okian/agon/internal/domain/model"
)

// maxRationaleLen bounds stored rationales so one chatty judge cannot bloat
// match history.
const maxRationaleLen = 4000

// DefaultGoal is used when the arena owner supplies no goal of their own.
const DefaultGoal = `Produce the strongest piece of writing. Weigh these criteria:
1. Originality (25%) - fresh ideas and perspective, nothing formulaic
2. Craft (25%) - grammar, rhythm, word choice, sentence construction
3. Engagement (20%) - how compelling the piece is to read start to finish
4. Depth (15%) - substance behind the style, ideas that reward attention
5. Coherence (15%) - logical flow, structure, a satisfying whole`

// systemPrompt primes chat backends before the comparison itself.
const systemPrompt = "You are a strict, impartial judge of written content. " +
	"You compare two pieces against a stated goal and always answer in the requested format. " +
	"You never favor a piece for its position or length alone."

const promptTemplate = `Judge the following head-to-head contest between two pieces of text.

## Goal
%s

## Piece A
%s

## Piece B
%s

## Instructions
Analyze both pieces against the goal before deciding. Do not default to
either side; the order of presentation carries no information. Declare a
draw only when the pieces are genuinely indistinguishable in quality.

Answer in exactly this format:
WINNER: A or B or DRAW
REASONING: [a short paragraph explaining the decision]`

// BuildPrompt renders a comparison into the judging prompt.
func BuildPrompt(c Comparison) string {
	goal := c.Goal
	if goal == "" {
		goal = DefaultGoal
	}

	return fmt.Sprintf(promptTemplate, goal, c.ContentA, c.ContentB)
}

// Parsing is layered: the declared token first, then a bare verdict line,
// then an explicit decision phrase. A reply matching none of the layers is
// malformed; the caller retries rather than guessing a winner.
var (
	// winnerPattern matches the requested format, tolerating markdown
	// emphasis and brackets around the token.
	winnerPattern = regexp.MustCompile(`(?im)^[\s*#]*WINNER[\s*]*:[\s*\[]*(A|B|DRAW|TIE)\b`)
	// bareLinePattern matches replies that skip the format and answer
	// with the token alone on a line.
	bareLinePattern = regexp.MustCompile(`(?i)^[\s*\[]*(A|B|DRAW|TIE)[\]*.!\s]*$`)
	// phrasePattern matches prose declarations like "piece B wins" or
	// "A is better".
	phrasePattern = regexp.MustCompile(`(?i)\b(?:piece\s+|option\s+)?(A|B)\s+(?:wins|is\s+better|is\s+stronger|is\s+superior)\b`)
	// reasoningPattern captures the stated reasoning section.
	reasoningPattern = regexp.MustCompile(`(?is)[\s*#]*REASONING[\s*]*:\s*(.+)$`)
)

// ParseDecision extracts a verdict and rationale from a raw judge reply.
func ParseDecision(raw string) (Decision, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Decision{}, ErrEmptyReply
	}

	verdict, ok := findVerdict(text)
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrMalformedVerdict, clip(text, 200))
	}

	return Decision{
		Verdict:   verdict,
		Rationale: clip(extractRationale(text), maxRationaleLen),
	}, nil
}

func findVerdict(text string) (model.Verdict, bool) {
	if m := winnerPattern.FindStringSubmatch(text); m != nil {
		return verdictFromToken(m[1]), true
	}
	for _, line := range strings.Split(text, "\n") {
		if m := bareLinePattern.FindStringSubmatch(line); m != nil {
			return verdictFromToken(m[1]), true
		}
	}
	if m := phrasePattern.FindStringSubmatch(text); m != nil {
		return verdictFromToken(m[1]), true
	}

	return "", false
}

func verdictFromToken(token string) model.Verdict {
	switch strings.ToUpper(token) {
	case "A":
		return model.VerdictAWins
	case "B":
		return model.VerdictBWins
	default:
		return model.VerdictDraw
	}
}

// extractRationale prefers the stated reasoning section and falls back to
// the full reply when the judge skipped the format.
func extractRationale(text string) string {
	if m := reasoningPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	return text
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
