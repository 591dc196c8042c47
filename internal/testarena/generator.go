package testarena

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/agon/internal/adapters/judge"
	"github.com/okian/agon/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	qualityTierDivisor = 8
)

// Constants for quality tier ranges.
const (
	averageTierMin    = 3.0
	averageTierRange  = 4.0
	strongTierMin     = 7.0
	strongTierRange   = 2.0
	weakTierMin       = 0.1
	weakTierRange     = 2.9
	eliteTierMin      = 9.0
	eliteTierRange    = 1.0
	throwawayMin      = 0.1
	throwawayRange    = 0.9
	upperMidTierMin   = 6.0
	upperMidTierRange = 2.0
	lowerMidTierMin   = 2.0
	lowerMidTierRange = 2.0
	fullRangeMin      = 0.1
	fullRange         = 9.9
)

// Constants for quality tier cases.
const (
	caseAverageTier  = 0
	caseStrongTier   = 1
	caseWeakTier     = 2
	caseEliteTier    = 3
	caseThrowaway    = 4
	caseUpperMidTier = 5
	caseLowerMidTier = 6
	caseFullRange    = 7
)

// Fragment pools for piece content. Combined per index they give every
// piece a distinct body; the quality marker appended at the end is what
// the scripted judge actually rules on.
var (
	openers = []string{
		"The harbor lights flickered once before",
		"Nobody remembered exactly when",
		"By the third week of rain,",
		"At the edge of the old survey map,",
		"The committee had agreed, reluctantly, that",
		"Long after the broadcast ended,",
		"In the margin of the ledger someone had written that",
		"The apprentice swore that",
	}
	subjects = []string{
		"the lighthouse keeper stopped answering the radio",
		"the archive flooded and took the oldest records with it",
		"a second signal appeared on the same frequency",
		"the bridge tolls doubled without notice",
		"the orchard produced fruit out of season",
		"the night train began skipping its last stop",
		"the printing press ran backwards for a full day",
		"the tide charts disagreed with the tide",
	}
	closers = []string{
		"and no explanation ever surfaced.",
		"which the town chose not to discuss.",
		"so the matter was closed by vote.",
		"and the ledger was quietly amended.",
		"though the evidence said otherwise.",
		"and that was the end of the inquiry.",
		"leaving the question open for another season.",
		"as if it had always been that way.",
	}
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomIndex returns a random index below limit using crypto/rand.
func getRandomIndex(limit int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	return int(n.Int64())
}

// generatePieces creates the configured number of pieces with unique IDs.
func generatePieces(ctx context.Context, config *Config, stats *Stats) ([]Piece, error) {
	logger.Get().Info(ctx, "generating pieces with unique IDs", logger.Int("numPieces", config.NumPieces))

	pieces := make([]Piece, config.NumPieces)

	// Pre-allocate piece IDs to ensure uniqueness
	pieceIDs := make([]string, config.NumPieces)
	for i := 0; i < config.NumPieces; i++ {
		pieceIDs[i] = uuid.New().String()
	}

	// Generate pieces concurrently; each goroutine owns a distinct index
	workerCount := minInt(config.Workers, config.NumPieces)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)

	for i := 0; i < config.NumPieces; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("context cancelled during piece generation: %w", err)
			}
			pieces[i] = generateSinglePiece(i, pieceIDs[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to generate pieces: %w", err)
	}

	stats.PiecesGenerated = len(pieces)
	logger.Get().Info(ctx, "generated pieces successfully", logger.Int("count", len(pieces)))

	return pieces, nil
}

// generateSinglePiece creates a single piece with the given index and ID.
func generateSinglePiece(index int, pieceID string) Piece {
	quality := generateTieredQuality()

	// Compose a short body and embed the marker so a scripted judge
	// produces a known ordering. A model judge reads the same text.
	body := fmt.Sprintf("%s %s %s",
		openers[getRandomIndex(len(openers))],
		subjects[getRandomIndex(len(subjects))],
		closers[getRandomIndex(len(closers))])
	content := fmt.Sprintf("%s %s", body, judge.QualityMarker(quality))

	return Piece{
		ID:      pieceID,
		Content: content,
		Origin:  "arena-test",
		Quality: quality,
	}
}

// generateTieredQuality draws a quality value with a varied distribution.
func generateTieredQuality() float64 {
	randNum, _ := rand.Int(rand.Reader, big.NewInt(qualityTierDivisor))
	switch randNum.Int64() {
	case caseAverageTier:
		// Average pieces (3.0 - 7.0) - most common
		return averageTierMin + getRandomFloat()*averageTierRange
	case caseStrongTier:
		// Strong pieces (7.0 - 9.0)
		return strongTierMin + getRandomFloat()*strongTierRange
	case caseWeakTier:
		// Weak pieces (0.1 - 3.0)
		return weakTierMin + getRandomFloat()*weakTierRange
	case caseEliteTier:
		// Elite pieces (9.0 - 10.0) - rare
		return eliteTierMin + getRandomFloat()*eliteTierRange
	case caseThrowaway:
		// Throwaway pieces (0.1 - 1.0) - rare
		return throwawayMin + getRandomFloat()*throwawayRange
	case caseUpperMidTier:
		// Upper-mid pieces (6.0 - 8.0)
		return upperMidTierMin + getRandomFloat()*upperMidTierRange
	case caseLowerMidTier:
		// Lower-mid pieces (2.0 - 4.0)
		return lowerMidTierMin + getRandomFloat()*lowerMidTierRange
	case caseFullRange:
		// Random across full range (0.1 - 10.0)
		return fullRangeMin + getRandomFloat()*fullRange
	default:
		return fullRangeMin + getRandomFloat()*fullRange
	}
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
