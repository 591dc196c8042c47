package testarena

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// Verification thresholds.
const (
	minPiecesForOrdering = 6
)

// verifyResults verifies the consistency of rankings, leaderboard, and history.
func verifyResults(ctx context.Context, config *Config, pieces []Piece, rankings, leaderboard []Entry, history []MatchRecord, stats *Stats) error {
	log.Println("🔍 Verifying results...")

	if len(rankings) == 0 {
		return fmt.Errorf("no rankings to verify")
	}

	// Sort rankings by rating (descending) to get the strongest pieces
	sortedRankings := make([]Entry, len(rankings))
	copy(sortedRankings, rankings)
	sort.Slice(sortedRankings, func(i, j int) bool {
		return sortedRankings[i].Rating > sortedRankings[j].Rating
	})

	// Verify leaderboard consistency if we have leaderboard data
	if len(leaderboard) > 0 {
		if err := verifyLeaderboardConsistency(sortedRankings, leaderboard); err != nil {
			log.Printf("⚠️  Leaderboard consistency warning: %v", err)
		} else {
			log.Println("✅ Leaderboard consistency verified")
		}
	}

	// Verify the embedded quality markers line up with the final ratings
	if err := verifyQualityOrdering(pieces, rankings); err != nil {
		log.Printf("⚠️  Quality ordering warning: %v", err)
	} else {
		log.Println("✅ Quality ordering verified")
	}

	// Verify the archived history is well formed
	if len(history) > 0 {
		if err := verifyHistoryRecords(history); err != nil {
			log.Printf("⚠️  History warning: %v", err)
		} else {
			log.Println("✅ Match history verified")
		}
	}

	// Display the strongest pieces
	displayTopPieces(sortedRankings, leaderboard, config.Verbose)

	log.Println("✅ Result verification completed")
	return nil
}

// verifyLeaderboardConsistency checks if the leaderboard matches top rankings.
func verifyLeaderboardConsistency(sortedRankings, leaderboard []Entry) error {
	if len(leaderboard) == 0 {
		return fmt.Errorf("empty leaderboard")
	}

	// Check if the top leaderboard entry matches the highest ranked piece
	topRanking := sortedRankings[0]
	topLeaderboard := leaderboard[0]

	if topRanking.ID != topLeaderboard.ID {
		return fmt.Errorf("top leaderboard entry (%s) does not match top ranked piece (%s)",
			topLeaderboard.ID, topRanking.ID)
	}

	if topRanking.Rating != topLeaderboard.Rating {
		return fmt.Errorf("top leaderboard rating (%.3f) does not match top ranked rating (%.3f)",
			topLeaderboard.Rating, topRanking.Rating)
	}

	// Check if the leaderboard is properly sorted
	for i := 1; i < len(leaderboard); i++ {
		if leaderboard[i].Rating > leaderboard[i-1].Rating {
			return fmt.Errorf("leaderboard not properly sorted: entry %d has a higher rating than entry %d",
				i, i-1)
		}
	}

	// Ranks should be contiguous starting at 1
	for i := range leaderboard {
		if leaderboard[i].Rank != i+1 {
			return fmt.Errorf("leaderboard rank mismatch: entry %d reports rank %d", i, leaderboard[i].Rank)
		}
	}

	return nil
}

// verifyQualityOrdering checks that pieces with higher embedded quality ended
// up with higher ratings. Comparing thirds keeps the check robust to judge
// noise and to ties inside a tier.
func verifyQualityOrdering(pieces []Piece, rankings []Entry) error {
	ratingByID := make(map[string]float64, len(rankings))
	for _, entry := range rankings {
		ratingByID[entry.ID] = entry.Rating
	}

	rated := make([]Piece, 0, len(pieces))
	for _, piece := range pieces {
		if _, ok := ratingByID[piece.ID]; ok {
			rated = append(rated, piece)
		}
	}
	if len(rated) < minPiecesForOrdering {
		return fmt.Errorf("only %d pieces have ratings, need %d for the ordering check",
			len(rated), minPiecesForOrdering)
	}

	sort.Slice(rated, func(i, j int) bool {
		return rated[i].Quality > rated[j].Quality
	})

	third := len(rated) / 3
	topMean := meanRating(rated[:third], ratingByID)
	bottomMean := meanRating(rated[len(rated)-third:], ratingByID)

	if topMean <= bottomMean {
		return fmt.Errorf("top-quality pieces average %.1f rating, bottom-quality %.1f; expected the top to rate higher",
			topMean, bottomMean)
	}

	log.Printf("📈 Quality vs rating: top third averages %.1f, bottom third %.1f", topMean, bottomMean)
	return nil
}

// meanRating averages the final ratings for the given pieces.
func meanRating(pieces []Piece, ratingByID map[string]float64) float64 {
	if len(pieces) == 0 {
		return 0
	}

	sum := 0.0
	for _, piece := range pieces {
		sum += ratingByID[piece.ID]
	}

	return sum / float64(len(pieces))
}

// verifyHistoryRecords checks the archived match log for malformed entries.
func verifyHistoryRecords(history []MatchRecord) error {
	judged, indeterminate := 0, 0
	for i, record := range history {
		if record.CompetitorA == "" || record.CompetitorB == "" {
			return fmt.Errorf("record %d is missing a competitor id", i)
		}
		if record.Round < 0 {
			return fmt.Errorf("record %d has a negative round", i)
		}
		if record.Attempts < 1 {
			return fmt.Errorf("record %d reports %d attempts", i, record.Attempts)
		}

		switch record.Status {
		case "judged":
			judged++
			switch record.Result {
			case "a_wins", "b_wins", "draw":
			default:
				return fmt.Errorf("record %d is judged but carries result %q", i, record.Result)
			}
		case "indeterminate":
			indeterminate++
		default:
			return fmt.Errorf("record %d has unknown status %q", i, record.Status)
		}
	}

	log.Printf("📜 History: %d judged, %d indeterminate", judged, indeterminate)
	return nil
}

// displayTopPieces shows the strongest pieces from rankings and leaderboard.
func displayTopPieces(sortedRankings, leaderboard []Entry, verbose bool) {
	topN := 10
	if len(sortedRankings) < topN {
		topN = len(sortedRankings)
	}

	log.Printf("🏆 Top %d pieces from rankings:", topN)
	for i := 0; i < topN; i++ {
		entry := sortedRankings[i]
		log.Printf("   %d. %s - Rating: %.1f (%d-%d-%d)",
			i+1, entry.ID, entry.Rating, entry.Wins, entry.Losses, entry.Draws)
	}

	if len(leaderboard) > 0 {
		leaderboardTopN := topN
		if len(leaderboard) < leaderboardTopN {
			leaderboardTopN = len(leaderboard)
		}

		log.Printf("🥇 Top %d pieces from leaderboard:", leaderboardTopN)
		for i := 0; i < leaderboardTopN; i++ {
			entry := leaderboard[i]
			log.Printf("   %d. %s - Rating: %.1f (win rate %.0f%%)",
				i+1, entry.ID, entry.Rating, entry.WinRate*PercentageMultiplier)
		}
	}

	if verbose {
		// Show some statistics
		if len(sortedRankings) > 0 {
			avgRating := calculateAverageRating(sortedRankings)
			maxRating := sortedRankings[0].Rating
			minRating := sortedRankings[len(sortedRankings)-1].Rating

			log.Printf(`📊 Rating statistics:
   Average: %.1f
   Maximum: %.1f
   Minimum: %.1f
`, avgRating, maxRating, minRating)
		}
	}
}

// calculateAverageRating calculates the average rating from rankings.
func calculateAverageRating(rankings []Entry) float64 {
	if len(rankings) == 0 {
		return 0
	}

	sum := 0.0
	for _, entry := range rankings {
		sum += entry.Rating
	}

	return sum / float64(len(rankings))
}
