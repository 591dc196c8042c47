package testarena

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/agon/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete arena test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting agon arena test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("pieces", config.NumPieces),
		logger.Int("rounds", config.Rounds),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate pieces
	pieces, err := generatePieces(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("piece generation failed: %w", err)
	}

	// Step 3: Register pieces concurrently
	if err := registerPieces(ctx, config, pieces, stats); err != nil {
		return fmt.Errorf("piece registration failed: %w", err)
	}

	// Step 4: Start the tournament
	if err := startRun(ctx, config, stats); err != nil {
		return fmt.Errorf("tournament start failed: %w", err)
	}

	// Step 5: Wait for the run to finish
	if err := waitForRun(ctx, config, stats); err != nil {
		return fmt.Errorf("tournament wait failed: %w", err)
	}

	// Step 6: Fetch the match history
	history, err := fetchHistory(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("history retrieval failed: %w", err)
	}

	// Step 7: Retrieve rankings concurrently
	rankings, err := retrieveRankings(ctx, config, pieces, stats)
	if err != nil {
		return fmt.Errorf("ranking retrieval failed: %w", err)
	}

	// Step 8: Get leaderboard
	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 9: Verify results
	if err := verifyResults(ctx, config, pieces, rankings, leaderboard, history, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 10: Save pieces to file
	if err := savePiecesToFile(ctx, config, pieces); err != nil {
		logger.Get().Warn(ctx, "failed to save pieces to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// savePiecesToFile saves the generated pieces to a JSON file.
func savePiecesToFile(ctx context.Context, config *Config, pieces []Piece) error {
	if len(pieces) == 0 {
		return fmt.Errorf("no pieces to save")
	}

	// Determine output filename
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "generated_pieces_" + timestamp + ".json"
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write pieces to file
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	// Write JSON array
	if _, err := file.WriteString("[\n"); err != nil {
		return fmt.Errorf("failed to write opening bracket: %w", err)
	}

	for i, piece := range pieces {
		jsonData, err := marshalJSON(piece)
		if err != nil {
			return fmt.Errorf("failed to marshal piece %d: %w", i, err)
		}

		if _, err := file.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write piece %d: %w", i, err)
		}

		// Add comma except for last piece
		if i < len(pieces)-1 {
			if _, err := file.WriteString(","); err != nil {
				return fmt.Errorf("failed to write comma: %w", err)
			}
		}
		_, _ = file.WriteString("\n")
	}

	if _, err := file.WriteString("]\n"); err != nil {
		return fmt.Errorf("failed to write closing bracket: %w", err)
	}

	logger.Get().Info(ctx, "pieces saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats) {
	var acceptRate, piecesPerSecond float64

	if stats.PiecesSubmitted > 0 {
		acceptRate = float64(stats.PiecesAccepted) / float64(stats.PiecesSubmitted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		piecesPerSecond = float64(stats.PiecesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.String("runID", stats.RunID),
		logger.Int("piecesGenerated", stats.PiecesGenerated),
		logger.Int("piecesSubmitted", stats.PiecesSubmitted),
		logger.Int("piecesAccepted", stats.PiecesAccepted),
		logger.Int("piecesDuplicate", stats.PiecesDuplicate),
		logger.Int("piecesFailed", stats.PiecesFailed),
		logger.Int("matchesPlayed", stats.MatchesPlayed),
		logger.Int("historyRecords", stats.HistoryRecords),
		logger.Int("rankingsRetrieved", stats.RankingsRetrieved),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("piecesPerSecond", piecesPerSecond))
}
