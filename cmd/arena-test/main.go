package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/agon/internal/testarena"
)

// Default configuration constants.
const (
	defaultNumPieces   = 200
	defaultRounds      = 0 // 0 = service-configured rounds
	defaultTopN        = 20
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numPieces  = flag.Int("pieces", defaultNumPieces, "Number of pieces to generate and register")
		rounds     = flag.Int("rounds", defaultRounds, "Tournament rounds to request (0 = service default)")
		topN       = flag.Int("top", defaultTopN, "Number of top entries to fetch from leaderboard")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for generated pieces (default: generated_pieces_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for test output (default: arena_test_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testarena.ShowHelp()
		return
	}

	// Setup logging
	if err := testarena.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	// Create test configuration
	config := &testarena.Config{
		BaseURL:    *baseURL,
		NumPieces:  *numPieces,
		Rounds:     *rounds,
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	// Run the test
	if err := testarena.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		return
	}
}
