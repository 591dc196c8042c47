package testarena

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/agon/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "arena_test_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the arena test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Agon Arena Test Tool
====================

A concurrent smoke test for the agon ranking arena: it registers a
generated population, runs a tournament, and checks the final standings.

Usage:
  go run cmd/arena-test/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -pieces int
        Number of pieces to generate and register (default 200)
  -rounds int
        Tournament rounds to request, 0 for the service default (default 0)
  -top int
        Number of top entries to fetch from leaderboard (default 20)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for generated pieces (default: generated_pieces_TIMESTAMP.json)
  -log string
        Log file for test output (default: arena_test_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Smoke test with default settings
  go run cmd/arena-test/main.go

  # Larger population and explicit rounds
  go run cmd/arena-test/main.go -pieces 500 -rounds 7 -workers 16

  # Verbose run against a non-default port
  go run cmd/arena-test/main.go -verbose -url http://localhost:8080

The generated pieces embed a numeric quality marker, so a service running
the scripted judge produces a deterministic ordering the test can verify.
`)
}
