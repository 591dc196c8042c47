package testarena

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := marshalJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// marshalJSON marshals a struct to JSON
func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// unmarshalJSON unmarshals JSON to a struct
func unmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// registerPieces registers pieces concurrently with bounded parallelism
func registerPieces(ctx context.Context, config *Config, pieces []Piece, stats *Stats) error {
	log.Printf("📤 Registering %d pieces with %d workers...", len(pieces), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/competitors"

	// Counters for statistics
	var (
		accepted  int64
		duplicate int64
		failed    int64
		submitted int64
	)

	// Progress reporting
	var lastReport atomic.Int64
	reportInterval := 1 * time.Second

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)

	for _, piece := range pieces {
		piece := piece
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result := registerSinglePiece(gctx, client, url, piece)

			// Update counters
			atomic.AddInt64(&submitted, 1)
			switch result {
			case "accepted":
				atomic.AddInt64(&accepted, 1)
			case "duplicate":
				atomic.AddInt64(&duplicate, 1)
			case "failed":
				atomic.AddInt64(&failed, 1)
			}

			// Progress reporting; the CAS keeps workers from double-printing
			now := time.Now().UnixNano()
			last := lastReport.Load()
			if now-last >= int64(reportInterval) && lastReport.CompareAndSwap(last, now) {
				total := atomic.LoadInt64(&submitted)
				acc := atomic.LoadInt64(&accepted)
				dup := atomic.LoadInt64(&duplicate)
				fail := atomic.LoadInt64(&failed)

				if config.Verbose {
					log.Printf("📊 Progress: %d/%d registered (accepted: %d, duplicate: %d, failed: %d)",
						total, len(pieces), acc, dup, fail)
				} else {
					fmt.Printf("\r📤 Registered: %d/%d (accepted: %d, duplicate: %d, failed: %d)",
						total, len(pieces), acc, dup, fail)
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("registration interrupted: %w", err)
	}

	// Final progress report
	if !config.Verbose {
		fmt.Println() // New line after progress indicator
	}

	// Update stats
	stats.PiecesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.PiecesAccepted = int(atomic.LoadInt64(&accepted))
	stats.PiecesDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.PiecesFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`✅ Piece registration completed:
   Accepted: %d
   Duplicate: %d
   Failed: %d
`, stats.PiecesAccepted, stats.PiecesDuplicate, stats.PiecesFailed)

	return nil
}

// registerSinglePiece registers a single piece and returns the result
func registerSinglePiece(ctx context.Context, client *HTTPClient, url string, piece Piece) string {
	resp, err := client.Post(ctx, url, piece)
	if err != nil {
		return "failed"
	}

	// Read response body
	body, err := readResponseBody(resp)
	if err != nil {
		return "failed"
	}

	// Parse response based on status code
	switch resp.StatusCode {
	case StatusAccepted:
		// Accepted - new piece
		var ack AckResponse
		if err := unmarshalJSON(body, &ack); err == nil && ack.Status == "accepted" {
			return "accepted"
		}
		return "accepted" // Assume accepted for 202 even if parsing fails
	case StatusOK:
		// OK - duplicate piece
		var ack AckResponse
		if err := unmarshalJSON(body, &ack); err == nil && ack.Duplicate {
			return "duplicate"
		}
		return "duplicate" // Assume duplicate for 200 even if parsing fails
	default:
		// Error
		return "failed"
	}
}
