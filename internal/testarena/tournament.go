package testarena

import (
	"context"
	"fmt"
	"log"
	"time"
)

// startRun asks the service to run a tournament over the registered population.
func startRun(ctx context.Context, config *Config, stats *Stats) error {
	if config.Rounds > 0 {
		log.Printf("🏁 Starting a %d-round tournament...", config.Rounds)
	} else {
		log.Println("🏁 Starting a tournament with the service's configured rounds...")
	}

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/tournaments"

	resp, err := client.Post(ctx, url, map[string]int{"rounds": config.Rounds})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != StatusAccepted {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var run RunResponse
	if err := unmarshalJSON(body, &run); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if run.RunID == "" {
		return fmt.Errorf("service accepted the run but returned no run id")
	}

	stats.RunID = run.RunID
	log.Printf("✅ Run %s accepted", run.RunID)
	return nil
}

// waitForRun polls the stats endpoint until the accepted run finishes.
// The run id only shows up in stats once the scheduler picks the run up,
// so an id mismatch means "keep waiting", not "already done".
func waitForRun(ctx context.Context, config *Config, stats *Stats) error {
	log.Printf("⏳ Waiting for run %s to finish...", stats.RunID)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/stats"

	ticker := time.NewTicker(RunPollInterval)
	defer ticker.Stop()

	lastRound := -1
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for run %s: %w", stats.RunID, ctx.Err())
		case <-ticker.C:
			snapshot, err := fetchStats(ctx, client, url)
			if err != nil {
				if config.Verbose {
					log.Printf("⚠️  Stats poll failed: %v", err)
				}
				continue
			}

			runID, _ := snapshot["runID"].(string)
			if runID != stats.RunID {
				continue
			}

			active, _ := snapshot["runActive"].(bool)
			if round, ok := snapshot["currentRound"].(float64); ok && active && int(round) != lastRound {
				lastRound = int(round)
				total, _ := snapshot["totalRounds"].(float64)
				matches, _ := snapshot["matchesPlayed"].(float64)
				log.Printf("📊 Round %d/%d underway (matches played: %d)", lastRound, int(total), int(matches))
			}

			if !active {
				if matches, ok := snapshot["matchesPlayed"].(float64); ok {
					stats.MatchesPlayed = int(matches)
				}
				log.Printf("✅ Run %s finished after %d matches", stats.RunID, stats.MatchesPlayed)
				return nil
			}
		}
	}
}

// fetchStats retrieves one stats snapshot. JSON numbers come back as float64.
func fetchStats(ctx context.Context, client *HTTPClient, url string) (map[string]interface{}, error) {
	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var snapshot map[string]interface{}
	if err := unmarshalJSON(body, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return snapshot, nil
}

// fetchHistory pulls the archived match log for the finished run.
func fetchHistory(ctx context.Context, config *Config, stats *Stats) ([]MatchRecord, error) {
	log.Printf("📜 Fetching match history for run %s...", stats.RunID)

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/history?run=%s", config.BaseURL, stats.RunID)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var records []MatchRecord
	if err := unmarshalJSON(body, &records); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	stats.HistoryRecords = len(records)
	log.Printf("✅ Retrieved %d match records", len(records))

	return records, nil
}
