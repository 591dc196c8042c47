// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers file and environment on top.
// - All blocking functions accept context.Context as the first parameter.
// - External errors must be wrapped via this package's sentinel errors.
package config

// Judge providers selectable through JudgeProvider.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderScripted  = "scripted"
	ProviderHeuristic = "heuristic"
)

// Commit modes selectable through CommitMode.
const (
	CommitModeRound = "round"
	CommitModeEnd   = "end"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// InitialRating seeds new competitors and centers the rating scale.
	InitialRating float64 `koanf:"initial_rating"`

	// InitialDeviation seeds new competitors and caps inactivity inflation.
	InitialDeviation float64 `koanf:"initial_deviation"`

	// InitialVolatility seeds new competitors.
	InitialVolatility float64 `koanf:"initial_volatility"`

	// Tau constrains volatility change per rating period.
	Tau float64 `koanf:"tau"`

	// Rounds is the default round count for runs that do not request one.
	Rounds int `koanf:"rounds"`

	// Concurrency bounds in-flight matches per round; 0 lets a whole
	// round run at once.
	Concurrency int `koanf:"concurrency"`

	// MaxAttempts bounds judge attempts per match.
	MaxAttempts int `koanf:"max_attempts"`

	// CommitMode selects when ratings become visible: round or end.
	CommitMode string `koanf:"commit_mode"`

	// RecordHistory toggles in-memory match history for the current run.
	RecordHistory bool `koanf:"record_history"`

	// PairingSeed fixes the pairing shuffle; 0 means time-seeded.
	PairingSeed int64 `koanf:"pairing_seed"`

	// JudgeProvider selects the comparison backend: openai, ollama,
	// scripted, or heuristic.
	JudgeProvider string `koanf:"judge_provider"`

	// JudgeModel overrides the provider's default model name.
	JudgeModel string `koanf:"judge_model"`

	// JudgeBaseURL overrides the provider endpoint, e.g. a proxy or a
	// local Ollama instance.
	JudgeBaseURL string `koanf:"judge_base_url"`

	// JudgeAPIKey authenticates against the OpenAI-compatible backend.
	JudgeAPIKey string `koanf:"judge_api_key"`

	// JudgeTimeoutMS bounds a single judge call.
	JudgeTimeoutMS int `koanf:"judge_timeout_ms"`

	// JudgeRatePerSec throttles judge calls; 0 disables throttling.
	JudgeRatePerSec float64 `koanf:"judge_rate_per_sec"`

	// JudgeBurst is the throttle burst size.
	JudgeBurst int `koanf:"judge_burst"`

	// GoalFile points at a text file holding the judging goal; empty
	// selects the built-in goal.
	GoalFile string `koanf:"goal_file"`

	// ArchivePath points at the SQLite archive; empty disables archiving.
	ArchivePath string `koanf:"archive_path"`

	// DedupeSize sets the size of the registration deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// SnapshotIntervalMS sets the store's read-snapshot rebuild cadence.
	SnapshotIntervalMS int `koanf:"snapshot_interval_ms"`

	// HTTP server timeouts.
	HTTPReadTimeoutMS  int `koanf:"http_read_timeout_ms"`
	HTTPWriteTimeoutMS int `koanf:"http_write_timeout_ms"`
	HTTPIdleTimeoutMS  int `koanf:"http_idle_timeout_ms"`
	ShutdownTimeoutMS  int `koanf:"shutdown_timeout_ms"`
}

// New creates a Config holding the defaults Load layers onto.
func New() *Config {
	c := &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		InitialRating:       1500,
		InitialDeviation:    350,
		InitialVolatility:   0.06,
		Tau:                 0.5,
		Rounds:              10,
		Concurrency:         8,
		MaxAttempts:         3,
		CommitMode:          CommitModeRound,
		RecordHistory:       true,
		JudgeProvider:       ProviderHeuristic,
		JudgeTimeoutMS:      120_000,
		JudgeBurst:          1,
		DedupeSize:          500_000,
		MaxLeaderboardLimit: 100,
		SnapshotIntervalMS:  1_000,
		HTTPReadTimeoutMS:   10_000,
		HTTPWriteTimeoutMS:  10_000,
		HTTPIdleTimeoutMS:   60_000,
		ShutdownTimeoutMS:   30_000,
	}
	return c
}
