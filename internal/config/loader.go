package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if AGON_CONFIG is set
//  3. env (prefix AGON_)
func Load(_ context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("AGON_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Environment variables: AGON_ADDR, AGON_ROUNDS, ...
	// Map env keys like AGON_JUDGE_PROVIDER -> judge_provider (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("AGON_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "agon_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the service cannot start with.
func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.InitialDeviation <= 0 {
		return fmt.Errorf("%w: initial_deviation must be positive", ErrInvalidConfig)
	}
	if c.InitialVolatility <= 0 {
		return fmt.Errorf("%w: initial_volatility must be positive", ErrInvalidConfig)
	}
	if c.Tau <= 0 {
		return fmt.Errorf("%w: tau must be positive", ErrInvalidConfig)
	}
	if c.Rounds < 1 {
		return fmt.Errorf("%w: rounds must be at least 1", ErrInvalidConfig)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalidConfig)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be at least 1", ErrInvalidConfig)
	}
	switch c.CommitMode {
	case CommitModeRound, CommitModeEnd:
	default:
		return fmt.Errorf("%w: commit_mode must be %q or %q, got %q",
			ErrInvalidConfig, CommitModeRound, CommitModeEnd, c.CommitMode)
	}
	switch c.JudgeProvider {
	case ProviderOpenAI, ProviderOllama, ProviderScripted, ProviderHeuristic:
	default:
		return fmt.Errorf("%w: unknown judge_provider %q", ErrInvalidConfig, c.JudgeProvider)
	}
	if c.JudgeProvider == ProviderOpenAI && c.JudgeAPIKey == "" {
		return fmt.Errorf("%w: judge_api_key is required for the openai provider", ErrInvalidConfig)
	}
	if c.MaxLeaderboardLimit < 1 {
		return fmt.Errorf("%w: max_leaderboard_limit must be at least 1", ErrInvalidConfig)
	}
	return nil
}
