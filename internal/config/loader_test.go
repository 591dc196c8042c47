package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/agon/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			// Clear any existing environment variables
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.InitialRating, convey.ShouldEqual, 1500.0)
				convey.So(cfg.Tau, convey.ShouldEqual, 0.5)
				convey.So(cfg.Rounds, convey.ShouldEqual, 10)
				convey.So(cfg.JudgeProvider, convey.ShouldEqual, config.ProviderHeuristic)
				convey.So(cfg.CommitMode, convey.ShouldEqual, config.CommitModeRound)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			// Set environment variables
			_ = os.Setenv("AGON_ADDR", ":8080")
			_ = os.Setenv("AGON_ROUNDS", "25")
			_ = os.Setenv("AGON_CONCURRENCY", "4")
			_ = os.Setenv("AGON_TAU", "0.3")
			_ = os.Setenv("AGON_COMMIT_MODE", "end")
			_ = os.Setenv("AGON_RECORD_HISTORY", "false")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Rounds, convey.ShouldEqual, 25)
				convey.So(cfg.Concurrency, convey.ShouldEqual, 4)
				convey.So(cfg.Tau, convey.ShouldEqual, 0.3)
				convey.So(cfg.CommitMode, convey.ShouldEqual, config.CommitModeEnd)
				convey.So(cfg.RecordHistory, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			// Create a temporary YAML config file
			yamlContent := `
addr: ":9090"
rounds: 15
concurrency: 2
judge_provider: "scripted"
archive_path: "/tmp/agon-archive.db"
initial_rating: 1200
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			// Set the config file path
			_ = os.Setenv("AGON_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Rounds, convey.ShouldEqual, 15)
				convey.So(cfg.Concurrency, convey.ShouldEqual, 2)
				convey.So(cfg.JudgeProvider, convey.ShouldEqual, config.ProviderScripted)
				convey.So(cfg.ArchivePath, convey.ShouldEqual, "/tmp/agon-archive.db")
				convey.So(cfg.InitialRating, convey.ShouldEqual, 1200.0)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			// Create a YAML config file
			yamlContent := `
addr: ":9090"
rounds: 15
judge_provider: "scripted"
max_attempts: 5
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			// Set both file and environment variables
			_ = os.Setenv("AGON_CONFIG", tmpFile)
			_ = os.Setenv("AGON_ADDR", ":8080") // This should override the file
			_ = os.Setenv("AGON_ROUNDS", "30")  // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")                            // Overridden by env
				convey.So(cfg.Rounds, convey.ShouldEqual, 30)                               // Overridden by env
				convey.So(cfg.JudgeProvider, convey.ShouldEqual, config.ProviderScripted)   // From file
				convey.So(cfg.MaxAttempts, convey.ShouldEqual, 5)                           // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			// Create an invalid YAML file
			invalidYaml := `invalid: yaml: content: [`
			tmpFile := createTempConfigFile(invalidYaml)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("AGON_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("AGON_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("AGON_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with partial YAML file", func() {
			// Create a YAML file with only some fields
			yamlContent := `
addr: ":9090"
rounds: 20
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("AGON_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge with defaults for missing fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")                             // From file
				convey.So(cfg.Rounds, convey.ShouldEqual, 20)                                // From file
				convey.So(cfg.InitialDeviation, convey.ShouldEqual, 350.0)                   // From defaults
				convey.So(cfg.MaxAttempts, convey.ShouldEqual, 3)                            // From defaults
				convey.So(cfg.JudgeProvider, convey.ShouldEqual, config.ProviderHeuristic)   // From defaults
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 500_000)                       // From defaults
			})
		})

		convey.Convey("When loading config with numeric environment variables", func() {
			_ = os.Setenv("AGON_INITIAL_RATING", "1000")
			_ = os.Setenv("AGON_INITIAL_DEVIATION", "200")
			_ = os.Setenv("AGON_INITIAL_VOLATILITY", "0.09")
			_ = os.Setenv("AGON_JUDGE_RATE_PER_SEC", "2.5")
			_ = os.Setenv("AGON_PAIRING_SEED", "42")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should parse numeric values correctly", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.InitialRating, convey.ShouldEqual, 1000.0)
				convey.So(cfg.InitialDeviation, convey.ShouldEqual, 200.0)
				convey.So(cfg.InitialVolatility, convey.ShouldEqual, 0.09)
				convey.So(cfg.JudgeRatePerSec, convey.ShouldEqual, 2.5)
				convey.So(cfg.PairingSeed, convey.ShouldEqual, 42)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("AGON_ROUNDS", "invalid")
			_ = os.Setenv("AGON_CONCURRENCY", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigLoaderValidation(t *testing.T) {
	convey.Convey("Given config validation scenarios", t, func() {
		ctx := context.Background()

		convey.Convey("When commit mode is unknown", func() {
			_ = os.Setenv("AGON_COMMIT_MODE", "sometimes")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "commit_mode")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the judge provider is unknown", func() {
			_ = os.Setenv("AGON_JUDGE_PROVIDER", "oracle")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "judge_provider")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the openai provider is selected without a key", func() {
			_ = os.Setenv("AGON_JUDGE_PROVIDER", "openai")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "judge_api_key")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the openai provider is selected with a key", func() {
			_ = os.Setenv("AGON_JUDGE_PROVIDER", "openai")
			_ = os.Setenv("AGON_JUDGE_API_KEY", "sk-test")
			_ = os.Setenv("AGON_JUDGE_MODEL", "gpt-4o")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.JudgeProvider, convey.ShouldEqual, config.ProviderOpenAI)
				convey.So(cfg.JudgeAPIKey, convey.ShouldEqual, "sk-test")
				convey.So(cfg.JudgeModel, convey.ShouldEqual, "gpt-4o")
			})
		})

		convey.Convey("When tau is zero", func() {
			_ = os.Setenv("AGON_TAU", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "tau")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When rounds is negative", func() {
			_ = os.Setenv("AGON_ROUNDS", "-3")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When concurrency is zero", func() {
			_ = os.Setenv("AGON_CONCURRENCY", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should be accepted as a whole-round pool", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Concurrency, convey.ShouldEqual, 0)
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given config loader edge cases", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with very large values", func() {
			_ = os.Setenv("AGON_ROUNDS", "100000")
			_ = os.Setenv("AGON_CONCURRENCY", "1000")
			_ = os.Setenv("AGON_DEDUPE_SIZE", "2000000")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should handle large values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Rounds, convey.ShouldEqual, 100000)
				convey.So(cfg.Concurrency, convey.ShouldEqual, 1000)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 2000000)
			})
		})

		convey.Convey("When loading config with special characters in addr", func() {
			_ = os.Setenv("AGON_ADDR", "localhost:8080")
			_ = os.Setenv("AGON_ADDR", "0.0.0.0:9090")
			_ = os.Setenv("AGON_ADDR", "[::1]:8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should handle various addr formats", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, "[::1]:8080") // Last one wins
			})
		})

		convey.Convey("When loading config with YAML file containing comments", func() {
			yamlContent := `
# This is a comment
addr: ":9090"  # Inline comment
rounds: 12
judge_provider: "heuristic"
# Another comment
commit_mode: "end"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("AGON_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should parse YAML with comments", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Rounds, convey.ShouldEqual, 12)
				convey.So(cfg.CommitMode, convey.ShouldEqual, config.CommitModeEnd)
			})
		})

		convey.Convey("When loading config with YAML file containing empty values", func() {
			yamlContent := `
addr: ""
rounds: 12
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("AGON_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return validation error for empty addr", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"AGON_CONFIG",
		"AGON_ADDR",
		"AGON_ROUNDS",
		"AGON_CONCURRENCY",
		"AGON_MAX_ATTEMPTS",
		"AGON_COMMIT_MODE",
		"AGON_RECORD_HISTORY",
		"AGON_PAIRING_SEED",
		"AGON_TAU",
		"AGON_INITIAL_RATING",
		"AGON_INITIAL_DEVIATION",
		"AGON_INITIAL_VOLATILITY",
		"AGON_JUDGE_PROVIDER",
		"AGON_JUDGE_MODEL",
		"AGON_JUDGE_API_KEY",
		"AGON_JUDGE_RATE_PER_SEC",
		"AGON_DEDUPE_SIZE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "agon-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
