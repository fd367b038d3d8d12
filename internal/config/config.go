// Package config loads the CLI configuration: defaults, then an
// optional YAML file, then environment overrides. Command flags are
// applied last by the CLI layer.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values used when neither file, environment nor flags say
// otherwise.
const (
	DefaultEngineURL         = "http://localhost:7860"
	DefaultPollInterval      = 500 * time.Millisecond
	DefaultMinVertexDuration = 300 * time.Millisecond
)

// Config holds every tunable of the flowbuild CLI.
type Config struct {
	// EngineURL is the base URL of the flow-execution engine.
	EngineURL string `yaml:"engine_url"`
	// APIKey authenticates against the engine, when required.
	APIKey string `yaml:"api_key"`
	// Delivery forces one event delivery strategy. Empty selects the
	// default fallback chain.
	Delivery string `yaml:"delivery"`
	// PollInterval is the backoff between empty polls.
	PollInterval time.Duration `yaml:"poll_interval"`
	// MinVertexDuration smooths per-vertex completion reporting.
	MinVertexDuration time.Duration `yaml:"min_vertex_duration"`
	// RedisAddr enables the redis result store when set.
	RedisAddr string `yaml:"redis_addr"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		EngineURL:         DefaultEngineURL,
		PollInterval:      DefaultPollInterval,
		MinVertexDuration: DefaultMinVertexDuration,
		LogLevel:          "info",
	}
}

// Load builds the effective configuration: defaults, overlaid with the
// YAML file at path (if path is empty or the file is absent, the file
// layer is skipped), overlaid with environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Optional file.
		case err != nil:
			return Config{}, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FLOWBUILD_ENGINE_URL"); v != "" {
		cfg.EngineURL = v
	}
	if v := os.Getenv("FLOWBUILD_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("FLOWBUILD_DELIVERY"); v != "" {
		cfg.Delivery = v
	}
	if v := os.Getenv("FLOWBUILD_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("FLOWBUILD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FLOWBUILD_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("FLOWBUILD_MIN_VERTEX_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MinVertexDuration = d
		}
	}
}

func (c Config) validate() error {
	if c.EngineURL == "" {
		return fmt.Errorf("engine_url must not be empty")
	}
	switch c.Delivery {
	case "", "direct", "streaming", "polling":
	default:
		return fmt.Errorf("invalid delivery %q (want direct, streaming or polling)", c.Delivery)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative")
	}
	if c.MinVertexDuration < 0 {
		return fmt.Errorf("min_vertex_duration must not be negative")
	}
	return nil
}
