// Package gwconfig is the typed YAML configuration surface for the
// gateway: providers, retry, circuit breaker, sync backend, and logging.
package gwconfig

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/flexigate/internal/breaker"
	"github.com/haasonsaas/flexigate/internal/retry"
)

// Config is the root configuration document.
type Config struct {
	Providers []ProviderConfig `yaml:"providers"`

	DefaultModel       string  `yaml:"default_model"`
	DefaultTemperature float64 `yaml:"default_temperature"`
	DefaultMaxTokens   int     `yaml:"default_max_tokens"`

	Retry          RetryConfig   `yaml:"retry"`
	CircuitBreaker BreakerConfig `yaml:"circuit_breaker"`
	Sync           SyncConfig    `yaml:"sync"`
	Logging        LoggingConfig `yaml:"logging"`

	// Debug gates developer-only surfaces, such as the trigger-failure CLI
	// subcommand and DebugForceFailure.
	Debug bool `yaml:"debug"`
}

// ProviderConfig describes one registered provider.
type ProviderConfig struct {
	Name     string         `yaml:"name"`
	Driver   string         `yaml:"driver"`
	Priority int            `yaml:"priority"`
	APIKey   string         `yaml:"api_key"`
	Model    string         `yaml:"model"`
	BaseURL  string         `yaml:"base_url"`
	Timeout  time.Duration  `yaml:"timeout"`
	Extra    map[string]any `yaml:"extra"`
}

// RetryConfig mirrors internal/retry.Config with YAML tags and
// human-friendly duration strings.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	JitterFraction float64       `yaml:"jitter_fraction"`
}

// ToRetryConfig converts the YAML-facing type to internal/retry's Config.
func (r RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:    r.MaxAttempts,
		BaseDelay:      r.BaseDelay,
		MaxDelay:       r.MaxDelay,
		JitterFraction: r.JitterFraction,
	}
}

// BreakerConfig mirrors internal/breaker.Config, applied to every
// registered provider unless a future per-provider override is added.
type BreakerConfig struct {
	FailureThreshold  int           `yaml:"failure_threshold"`
	SuccessThreshold  int           `yaml:"success_threshold"`
	Timeout           time.Duration `yaml:"timeout"`
	HalfOpenMaxProbes int           `yaml:"half_open_max_probes"`
}

// ToBreakerConfig converts the YAML-facing type to internal/breaker's
// Config.
func (b BreakerConfig) ToBreakerConfig() breaker.Config {
	return breaker.Config{
		FailureThreshold:  b.FailureThreshold,
		SuccessThreshold:  b.SuccessThreshold,
		Timeout:           b.Timeout,
		HalfOpenMaxProbes: b.HalfOpenMaxProbes,
	}
}

// SyncConfig configures cross-process breaker synchronization.
type SyncConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Backend   string `yaml:"backend"` // "redis" | "none"
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	DB        int    `yaml:"db"`
	Password  string `yaml:"password"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig configures the process-wide slog handler.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	FilePath    string `yaml:"file_path"`
	MaxBytes    int    `yaml:"max_bytes"`
	BackupCount int    `yaml:"backup_count"`
}

// Load reads and validates a Config from path. Unknown top-level keys are
// rejected, matching the strict decoding the example corpus uses for its
// own configuration surfaces.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gwconfig: read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("gwconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a Config from raw YAML bytes and applies defaults.
func Parse(data []byte) (*Config, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("expected a single YAML document")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DefaultMaxTokens == 0 {
		c.DefaultMaxTokens = 1024
	}
	if c.Retry.MaxAttempts == 0 {
		d := retry.DefaultConfig()
		c.Retry = RetryConfig{MaxAttempts: d.MaxAttempts, BaseDelay: d.BaseDelay, MaxDelay: d.MaxDelay, JitterFraction: d.JitterFraction}
	}
	if c.CircuitBreaker.FailureThreshold == 0 {
		d := breaker.DefaultConfig()
		c.CircuitBreaker = BreakerConfig{
			FailureThreshold:  d.FailureThreshold,
			SuccessThreshold:  d.SuccessThreshold,
			Timeout:           d.Timeout,
			HalfOpenMaxProbes: d.HalfOpenMaxProbes,
		}
	}
	if c.Sync.Namespace == "" {
		c.Sync.Namespace = "default"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for obvious misconfiguration before
// the registry is built. It does not attempt to reach any provider.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return &ValidationError{Field: "providers", Reason: "at least one provider is required"}
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("providers[%d].name", i), Reason: "must not be empty"}
		}
		if seen[p.Name] {
			return &ValidationError{Field: fmt.Sprintf("providers[%d].name", i), Reason: "duplicate provider name " + p.Name}
		}
		seen[p.Name] = true
		if p.Driver == "" {
			return &ValidationError{Field: fmt.Sprintf("providers[%d].driver", i), Reason: "must not be empty"}
		}
	}
	if c.Sync.Enabled && c.Sync.Backend != "redis" && c.Sync.Backend != "none" {
		return &ValidationError{Field: "sync.backend", Reason: "must be \"redis\" or \"none\""}
	}
	return nil
}

// ValidationError reports a configuration problem caught before startup.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("gwconfig: %s: %s", e.Field, e.Reason)
}
