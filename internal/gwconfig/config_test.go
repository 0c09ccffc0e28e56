package gwconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
providers:
  - name: openai
    driver: openai
    priority: 1
    api_key: sk-test
    model: gpt-4o-mini
  - name: anthropic
    driver: anthropic
    priority: 2
    api_key: sk-ant-test
    model: claude-3-haiku
default_model: gpt-4o-mini
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 1024, cfg.DefaultMaxTokens)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, "default", cfg.Sync.Namespace)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParseRejectsEmptyProviders(t *testing.T) {
	_, err := Parse([]byte("default_model: gpt-4o-mini\n"))
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseRejectsDuplicateProviderNames(t *testing.T) {
	yaml := `
providers:
  - name: openai
    driver: openai
    priority: 1
  - name: openai
    driver: openai
    priority: 2
`
	_, err := Parse([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestParseRejectsMissingProviderDriver(t *testing.T) {
	yaml := `
providers:
  - name: openai
    priority: 1
`
	_, err := Parse([]byte(yaml))
	require.Error(t, err)
}

func TestParseRejectsUnknownTopLevelField(t *testing.T) {
	yaml := minimalYAML + "\nbogus_field: true\n"
	_, err := Parse([]byte(yaml))
	assert.Error(t, err)
}

func TestParseRejectsInvalidSyncBackend(t *testing.T) {
	yaml := minimalYAML + "\nsync:\n  enabled: true\n  backend: carrier-pigeon\n"
	_, err := Parse([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.backend")
}

func TestParseHonorsExplicitOverrides(t *testing.T) {
	yaml := minimalYAML + `
retry:
  max_attempts: 5
  base_delay: 1s
  max_delay: 10s
  jitter_fraction: 0.2
circuit_breaker:
  failure_threshold: 3
  success_threshold: 1
  timeout: 30s
  half_open_max_probes: 2
`
	cfg, err := Parse([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 3, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 2, cfg.CircuitBreaker.HalfOpenMaxProbes)
}

func TestToRetryConfigAndToBreakerConfigConvertCleanly(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	rc := cfg.Retry.ToRetryConfig()
	assert.Equal(t, cfg.Retry.MaxAttempts, rc.MaxAttempts)

	bc := cfg.CircuitBreaker.ToBreakerConfig()
	assert.Equal(t, cfg.CircuitBreaker.FailureThreshold, bc.FailureThreshold)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.yaml")
	assert.Error(t, err)
}
