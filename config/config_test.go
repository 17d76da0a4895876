package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BranchIntl/tubecheck/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "tubecheck.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "beanstalkd", cfg.Strategy)
	assert.Equal(t, []string{"localhost:11300"}, cfg.Members)
	assert.Equal(t, 10*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
strategy: ":redis"
members:
  - redis://a:6379
  - redis://b:6379
dial_timeout: 2s
retries: 1
log_level: debug
namespace: "app:"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":redis", cfg.Strategy)
	assert.Equal(t, []string{"redis://a:6379", "redis://b:6379"}, cfg.Members)
	assert.Equal(t, 2*time.Second, cfg.DialTimeout)
	assert.Equal(t, 1, cfg.Retries)
	assert.Equal(t, "app:", cfg.Namespace)
	assert.Equal(t, "text", cfg.LogFormat)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")

	_, err = Load(writeConfig(t, "members: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")

	_, err = Load(writeConfig(t, "members: []"))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv(EnvStrategy, "memory")
	t.Setenv(EnvMembers, " mem:1 , ,mem:2")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(writeConfig(t, "strategy: beanstalkd\nmembers: [localhost:11300]\n"))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Strategy)
	assert.Equal(t, []string{"mem:1", "mem:2"}, cfg.Members)
	assert.Equal(t, "warn", cfg.LogLevel)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Strategy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		expect string
	}{
		{"empty strategy", func(c *Config) { c.Strategy = " " }, "strategy is required"},
		{"no members", func(c *Config) { c.Members = nil }, "at least one member"},
		{"blank member", func(c *Config) { c.Members = []string{"a:1", ""} }, "member address cannot be empty"},
		{"negative retries", func(c *Config) { c.Retries = -1 }, "retries must be >= 0"},
		{"negative concurrency", func(c *Config) { c.Concurrency = -2 }, "concurrency must be >= 0"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "unknown log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.expect)
		})
	}
}
