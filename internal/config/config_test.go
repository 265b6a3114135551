package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// point at an empty directory so no config.yaml is picked up
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(cwd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1024, cfg.Ingestion.QueueSize)
	assert.Equal(t, 4, cfg.Ingestion.Workers)
	assert.Equal(t, 1000, cfg.Ingestion.FlushThreshold)
	assert.Equal(t, "batch", cfg.Ingestion.Mode)
	assert.Equal(t, "strict", cfg.Ingestion.ArrayPolicy)
	assert.Equal(t, "email", cfg.Ingestion.Channel)
	assert.Equal(t, "acme.com", cfg.Organization.Domain)
	assert.False(t, cfg.Oracle.Enabled)
	assert.Equal(t, "gpt-4o-mini", cfg.Oracle.Model)
	assert.Equal(t, 10*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 100, cfg.Oracle.MaxCalls)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	content := `
ingestion:
  mode: incremental
  workers: 8
organization:
  domain: example.org
storage:
  driver: memory
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "incremental", cfg.Ingestion.Mode)
	assert.Equal(t, 8, cfg.Ingestion.Workers)
	assert.Equal(t, "example.org", cfg.Organization.Domain)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	// untouched values keep their defaults
	assert.Equal(t, 1000, cfg.Ingestion.FlushThreshold)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Ingestion.Mode = "streaming" }},
		{"bad array policy", func(c *Config) { c.Ingestion.ArrayPolicy = "forgiving" }},
		{"bad driver", func(c *Config) { c.Storage.Driver = "oracle-db" }},
		{"zero workers", func(c *Config) { c.Ingestion.Workers = 0 }},
		{"zero flush threshold", func(c *Config) { c.Ingestion.FlushThreshold = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
