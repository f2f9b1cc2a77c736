package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 4, cfg.Pipeline.Workers)
	require.Equal(t, 15, cfg.HTTP.TimeoutSeconds)
	require.True(t, cfg.HTTP.RespectRobots)
	require.True(t, cfg.Headless.StealthEnabled)
	require.Equal(t, 0.7, cfg.ML.MinConfidence)
	require.Equal(t, "memory", cfg.Blob.Provider)
	require.Equal(t, "system", cfg.Pipeline.SystemActor)
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
pipeline:
  workers: 8
headless:
  enabled: true
  max_parallel: 2
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 8, cfg.Pipeline.Workers)
	require.True(t, cfg.Headless.Enabled)
	require.Equal(t, 2, cfg.Headless.MaxParallel)
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"headless without parallel", func(c *Config) {
			c.Headless.Enabled = true
			c.Headless.MaxParallel = 0
		}},
		{"ml without endpoint", func(c *Config) { c.ML.Enabled = true }},
		{"confidence out of range", func(c *Config) { c.ML.MinConfidence = 1.5 }},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true }},
		{"local blob without dir", func(c *Config) { c.Blob.Provider = "local" }},
		{"gcs blob without bucket", func(c *Config) { c.Blob.Provider = "gcs" }},
		{"unknown blob provider", func(c *Config) { c.Blob.Provider = "s3" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
