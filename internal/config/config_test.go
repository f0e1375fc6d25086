package config_test

import (
	"os"
	"testing"

	"github.com/straye-as/solar-crm-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inEmptyDir runs the test from a directory without config.json or .env
func inEmptyDir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	inEmptyDir(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "Solar CRM API", cfg.App.Name)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "local", cfg.Storage.Mode)
	assert.Equal(t, int64(50<<20), cfg.Storage.MaxUploadSizeBytes())
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "*/5 * * * *", cfg.Jobs.PipelineSnapshotSchedule)
	assert.Contains(t, cfg.RateLimit.WhitelistPaths, "/health")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	inEmptyDir(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("STORAGE_MODE", "cloud")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "cloud", cfg.Storage.Mode)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			App:     config.AppConfig{Port: 8080},
			Storage: config.StorageConfig{Mode: "local", LocalBasePath: "./storage", MaxUploadSizeMB: 10},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr bool
	}{
		{"valid local", func(c *config.Config) {}, false},
		{"valid cloud", func(c *config.Config) { c.Storage.Mode = "cloud"; c.Storage.CloudContainer = "meter-files" }, false},
		{"unknown mode", func(c *config.Config) { c.Storage.Mode = "ftp" }, true},
		{"cloud without container", func(c *config.Config) { c.Storage.Mode = "cloud" }, true},
		{"local without path", func(c *config.Config) { c.Storage.LocalBasePath = "" }, true},
		{"zero upload size", func(c *config.Config) { c.Storage.MaxUploadSizeMB = 0 }, true},
		{"bad port", func(c *config.Config) { c.App.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
