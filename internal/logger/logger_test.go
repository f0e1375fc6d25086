package logger

import (
	"testing"

	"github.com/straye-as/solar-crm-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildConfig_Encoding(t *testing.T) {
	tests := []struct {
		name        string
		format      string
		environment string
		want        string
	}{
		{"console in development", "console", "development", "console"},
		{"json when requested", "json", "development", "json"},
		{"json format is case insensitive", "JSON", "staging", "json"},
		{"production always json", "console", "production", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := buildConfig(
				&config.LoggingConfig{Format: tt.format},
				&config.AppConfig{Name: "solar-crm-api", Environment: tt.environment},
			)
			assert.Equal(t, tt.want, cfg.Encoding)
			assert.Equal(t, "solar-crm-api", cfg.InitialFields["app"])
			assert.Equal(t, tt.environment, cfg.InitialFields["environment"])
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	app := &config.AppConfig{Name: "solar-crm-api", Environment: "development"}

	log, err := NewLogger(&config.LoggingConfig{Level: "warn", Format: "console"}, app)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	log, err = NewLogger(&config.LoggingConfig{Level: "chatty", Format: "console"}, app)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestWithJob(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	WithJob(zap.New(core), "pipeline_snapshot").Info("done")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "jobs", entry.LoggerName)
	assert.Equal(t, "pipeline_snapshot", entry.ContextMap()["job"])
}

func TestWithRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	WithRequest(zap.New(core), "DELETE", "/api/v1/sites/1", "req-1").Info("handled")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "DELETE", fields["method"])
	assert.Equal(t, "/api/v1/sites/1", fields["path"])
	assert.Equal(t, "req-1", fields["request_id"])
}
