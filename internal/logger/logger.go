// Package logger builds the zap loggers used by the API, the migrator and background jobs.
package logger

import (
	"fmt"
	"strings"

	"github.com/straye-as/solar-crm-api/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates the process logger.
//
// JSON output is used when logging.format is "json" or the app runs in
// production; otherwise a colored console encoder is used. An unknown level
// falls back to info and is reported once the logger exists.
func NewLogger(cfg *config.LoggingConfig, appCfg *config.AppConfig) (*zap.Logger, error) {
	zapCfg := buildConfig(cfg, appCfg)

	level, levelErr := zapcore.ParseLevel(strings.TrimSpace(cfg.Level))
	if levelErr != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	log, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if levelErr != nil && cfg.Level != "" {
		log.Warn("unknown log level, using info", zap.String("level", cfg.Level))
	}
	return log, nil
}

func buildConfig(cfg *config.LoggingConfig, appCfg *config.AppConfig) zap.Config {
	var zapCfg zap.Config
	if useJSON(cfg, appCfg) {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "timestamp"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zapCfg.Sampling = nil
	}

	zapCfg.InitialFields = map[string]interface{}{
		"app":         appCfg.Name,
		"environment": appCfg.Environment,
	}
	return zapCfg
}

func useJSON(cfg *config.LoggingConfig, appCfg *config.AppConfig) bool {
	return strings.EqualFold(cfg.Format, "json") || appCfg.Environment == "production"
}

// WithRequest adds request context to logger
func WithRequest(logger *zap.Logger, method, path, requestID string) *zap.Logger {
	return logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)
}

// WithJob tags log lines written by a background job
func WithJob(logger *zap.Logger, job string) *zap.Logger {
	return logger.Named("jobs").With(zap.String("job", job))
}
