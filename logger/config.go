package logger

import (
	"artifact-proxy/config"
	"context"

	"github.com/sirupsen/logrus"
)

// ConfigAdapter adapts config.Config to implement LoggerConfig
type ConfigAdapter struct {
	config *config.Config
}

// NewConfigAdapter creates a new ConfigAdapter
func NewConfigAdapter(cfg *config.Config) LoggerConfig {
	return &ConfigAdapter{config: cfg}
}

// GetMinLogLevel returns the LOG_LEVEL setting
func (c *ConfigAdapter) GetMinLogLevel() Level {
	if c.config == nil {
		return INFO
	}
	return ParseLevel(c.config.LogLevel)
}

// ShouldMaskAPIKeys returns whether API keys should be masked in logs
func (c *ConfigAdapter) ShouldMaskAPIKeys() bool {
	return true
}

// NewFromConfig creates a new logger using the loaded config
func NewFromConfig(ctx context.Context, cfg *config.Config, base *logrus.Logger) Logger {
	return New(ctx, NewConfigAdapter(cfg), base)
}

// ContextLoggerFromConfig creates a logger and stores it in context for easy access
func ContextLoggerFromConfig(ctx context.Context, cfg *config.Config, base *logrus.Logger) (context.Context, Logger) {
	logger := NewFromConfig(ctx, cfg, base)
	newCtx := context.WithValue(ctx, loggerContextKey, logger)
	return newCtx, logger
}
