// Package observability builds the structured logger shared by every command
// and the fields used to tag game activity.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"truth-or-dare-service/internal/config"
)

// GameIDKey is the log field carrying a game ID.
const GameIDKey = "game_id"

// NewLogger creates the service logger from the logging section of the
// config. Format "json" yields production encoding, "console" the
// development one.
func NewLogger(cfg config.LoggingConfig, opts ...zap.Option) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.NameKey = "component"

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Named("tod"), nil
}

// TerminalConfig adapts cfg for interactive commands, where log lines share
// the screen with prompts: console encoding, and warn unless verbose.
func TerminalConfig(cfg config.LoggingConfig, verbose bool) config.LoggingConfig {
	cfg.Format = "console"
	if !verbose && cfg.Level != "error" {
		cfg.Level = "warn"
	}
	return cfg
}

// GameID tags a log entry with a game ID.
func GameID(id string) zap.Field {
	return zap.String(GameIDKey, id)
}

// ForGame returns a child of log named after component whose entries all
// carry gameID.
func ForGame(log *zap.Logger, component, gameID string) *zap.Logger {
	return log.Named(component).With(GameID(gameID))
}
