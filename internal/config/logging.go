package config

import (
	"fmt"
	"os"
	"strings"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig selects the log encoding and minimum level
type LoggingConfig struct {
	Format string `yaml:"format" env:"ECOMANE_LOG_FORMAT" env-default:"console"`
	Level  string `yaml:"level" env:"ECOMANE_LOG_LEVEL" env-default:"info"`
}

var logFormats = map[string]func(zapcore.EncoderConfig) zapcore.Encoder{
	"console": zapcore.NewConsoleEncoder,
	"json":    zapcore.NewJSONEncoder,
	"logfmt":  zaplogfmt.NewEncoder,
}

// ValidateLogging normalizes cfg and rejects unknown formats and levels
func ValidateLogging(cfg *LoggingConfig) error {
	cfg.Format = strings.ToLower(cfg.Format)
	if cfg.Format == "" {
		cfg.Format = "console"
	}
	if _, ok := logFormats[cfg.Format]; !ok {
		return fmt.Errorf("logging.format must be console, json or logfmt, got %q", cfg.Format)
	}

	cfg.Level = strings.ToLower(cfg.Level)
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if _, err := zapcore.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// NewLogger builds a logger writing to stderr, leaving stdout to command output.
func NewLogger(cfg *LoggingConfig) (*zap.Logger, error) {
	if err := ValidateLogging(cfg); err != nil {
		return nil, err
	}
	level, _ := zapcore.ParseLevel(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder
	if cfg.Format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	core := zapcore.NewCore(logFormats[cfg.Format](encCfg), zapcore.Lock(os.Stderr), level)
	return zap.New(core, zap.AddCaller()), nil
}
