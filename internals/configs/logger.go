package configs

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger: JSON di production, console berwarna di luar itu.
func NewLogger() (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(GetEnv("LOG_LEVEL", "info")))); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}

	var cfg zap.Config
	switch strings.ToLower(GetEnv("APP_ENV", "development")) {
	case "production", "prod":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = level

	return cfg.Build(zap.Fields(zap.String("service", "collections")))
}
