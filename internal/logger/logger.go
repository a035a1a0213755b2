package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "canteen-menu-service"

// New builds the process logger. Development environments get the
// console encoder with debug level; everything else logs JSON at info.
func New(env string) (*zap.Logger, error) {
	env = strings.ToLower(strings.TrimSpace(env))

	cfg := zap.NewProductionConfig()
	if env == "development" || env == "local" || env == "test" {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]any{"service": serviceName}
	if env != "" {
		cfg.InitialFields["env"] = env
	}
	return cfg.Build()
}
