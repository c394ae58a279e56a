package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger; Init replaces it.
var Logger *zap.Logger

var fallback = sync.OnceValue(func() *zap.Logger {
	l, _ := zap.NewDevelopment()
	return l
})

// Init builds the global logger for env ("production" logs JSON, anything
// else logs to a colored console). A non-empty level overrides the env
// default of info (production) or debug.
func Init(env, level string) error {
	config := configFor(env)
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	built, err := config.Build()
	if err != nil {
		return err
	}
	Logger = built.With(zap.String("app", "aleph"), zap.String("env", env))
	return nil
}

func configFor(env string) zap.Config {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return config
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Get returns the global logger, or a shared development logger before Init.
func Get() *zap.Logger {
	if Logger == nil {
		return fallback()
	}
	return Logger
}

// For returns the global logger tagged with a component name.
func For(component string) *zap.Logger {
	return Get().With(zap.String("component", component))
}
