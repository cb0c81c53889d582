// Package logging provides structured logging configuration.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration options.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // json|console
}

// New creates a new configured zap logger.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
			return nil, err
		}
	}

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "json"
	}

	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.LevelKey = "level"
	zcfg.EncoderConfig.MessageKey = "msg"
	zcfg.EncoderConfig.CallerKey = "caller"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build(zap.AddCaller(), zap.AddCallerSkip(0))
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("service", "scriptgate"))

	return logger, nil
}

// Sync flushes any buffered log entries.
func Sync(logger *zap.Logger) {
	_ = logger.Sync()
}

// FromEnv creates a Config from environment variables.
func FromEnv() Config {
	return Config{
		Level:  getenv("SCRIPTGATE_LOG_LEVEL", "info"),
		Format: getenv("SCRIPTGATE_LOG_FORMAT", "json"),
	}
}

func getenv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Component returns a zap field for the component name.
func Component(name string) zap.Field { return zap.String("component", name) }

// Port returns a zap field for the port number.
func Port(port int) zap.Field { return zap.Int("port", port) }

// WebsiteID returns a zap field for a website identifier.
func WebsiteID(id string) zap.Field { return zap.String("website_id", id) }

// TokenID returns a zap field for a token identifier.
func TokenID(id string) zap.Field { return zap.String("token_id", id) }

// Actor returns a zap field for the admin actor behind an operation.
func Actor(actor string) zap.Field { return zap.String("actor", actor) }

// Event returns a zap field for an audit event type.
func Event(eventType string) zap.Field { return zap.String("event", eventType) }

// Environment returns a zap field for a deployment environment.
func Environment(env string) zap.Field { return zap.String("environment", env) }

// ScriptVersion returns a zap field for a widget script version.
func ScriptVersion(v string) zap.Field { return zap.String("script_version", v) }

// Priority returns a zap field for a rotation priority.
func Priority(p string) zap.Field { return zap.String("priority", p) }

// AgeDays returns a zap field for a token age in days.
func AgeDays(days int) zap.Field { return zap.Int("age_days", days) }

// Reasons returns a zap field for a list of rotation reasons.
func Reasons(reasons []string) zap.Field { return zap.Strings("reasons", reasons) }
