// Package logging provides structured logging with zerolog.
// It maps the application LOG_LEVEL names onto zerolog levels, switches
// between a colorized console format in development and JSON elsewhere,
// and carries request IDs through contexts for correlation.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/config"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/constants"
)

// LoggerConfig holds configuration for the logger.
type LoggerConfig struct {
	// Level is the minimum log level, using the configuration names
	// (DEBUG, INFO, WARNING, ERROR, CRITICAL).
	Level string

	// Format is the output format ("console" or "json").
	Format string

	// Output is the writer for logs (default: os.Stderr).
	Output io.Writer

	// ServiceName is attached to every event when set.
	ServiceName string
}

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// ParseLevel maps a configuration log level name to a zerolog level.
// Unknown names fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case config.LogLevelDebug:
		return zerolog.DebugLevel
	case config.LogLevelInfo:
		return zerolog.InfoLevel
	case config.LogLevelWarning:
		return zerolog.WarnLevel
	case config.LogLevelError:
		return zerolog.ErrorLevel
	case config.LogLevelCritical:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new structured logger.
func NewLogger(cfg LoggerConfig) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(output).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
	if cfg.ServiceName != "" {
		logger = logger.With().Str("service", cfg.ServiceName).Logger()
	}

	return &Logger{logger: logger}
}

// FromSettings builds a logger from the loaded configuration: console
// format in development, JSON everywhere else.
func FromSettings(cfg *config.Settings) *Logger {
	format := "json"
	if cfg.IsDevelopment() {
		format = "console"
	}
	return NewLogger(LoggerConfig{
		Level:       cfg.LogLevel,
		Format:      format,
		ServiceName: cfg.AppName,
	})
}

// WithContext returns a logger with the request ID from ctx attached,
// when one is present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if requestID := GetRequestID(ctx); requestID != "" {
		return &Logger{logger: l.logger.With().Str(constants.ContextKeyRequestID, requestID).Logger()}
	}
	return l
}

// WithField returns a logger with an additional field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// Zerolog exposes the underlying zerolog.Logger for event-style logging.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.logger
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) { l.logger.Debug().Msg(msg) }

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...any) { l.logger.Debug().Msgf(format, args...) }

// Info logs an info message.
func (l *Logger) Info(msg string) { l.logger.Info().Msg(msg) }

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...any) { l.logger.Info().Msgf(format, args...) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string) { l.logger.Warn().Msg(msg) }

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...any) { l.logger.Warn().Msgf(format, args...) }

// Error logs an error message.
func (l *Logger) Error(msg string) { l.logger.Error().Msg(msg) }

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...any) { l.logger.Error().Msgf(format, args...) }

// ErrorWithErr logs an error with the error object.
func (l *Logger) ErrorWithErr(msg string, err error) { l.logger.Error().Err(err).Msg(msg) }

// Context key for request ID.
type contextKey string

const requestIDKey contextKey = constants.ContextKeyRequestID

// SetRequestID sets the request ID in the context.
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID gets the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Global logger instance.
var globalLogger *Logger

// InitFromSettings initializes the global logger from the loaded
// configuration.
func InitFromSettings(cfg *config.Settings) {
	globalLogger = FromSettings(cfg)
}

// GetLogger returns the global logger, initializing a JSON info-level
// logger when none has been configured.
func GetLogger() *Logger {
	if globalLogger == nil {
		globalLogger = NewLogger(LoggerConfig{Level: config.LogLevelInfo, Format: "json"})
	}
	return globalLogger
}

// Debug logs a debug message using the global logger.
func Debug(msg string) { GetLogger().Debug(msg) }

// Debugf logs a formatted debug message using the global logger.
func Debugf(format string, args ...any) { GetLogger().Debugf(format, args...) }

// Info logs an info message using the global logger.
func Info(msg string) { GetLogger().Info(msg) }

// Infof logs a formatted info message using the global logger.
func Infof(format string, args ...any) { GetLogger().Infof(format, args...) }

// Warn logs a warning message using the global logger.
func Warn(msg string) { GetLogger().Warn(msg) }

// Warnf logs a formatted warning message using the global logger.
func Warnf(format string, args ...any) { GetLogger().Warnf(format, args...) }

// Error logs an error message using the global logger.
func Error(msg string) { GetLogger().Error(msg) }

// Errorf logs a formatted error message using the global logger.
func Errorf(format string, args ...any) { GetLogger().Errorf(format, args...) }

// ErrorWithErr logs an error with the error object using the global logger.
func ErrorWithErr(msg string, err error) { GetLogger().ErrorWithErr(msg, err) }
