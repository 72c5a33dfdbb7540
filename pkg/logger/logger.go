package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the service-wide structured logger
type Logger struct {
	zerolog.Logger
}

// New writes to stdout at the given level. Unknown or empty levels mean info.
func New(serviceName, environment, level string) *Logger {
	l := NewWithWriter(serviceName, environment, os.Stdout)
	return &Logger{Logger: l.Level(parseLevel(level))}
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewWithWriter logs everything to w. Development output is human readable.
func NewWithWriter(serviceName, environment string, w io.Writer) *Logger {
	out := w
	if environment == "development" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return &Logger{Logger: zerolog.New(out).With().
		Timestamp().
		Str("service", serviceName).
		Str("env", environment).
		Logger()}
}

func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

func (l *Logger) with(key, value string) *Logger {
	return &Logger{Logger: l.Logger.With().Str(key, value).Logger()}
}

func (l *Logger) WithRequestID(requestID string) *Logger { return l.with("request_id", requestID) }

func (l *Logger) WithUserID(userID string) *Logger { return l.with("user_id", userID) }

// WithComponent tags lines with the subsystem emitting them (engine, scheduler, consumer...)
func (l *Logger) WithComponent(component string) *Logger { return l.with("component", component) }

// WithAlert scopes a logger to one alert
func (l *Logger) WithAlert(alertID, kind string) *Logger {
	return &Logger{Logger: l.Logger.With().Str("alert_id", alertID).Str("kind", kind).Logger()}
}

func (l *Logger) WithProduct(productID string) *Logger { return l.with("product_id", productID) }
