package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bluewatt/bluewatt-core/internal/infrastructure/config"
)

const serviceName = "bluewatt"

// Logger is the application-wide structured logger. It embeds *slog.Logger,
// so all the usual Info/Warn/Error methods are available directly, and every
// record carries the service name and version as default attributes.
//
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of the configuration.
// Format selects between JSON (default) and text handlers, Output between
// stdout (default) and stderr, and Level filters records below the
// configured threshold.
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(output(cfg.Output), cfg.Format, parseLevel(cfg.Level))

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// Default returns a JSON logger at info level on stdout, for use during
// startup before the configuration file has been read.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

// With returns a Logger that adds the given key-value pairs to every record.
// Components typically tag themselves once at construction:
//
//	log := logger.With("component", "mqtt")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func output(name string) io.Writer {
	if strings.ToLower(name) == "stderr" {
		return os.Stderr
	}
	return os.Stdout
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// parseLevel maps a configured level name to slog.Level. Unknown names
// fall back to info rather than failing startup.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
