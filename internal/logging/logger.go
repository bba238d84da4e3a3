// Package logging configures the process-wide zerolog logger and provides
// the cold-start summary logger shared by every pipeline Lambda.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger with configuration from environment variables.
//
// LOG_LEVEL controls the level: debug, info, warn, error (default: info).
// LOG_FORMAT=console switches to the human-readable writer (used by the CLI);
// anything else keeps JSON lines, which CloudWatch Logs Insights can query.
func Init() {
	InitWith(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Stderr)
}

// InitWith is Init with explicit settings and destination.
func InitWith(level, format string, out io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if strings.EqualFold(format, "console") {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level. Unknown values fall
// back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Redact shortens a sensitive value (presigned URL, webhook URL) so it can be
// logged without leaking credentials in the query string.
func Redact(s string) string {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i] + "?<redacted>"
	}
	if len(s) > 24 {
		return s[:24] + "..."
	}
	return s
}
