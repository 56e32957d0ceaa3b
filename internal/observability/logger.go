package observability

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the process logger: console output with
// RFC3339 timestamps, tagged with the app name. The level comes from
// FIELDCTL_LOG_LEVEL (trace|debug|info|warn|error); unset or
// unparseable values fall back to info.
func InitLogger(app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).
		Level(logLevel()).
		With().
		Timestamp().
		Str("app", app).
		Logger()
	log.Logger = logger
	return logger
}

func logLevel() zerolog.Level {
	raw := strings.TrimSpace(os.Getenv("FIELDCTL_LOG_LEVEL"))
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
