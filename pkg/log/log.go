package log

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Global logger instance.  Other packages should use log.Logger with
// additional context fields rather than importing zerolog directly.
var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// SetLevel reconfigures the global logger from a level name ("debug", "info",
// "warn", "error").  Unknown names fall back to info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	Logger = Logger.Level(lvl)
}
