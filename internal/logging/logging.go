// Package logging configures zerolog for the server and keeps recent output
// in memory for the /logs endpoint.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. Output also goes to buf when it is non-nil.
func New(level, format string, buf *LogBuffer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	if buf != nil {
		// The buffer always stores JSON lines so /logs stays machine readable.
		out = zerolog.MultiLevelWriter(out, buf)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Nop is a disabled logger for tests and optional collaborators
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
