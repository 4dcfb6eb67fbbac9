/*
PURPOSE:
  Provides the structured logger for Perf Modeler.
  Wraps slog for consistent output.

REQUIREMENTS:
  User-specified:
  - "Sane" CLI output. Warnings name the function or operation they concern.

  Implementation-discovered:
  - Level and format come from config (log.level, log.format).
  - Each run is tagged with a run_id so interleaved logs can be told apart.

ARCHITECTURE INTEGRATION:
  - Used everywhere.

ERROR HANDLING:
  - Unknown level/format strings are rejected by Configure.

IMPLEMENTATION RULES:
  - Use `log/slog` (Go 1.21+).

USAGE:
  output.Logger.Info("message", "key", "value")
*/

package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

var Logger *slog.Logger

func init() {
	Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// SetLogger allows overriding the default logger (e.g. for testing or config changes)
func SetLogger(l *slog.Logger) {
	Logger = l
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// Configure installs a text or json handler on w at the given level and
// returns the run id attached to every record.
func Configure(level, format string, w io.Writer) (string, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return "", err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return "", fmt.Errorf("invalid log format %q (want text or json)", format)
	}

	runID := uuid.NewString()
	SetLogger(slog.New(h).With("run_id", runID))
	return runID, nil
}
