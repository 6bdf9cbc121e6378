package logger

import (
	"log/slog"
	"os"
)

// New returns the service-wide structured logger. JSON output keeps audit
// lines machine-parseable.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
