package pbuffer

import (
	"log/slog"

	"github.com/FerroO2000/pbuffer/internal"
)

// SetLogger replaces the logger of the buffers created afterwards.
// By default records go to a console handler on stderr and
// to the OpenTelemetry log bridge.
func SetLogger(logger *slog.Logger) {
	internal.SetLogger(logger)
}

// SetLogLevel sets the minimum level of the default logger.
func SetLogLevel(level slog.Level) {
	internal.SetLogLevel(level)
}
