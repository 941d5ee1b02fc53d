package internal

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var (
	logLevel = new(slog.LevelVar)

	loggerMux sync.RWMutex
	rootLog   *slog.Logger
)

// SetLogger replaces the logger used by every telemetry instance
// created afterwards.
func SetLogger(logger *slog.Logger) {
	loggerMux.Lock()
	defer loggerMux.Unlock()

	rootLog = logger
}

// SetLogLevel sets the minimum level of the default console logger.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

func getLogger() *slog.Logger {
	loggerMux.RLock()
	logger := rootLog
	loggerMux.RUnlock()

	if logger != nil {
		return logger
	}

	loggerMux.Lock()
	defer loggerMux.Unlock()

	if rootLog == nil {
		rootLog = newDefaultLogger()
	}

	return rootLog
}

func newDefaultLogger() *slog.Logger {
	out := os.Stderr

	console := tint.NewHandler(colorable.NewColorable(out), &tint.Options{
		Level:      logLevel,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(out.Fd()),
	})

	bridge := otelslog.NewHandler(instrumentationName)

	return slog.New(&fanOutHandler{
		handlers: []slog.Handler{console, &leveledHandler{Handler: bridge}},
	})
}

// leveledHandler applies the shared log level to a handler
// that has no level option on its own.
type leveledHandler struct {
	slog.Handler
}

func (h *leveledHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= logLevel.Level() && h.Handler.Enabled(ctx, level)
}

func (h *leveledHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveledHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *leveledHandler) WithGroup(name string) slog.Handler {
	return &leveledHandler{Handler: h.Handler.WithGroup(name)}
}

// fanOutHandler forwards every record to all the handlers that accept it.
type fanOutHandler struct {
	handlers []slog.Handler
}

func (h *fanOutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (h *fanOutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error

	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}

		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (h *fanOutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		handlers = append(handlers, handler.WithAttrs(attrs))
	}

	return &fanOutHandler{handlers: handlers}
}

func (h *fanOutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		handlers = append(handlers, handler.WithGroup(name))
	}

	return &fanOutHandler{handlers: handlers}
}
