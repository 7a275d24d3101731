package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler sends every record to the console handler and to the log file
// mirrors. Each target keeps its own level.
type teeHandler struct {
	targets []slog.Handler
}

// TeeHandler duplicates records across handlers. Nil handlers are skipped; a
// single remaining handler is returned as is.
func TeeHandler(handlers ...slog.Handler) slog.Handler {
	var targets []slog.Handler
	for _, h := range handlers {
		if h != nil {
			targets = append(targets, h)
		}
	}
	switch len(targets) {
	case 0:
		return NoopHandler{}
	case 1:
		return targets[0]
	}
	return &teeHandler{targets: targets}
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.targets {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes to every enabled target and joins their errors.
func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t.targets {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return t
	}
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t *teeHandler) derive(fn func(slog.Handler) slog.Handler) *teeHandler {
	next := make([]slog.Handler, len(t.targets))
	for i, h := range t.targets {
		next[i] = fn(h)
	}
	return &teeHandler{targets: next}
}
