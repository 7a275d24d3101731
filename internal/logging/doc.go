// Package logging assembles structured slog loggers and formatting helpers used
// across subalign.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so worker and HTTP code tag log
// lines with task IDs, stages, and request IDs automatically. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
