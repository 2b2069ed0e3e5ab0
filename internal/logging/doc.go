// Package logging assembles structured slog loggers and formatting helpers used
// across medialog.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with run IDs, image names, node paths, and engine names. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
