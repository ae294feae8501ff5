// Package logging assembles structured slog loggers and formatting helpers used
// across imagearchive.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so catalog code can tag log lines
// with a per-run correlation ID. Recoverable per-file problems are reported via
// WarnWithContext, which guarantees every warning names its event type, a hint
// for the operator, and the impact on the resulting catalog. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
