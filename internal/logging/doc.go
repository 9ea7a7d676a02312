// Package logging builds the slog loggers used by every binary.
//
// Text output goes through a colorized handler ("15:04:05 INF msg key=value");
// JSON output uses slog's JSON handler unchanged. Components tag their logs
// with logger.With("component", name).
package logging
