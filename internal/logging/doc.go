// Package logging builds slog loggers from configuration and carries the
// standardized structured field names used across the pipeline.
package logging
