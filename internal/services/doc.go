// Package services defines shared utilities consumed by the stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp deposit UUIDs, stage names, and sweep
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify
//     failures as retryable or permanent by their origin.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the
// pipeline.
package services
