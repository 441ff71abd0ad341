// Package services defines shared utilities consumed by the review session
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, queue names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     (not found, invalid state, upstream unavailable, validation, license
//     required) so callers can branch with errors.Is instead of string
//     matching.
//
// Use these helpers when wiring new collaborators so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
