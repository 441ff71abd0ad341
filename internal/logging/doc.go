// Package logging builds the slog loggers used across the CLI and daemon.
// It offers a console handler for interactive use, the stdlib JSON handler
// for machine consumption, attr helper aliases, and context-derived fields
// (task ID, queue, correlation ID) so log call sites stay uniform.
package logging
