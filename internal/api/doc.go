// Package api defines the transport DTOs shared by the daemon's HTTP surface
// and the CLI, plus thin service facades that convert queue records into
// them. Field names are camelCase to match the REST payloads.
package api
