// Package preflight provides readiness checks for the filesystem paths and
// external services hashreview depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to serve when the data
//     directory is unusable.
//   - The CLI "hashreview status" command uses them to display health.
//
// The hashing-service check is skipped in demo mode, where sessions run on
// local demo evidence.
package preflight
