// Package daemon hosts the long-running hashreview process. It owns the
// queue store and similarity index, enforces single-instance execution
// through a lock file in the data directory, and serves the HTTP API that
// the CLI and external tools talk to.
package daemon
