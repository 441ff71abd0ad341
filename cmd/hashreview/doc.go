// Package main hosts the hashreview CLI entrypoint and command graph.
//
// The Cobra-based command tree covers queue maintenance, the interactive
// review loop, match-distance interpretation, similarity-index management,
// daemon supervision, and configuration scaffolding. It centralizes
// configuration resolution and store lifecycle so subcommands can focus on
// user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
