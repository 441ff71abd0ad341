// Package simindex maintains a SQLite-backed fingerprint index and answers
// nearest-neighbor queries over it. Entries are append-only; queries compute
// Hamming distance for perceptual fingerprints and exact equality for
// cryptographic digests, returning matches ordered by ascending distance with
// insertion order breaking ties.
package simindex
