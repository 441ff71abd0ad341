// Package match interprets hash match distances. Each algorithm belongs to a
// closed family (perceptual, cryptographic exact-match, licensed, unknown)
// with its own distance scale, and Classify turns an (algorithm, distance)
// pair into a confidence tier plus a human-readable verdict.
//
// The -1 sentinel on cryptographic algorithms means "known different" and
// renders as "Different"; it is part of the wire contract, as is the
// license_required status for PhotoDNA/NetClean without a configured key.
package match
