// Package hasher talks to the external hashing/matching HTTP service: image
// comparison, nearest-neighbor probes, random fingerprints, and similarity
// search. Transport failures surface as ErrUpstreamUnavailable so callers can
// degrade to the bundled demo data source instead of failing the session.
package hasher
