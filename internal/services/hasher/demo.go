package hasher

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// Matcher is the slice of the hashing service the review flow depends on.
// Client implements it against the live service; Demo implements it locally
// so sessions can degrade without the service running.
type Matcher interface {
	FindNearest(ctx context.Context, probe Probe, algorithm string, threshold float64) ([]NearestMatch, error)
	RandomHash(ctx context.Context) (*RandomHash, error)
}

var (
	_ Matcher = (*Client)(nil)
	_ Matcher = (*Demo)(nil)
)

// Demo produces deterministic stand-in match data. Results derive from the
// probe alone, so repeated calls agree and tests stay stable.
type Demo struct{}

// NewDemo returns the demo data source.
func NewDemo() *Demo {
	return &Demo{}
}

// demoNeighborCount bounds how many fabricated neighbors a probe yields.
const demoNeighborCount = 3

// FindNearest fabricates nearby reference entries for the probe. Distances
// step away from near-exact so the interpretation tiers vary in demos.
func (d *Demo) FindNearest(_ context.Context, probe Probe, algorithm string, threshold float64) ([]NearestMatch, error) {
	if err := probe.validate(); err != nil {
		return nil, err
	}

	seed := demoSeed(probe)
	matches := make([]NearestMatch, 0, demoNeighborCount)
	for i := 0; i < demoNeighborCount; i++ {
		distance := float64(seed%8) + float64(i)*14
		if threshold > 0 && distance > threshold {
			break
		}
		matches = append(matches, NearestMatch{
			ID:       fmt.Sprintf("demo-ref-%03d", (seed+uint64(i)*37)%1000),
			Distance: distance,
			Metadata: map[string]string{
				"source":    "demo",
				"algorithm": algorithm,
			},
		})
	}
	return matches, nil
}

// RandomHash fabricates a 256-bit fingerprint.
func (d *Demo) RandomHash(context.Context) (*RandomHash, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte("hashreview-demo"))
	digest := h.Sum(nil)
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = digest[i%len(digest)] ^ byte(i*13)
	}
	return &RandomHash{Hash: hex.EncodeToString(raw)}, nil
}

func demoSeed(probe Probe) uint64 {
	h := fnv.New64a()
	switch {
	case len(probe.Image) > 0:
		_, _ = h.Write(probe.Image)
	case probe.Base64Image != "":
		_, _ = h.Write([]byte(probe.Base64Image))
	default:
		_, _ = h.Write([]byte(probe.HashValue))
	}
	return h.Sum64()
}
