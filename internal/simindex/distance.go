package simindex

import (
	"encoding/hex"
	"fmt"
	"math/bits"
	"strings"
)

// normalizeFingerprint validates a hex fingerprint and returns its canonical
// lowercase form.
func normalizeFingerprint(fingerprint string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(fingerprint))
	if cleaned == "" {
		return "", fmt.Errorf("empty fingerprint")
	}
	if len(cleaned)%2 != 0 {
		return "", fmt.Errorf("fingerprint %q has odd hex length", fingerprint)
	}
	if _, err := hex.DecodeString(cleaned); err != nil {
		return "", fmt.Errorf("fingerprint %q is not hex: %w", fingerprint, err)
	}
	return cleaned, nil
}

// hammingDistance counts differing bits between two equal-length hex
// fingerprints. Length mismatches are incomparable and report ok=false.
func hammingDistance(a, b string) (int, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	rawA, errA := hex.DecodeString(a)
	rawB, errB := hex.DecodeString(b)
	if errA != nil || errB != nil {
		return 0, false
	}
	distance := 0
	for i := range rawA {
		distance += bits.OnesCount8(rawA[i] ^ rawB[i])
	}
	return distance, true
}
