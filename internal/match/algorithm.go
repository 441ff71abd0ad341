package match

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind is the closed set of hash algorithm families. Distance semantics are
// family-dependent; adding a family means updating every switch over Kind.
type Kind int

const (
	// KindPerceptual covers similarity hashes with a [0,256] bit-distance
	// scale, such as PDQ.
	KindPerceptual Kind = iota
	// KindCryptoExact covers cryptographic digests where distance is binary:
	// 0 is a match, anything else is not.
	KindCryptoExact
	// KindLicensed covers proprietary hash families (PhotoDNA, NetClean)
	// that require a license key before any similarity verdict is produced.
	KindLicensed
	// KindUnknown covers unregistered algorithms, banded over [0,100].
	KindUnknown
)

// Family pairs a canonical algorithm name with its distance semantics.
type Family struct {
	Name string
	Kind Kind
}

var registry = map[string]Kind{
	"pdq":      KindPerceptual,
	"md5":      KindCryptoExact,
	"sha1":     KindCryptoExact,
	"photodna": KindLicensed,
	"netclean": KindLicensed,
}

var displayNames = map[string]string{
	"pdq":      "PDQ",
	"md5":      "MD5",
	"sha1":     "SHA1",
	"photodna": "PhotoDNA",
	"netclean": "NetClean",
}

// FamilyFor resolves an algorithm name to its family. Unregistered names
// resolve to KindUnknown rather than an error so classification stays total.
func FamilyFor(algorithm string) Family {
	name := strings.ToLower(strings.TrimSpace(algorithm))
	if kind, ok := registry[name]; ok {
		return Family{Name: name, Kind: kind}
	}
	return Family{Name: name, Kind: KindUnknown}
}

// IsExactMatchAlgorithm reports whether the algorithm only ever produces
// binary match/no-match distances.
func IsExactMatchAlgorithm(algorithm string) bool {
	return FamilyFor(algorithm).Kind == KindCryptoExact
}

// DisplayName renders an algorithm name for humans. Known initialisms keep
// their branding; anything else is title-cased.
func DisplayName(algorithm string) string {
	name := strings.ToLower(strings.TrimSpace(algorithm))
	if display, ok := displayNames[name]; ok {
		return display
	}
	if name == "" {
		return "Unknown"
	}
	return cases.Title(language.Und).String(name)
}
