package match

import "fmt"

// Tier is the confidence band assigned to a match distance.
type Tier string

const (
	TierExact    Tier = "exact"
	TierStrong   Tier = "strong"
	TierModerate Tier = "moderate"
	TierWeak     Tier = "weak"
	TierNone     Tier = "none"
)

// Status qualifies a verdict beyond its tier. StatusLicenseRequired and
// StatusDifferent are part of the wire contract and must round-trip verbatim.
type Status string

const (
	StatusOK              Status = "ok"
	StatusLicenseRequired Status = "license_required"
	StatusDifferent       Status = "different"
)

// DifferentSentinel is the wire value exact-match algorithms use for "known
// different". It renders as "Different", never as a numeric distance, and is
// distinct from the ordinary no-match distance of 100.
const DifferentSentinel = -1

// Verdict is the interpretation of a single (algorithm, distance) pair.
type Verdict struct {
	Algorithm string
	Tier      Tier
	Status    Status
	Label     string
}

// Perceptual banding over [0,256] bit distance.
const (
	perceptualExactMax    = 10
	perceptualStrongMax   = 30
	perceptualModerateMax = 50
)

// Default banding over [0,100], shared by licensed and unknown families.
const (
	defaultExactMax    = 5
	defaultStrongMax   = 20
	defaultModerateMax = 40
)

// Interpreter classifies match distances. License keys are injected at
// construction; classification never consults ambient state.
type Interpreter struct {
	licenses map[string]string
}

// NewInterpreter builds an Interpreter with per-algorithm license keys.
// Algorithms absent from the map are treated as unlicensed.
func NewInterpreter(licenses map[string]string) *Interpreter {
	cleaned := make(map[string]string, len(licenses))
	for algorithm, key := range licenses {
		if key != "" {
			cleaned[FamilyFor(algorithm).Name] = key
		}
	}
	return &Interpreter{licenses: cleaned}
}

// Classify interprets a distance under the named algorithm's family. It is a
// total pure function: every (algorithm, distance) pair yields a Verdict.
func (i *Interpreter) Classify(algorithm string, distance float64) Verdict {
	family := FamilyFor(algorithm)
	verdict := Verdict{Algorithm: family.Name}

	switch family.Kind {
	case KindPerceptual:
		verdict.Status = StatusOK
		verdict.Tier = perceptualTier(distance)
		verdict.Label = tierLabel(verdict.Tier, family.Name, distance)
	case KindCryptoExact:
		switch {
		case distance == DifferentSentinel:
			verdict.Status = StatusDifferent
			verdict.Tier = TierNone
			verdict.Label = "Different"
		case distance == 0:
			verdict.Status = StatusOK
			verdict.Tier = TierExact
			verdict.Label = tierLabel(TierExact, family.Name, distance)
		default:
			verdict.Status = StatusOK
			verdict.Tier = TierNone
			verdict.Label = tierLabel(TierNone, family.Name, distance)
		}
	case KindLicensed:
		if _, ok := i.licenses[family.Name]; !ok {
			verdict.Status = StatusLicenseRequired
			verdict.Tier = TierNone
			verdict.Label = DisplayName(family.Name) + " license required"
			return verdict
		}
		verdict.Status = StatusOK
		verdict.Tier = defaultTier(distance)
		verdict.Label = tierLabel(verdict.Tier, family.Name, distance)
	case KindUnknown:
		verdict.Status = StatusOK
		verdict.Tier = defaultTier(distance)
		verdict.Label = tierLabel(verdict.Tier, family.Name, distance)
	}
	return verdict
}

// Licensed reports whether the interpreter holds a key for the algorithm.
func (i *Interpreter) Licensed(algorithm string) bool {
	_, ok := i.licenses[FamilyFor(algorithm).Name]
	return ok
}

// ConfidenceLevel maps a tier to the queue confidence buckets used when
// enqueueing review tasks.
func ConfidenceLevel(tier Tier) string {
	switch tier {
	case TierExact, TierStrong:
		return "high"
	case TierModerate:
		return "medium"
	default:
		return "low"
	}
}

func perceptualTier(distance float64) Tier {
	switch {
	case distance <= perceptualExactMax:
		return TierExact
	case distance <= perceptualStrongMax:
		return TierStrong
	case distance <= perceptualModerateMax:
		return TierModerate
	default:
		return TierWeak
	}
}

func defaultTier(distance float64) Tier {
	switch {
	case distance <= defaultExactMax:
		return TierExact
	case distance <= defaultStrongMax:
		return TierStrong
	case distance <= defaultModerateMax:
		return TierModerate
	default:
		return TierWeak
	}
}

func tierLabel(tier Tier, algorithm string, distance float64) string {
	display := DisplayName(algorithm)
	switch tier {
	case TierExact:
		return fmt.Sprintf("%s exact match", display)
	case TierStrong:
		return fmt.Sprintf("%s strong match (distance %s)", display, formatDistance(distance))
	case TierModerate:
		return fmt.Sprintf("%s moderate match (distance %s)", display, formatDistance(distance))
	case TierWeak:
		return fmt.Sprintf("%s weak match (distance %s)", display, formatDistance(distance))
	default:
		return fmt.Sprintf("%s no match", display)
	}
}

func formatDistance(distance float64) string {
	if distance == float64(int64(distance)) {
		return fmt.Sprintf("%d", int64(distance))
	}
	return fmt.Sprintf("%.2f", distance)
}
