package match_test

import (
	"strings"
	"testing"

	"hashreview/internal/match"
)

func newLicensed(t *testing.T) *match.Interpreter {
	t.Helper()
	return match.NewInterpreter(map[string]string{
		"photodna": "key-pdna",
		"netclean": "key-nc",
	})
}

func TestClassifyPerceptualBands(t *testing.T) {
	interp := match.NewInterpreter(nil)
	cases := []struct {
		distance float64
		tier     match.Tier
	}{
		{0, match.TierExact},
		{10, match.TierExact},
		{10.5, match.TierStrong},
		{30, match.TierStrong},
		{31, match.TierModerate},
		{50, match.TierModerate},
		{51, match.TierWeak},
		{256, match.TierWeak},
	}
	for _, tc := range cases {
		verdict := interp.Classify("pdq", tc.distance)
		if verdict.Tier != tc.tier {
			t.Fatalf("pdq distance %v: expected tier %s, got %s", tc.distance, tc.tier, verdict.Tier)
		}
		if verdict.Status != match.StatusOK {
			t.Fatalf("pdq distance %v: expected ok status, got %s", tc.distance, verdict.Status)
		}
	}
}

func TestClassifyCryptoBinary(t *testing.T) {
	interp := match.NewInterpreter(nil)
	for _, algorithm := range []string{"md5", "sha1"} {
		if verdict := interp.Classify(algorithm, 0); verdict.Tier != match.TierExact {
			t.Fatalf("%s distance 0: expected exact, got %s", algorithm, verdict.Tier)
		}
		if verdict := interp.Classify(algorithm, 100); verdict.Tier != match.TierNone {
			t.Fatalf("%s distance 100: expected none, got %s", algorithm, verdict.Tier)
		}
		// No intermediate tiers regardless of value.
		for _, distance := range []float64{1, 5, 42, 99} {
			if verdict := interp.Classify(algorithm, distance); verdict.Tier != match.TierNone {
				t.Fatalf("%s distance %v: expected none, got %s", algorithm, distance, verdict.Tier)
			}
		}
	}
}

func TestClassifyDifferentSentinel(t *testing.T) {
	interp := match.NewInterpreter(nil)
	verdict := interp.Classify("md5", match.DifferentSentinel)
	if verdict.Status != match.StatusDifferent {
		t.Fatalf("expected different status, got %s", verdict.Status)
	}
	if verdict.Label != "Different" {
		t.Fatalf("expected label %q, got %q", "Different", verdict.Label)
	}
	if verdict.Tier != match.TierNone {
		t.Fatalf("expected tier none, got %s", verdict.Tier)
	}
}

func TestClassifyLicensedRequiresKey(t *testing.T) {
	unlicensed := match.NewInterpreter(nil)
	for _, algorithm := range []string{"photodna", "netclean"} {
		verdict := unlicensed.Classify(algorithm, 3)
		if verdict.Status != match.StatusLicenseRequired {
			t.Fatalf("%s without key: expected license_required, got %s", algorithm, verdict.Status)
		}
		if verdict.Tier != match.TierNone {
			t.Fatalf("%s without key: expected tier none, got %s", algorithm, verdict.Tier)
		}
		if !strings.Contains(verdict.Label, "license required") {
			t.Fatalf("%s without key: unexpected label %q", algorithm, verdict.Label)
		}
	}

	licensed := newLicensed(t)
	cases := []struct {
		distance float64
		tier     match.Tier
	}{
		{0, match.TierExact},
		{5, match.TierExact},
		{6, match.TierStrong},
		{20, match.TierStrong},
		{21, match.TierModerate},
		{40, match.TierModerate},
		{41, match.TierWeak},
		{100, match.TierWeak},
	}
	for _, tc := range cases {
		verdict := licensed.Classify("photodna", tc.distance)
		if verdict.Status != match.StatusOK {
			t.Fatalf("photodna distance %v: expected ok, got %s", tc.distance, verdict.Status)
		}
		if verdict.Tier != tc.tier {
			t.Fatalf("photodna distance %v: expected %s, got %s", tc.distance, tc.tier, verdict.Tier)
		}
	}
}

func TestClassifyUnknownFallsBack(t *testing.T) {
	interp := match.NewInterpreter(nil)
	verdict := interp.Classify("quadhash", 15)
	if verdict.Tier != match.TierStrong {
		t.Fatalf("expected strong for unknown algorithm at 15, got %s", verdict.Tier)
	}
	if verdict.Status != match.StatusOK {
		t.Fatalf("expected ok status for unknown algorithm, got %s", verdict.Status)
	}
}

// Classification is total and tiers only get weaker as distance grows.
func TestClassifyMonotonicity(t *testing.T) {
	rank := map[match.Tier]int{
		match.TierExact:    4,
		match.TierStrong:   3,
		match.TierModerate: 2,
		match.TierWeak:     1,
		match.TierNone:     0,
	}
	interp := newLicensed(t)
	domains := map[string]float64{
		"pdq":      256,
		"photodna": 100,
		"quadhash": 100,
	}
	for algorithm, max := range domains {
		prev := rank[match.TierExact]
		for d := 0.0; d <= max; d++ {
			verdict := interp.Classify(algorithm, d)
			current := rank[verdict.Tier]
			if current > prev {
				t.Fatalf("%s: tier improved from rank %d to %d at distance %v", algorithm, prev, current, d)
			}
			prev = current
		}
	}
}

func TestFamilyFor(t *testing.T) {
	cases := []struct {
		algorithm string
		kind      match.Kind
	}{
		{"pdq", match.KindPerceptual},
		{"PDQ", match.KindPerceptual},
		{"md5", match.KindCryptoExact},
		{"sha1", match.KindCryptoExact},
		{"photodna", match.KindLicensed},
		{"netclean", match.KindLicensed},
		{"manual", match.KindUnknown},
		{"", match.KindUnknown},
	}
	for _, tc := range cases {
		if family := match.FamilyFor(tc.algorithm); family.Kind != tc.kind {
			t.Fatalf("FamilyFor(%q) = %v, want %v", tc.algorithm, family.Kind, tc.kind)
		}
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"pdq":      "PDQ",
		"photodna": "PhotoDNA",
		"netclean": "NetClean",
		"manual":   "Manual",
		"":         "Unknown",
	}
	for algorithm, want := range cases {
		if got := match.DisplayName(algorithm); got != want {
			t.Fatalf("DisplayName(%q) = %q, want %q", algorithm, got, want)
		}
	}
}

func TestConfidenceLevel(t *testing.T) {
	cases := map[match.Tier]string{
		match.TierExact:    "high",
		match.TierStrong:   "high",
		match.TierModerate: "medium",
		match.TierWeak:     "low",
		match.TierNone:     "low",
	}
	for tier, want := range cases {
		if got := match.ConfidenceLevel(tier); got != want {
			t.Fatalf("ConfidenceLevel(%s) = %q, want %q", tier, got, want)
		}
	}
}
