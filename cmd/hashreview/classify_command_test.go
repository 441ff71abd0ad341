package main

import "testing"

func TestClassifyPerceptual(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, configPath, "classify", "pdq", "8")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	requireContains(t, out, "PDQ exact match")
	requireContains(t, out, "Confidence: high")
}

func TestClassifyDifferentSentinel(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, configPath, "classify", "md5", "--", "-1")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	requireContains(t, out, "Different")
}

func TestClassifyLicenseRequired(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, configPath, "classify", "photodna", "3")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	requireContains(t, out, "PhotoDNA license required")
}
