package config

import (
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return err
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)

	c.Hasher.BaseURL = strings.TrimRight(strings.TrimSpace(c.Hasher.BaseURL), "/")
	if c.Hasher.TimeoutSeconds <= 0 {
		c.Hasher.TimeoutSeconds = defaultHasherTimeout
	}

	c.Licenses.PhotoDNAKey = strings.TrimSpace(c.Licenses.PhotoDNAKey)
	c.Licenses.NetCleanKey = strings.TrimSpace(c.Licenses.NetCleanKey)

	c.Queues.ContentCategories = normalizeSet(c.Queues.ContentCategories, defaultContentCategories())
	c.Queues.HashAlgorithms = normalizeSet(c.Queues.HashAlgorithms, defaultHashAlgorithms())
	c.Queues.ConfidenceLevels = normalizeSet(c.Queues.ConfidenceLevels, defaultConfidenceLevels())

	if c.Review.SimilarityThreshold <= 0 {
		c.Review.SimilarityThreshold = defaultSimilarityThreshold
	}
	if c.Review.SimilarLimit <= 0 {
		c.Review.SimilarLimit = defaultSimilarLimit
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// normalizeSet lowercases, trims, and de-duplicates while preserving order.
// An empty input falls back to the provided defaults.
func normalizeSet(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		cleaned := strings.ToLower(strings.TrimSpace(value))
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, cleaned)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
