package testsupport

import (
	"path/filepath"
	"testing"

	"hashreview/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Hasher.DemoMode = true

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithHasherURL points the test config at a hashing service, typically an
// httptest server, and disables demo mode so the client is actually exercised.
func WithHasherURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Hasher.BaseURL = url
		b.cfg.Hasher.DemoMode = false
	}
}

// WithLicenseKeys sets license keys for the licensed hash families.
func WithLicenseKeys(photodna, netclean string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Licenses.PhotoDNAKey = photodna
		b.cfg.Licenses.NetCleanKey = netclean
	}
}

// WithSimilarityThreshold overrides the review similarity probe threshold.
func WithSimilarityThreshold(threshold float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Review.SimilarityThreshold = threshold
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
