package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Hasher contains configuration for the external hashing/matching service.
type Hasher struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DemoMode       bool   `toml:"demo_mode"`
}

// Licenses holds keys for licensed hash algorithm families. An empty key means
// the corresponding algorithm classifies as license_required rather than
// producing a similarity verdict.
type Licenses struct {
	PhotoDNAKey string `toml:"photodna_key"`
	NetCleanKey string `toml:"netclean_key"`
}

// Queues contains the closed value sets review tasks are validated against.
type Queues struct {
	ContentCategories []string `toml:"content_categories"`
	HashAlgorithms    []string `toml:"hash_algorithms"`
	ConfidenceLevels  []string `toml:"confidence_levels"`
}

// Review contains session tuning for the review loop.
type Review struct {
	// SimilarityThreshold is the inclusive upper distance bound used when a
	// presented task's image is probed against the similarity index.
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	// SimilarLimit caps the number of similar entries attached to a task.
	SimilarLimit int `toml:"similar_limit"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for hashreview.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and the daemon API bind address
//   - Hasher: external hashing service endpoint and demo-mode switch
//   - Licenses: keys for licensed hash families (PhotoDNA, NetClean)
//   - Queues: allowed categories, algorithms, and confidence levels
//   - Review: similarity probe tuning for the review session
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Hasher   Hasher   `toml:"hasher"`
	Licenses Licenses `toml:"licenses"`
	Queues   Queues   `toml:"queues"`
	Review   Review   `toml:"review"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/hashreview/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("hashreview.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the SQLite database path backing the task queue.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// IndexDBPath returns the SQLite database path backing the similarity index.
func (c *Config) IndexDBPath() string {
	return filepath.Join(c.Paths.DataDir, "index.db")
}

// LockFilePath returns the daemon singleton lock file location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "hashreviewd.lock")
}

// LicenseKey returns the configured key for a licensed algorithm, or "" when
// the algorithm is unlicensed or unknown.
func (c *Config) LicenseKey(algorithm string) string {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "photodna":
		return strings.TrimSpace(c.Licenses.PhotoDNAKey)
	case "netclean":
		return strings.TrimSpace(c.Licenses.NetCleanKey)
	default:
		return ""
	}
}

// LicenseKeys returns the configured license keys by algorithm, omitting
// empty entries.
func (c *Config) LicenseKeys() map[string]string {
	keys := make(map[string]string, 2)
	if key := strings.TrimSpace(c.Licenses.PhotoDNAKey); key != "" {
		keys["photodna"] = key
	}
	if key := strings.TrimSpace(c.Licenses.NetCleanKey); key != "" {
		keys["netclean"] = key
	}
	return keys
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
