package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return fmt.Errorf("config: log_dir is required")
	}
	if bind := strings.TrimSpace(c.Paths.APIBind); bind != "" {
		if _, _, err := net.SplitHostPort(bind); err != nil {
			return fmt.Errorf("config: api_bind %q is not host:port: %w", bind, err)
		}
	}
	if base := strings.TrimSpace(c.Hasher.BaseURL); base != "" {
		parsed, err := url.Parse(base)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("config: hasher base_url %q is not an absolute URL", base)
		}
	}
	if len(c.Queues.ContentCategories) == 0 {
		return fmt.Errorf("config: at least one content category is required")
	}
	if len(c.Queues.HashAlgorithms) == 0 {
		return fmt.Errorf("config: at least one hash algorithm is required")
	}
	if len(c.Queues.ConfidenceLevels) == 0 {
		return fmt.Errorf("config: at least one confidence level is required")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: log format %q is not supported (console, json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log level %q is not supported (debug, info, warn, error)", c.Logging.Level)
	}
	return nil
}
