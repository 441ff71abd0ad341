package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"hashreview/internal/config"
	"hashreview/internal/queue"
	"hashreview/internal/services/hasher"
	"hashreview/internal/simindex"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) withStore(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func (c *commandContext) withIndex(fn func(*config.Config, *simindex.Index) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	index, err := simindex.Open(cfg)
	if err != nil {
		return err
	}
	defer index.Close()
	return fn(cfg, index)
}

// buildMatcher picks the match source for the current configuration. Demo
// mode substitutes deterministic local evidence for the hashing service.
func buildMatcher(cfg *config.Config) hasher.Matcher {
	if cfg.Hasher.DemoMode {
		return hasher.NewDemo()
	}
	return hasher.NewClient(hasher.Config{
		BaseURL:        cfg.Hasher.BaseURL,
		TimeoutSeconds: cfg.Hasher.TimeoutSeconds,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
