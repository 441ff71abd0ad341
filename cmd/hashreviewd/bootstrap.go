package main

import (
	"context"
	"fmt"
	"log/slog"

	"hashreview/internal/config"
	"hashreview/internal/daemon"
	"hashreview/internal/logging"
	"hashreview/internal/preflight"
	"hashreview/internal/queue"
	"hashreview/internal/simindex"
)

// bootstrap runs the preflight gate and assembles the daemon with its stores.
func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}
	if !preflight.AllPassed(results) {
		return nil, fmt.Errorf("preflight checks failed")
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	index, err := simindex.Open(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open similarity index: %w", err)
	}

	d, err := daemon.New(cfg, store, index, logger)
	if err != nil {
		store.Close()
		index.Close()
		return nil, err
	}
	return d, nil
}
