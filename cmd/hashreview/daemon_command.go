package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"hashreview/internal/daemon"
	"hashreview/internal/logging"
	"hashreview/internal/preflight"
	"hashreview/internal/queue"
	"hashreview/internal/simindex"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the hashreview daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			results := preflight.RunAll(runCtx, cfg)
			if !preflight.AllPassed(results) {
				var failed []string
				for _, result := range results {
					if !result.Passed {
						failed = append(failed, fmt.Sprintf("%s: %s", result.Name, result.Detail))
					}
				}
				return fmt.Errorf("preflight failed:\n  %s", strings.Join(failed, "\n  "))
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			index, err := simindex.Open(cfg)
			if err != nil {
				store.Close()
				return err
			}

			d, err := daemon.New(cfg, store, index, logger)
			if err != nil {
				store.Close()
				index.Close()
				return err
			}
			defer d.Close()

			if err := d.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon listening on %s (Ctrl-C to stop)\n", d.APIAddr())

			<-runCtx.Done()
			return nil
		},
	}
}
