package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"hashreview/internal/api"
	"hashreview/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show readiness checks and daemon state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, "Preflight:")
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, result := range results {
				kind := statusError
				if result.Passed {
					kind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			fmt.Fprintln(out, "Daemon:")
			status, err := fetchDaemonStatus(cfg.Paths.APIBind)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running ("+cfg.Paths.APIBind+")", colorize))
				return nil
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
			fmt.Fprintln(out, renderStatusLine("Tasks", statusInfo, fmt.Sprintf("%d total", status.TotalTasks), colorize))
			fmt.Fprintln(out, renderStatusLine("Queue database", statusInfo, status.QueueDBPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Index database", statusInfo, status.IndexDBPath, colorize))
			return nil
		},
	}
}

func fetchDaemonStatus(bind string) (*api.DaemonStatus, error) {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("http://" + bind + "/api/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon status: http %d", resp.StatusCode)
	}

	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}
