package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"hashreview/internal/match"
	"hashreview/internal/services/hasher"
)

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <algorithm> <distance>",
		Short: "Interpret a match distance",
		Long: "Interprets a raw match distance under the named algorithm's family. " +
			"A distance of -1 means the service reported the images as known different.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			distance, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid distance %q", args[1])
			}

			cfg := ctx.configValue()
			interp := match.NewInterpreter(cfg.LicenseKeys())
			verdict := interp.Classify(args[0], distance)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Algorithm:  %s\n", match.DisplayName(verdict.Algorithm))
			fmt.Fprintf(out, "Verdict:    %s\n", verdict.Label)
			fmt.Fprintf(out, "Tier:       %s\n", verdict.Tier)
			fmt.Fprintf(out, "Status:     %s\n", verdict.Status)
			if verdict.Status == match.StatusOK {
				fmt.Fprintf(out, "Confidence: %s\n", match.ConfidenceLevel(verdict.Tier))
			}
			return nil
		},
	}
}

func newCompareCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <image1> <image2>",
		Short: "Compare two images via the hashing service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg.Hasher.DemoMode {
				return fmt.Errorf("compare requires the hashing service; disable demo_mode in the config")
			}

			image1, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			image2, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}

			client := hasher.NewClient(hasher.Config{
				BaseURL:        cfg.Hasher.BaseURL,
				TimeoutSeconds: cfg.Hasher.TimeoutSeconds,
			})
			result, err := client.Compare(cmd.Context(), image1, image2)
			if err != nil {
				return err
			}

			interp := match.NewInterpreter(cfg.LicenseKeys())
			algorithms := make([]string, 0, len(result.Results))
			for algorithm := range result.Results {
				algorithms = append(algorithms, algorithm)
			}
			sort.Strings(algorithms)

			rows := make([][]string, 0, len(algorithms))
			for _, algorithm := range algorithms {
				algResult := result.Results[algorithm]
				if algResult.Error != "" {
					rows = append(rows, []string{match.DisplayName(algorithm), "-", "error: " + algResult.Error})
					continue
				}
				verdict := interp.Classify(algorithm, algResult.Distance)
				rows = append(rows, []string{
					match.DisplayName(algorithm),
					renderDistance(algResult.Distance),
					verdict.Label,
				})
			}

			table := renderTable(
				[]string{"Algorithm", "Distance", "Interpretation"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

// renderDistance keeps the "known different" sentinel out of numeric output.
func renderDistance(distance float64) string {
	if distance == match.DifferentSentinel {
		return "Different"
	}
	return formatMatchDistance(distance)
}
