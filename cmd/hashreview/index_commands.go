package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"hashreview/internal/config"
	"hashreview/internal/match"
	"hashreview/internal/simindex"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the local similarity index",
	}

	indexCmd.AddCommand(newIndexAddCommand(ctx))
	indexCmd.AddCommand(newIndexQueryCommand(ctx))
	indexCmd.AddCommand(newIndexRandomCommand(ctx))
	indexCmd.AddCommand(newIndexStatsCommand(ctx))

	return indexCmd
}

func newIndexAddCommand(ctx *commandContext) *cobra.Command {
	var sourceTag string
	var metaPairs []string

	cmd := &cobra.Command{
		Use:   "add <imageID> <algorithm> <fingerprint>",
		Short: "Add a reference fingerprint",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := parseMetaPairs(metaPairs)
			if err != nil {
				return err
			}
			return ctx.withIndex(func(cfg *config.Config, index *simindex.Index) error {
				entry, err := index.Add(cmd.Context(), simindex.NewEntry{
					ImageID:     args[0],
					Algorithm:   args[1],
					Fingerprint: args[2],
					SourceTag:   sourceTag,
					Metadata:    metadata,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s entry %d for image %s\n",
					match.DisplayName(entry.Algorithm), entry.ID, entry.ImageID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sourceTag, "source", "", "Origin tag for the entry")
	cmd.Flags().StringArrayVar(&metaPairs, "meta", nil, "Entry metadata as key=value (repeatable)")
	return cmd
}

func newIndexQueryCommand(ctx *commandContext) *cobra.Command {
	var threshold float64
	var limit int

	cmd := &cobra.Command{
		Use:   "query <algorithm> <fingerprint>",
		Short: "Find indexed entries near a fingerprint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withIndex(func(cfg *config.Config, index *simindex.Index) error {
				if threshold == 0 {
					threshold = cfg.Review.SimilarityThreshold
				}
				matches, err := index.Query(cmd.Context(), args[0], args[1], threshold, limit)
				if err != nil {
					return err
				}
				if len(matches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matches within threshold")
					return nil
				}

				rows := make([][]string, 0, len(matches))
				for _, hit := range matches {
					rows = append(rows, []string{
						hit.Entry.ImageID,
						formatMatchDistance(hit.Distance),
						hit.Entry.SourceTag,
						hit.Entry.Fingerprint,
					})
				}
				table := renderTable(
					[]string{"Image", "Distance", "Source", "Fingerprint"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Inclusive distance bound (defaults to config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of matches (0 = unlimited)")
	return cmd
}

func newIndexRandomCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "random <algorithm>",
		Short: "Pick a random indexed fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withIndex(func(cfg *config.Config, index *simindex.Index) error {
				has, err := index.HasEntries(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !has {
					fmt.Fprintf(cmd.OutOrStdout(), "No %s entries indexed\n", match.DisplayName(args[0]))
					return nil
				}
				entry, err := index.RandomEntry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if entry == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "No %s entries indexed\n", match.DisplayName(args[0]))
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (image %s)\n",
					match.DisplayName(entry.Algorithm), entry.Fingerprint, entry.ImageID)
				return nil
			})
		},
	}
}

func newIndexStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry counts per algorithm",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withIndex(func(cfg *config.Config, index *simindex.Index) error {
				counts, err := index.Count(cmd.Context())
				if err != nil {
					return err
				}
				if len(counts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Index is empty")
					return nil
				}

				algorithms := make([]string, 0, len(counts))
				for algorithm := range counts {
					algorithms = append(algorithms, algorithm)
				}
				sort.Strings(algorithms)

				rows := make([][]string, 0, len(algorithms))
				for _, algorithm := range algorithms {
					rows = append(rows, []string{
						match.DisplayName(algorithm),
						strconv.Itoa(counts[algorithm]),
					})
				}
				table := renderTable(
					[]string{"Algorithm", "Entries"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}
