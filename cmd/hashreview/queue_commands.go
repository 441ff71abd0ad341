package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hashreview/internal/config"
	"hashreview/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the review queues",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueCompleteCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueSeedCommand(ctx))

	return queueCmd
}

type queueFilterFlags struct {
	category      string
	algorithm     string
	confidence    string
	escalatedOnly bool
}

func (f *queueFilterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", "", "Filter by content category")
	cmd.Flags().StringVar(&f.algorithm, "algorithm", "", "Filter by hash algorithm")
	cmd.Flags().StringVar(&f.confidence, "confidence", "", "Filter by confidence level")
	cmd.Flags().BoolVar(&f.escalatedOnly, "escalated", false, "Only escalated tasks")
}

func (f *queueFilterFlags) filters() queue.Filters {
	return queue.Filters{
		ContentCategory: f.category,
		HashAlgorithm:   f.algorithm,
		ConfidenceLevel: f.confidence,
		EscalatedOnly:   f.escalatedOnly,
	}
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var (
		category   string
		algorithm  string
		confidence string
		escalated  bool
		metaPairs  []string
	)

	cmd := &cobra.Command{
		Use:   "add <imageID>",
		Short: "Enqueue an image for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := parseMetaPairs(metaPairs)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				task, err := store.Enqueue(cmd.Context(), queue.NewTask{
					ImageID:         args[0],
					ContentCategory: category,
					HashAlgorithm:   algorithm,
					ConfidenceLevel: confidence,
					IsEscalated:     escalated,
					Metadata:        metadata,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued task %s on %s\n", task.ID, task.QueueKey())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Content category")
	cmd.Flags().StringVar(&algorithm, "algorithm", "pdq", "Hash algorithm that produced the match")
	cmd.Flags().StringVar(&confidence, "confidence", "medium", "Match confidence level")
	cmd.Flags().BoolVar(&escalated, "escalated", false, "Enqueue on the escalated queue")
	cmd.Flags().StringArrayVar(&metaPairs, "meta", nil, "Task metadata as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var filterFlags queueFilterFlags
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []queue.Status
			for _, value := range listStatuses {
				status, ok := queue.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				statuses = append(statuses, status)
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				tasks, err := store.List(cmd.Context(), filterFlags.filters(), statuses...)
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						task.ID,
						task.ImageID,
						task.QueueKey(),
						string(task.Status),
						task.CreatedAt.Local().Format(time.DateTime),
						string(task.Result),
					})
				}
				table := renderTable(
					[]string{"ID", "Image", "Queue", "Status", "Created", "Result"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	filterFlags.register(cmd)
	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by task status (repeatable)")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var filterFlags queueFilterFlags

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				stats, err := store.GroupedStatsSnapshot(cmd.Context(), filterFlags.filters())
				if err != nil {
					return err
				}
				if len(stats) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks recorded")
					return nil
				}

				rows := make([][]string, 0, len(stats))
				for _, qs := range stats {
					rows = append(rows, []string{
						qs.QueueName,
						strconv.Itoa(qs.Pending),
						strconv.Itoa(qs.Active),
						strconv.Itoa(qs.Completed),
						fmt.Sprintf("%.1f%%", qs.SuccessRate),
						formatAge(qs.OldestTaskAge),
					})
				}
				table := renderTable(
					[]string{"Queue", "Pending", "Active", "Completed", "Success", "Oldest"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	filterFlags.register(cmd)
	return cmd
}

func newQueueCompleteCommand(ctx *commandContext) *cobra.Command {
	var resultFlag string
	var notesFlag string

	cmd := &cobra.Command{
		Use:   "complete <taskID>",
		Short: "Record a review decision for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, ok := queue.ParseResult(resultFlag)
			if !ok {
				return fmt.Errorf("result must be approved, rejected, or escalated (got %q)", resultFlag)
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				task, err := store.Transition(cmd.Context(), args[0], result, notesFlag)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s completed as %s\n", task.ID, task.Result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&resultFlag, "result", "r", "", "Decision: approved, rejected, or escalated")
	cmd.Flags().StringVarP(&notesFlag, "notes", "n", "", "Reviewer notes")
	_ = cmd.MarkFlagRequired("result")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all review tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d tasks\n", removed)
				return nil
			})
		},
	}
}

func parseMetaPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid metadata %q, expected key=value", pair)
		}
		metadata[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return metadata, nil
}

func formatAge(seconds int64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds) * time.Second).String()
}
