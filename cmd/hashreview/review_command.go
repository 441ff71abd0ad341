package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"hashreview/internal/config"
	"hashreview/internal/logging"
	"hashreview/internal/queue"
	"hashreview/internal/review"
	"hashreview/internal/simindex"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	var filterFlags queueFilterFlags

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Work through pending tasks interactively",
		Long: "Claims pending tasks one at a time, shows the gathered match evidence, " +
			"and records decisions. Skipped tasks return to pending and come back later.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				index, err := simindex.Open(cfg)
				if err != nil {
					return err
				}
				defer index.Close()

				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return err
				}

				session := review.NewSession(cfg, store, index, buildMatcher(cfg), logger)
				return runReviewLoop(cmd, session, filterFlags.filters())
			})
		},
	}

	filterFlags.register(cmd)
	cmd.AddCommand(newReviewNextCommand(ctx))
	cmd.AddCommand(newReviewDecideCommand(ctx))
	cmd.AddCommand(newReviewSkipCommand(ctx))
	return cmd
}

// newReviewNextCommand claims one task and prints its evidence without
// entering the interactive loop. The claim persists so a later
// `review decide` or `review skip` can act on it.
func newReviewNextCommand(ctx *commandContext) *cobra.Command {
	var filterFlags queueFilterFlags

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Claim and show the next pending task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				index, err := simindex.Open(cfg)
				if err != nil {
					return err
				}
				defer index.Close()

				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return err
				}

				session := review.NewSession(cfg, store, index, buildMatcher(cfg), logger)
				presented, err := session.LoadNext(cmd.Context(), filterFlags.filters())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if presented == nil {
					fmt.Fprintln(out, "Queue is empty, nothing to review")
					return nil
				}
				printPresented(out, presented)
				fmt.Fprintf(out, "Task %s is claimed. Record a decision with `hashreview review decide %s --result <r>` or release it with `hashreview review skip %s`.\n",
					presented.Task.ID, presented.Task.ID, presented.Task.ID)
				return nil
			})
		},
	}

	filterFlags.register(cmd)
	return cmd
}

func newReviewDecideCommand(ctx *commandContext) *cobra.Command {
	var resultFlag string
	var notesFlag string

	cmd := &cobra.Command{
		Use:   "decide <taskID>",
		Short: "Record a decision for a claimed task",
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
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s recorded as %s\n", task.ID, task.Result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&resultFlag, "result", "r", "", "Decision: approved, rejected, or escalated")
	cmd.Flags().StringVarP(&notesFlag, "notes", "n", "", "Reviewer notes")
	_ = cmd.MarkFlagRequired("result")
	return cmd
}

func newReviewSkipCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <taskID>",
		Short: "Release a claimed task back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if err := store.Release(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s returned to pending\n", args[0])
				return nil
			})
		},
	}
}

func runReviewLoop(cmd *cobra.Command, session *review.Session, filters queue.Filters) error {
	out := cmd.OutOrStdout()
	reader := bufio.NewScanner(cmd.InOrStdin())

	presented, err := session.LoadNext(cmd.Context(), filters)
	if err != nil {
		return err
	}
	if presented == nil {
		fmt.Fprintln(out, "Queue is empty, nothing to review")
		return nil
	}

	for presented != nil {
		printPresented(out, presented)

		decision, ok := promptDecision(out, reader)
		if !ok {
			if err := session.Abandon(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, "Review session ended")
			return nil
		}

		var advance *review.AdvanceResult
		switch decision.action {
		case actionSkip:
			advance, err = session.Skip(cmd.Context())
		default:
			advance, err = session.Decide(cmd.Context(), presented.Task.ID, decision.result, decision.notes)
		}
		if err != nil {
			return err
		}
		if advance.Notice != "" {
			fmt.Fprintf(out, "Note: %s\n", advance.Notice)
		}
		if advance.Completed != nil {
			fmt.Fprintf(out, "Task %s recorded as %s\n", advance.Completed.ID, advance.Completed.Result)
		}
		presented = advance.Next
	}

	fmt.Fprintln(out, "Queue exhausted, review complete")
	return nil
}

type reviewAction int

const (
	actionDecide reviewAction = iota
	actionSkip
)

type reviewDecision struct {
	action reviewAction
	result queue.Result
	notes  string
}

// promptDecision reads one decision from the reviewer. Returns ok=false on
// quit or closed input.
func promptDecision(out io.Writer, reader *bufio.Scanner) (reviewDecision, bool) {
	for {
		fmt.Fprint(out, "[a]pprove [r]eject [e]scalate [s]kip [q]uit> ")
		if !reader.Scan() {
			return reviewDecision{}, false
		}
		input := strings.TrimSpace(reader.Text())
		command, notes, _ := strings.Cut(input, " ")

		switch strings.ToLower(command) {
		case "a", "approve":
			return reviewDecision{result: queue.ResultApproved, notes: notes}, true
		case "r", "reject":
			return reviewDecision{result: queue.ResultRejected, notes: notes}, true
		case "e", "escalate":
			return reviewDecision{result: queue.ResultEscalated, notes: notes}, true
		case "s", "skip":
			return reviewDecision{action: actionSkip}, true
		case "q", "quit":
			return reviewDecision{}, false
		default:
			fmt.Fprintf(out, "Unknown command %q\n", command)
		}
	}
}

func printPresented(out io.Writer, presented *review.Presented) {
	task := presented.Task
	fmt.Fprintf(out, "\nTask %s\n", task.ID)
	fmt.Fprintf(out, "  Image:      %s\n", task.ImageID)
	fmt.Fprintf(out, "  Queue:      %s\n", task.QueueKey())
	fmt.Fprintf(out, "  Confidence: %s\n", task.ConfidenceLevel)
	if presented.Verdict != nil {
		fmt.Fprintf(out, "  Verdict:    %s\n", presented.Verdict.Label)
	}
	if presented.Degraded {
		fmt.Fprintln(out, "  WARNING: hashing service unavailable, showing demo evidence")
	}

	if len(presented.Similar) > 0 {
		fmt.Fprintln(out, "Similar indexed entries:")
		fmt.Fprintln(out, renderMatchTable(presented.Similar))
	}
	if len(presented.Matches) > 0 {
		fmt.Fprintln(out, "Reference matches:")
		fmt.Fprintln(out, renderMatchTable(presented.Matches))
	}
}

func renderMatchTable(items []review.SimilarItem) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ReferenceID,
			formatMatchDistance(item.Distance),
			item.Label,
			item.Source,
		})
	}
	return renderTable(
		[]string{"Reference", "Distance", "Interpretation", "Source"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func formatMatchDistance(distance float64) string {
	if distance == float64(int64(distance)) {
		return fmt.Sprintf("%d", int64(distance))
	}
	return fmt.Sprintf("%.2f", distance)
}
