package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hashreview/internal/config"
	"hashreview/internal/queue"
	"hashreview/internal/simindex"
)

type seedTask struct {
	imageID     string
	category    string
	algorithm   string
	confidence  string
	escalated   bool
	fingerprint string
	distance    string
}

type seedEntry struct {
	imageID     string
	algorithm   string
	fingerprint string
	sourceTag   string
}

// Canned demo dataset: a spread of categories, algorithms, and confidence
// levels so stats tables and the review loop have something to show. PDQ
// fingerprints are 256-bit; pairs sit at small Hamming distances so index
// queries return neighbors.
var demoTasks = []seedTask{
	{imageID: "demo-img-001", category: "spam", algorithm: "pdq", confidence: "high",
		fingerprint: "f0e1d2c3b4a5968778695a4b3c2d1e0ff0e1d2c3b4a5968778695a4b3c2d1e0f", distance: "6"},
	{imageID: "demo-img-002", category: "spam", algorithm: "pdq", confidence: "medium",
		fingerprint: "f0e1d2c3b4a5968778695a4b3c2d1e0ff0e1d2c3b4a5968778695a4b3c2d1e0e", distance: "24"},
	{imageID: "demo-img-003", category: "adult", algorithm: "pdq", confidence: "low",
		fingerprint: "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff", distance: "47"},
	{imageID: "demo-img-004", category: "violence", algorithm: "md5", confidence: "high",
		fingerprint: "9e107d9d372bb6826bd81d3542a419d6", distance: "0"},
	{imageID: "demo-img-005", category: "hate_speech", algorithm: "sha1", confidence: "high",
		fingerprint: "2fd4e1c67a2d28fced849ee1bb76e7391b93eb12", distance: "0"},
	{imageID: "demo-img-006", category: "terrorism", algorithm: "photodna", confidence: "medium",
		distance: "12"},
	{imageID: "demo-img-007", category: "self_harm", algorithm: "pdq", confidence: "medium", escalated: true,
		fingerprint: "ffeeddccbbaa99887766554433221100ffeeddccbbaa99887766554433221100", distance: "18"},
	{imageID: "demo-img-008", category: "other", algorithm: "manual", confidence: "low"},
}

var demoIndexEntries = []seedEntry{
	{imageID: "demo-ref-100", algorithm: "pdq", sourceTag: "seed",
		fingerprint: "f0e1d2c3b4a5968778695a4b3c2d1e0ff0e1d2c3b4a5968778695a4b3c2d1e0f"},
	{imageID: "demo-ref-101", algorithm: "pdq", sourceTag: "seed",
		fingerprint: "f0e1d2c3b4a5968778695a4b3c2d1e0ff0e1d2c3b4a5968778695a4b3c2d1e0e"},
	{imageID: "demo-ref-102", algorithm: "pdq", sourceTag: "seed",
		fingerprint: "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"},
	{imageID: "demo-ref-103", algorithm: "md5", sourceTag: "seed",
		fingerprint: "9e107d9d372bb6826bd81d3542a419d6"},
	{imageID: "demo-ref-104", algorithm: "sha1", sourceTag: "seed",
		fingerprint: "2fd4e1c67a2d28fced849ee1bb76e7391b93eb12"},
}

func newQueueSeedCommand(ctx *commandContext) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo dataset into the queue and index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				index, err := simindex.Open(cfg)
				if err != nil {
					return err
				}
				defer index.Close()

				out := cmd.OutOrStdout()
				if reset {
					removed, err := store.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d existing tasks\n", removed)
				}

				enqueued := 0
				for _, seed := range demoTasks {
					metadata := map[string]string{}
					if seed.fingerprint != "" {
						metadata["fingerprint"] = seed.fingerprint
					}
					if seed.distance != "" {
						metadata["distance"] = seed.distance
					}
					if _, err := store.Enqueue(cmd.Context(), queue.NewTask{
						ImageID:         seed.imageID,
						ContentCategory: seed.category,
						HashAlgorithm:   seed.algorithm,
						ConfidenceLevel: seed.confidence,
						IsEscalated:     seed.escalated,
						Metadata:        metadata,
					}); err != nil {
						return fmt.Errorf("seed task %s: %w", seed.imageID, err)
					}
					enqueued++
				}

				indexed := 0
				for _, entry := range demoIndexEntries {
					if _, err := index.Add(cmd.Context(), simindex.NewEntry{
						ImageID:     entry.imageID,
						Algorithm:   entry.algorithm,
						Fingerprint: entry.fingerprint,
						SourceTag:   entry.sourceTag,
					}); err != nil {
						return fmt.Errorf("seed index entry %s: %w", entry.imageID, err)
					}
					indexed++
				}

				fmt.Fprintf(out, "Seeded %d tasks and %d index entries\n", enqueued, indexed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Clear existing tasks before seeding")
	return cmd
}
