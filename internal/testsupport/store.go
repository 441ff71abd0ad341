package testsupport

import (
	"context"
	"testing"

	"hashreview/internal/config"
	"hashreview/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewPendingTask enqueues a pending review task for tests using the provided
// store. Zero-value fields get sensible defaults.
func NewPendingTask(t testing.TB, store *queue.Store, task queue.NewTask) *queue.Task {
	t.Helper()

	if task.ImageID == "" {
		task.ImageID = "img-test"
	}
	if task.ContentCategory == "" {
		task.ContentCategory = "spam"
	}
	if task.HashAlgorithm == "" {
		task.HashAlgorithm = "pdq"
	}
	if task.ConfidenceLevel == "" {
		task.ConfidenceLevel = "high"
	}

	stored, err := store.Enqueue(context.Background(), task)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return stored
}
