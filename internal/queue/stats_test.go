package queue_test

import (
	"context"
	"testing"
	"time"

	"hashreview/internal/queue"
	"hashreview/internal/testsupport"
)

func task(status queue.Status, result queue.Result, createdAgo time.Duration, now time.Time) *queue.Task {
	return &queue.Task{
		ID:        string(status) + "-" + string(result),
		Status:    status,
		Result:    result,
		CreatedAt: now.Add(-createdAgo),
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := queue.ComputeStats(nil, time.Now())
	if stats.Total() != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
	if stats.SuccessRate != 0 {
		t.Fatalf("success rate must be 0 with no completions, got %v", stats.SuccessRate)
	}
	if stats.OldestTaskAge != 0 {
		t.Fatalf("oldest age must be 0 with no pending tasks, got %v", stats.OldestTaskAge)
	}
}

func TestComputeStatsCountsAndRate(t *testing.T) {
	now := time.Now().UTC()
	tasks := []*queue.Task{
		task(queue.StatusPending, "", 90*time.Second, now),
		task(queue.StatusPending, "", 30*time.Second, now),
		task(queue.StatusActive, "", 10*time.Second, now),
		task(queue.StatusCompleted, queue.ResultApproved, 300*time.Second, now),
		task(queue.StatusCompleted, queue.ResultApproved, 310*time.Second, now),
		task(queue.StatusCompleted, queue.ResultRejected, 320*time.Second, now),
		task(queue.StatusCompleted, queue.ResultEscalated, 330*time.Second, now),
	}

	stats := queue.ComputeStats(tasks, now)
	if stats.Pending != 2 || stats.Active != 1 || stats.Completed != 4 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.Approved != 2 || stats.Rejected != 1 || stats.Escalated != 1 {
		t.Fatalf("unexpected result tallies: %+v", stats)
	}
	if stats.SuccessRate != 50 {
		t.Fatalf("expected success rate 50, got %v", stats.SuccessRate)
	}
	// Oldest age counts pending tasks only, not the older completed ones.
	if stats.OldestTaskAge != 90 {
		t.Fatalf("expected oldest age 90s, got %d", stats.OldestTaskAge)
	}
}

func TestComputeStatsNoCompletions(t *testing.T) {
	now := time.Now().UTC()
	tasks := []*queue.Task{
		task(queue.StatusPending, "", 5*time.Second, now),
		task(queue.StatusActive, "", time.Second, now),
	}
	stats := queue.ComputeStats(tasks, now)
	if stats.SuccessRate != 0 {
		t.Fatalf("expected 0 rate without completions, got %v", stats.SuccessRate)
	}
	if stats.OldestTaskAge != 5 {
		t.Fatalf("expected oldest age 5s, got %d", stats.OldestTaskAge)
	}
}

func TestComputeGroupedStats(t *testing.T) {
	now := time.Now().UTC()
	tasks := []*queue.Task{
		{ID: "1", ContentCategory: "spam", HashAlgorithm: "pdq", Status: queue.StatusPending, CreatedAt: now.Add(-time.Minute)},
		{ID: "2", ContentCategory: "spam", HashAlgorithm: "pdq", Status: queue.StatusCompleted, Result: queue.ResultApproved, CreatedAt: now.Add(-time.Hour)},
		{ID: "3", ContentCategory: "spam", HashAlgorithm: "pdq", IsEscalated: true, Status: queue.StatusPending, CreatedAt: now.Add(-time.Second)},
		{ID: "4", ContentCategory: "adult", HashAlgorithm: "md5", Status: queue.StatusActive, CreatedAt: now},
	}

	grouped := queue.ComputeGroupedStats(tasks, now)
	if len(grouped) != 3 {
		t.Fatalf("expected 3 partitions, got %d", len(grouped))
	}

	byName := make(map[string]queue.QueueStats, len(grouped))
	for _, g := range grouped {
		byName[g.QueueName] = g
	}
	spam, ok := byName["review:pdq:spam"]
	if !ok {
		t.Fatalf("missing spam partition in %v", grouped)
	}
	if spam.Pending != 1 || spam.Completed != 1 || spam.SuccessRate != 100 {
		t.Fatalf("unexpected spam stats: %+v", spam)
	}
	escalated, ok := byName["review:pdq:spam_escalated"]
	if !ok || escalated.Pending != 1 {
		t.Fatalf("escalated tasks must form their own partition: %+v", byName)
	}

	// Ordered by queue name for stable display.
	for i := 1; i < len(grouped); i++ {
		if grouped[i-1].QueueName > grouped[i].QueueName {
			t.Fatalf("partitions out of order: %v before %v", grouped[i-1].QueueName, grouped[i].QueueName)
		}
	}
}

func TestStatsSnapshotFromStore(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-1"})
	done := testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-2"})
	if _, err := store.Transition(ctx, done.ID, queue.ResultApproved, ""); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	stats, err := store.StatsSnapshot(ctx, queue.Filters{})
	if err != nil {
		t.Fatalf("StatsSnapshot: %v", err)
	}
	if stats.Pending != 1 || stats.Completed != 1 {
		t.Fatalf("unexpected snapshot: %+v", stats)
	}
	if stats.SuccessRate != 100 {
		t.Fatalf("expected success rate 100, got %v", stats.SuccessRate)
	}
}
