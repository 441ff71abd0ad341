package api_test

import (
	"testing"
	"time"

	"hashreview/internal/api"
	"hashreview/internal/queue"
)

func TestFromTask(t *testing.T) {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	started := created.Add(time.Minute)
	completed := created.Add(2 * time.Minute)

	task := &queue.Task{
		ID:              "task-1",
		ImageID:         "img-1",
		ContentCategory: "spam",
		HashAlgorithm:   "pdq",
		ConfidenceLevel: "high",
		IsEscalated:     true,
		Status:          queue.StatusCompleted,
		CreatedAt:       created,
		StartedAt:       &started,
		CompletedAt:     &completed,
		Result:          queue.ResultEscalated,
		Notes:           "needs follow-up",
		Metadata:        map[string]string{"distance": "4"},
	}

	dto := api.FromTask(task)
	if dto.QueueName != "review:pdq:spam_escalated" {
		t.Fatalf("unexpected queue name %q", dto.QueueName)
	}
	if dto.Status != "completed" || dto.Result != "escalated" {
		t.Fatalf("unexpected status/result: %q/%q", dto.Status, dto.Result)
	}
	if dto.CreatedAt != "2026-08-01T10:00:00.000Z" {
		t.Fatalf("unexpected createdAt %q", dto.CreatedAt)
	}
	if dto.StartedAt == "" || dto.CompletedAt == "" {
		t.Fatal("expected start and completion timestamps")
	}
	if dto.Metadata["distance"] != "4" {
		t.Fatalf("metadata dropped: %+v", dto.Metadata)
	}
}

func TestFromTaskNilAndPending(t *testing.T) {
	if dto := api.FromTask(nil); dto.ID != "" {
		t.Fatalf("nil task must convert to zero DTO, got %+v", dto)
	}

	dto := api.FromTask(&queue.Task{ID: "task-2", Status: queue.StatusPending})
	if dto.StartedAt != "" || dto.CompletedAt != "" || dto.Result != "" {
		t.Fatalf("pending task must omit completion fields: %+v", dto)
	}
}

func TestFromQueueStats(t *testing.T) {
	stats := []queue.QueueStats{
		{
			QueueName:       "review:pdq:spam",
			ContentCategory: "spam",
			HashAlgorithm:   "pdq",
			Stats: queue.Stats{
				Pending:       3,
				Completed:     2,
				Approved:      1,
				SuccessRate:   50,
				OldestTaskAge: 42,
			},
		},
	}
	converted := api.FromQueueStats(stats)
	if len(converted) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(converted))
	}
	entry := converted[0]
	if entry.QueueName != "review:pdq:spam" || entry.Pending != 3 || entry.SuccessRate != 50 || entry.OldestTaskAge != 42 {
		t.Fatalf("unexpected conversion: %+v", entry)
	}
}
