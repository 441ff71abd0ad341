package api

import (
	"time"

	"hashreview/internal/queue"
)

// FromTask converts a queue record to its API representation.
func FromTask(task *queue.Task) Task {
	if task == nil {
		return Task{}
	}

	dto := Task{
		ID:              task.ID,
		ImageID:         task.ImageID,
		ContentCategory: task.ContentCategory,
		HashAlgorithm:   task.HashAlgorithm,
		ConfidenceLevel: task.ConfidenceLevel,
		IsEscalated:     task.IsEscalated,
		Status:          string(task.Status),
		QueueName:       task.QueueKey(),
		Result:          string(task.Result),
		Notes:           task.Notes,
		Metadata:        task.Metadata,
	}
	if !task.CreatedAt.IsZero() {
		dto.CreatedAt = task.CreatedAt.UTC().Format(dateTimeFormat)
	}
	dto.StartedAt = formatOptionalTime(task.StartedAt)
	dto.CompletedAt = formatOptionalTime(task.CompletedAt)
	return dto
}

// FromTasks converts a slice of queue records.
func FromTasks(tasks []*queue.Task) []Task {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out
}

// FromQueueStats converts grouped statistics to their API representation.
func FromQueueStats(stats []queue.QueueStats) []QueueStats {
	if len(stats) == 0 {
		return nil
	}
	out := make([]QueueStats, 0, len(stats))
	for _, entry := range stats {
		out = append(out, QueueStats{
			QueueName:       entry.QueueName,
			ContentCategory: entry.ContentCategory,
			HashAlgorithm:   entry.HashAlgorithm,
			IsEscalated:     entry.IsEscalated,
			Pending:         entry.Pending,
			Active:          entry.Active,
			Completed:       entry.Completed,
			SuccessRate:     entry.SuccessRate,
			OldestTaskAge:   entry.OldestTaskAge,
		})
	}
	return out
}

func formatOptionalTime(value *time.Time) string {
	if value == nil || value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}
