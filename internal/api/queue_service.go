package api

import (
	"context"

	"hashreview/internal/queue"
)

// QueueAccess abstracts queue persistence interactions needed for API
// handlers.
type QueueAccess interface {
	List(ctx context.Context, filters queue.Filters, statuses ...queue.Status) ([]*queue.Task, error)
	GetByID(ctx context.Context, id string) (*queue.Task, error)
	DequeueNext(ctx context.Context, filters queue.Filters) (*queue.Task, error)
	Transition(ctx context.Context, id string, result queue.Result, notes string) (*queue.Task, error)
	Enqueue(ctx context.Context, task queue.NewTask) (*queue.Task, error)
	GroupedStatsSnapshot(ctx context.Context, filters queue.Filters) ([]queue.QueueStats, error)
}

// QueueService exposes queue operations returning API DTOs.
type QueueService struct {
	store QueueAccess
}

// NewQueueService constructs a QueueService around the provided store.
func NewQueueService(store QueueAccess) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns tasks filtered by partition and status.
func (s *QueueService) List(ctx context.Context, filters queue.Filters, statuses ...queue.Status) ([]Task, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	tasks, err := s.store.List(ctx, filters, statuses...)
	if err != nil {
		return nil, err
	}
	return FromTasks(tasks), nil
}

// Stats returns per-queue statistics for the filtered partitions.
func (s *QueueService) Stats(ctx context.Context, filters queue.Filters) ([]QueueStats, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.GroupedStatsSnapshot(ctx, filters)
	if err != nil {
		return nil, err
	}
	return FromQueueStats(stats), nil
}

// Next claims the oldest pending task in the partition. A nil task means the
// queue is exhausted.
func (s *QueueService) Next(ctx context.Context, filters queue.Filters) (*Task, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	task, err := s.store.DequeueNext(ctx, filters)
	if err != nil || task == nil {
		return nil, err
	}
	dto := FromTask(task)
	return &dto, nil
}

// Complete transitions a task with the given result.
func (s *QueueService) Complete(ctx context.Context, id string, result queue.Result, notes string) (*Task, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	task, err := s.store.Transition(ctx, id, result, notes)
	if err != nil {
		return nil, err
	}
	dto := FromTask(task)
	return &dto, nil
}

// Submit enqueues a new pending task.
func (s *QueueService) Submit(ctx context.Context, task queue.NewTask) (*Task, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stored, err := s.store.Enqueue(ctx, task)
	if err != nil {
		return nil, err
	}
	dto := FromTask(stored)
	return &dto, nil
}

// Describe fetches a single task, nil when unknown.
func (s *QueueService) Describe(ctx context.Context, id string) (*Task, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	task, err := s.store.GetByID(ctx, id)
	if err != nil || task == nil {
		return nil, err
	}
	dto := FromTask(task)
	return &dto, nil
}
