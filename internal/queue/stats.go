package queue

import (
	"context"
	"math"
	"sort"
	"time"
)

// Stats summarizes a queue partition at a point in time.
//
// SuccessRate is the percentage of completed tasks that were approved, 0 when
// nothing has completed. OldestTaskAge is the whole-second age of the oldest
// pending task, 0 when nothing is pending.
type Stats struct {
	Pending       int
	Active        int
	Completed     int
	Approved      int
	Rejected      int
	Escalated     int
	SuccessRate   float64
	OldestTaskAge int64
}

// Total returns the number of tasks the snapshot covers.
func (s Stats) Total() int {
	return s.Pending + s.Active + s.Completed
}

// ComputeStats folds a task list into a Stats snapshot relative to now. It is
// pure: callers own the task selection, typically via Store.List.
func ComputeStats(tasks []*Task, now time.Time) Stats {
	var stats Stats
	var oldestPending time.Time

	for _, task := range tasks {
		switch task.Status {
		case StatusPending:
			stats.Pending++
			if oldestPending.IsZero() || task.CreatedAt.Before(oldestPending) {
				oldestPending = task.CreatedAt
			}
		case StatusActive:
			stats.Active++
		case StatusCompleted:
			stats.Completed++
			switch task.Result {
			case ResultApproved:
				stats.Approved++
			case ResultRejected:
				stats.Rejected++
			case ResultEscalated:
				stats.Escalated++
			}
		}
	}

	if stats.Completed > 0 {
		stats.SuccessRate = 100 * float64(stats.Approved) / float64(stats.Completed)
	}
	if !oldestPending.IsZero() && now.After(oldestPending) {
		stats.OldestTaskAge = int64(math.Floor(now.Sub(oldestPending).Seconds()))
	}
	return stats
}

// QueueStats pairs a queue partition with its derived statistics.
type QueueStats struct {
	QueueName       string
	ContentCategory string
	HashAlgorithm   string
	IsEscalated     bool
	Stats
}

// ComputeGroupedStats folds tasks into per-partition statistics, grouped by
// (category, algorithm, escalation) and ordered by queue name. Derived fresh
// on every call; nothing is cached across transitions.
func ComputeGroupedStats(tasks []*Task, now time.Time) []QueueStats {
	groups := make(map[string][]*Task)
	for _, task := range tasks {
		key := task.QueueKey()
		groups[key] = append(groups[key], task)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	stats := make([]QueueStats, 0, len(names))
	for _, name := range names {
		members := groups[name]
		sample := members[0]
		stats = append(stats, QueueStats{
			QueueName:       name,
			ContentCategory: sample.ContentCategory,
			HashAlgorithm:   sample.HashAlgorithm,
			IsEscalated:     sample.IsEscalated,
			Stats:           ComputeStats(members, now),
		})
	}
	return stats
}

// StatsSnapshot computes stats for the filtered partition from current store
// contents.
func (s *Store) StatsSnapshot(ctx context.Context, filters Filters) (Stats, error) {
	tasks, err := s.List(ctx, filters)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(tasks, time.Now().UTC()), nil
}

// GroupedStatsSnapshot computes per-queue stats across the filtered tasks.
func (s *Store) GroupedStatsSnapshot(ctx context.Context, filters Filters) ([]QueueStats, error) {
	tasks, err := s.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return ComputeGroupedStats(tasks, time.Now().UTC()), nil
}
