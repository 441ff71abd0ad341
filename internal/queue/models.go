package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a review task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

var allStatuses = []Status{StatusPending, StatusActive, StatusCompleted}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Result is the outcome of a completed review.
type Result string

const (
	ResultApproved  Result = "approved"
	ResultRejected  Result = "rejected"
	ResultEscalated Result = "escalated"
)

var allResults = []Result{ResultApproved, ResultRejected, ResultEscalated}

// Task is a unit of review work persisted in SQLite.
//
// Invariants maintained by the store: Result is set iff Status is completed;
// StartedAt is set iff Status is active or completed; IsEscalated never
// reverts to false once set. Tasks are transitioned, never deleted, so
// completed tasks remain for audit and statistics.
type Task struct {
	ID              string
	ImageID         string
	ContentCategory string
	HashAlgorithm   string
	ConfidenceLevel string
	IsEscalated     bool
	Status          Status
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Result          Result
	Notes           string
	Metadata        map[string]string
}

// NewTask describes a task to enqueue. The store assigns the ID, creation
// time, and pending status.
type NewTask struct {
	ImageID         string
	ContentCategory string
	HashAlgorithm   string
	ConfidenceLevel string
	IsEscalated     bool
	Metadata        map[string]string
}

// Filters narrows enumeration and dequeue to a queue partition. Zero values
// match everything; EscalatedOnly restricts to escalated tasks.
type Filters struct {
	ContentCategory string
	HashAlgorithm   string
	ConfidenceLevel string
	EscalatedOnly   bool
}

const queueNamePrefix = "review"

// QueueName builds the composite queue key for a (category, algorithm,
// escalation) partition, e.g. "review:pdq:spam" or "review:md5:adult_escalated".
func QueueName(category, algorithm string, escalated bool) string {
	name := queueNamePrefix + ":" + algorithm + ":" + category
	if escalated {
		name += "_escalated"
	}
	return name
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseResult converts a string into a known Result.
func ParseResult(value string) (Result, bool) {
	normalized := Result(strings.ToLower(strings.TrimSpace(value)))
	for _, result := range allResults {
		if normalized == result {
			return result, true
		}
	}
	return "", false
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// QueueKey returns the composite queue name for the task's partition.
func (t *Task) QueueKey() string {
	return QueueName(t.ContentCategory, t.HashAlgorithm, t.IsEscalated)
}

// IsOpen reports whether the task can still accept a decision.
func (t *Task) IsOpen() bool {
	return t.Status == StatusPending || t.Status == StatusActive
}

// Age returns how long the task has been waiting since creation.
func (t *Task) Age(now time.Time) time.Duration {
	if t.CreatedAt.IsZero() || now.Before(t.CreatedAt) {
		return 0
	}
	return now.Sub(t.CreatedAt)
}
