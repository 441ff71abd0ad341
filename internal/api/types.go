package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Task describes a review task in a transport-friendly format.
type Task struct {
	ID              string            `json:"id"`
	ImageID         string            `json:"imageId"`
	ContentCategory string            `json:"contentCategory"`
	HashAlgorithm   string            `json:"hashAlgorithm"`
	ConfidenceLevel string            `json:"confidenceLevel"`
	IsEscalated     bool              `json:"isEscalated"`
	Status          string            `json:"status"`
	QueueName       string            `json:"queueName"`
	CreatedAt       string            `json:"createdAt,omitempty"`
	StartedAt       string            `json:"startedAt,omitempty"`
	CompletedAt     string            `json:"completedAt,omitempty"`
	Result          string            `json:"result,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// QueueStats is one queue partition's derived statistics.
type QueueStats struct {
	QueueName       string  `json:"queueName"`
	ContentCategory string  `json:"contentCategory"`
	HashAlgorithm   string  `json:"hashAlgorithm"`
	IsEscalated     bool    `json:"isEscalated"`
	Pending         int     `json:"pending"`
	Active          int     `json:"active"`
	Completed       int     `json:"completed"`
	SuccessRate     float64 `json:"successRate"`
	OldestTaskAge   int64   `json:"oldestTaskAge"`
}

// QueueConfig enumerates the value sets tasks are validated against.
type QueueConfig struct {
	HashAlgorithms    []string `json:"hashAlgorithms"`
	ContentCategories []string `json:"contentCategories"`
	ConfidenceLevels  []string `json:"confidenceLevels"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	QueueDBPath  string `json:"queueDbPath"`
	IndexDBPath  string `json:"indexDbPath"`
	LockFilePath string `json:"lockFilePath"`
	TotalTasks   int    `json:"totalTasks"`
}

// TaskListResponse wraps a collection of tasks.
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

// TaskResponse wraps a single task. Task is nil when a dequeue found nothing.
type TaskResponse struct {
	Task *Task `json:"task"`
}

// QueueStatsResponse wraps per-queue statistics.
type QueueStatsResponse struct {
	Queues []QueueStats `json:"queues"`
}
