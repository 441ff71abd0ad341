// Package queue persists review tasks in SQLite and implements the task
// lifecycle: pending tasks are claimed into active by exactly one reviewer,
// then completed with an approved, rejected, or escalated result. Completed
// tasks are never deleted outside an explicit clear, so statistics cover the
// full history of a queue partition.
package queue
