package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hashreview/internal/services"
)

const taskColumns = "id, image_id, content_category, hash_algorithm, confidence_level, is_escalated, status, created_at, started_at, completed_at, result, notes, metadata_json"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id           string
		imageID      string
		category     string
		algorithm    string
		confidence   string
		escalated    int64
		statusStr    string
		createdRaw   string
		startedRaw   sql.NullString
		completedRaw sql.NullString
		result       sql.NullString
		notes        sql.NullString
		metadata     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&imageID,
		&category,
		&algorithm,
		&confidence,
		&escalated,
		&statusStr,
		&createdRaw,
		&startedRaw,
		&completedRaw,
		&result,
		&notes,
		&metadata,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:              id,
		ImageID:         imageID,
		ContentCategory: category,
		HashAlgorithm:   algorithm,
		ConfidenceLevel: confidence,
		IsEscalated:     escalated != 0,
		Status:          Status(statusStr),
		Result:          Result(result.String),
		Notes:           notes.String,
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		task.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			task.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			task.CompletedAt = &completed
		}
	}
	if metadata.Valid && metadata.String != "" {
		decoded := map[string]string{}
		if err := json.Unmarshal([]byte(metadata.String), &decoded); err == nil {
			task.Metadata = decoded
		}
	}
	return task, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func encodeMetadata(metadata map[string]string) (any, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return string(raw), nil
}

func (s *Store) validateNewTask(task NewTask) error {
	imageID := strings.TrimSpace(task.ImageID)
	if imageID == "" {
		return services.Wrap(services.ErrValidation, "queue", "enqueue", "image id is required", nil)
	}
	category := strings.ToLower(strings.TrimSpace(task.ContentCategory))
	if _, ok := s.categories[category]; !ok {
		return services.Wrap(services.ErrValidation, "queue", "enqueue", fmt.Sprintf("unknown content category %q", task.ContentCategory), nil)
	}
	algorithm := strings.ToLower(strings.TrimSpace(task.HashAlgorithm))
	if _, ok := s.algorithms[algorithm]; !ok {
		return services.Wrap(services.ErrValidation, "queue", "enqueue", fmt.Sprintf("unknown hash algorithm %q", task.HashAlgorithm), nil)
	}
	confidence := strings.ToLower(strings.TrimSpace(task.ConfidenceLevel))
	if _, ok := s.confidences[confidence]; !ok {
		return services.Wrap(services.ErrValidation, "queue", "enqueue", fmt.Sprintf("unknown confidence level %q", task.ConfidenceLevel), nil)
	}
	return nil
}

// Enqueue inserts a new pending task and returns the stored row. The category,
// algorithm, and confidence level must belong to the configured sets.
func (s *Store) Enqueue(ctx context.Context, task NewTask) (*Task, error) {
	if err := s.validateNewTask(task); err != nil {
		return nil, err
	}

	metadataJSON, err := encodeMetadata(task.Metadata)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO review_tasks (id, image_id, content_category, hash_algorithm, confidence_level, is_escalated, status, created_at, metadata_json)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		strings.TrimSpace(task.ImageID),
		strings.ToLower(strings.TrimSpace(task.ContentCategory)),
		strings.ToLower(strings.TrimSpace(task.HashAlgorithm)),
		strings.ToLower(strings.TrimSpace(task.ConfidenceLevel)),
		boolToInt(task.IsEscalated),
		StatusPending,
		now.Format(time.RFC3339Nano),
		metadataJSON,
	); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a task by its identifier. Missing tasks return (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM review_tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

func (f Filters) whereClause() (string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if category := strings.ToLower(strings.TrimSpace(f.ContentCategory)); category != "" {
		clauses = append(clauses, "content_category = ?")
		args = append(args, category)
	}
	if algorithm := strings.ToLower(strings.TrimSpace(f.HashAlgorithm)); algorithm != "" {
		clauses = append(clauses, "hash_algorithm = ?")
		args = append(args, algorithm)
	}
	if confidence := strings.ToLower(strings.TrimSpace(f.ConfidenceLevel)); confidence != "" {
		clauses = append(clauses, "confidence_level = ?")
		args = append(args, confidence)
	}
	if f.EscalatedOnly {
		clauses = append(clauses, "is_escalated = 1")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return strings.Join(clauses, " AND "), args
}

// List enumerates tasks matching the filters, optionally restricted to the
// given statuses, oldest first.
func (s *Store) List(ctx context.Context, filters Filters, statuses ...Status) ([]*Task, error) {
	ctx = ensureContext(ctx)

	query := "SELECT " + taskColumns + " FROM review_tasks"
	where, args := filters.whereClause()
	clauses := make([]string, 0, 2)
	if where != "" {
		clauses = append(clauses, where)
	}
	if len(statuses) > 0 {
		placeholders := makePlaceholders(len(statuses))
		clauses = append(clauses, "status IN ("+placeholders+")")
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*Task
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan task: %w", scanErr)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// DequeueNext atomically claims the oldest pending task matching the filters,
// moving it to active. It returns (nil, nil) when no pending task matches.
//
// The claim runs as a read-then-conditional-update loop: the UPDATE only wins
// when the row is still pending, so concurrent callers never claim the same
// task twice.
func (s *Store) DequeueNext(ctx context.Context, filters Filters) (*Task, error) {
	ctx = ensureContext(ctx)

	where, filterArgs := filters.whereClause()
	query := "SELECT id FROM review_tasks WHERE status = ?"
	if where != "" {
		query += " AND " + where
	}
	query += " ORDER BY created_at ASC, id ASC LIMIT 1"

	for {
		args := append([]any{string(StatusPending)}, filterArgs...)
		var id string
		err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select next pending: %w", err)
		}

		res, err := s.execWithRetry(
			ctx,
			`UPDATE review_tasks SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
			StatusActive,
			time.Now().UTC().Format(time.RFC3339Nano),
			id,
			StatusPending,
		)
		if err != nil {
			// Contention heavy enough to outlast the retry budget is not a
			// caller error. The claim is conditional on pending status, so
			// go back to the SELECT; the loop ends when a claim lands or no
			// pending row remains.
			if isSQLiteBusy(err) {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
			return nil, fmt.Errorf("claim task %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim task %s: %w", id, err)
		}
		if affected == 1 {
			return s.GetByID(ctx, id)
		}
		// Another caller won the claim; pick the next candidate.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// Release returns an active task to pending, clearing its start time. Used
// when a reviewer skips a task without deciding it.
func (s *Store) Release(ctx context.Context, id string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE review_tasks SET status = ?, started_at = NULL WHERE id = ? AND status = ?`,
		StatusPending,
		id,
		StatusActive,
	)
	if err != nil {
		return fmt.Errorf("release task %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release task %s: %w", id, err)
	}
	if affected == 0 {
		return s.transitionFailure(ctx, id, "release")
	}
	return nil
}

// Transition completes an open task with the given result. Escalated results
// also mark the task escalated; the flag never reverts. The update is
// all-or-nothing: tasks that are already completed, or missing, are left
// untouched and reported via ErrInvalidState or ErrNotFound.
func (s *Store) Transition(ctx context.Context, id string, result Result, notes string) (*Task, error) {
	if _, ok := ParseResult(string(result)); !ok {
		return nil, services.Wrap(services.ErrValidation, "queue", "transition", fmt.Sprintf("unknown result %q", result), nil)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE review_tasks
         SET status = ?,
             result = ?,
             notes = ?,
             completed_at = ?,
             started_at = COALESCE(started_at, ?),
             is_escalated = CASE WHEN ? = 'escalated' THEN 1 ELSE is_escalated END
         WHERE id = ? AND status IN (?, ?)`,
		StatusCompleted,
		string(result),
		nullableString(strings.TrimSpace(notes)),
		now,
		now,
		string(result),
		id,
		StatusPending,
		StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("complete task %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("complete task %s: %w", id, err)
	}
	if affected == 0 {
		return nil, s.transitionFailure(ctx, id, "transition")
	}
	return s.GetByID(ctx, id)
}

// transitionFailure distinguishes a missing task from one in a state that
// cannot accept the operation.
func (s *Store) transitionFailure(ctx context.Context, id, operation string) error {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return services.Wrap(services.ErrNotFound, "queue", operation, fmt.Sprintf("task %s not found", id), nil)
	}
	return services.Wrap(services.ErrInvalidState, "queue", operation, fmt.Sprintf("task %s is %s", id, task.Status), nil)
}

// CountByStatus tallies tasks per status within the filtered partition.
func (s *Store) CountByStatus(ctx context.Context, filters Filters) (map[Status]int, error) {
	ctx = ensureContext(ctx)

	query := "SELECT status, COUNT(1) FROM review_tasks"
	where, args := filters.whereClause()
	if where != "" {
		query += " WHERE " + where
	}
	query += " GROUP BY status"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var (
			statusStr string
			count     int
		)
		if scanErr := rows.Scan(&statusStr, &count); scanErr != nil {
			return nil, fmt.Errorf("scan count: %w", scanErr)
		}
		counts[Status(statusStr)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// Clear removes every task. Completed history goes with it, so this is an
// explicit administrative operation, not part of normal review flow.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM review_tasks")
	if err != nil {
		return 0, fmt.Errorf("clear tasks: %w", err)
	}
	return res.RowsAffected()
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
