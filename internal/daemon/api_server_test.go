package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"hashreview/internal/api"
	"hashreview/internal/testsupport"
)

type apiFixture struct {
	t    *testing.T
	base string
}

func startAPI(t *testing.T) *apiFixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return &apiFixture{t: t, base: "http://" + d.APIAddr()}
}

func (f *apiFixture) get(path string, out any) int {
	f.t.Helper()
	resp, err := http.Get(f.base + path)
	if err != nil {
		f.t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			f.t.Fatalf("decode GET %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (f *apiFixture) postJSON(path string, payload any, out any) int {
	f.t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		f.t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(f.base+path, "application/json", bytes.NewReader(body))
	if err != nil {
		f.t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			f.t.Fatalf("decode POST %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (f *apiFixture) postForm(path string, form url.Values, out any) int {
	f.t.Helper()
	resp, err := http.Post(f.base+path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		f.t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			f.t.Fatalf("decode POST %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (f *apiFixture) submitTask(imageID string) api.Task {
	f.t.Helper()
	var created api.TaskResponse
	status := f.postJSON("/queues/tasks", map[string]any{
		"imageId":         imageID,
		"contentCategory": "spam",
		"hashAlgorithm":   "pdq",
		"confidenceLevel": "high",
	}, &created)
	if status != http.StatusCreated {
		f.t.Fatalf("submit task: status %d", status)
	}
	if created.Task == nil {
		f.t.Fatal("submit task: nil task in response")
	}
	return *created.Task
}

func TestAPIQueueConfig(t *testing.T) {
	f := startAPI(t)

	var cfg api.QueueConfig
	if status := f.get("/queues/config", &cfg); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(cfg.HashAlgorithms) == 0 || len(cfg.ContentCategories) == 0 || len(cfg.ConfidenceLevels) == 0 {
		t.Fatalf("expected populated queue config, got %+v", cfg)
	}
}

func TestAPITaskLifecycle(t *testing.T) {
	f := startAPI(t)

	created := f.submitTask("img-api")
	if created.Status != "pending" {
		t.Fatalf("new task status = %q", created.Status)
	}
	if created.QueueName != "review:pdq:spam" {
		t.Fatalf("queueName = %q", created.QueueName)
	}

	var next api.TaskResponse
	if status := f.get("/queues/next", &next); status != http.StatusOK {
		t.Fatalf("next status = %d", status)
	}
	if next.Task == nil || next.Task.ID != created.ID {
		t.Fatalf("expected to claim %s, got %+v", created.ID, next.Task)
	}
	if next.Task.Status != "active" {
		t.Fatalf("claimed task status = %q", next.Task.Status)
	}

	var done api.TaskResponse
	status := f.postForm(fmt.Sprintf("/queues/tasks/%s/complete", created.ID),
		url.Values{"result": {"approved"}, "notes": {"checked"}}, &done)
	if status != http.StatusOK {
		t.Fatalf("complete status = %d", status)
	}
	if done.Task.Status != "completed" || done.Task.Result != "approved" {
		t.Fatalf("completed task = %+v", done.Task)
	}
	if done.Task.Notes != "checked" {
		t.Fatalf("notes = %q", done.Task.Notes)
	}
}

func TestAPINextOnEmptyQueueReturnsNullTask(t *testing.T) {
	f := startAPI(t)

	var next api.TaskResponse
	if status := f.get("/queues/next", &next); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if next.Task != nil {
		t.Fatalf("expected null task, got %+v", next.Task)
	}
}

func TestAPICompleteErrorMapping(t *testing.T) {
	f := startAPI(t)
	created := f.submitTask("img-errors")

	// Unknown result value.
	status := f.postForm(fmt.Sprintf("/queues/tasks/%s/complete", created.ID),
		url.Values{"result": {"maybe"}}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("invalid result: status = %d, want 400", status)
	}

	// Unknown task.
	status = f.postForm("/queues/tasks/no-such-task/complete",
		url.Values{"result": {"approved"}}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown task: status = %d, want 404", status)
	}

	// Double completion conflicts.
	status = f.postForm(fmt.Sprintf("/queues/tasks/%s/complete", created.ID),
		url.Values{"result": {"rejected"}}, nil)
	if status != http.StatusOK {
		t.Fatalf("first complete: status = %d", status)
	}
	status = f.postForm(fmt.Sprintf("/queues/tasks/%s/complete", created.ID),
		url.Values{"result": {"approved"}}, nil)
	if status != http.StatusConflict {
		t.Fatalf("second complete: status = %d, want 409", status)
	}
}

func TestAPIQueueStats(t *testing.T) {
	f := startAPI(t)

	f.submitTask("img-stats-1")
	second := f.submitTask("img-stats-2")
	f.postForm(fmt.Sprintf("/queues/tasks/%s/complete", second.ID),
		url.Values{"result": {"approved"}}, nil)

	var stats api.QueueStatsResponse
	if status := f.get("/queues/stats", &stats); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(stats.Queues) != 1 {
		t.Fatalf("expected one queue partition, got %d", len(stats.Queues))
	}
	q := stats.Queues[0]
	if q.QueueName != "review:pdq:spam" {
		t.Fatalf("queueName = %q", q.QueueName)
	}
	if q.Pending != 1 || q.Completed != 1 {
		t.Fatalf("counts = %+v", q)
	}
	if q.SuccessRate != 100 {
		t.Fatalf("successRate = %v, want 100", q.SuccessRate)
	}
}

func TestAPIListTasksByStatus(t *testing.T) {
	f := startAPI(t)

	f.submitTask("img-list-1")
	f.submitTask("img-list-2")

	var list api.TaskListResponse
	if status := f.get("/queues/tasks?status=pending", &list); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(list.Tasks) != 2 {
		t.Fatalf("pending tasks = %d, want 2", len(list.Tasks))
	}
	if list.Tasks[0].ImageID != "img-list-1" {
		t.Fatalf("expected oldest first, got %q", list.Tasks[0].ImageID)
	}
}

func TestAPIDescribeTask(t *testing.T) {
	f := startAPI(t)
	created := f.submitTask("img-describe")

	var got api.TaskResponse
	if status := f.get("/queues/tasks/"+created.ID, &got); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.Task == nil || got.Task.ImageID != "img-describe" {
		t.Fatalf("task = %+v", got.Task)
	}

	if status := f.get("/queues/tasks/nope", nil); status != http.StatusNotFound {
		t.Fatalf("unknown task: status = %d, want 404", status)
	}
}

func TestAPISubmitValidation(t *testing.T) {
	f := startAPI(t)

	status := f.postJSON("/queues/tasks", map[string]any{
		"imageId":         "img-bad",
		"contentCategory": "not-a-category",
		"hashAlgorithm":   "pdq",
		"confidenceLevel": "high",
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestAPIStatusEndpoint(t *testing.T) {
	f := startAPI(t)
	f.submitTask("img-status")

	var status api.DaemonStatus
	if code := f.get("/api/status", &status); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !status.Running {
		t.Fatal("expected running=true")
	}
	if status.TotalTasks != 1 {
		t.Fatalf("totalTasks = %d, want 1", status.TotalTasks)
	}
	if status.QueueDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("expected populated paths, got %+v", status)
	}
}
