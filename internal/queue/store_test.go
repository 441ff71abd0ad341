package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hashreview/internal/queue"
	"hashreview/internal/services"
	"hashreview/internal/testsupport"
)

func TestEnqueueAndGet(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task, err := store.Enqueue(ctx, queue.NewTask{
		ImageID:         "img-001",
		ContentCategory: "Spam",
		HashAlgorithm:   "PDQ",
		ConfidenceLevel: "high",
		Metadata:        map[string]string{"source": "upload", "distance": "12"},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if task.ID == "" {
		t.Fatal("expected generated task ID")
	}
	if task.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", task.Status)
	}
	if task.ContentCategory != "spam" || task.HashAlgorithm != "pdq" {
		t.Fatalf("expected normalized partition fields, got %q/%q", task.ContentCategory, task.HashAlgorithm)
	}
	if task.StartedAt != nil || task.CompletedAt != nil {
		t.Fatal("new task must not carry start or completion times")
	}
	if task.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp")
	}

	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected task to round-trip")
	}
	if fetched.Metadata["source"] != "upload" || fetched.Metadata["distance"] != "12" {
		t.Fatalf("metadata did not round-trip: %#v", fetched.Metadata)
	}
	if got := fetched.QueueKey(); got != "review:pdq:spam" {
		t.Fatalf("unexpected queue key %q", got)
	}
}

func TestEnqueueRejectsUnknownValues(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	cases := []queue.NewTask{
		{ImageID: "", ContentCategory: "spam", HashAlgorithm: "pdq", ConfidenceLevel: "high"},
		{ImageID: "img", ContentCategory: "gossip", HashAlgorithm: "pdq", ConfidenceLevel: "high"},
		{ImageID: "img", ContentCategory: "spam", HashAlgorithm: "quadhash", ConfidenceLevel: "high"},
		{ImageID: "img", ContentCategory: "spam", HashAlgorithm: "pdq", ConfidenceLevel: "certain"},
	}
	for _, tc := range cases {
		if _, err := store.Enqueue(ctx, tc); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Enqueue(%+v): expected validation error, got %v", tc, err)
		}
	}
}

func TestGetByIDMissing(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	task, err := store.GetByID(context.Background(), "no-such-task")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if task != nil {
		t.Fatalf("expected nil for missing task, got %+v", task)
	}
}

func TestDequeueNextClaimsOldest(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-a"})
	time.Sleep(2 * time.Millisecond)
	testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-b"})

	claimed, err := store.DequeueNext(ctx, queue.Filters{})
	if err != nil {
		t.Fatalf("DequeueNext: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimed task")
	}
	if claimed.ID != first.ID {
		t.Fatalf("expected oldest task %s, got %s", first.ID, claimed.ID)
	}
	if claimed.Status != queue.StatusActive {
		t.Fatalf("expected active status, got %s", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Fatal("expected started timestamp on claim")
	}
}

func TestDequeueNextEmptyQueue(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	task, err := store.DequeueNext(context.Background(), queue.Filters{})
	if err != nil {
		t.Fatalf("DequeueNext: %v", err)
	}
	if task != nil {
		t.Fatalf("expected nil on empty queue, got %+v", task)
	}
}

func TestDequeueNextHonorsFilters(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-spam", ContentCategory: "spam"})
	want := testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-hate", ContentCategory: "hate_speech", IsEscalated: true})

	claimed, err := store.DequeueNext(ctx, queue.Filters{ContentCategory: "hate_speech", EscalatedOnly: true})
	if err != nil {
		t.Fatalf("DequeueNext: %v", err)
	}
	if claimed == nil || claimed.ID != want.ID {
		t.Fatalf("expected task %s, got %+v", want.ID, claimed)
	}

	none, err := store.DequeueNext(ctx, queue.Filters{ContentCategory: "adult"})
	if err != nil {
		t.Fatalf("DequeueNext: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no adult tasks, got %+v", none)
	}
}

// Ten concurrent reviewers contending for six pending tasks must claim each
// task exactly once; the rest see an empty queue.
func TestDequeueNextConcurrentClaims(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	// More reviewers than tasks so some callers must observe the queue
	// draining rather than erroring out under write contention.
	const pending = 6
	const reviewers = 16
	for i := 0; i < pending; i++ {
		testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-concurrent"})
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []string
		empty   int
	)
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := store.DequeueNext(ctx, queue.Filters{})
			if err != nil {
				t.Errorf("DequeueNext: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if task == nil {
				empty++
				return
			}
			claimed = append(claimed, task.ID)
		}()
	}
	wg.Wait()

	if len(claimed) != pending {
		t.Fatalf("expected %d claims, got %d", pending, len(claimed))
	}
	if empty != reviewers-pending {
		t.Fatalf("expected %d empty results, got %d", reviewers-pending, empty)
	}
	seen := make(map[string]struct{}, len(claimed))
	for _, id := range claimed {
		if _, dup := seen[id]; dup {
			t.Fatalf("task %s claimed twice", id)
		}
		seen[id] = struct{}{}
	}
}

func TestTransitionCompletesActiveTask(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-x"})
	claimed, err := store.DequeueNext(ctx, queue.Filters{})
	if err != nil || claimed == nil {
		t.Fatalf("DequeueNext: task=%v err=%v", claimed, err)
	}

	done, err := store.Transition(ctx, claimed.ID, queue.ResultApproved, "clean upload")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if done.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.Result != queue.ResultApproved {
		t.Fatalf("expected approved result, got %s", done.Result)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}
	if done.Notes != "clean upload" {
		t.Fatalf("unexpected notes %q", done.Notes)
	}
	if done.IsEscalated {
		t.Fatal("approval must not escalate")
	}
}

func TestTransitionFromPendingSetsStart(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-direct"})
	done, err := store.Transition(ctx, task.ID, queue.ResultRejected, "")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if done.StartedAt == nil {
		t.Fatal("completing a pending task must backfill the start time")
	}
	if done.Result != queue.ResultRejected {
		t.Fatalf("expected rejected result, got %s", done.Result)
	}
}

func TestTransitionEscalatedSetsFlag(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-esc"})
	done, err := store.Transition(ctx, task.ID, queue.ResultEscalated, "needs senior review")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !done.IsEscalated {
		t.Fatal("escalated result must set the escalation flag")
	}
}

func TestTransitionRejectsCompletedAndMissing(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-final"})
	if _, err := store.Transition(ctx, task.ID, queue.ResultApproved, ""); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	if _, err := store.Transition(ctx, task.ID, queue.ResultRejected, ""); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected invalid state for completed task, got %v", err)
	}
	if _, err := store.Transition(ctx, "no-such-task", queue.ResultApproved, ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Transition(ctx, task.ID, queue.Result("maybe"), ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown result, got %v", err)
	}

	// The failed transitions must not have mutated the completed row.
	final, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Result != queue.ResultApproved {
		t.Fatalf("completed result changed to %s", final.Result)
	}
}

func TestReleaseReturnsTaskToPending(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-skip"})
	claimed, err := store.DequeueNext(ctx, queue.Filters{})
	if err != nil || claimed == nil {
		t.Fatalf("DequeueNext: task=%v err=%v", claimed, err)
	}

	if err := store.Release(ctx, claimed.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	released, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if released.Status != queue.StatusPending {
		t.Fatalf("expected pending after release, got %s", released.Status)
	}
	if released.StartedAt != nil {
		t.Fatal("release must clear the start time")
	}

	if err := store.Release(ctx, claimed.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected invalid state releasing a pending task, got %v", err)
	}
	if err := store.Release(ctx, "no-such-task"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListFiltersAndStatuses(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	spam := testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-1", ContentCategory: "spam"})
	adult := testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-2", ContentCategory: "adult", HashAlgorithm: "md5"})
	if _, err := store.Transition(ctx, adult.ID, queue.ResultApproved, ""); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	all, err := store.List(ctx, queue.Filters{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(all))
	}

	pending, err := store.List(ctx, queue.Filters{}, queue.StatusPending)
	if err != nil {
		t.Fatalf("List pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != spam.ID {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	md5Only, err := store.List(ctx, queue.Filters{HashAlgorithm: "md5"})
	if err != nil {
		t.Fatalf("List md5: %v", err)
	}
	if len(md5Only) != 1 || md5Only[0].ID != adult.ID {
		t.Fatalf("unexpected md5 list: %+v", md5Only)
	}
}

func TestCountByStatusAndClear(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-1"})
	second := testsupport.NewPendingTask(t, store, queue.NewTask{ImageID: "img-2"})
	if _, err := store.Transition(ctx, second.ID, queue.ResultApproved, ""); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	counts, err := store.CountByStatus(ctx, queue.Filters{})
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[queue.StatusPending] != 1 || counts[queue.StatusCompleted] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	remaining, err := store.List(ctx, queue.Filters{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected empty store, got %d tasks", len(remaining))
	}
}
