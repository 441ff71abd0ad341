package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"hashreview/internal/config"
	"hashreview/internal/logging"
	"hashreview/internal/match"
	"hashreview/internal/queue"
	"hashreview/internal/services"
	"hashreview/internal/services/hasher"
	"hashreview/internal/simindex"
)

// State is the review session lifecycle position.
type State string

const (
	// StateIdle is the starting state before any task has been requested.
	StateIdle State = "idle"
	// StateLoading covers dequeue plus evidence gathering.
	StateLoading State = "loading"
	// StatePresenting means a task is held by the session awaiting a decision.
	StatePresenting State = "presenting"
	// StateSubmitting covers a decision or skip in flight.
	StateSubmitting State = "submitting"
	// StateExhausted means the last load found no pending task. Terminal until
	// the next explicit LoadNext.
	StateExhausted State = "exhausted"
)

// ErrBusy is returned when LoadNext, Decide, or Skip is called while another
// such call is still in flight. Session calls never interleave.
var ErrBusy = errors.New("review session busy")

// SimilarItem is one nearby reference attached to a presented task.
type SimilarItem struct {
	ReferenceID string
	Distance    float64
	Label       string
	Source      string
	Metadata    map[string]string
}

// Presented is a task plus the evidence gathered for it.
type Presented struct {
	Task *queue.Task
	// Verdict interprets the task's recorded match distance, when known.
	Verdict *match.Verdict
	// Similar holds nearby entries from the local index.
	Similar []SimilarItem
	// Matches holds external reference hits for the task's image.
	Matches []SimilarItem
	// Degraded marks evidence fabricated by the demo source because the
	// hashing service was unreachable. Always surfaced to the reviewer.
	Degraded bool
}

// AdvanceResult reports the outcome of a Decide or Skip call.
type AdvanceResult struct {
	// Completed is the transitioned task, nil when the decision could not be
	// applied (see Notice) or the call was a skip.
	Completed *queue.Task
	// Next is the newly presented task, nil when the queue is exhausted.
	Next *Presented
	// Notice carries a user-visible message for recoverable failures, such as
	// deciding a task another reviewer already completed.
	Notice string
}

// Session serializes one reviewer's pass over a queue partition. A session
// holds at most one claimed task at a time; concurrent sessions contend only
// inside the queue store's atomic dequeue.
type Session struct {
	store   *queue.Store
	index   *simindex.Index
	matcher hasher.Matcher
	demo    hasher.Matcher
	interp  *match.Interpreter
	logger  *slog.Logger

	threshold    float64
	similarLimit int

	mu      sync.Mutex
	busy    bool
	state   State
	current *Presented
	filters queue.Filters
}

// NewSession builds a review session. The matcher may be nil when only local
// index evidence is wanted; the demo source then covers upstream fallback.
func NewSession(cfg *config.Config, store *queue.Store, index *simindex.Index, matcher hasher.Matcher, logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Session{
		store:        store,
		index:        index,
		matcher:      matcher,
		demo:         hasher.NewDemo(),
		interp:       match.NewInterpreter(cfg.LicenseKeys()),
		logger:       logger.With(logging.String(logging.FieldComponent, "review")),
		threshold:    cfg.Review.SimilarityThreshold,
		similarLimit: cfg.Review.SimilarLimit,
		state:        StateIdle,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the presented task, nil outside Presenting.
func (s *Session) Current() *Presented {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) begin(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	s.state = next
	return nil
}

func (s *Session) finish(state State, current *Presented) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.state = state
	s.current = current
}

// LoadNext claims the oldest pending task matching the filters and gathers
// its evidence. A nil result with nil error means the queue is exhausted.
// On failure the previously presented task, if any, is retained.
func (s *Session) LoadNext(ctx context.Context, filters queue.Filters) (*Presented, error) {
	if err := s.begin(StateLoading); err != nil {
		return nil, err
	}
	prior := s.Current()

	presented, err := s.loadNext(ctx, filters)
	if err != nil {
		if prior != nil {
			s.finish(StatePresenting, prior)
		} else {
			s.finish(StateIdle, nil)
		}
		return nil, err
	}
	if presented == nil {
		s.finish(StateExhausted, nil)
		return nil, nil
	}

	s.mu.Lock()
	s.filters = filters
	s.mu.Unlock()
	s.finish(StatePresenting, presented)
	return presented, nil
}

func (s *Session) loadNext(ctx context.Context, filters queue.Filters) (*Presented, error) {
	task, err := s.store.DequeueNext(ctx, filters)
	if err != nil {
		return nil, err
	}
	if task == nil {
		s.logger.Info("queue exhausted",
			logging.String(logging.FieldQueue, queue.QueueName(filters.ContentCategory, filters.HashAlgorithm, filters.EscalatedOnly)))
		return nil, nil
	}

	presented, err := s.gatherEvidence(ctx, task)
	if err != nil {
		// A claimed task must not leak when loading is aborted.
		if releaseErr := s.store.Release(context.WithoutCancel(ctx), task.ID); releaseErr != nil {
			s.logger.Warn("release claimed task failed",
				logging.String(logging.FieldTaskID, task.ID),
				logging.Error(releaseErr))
		}
		return nil, err
	}
	return presented, nil
}

func (s *Session) gatherEvidence(ctx context.Context, task *queue.Task) (*Presented, error) {
	presented := &Presented{Task: task}

	fingerprint := strings.TrimSpace(task.Metadata["fingerprint"])
	if distance, ok := taskDistance(task); ok {
		verdict := s.interp.Classify(task.HashAlgorithm, distance)
		presented.Verdict = &verdict
	}

	if fingerprint == "" {
		return presented, nil
	}

	if s.index != nil {
		similar, err := s.index.Query(ctx, task.HashAlgorithm, fingerprint, s.threshold, s.similarLimit)
		if err != nil && !errors.Is(err, services.ErrValidation) {
			return nil, err
		}
		for _, hit := range similar {
			verdict := s.interp.Classify(task.HashAlgorithm, hit.Distance)
			presented.Similar = append(presented.Similar, SimilarItem{
				ReferenceID: hit.Entry.ImageID,
				Distance:    hit.Distance,
				Label:       verdict.Label,
				Source:      hit.Entry.SourceTag,
				Metadata:    hit.Entry.Metadata,
			})
		}
	}

	matches, degraded, err := s.findMatches(ctx, task, fingerprint)
	if err != nil {
		return nil, err
	}
	presented.Matches = matches
	presented.Degraded = degraded
	return presented, nil
}

// findMatches asks the hashing service for reference hits and falls back to
// the demo source when it is unreachable. The fallback is explicit: the
// presented task is marked degraded and every demo match is labeled.
func (s *Session) findMatches(ctx context.Context, task *queue.Task, fingerprint string) ([]SimilarItem, bool, error) {
	probe := hasher.Probe{HashValue: fingerprint}

	source := s.matcher
	degraded := false
	if source == nil {
		source = s.demo
		degraded = true
	}

	hits, err := source.FindNearest(ctx, probe, task.HashAlgorithm, s.threshold)
	if err != nil && errors.Is(err, services.ErrUpstreamUnavailable) && !degraded {
		s.logger.Warn("hashing service unreachable, using demo data",
			logging.String(logging.FieldTaskID, task.ID),
			logging.Error(err))
		degraded = true
		hits, err = s.demo.FindNearest(ctx, probe, task.HashAlgorithm, s.threshold)
	}
	if err != nil {
		return nil, false, err
	}

	items := make([]SimilarItem, 0, len(hits))
	for _, hit := range hits {
		verdict := s.interp.Classify(task.HashAlgorithm, hit.Distance)
		source := hit.Metadata["source"]
		if degraded {
			source = "demo"
		}
		items = append(items, SimilarItem{
			ReferenceID: hit.ID,
			Distance:    hit.Distance,
			Label:       verdict.Label,
			Source:      source,
			Metadata:    hit.Metadata,
		})
	}
	return items, degraded, nil
}

// Decide completes the presented task and auto-advances to the next one.
// Recoverable transition failures (the task was completed elsewhere) do not
// abort the session; they are reported in the result's Notice and the session
// still advances.
func (s *Session) Decide(ctx context.Context, taskID string, result queue.Result, notes string) (*AdvanceResult, error) {
	if err := s.begin(StateSubmitting); err != nil {
		return nil, err
	}

	current := s.Current()
	if current == nil || current.Task == nil {
		s.finish(StateIdle, nil)
		return nil, services.Wrap(services.ErrInvalidState, "review", "decide", "no task is presented", nil)
	}
	if taskID != "" && taskID != current.Task.ID {
		s.finish(StatePresenting, current)
		return nil, services.Wrap(services.ErrValidation, "review", "decide",
			fmt.Sprintf("task %s is not the presented task", taskID), nil)
	}

	advance := &AdvanceResult{}
	completed, err := s.store.Transition(ctx, current.Task.ID, result, notes)
	switch {
	case err == nil:
		advance.Completed = completed
		s.logger.Info("task decided",
			logging.String(logging.FieldTaskID, completed.ID),
			logging.String("result", string(result)),
			logging.String(logging.FieldQueue, completed.QueueKey()))
	case services.IsRecoverable(err):
		advance.Notice = "task no longer available, loading next"
		s.logger.Warn("decision not applied",
			logging.String(logging.FieldTaskID, current.Task.ID),
			logging.Error(err))
	default:
		s.finish(StatePresenting, current)
		return nil, err
	}

	return s.advance(ctx, advance)
}

// Skip moves on without deciding the presented task, which returns to pending
// and will be revisited later. The next task is claimed before the skipped
// one is released so a lone skipped task is not immediately re-presented.
func (s *Session) Skip(ctx context.Context) (*AdvanceResult, error) {
	if err := s.begin(StateSubmitting); err != nil {
		return nil, err
	}

	current := s.Current()
	if current == nil || current.Task == nil {
		s.finish(StateIdle, nil)
		return nil, services.Wrap(services.ErrInvalidState, "review", "skip", "no task is presented", nil)
	}

	s.mu.Lock()
	filters := s.filters
	s.mu.Unlock()

	next, err := s.loadNext(ctx, filters)
	if err != nil {
		s.finish(StatePresenting, current)
		return nil, err
	}

	released := false
	if err := s.store.Release(context.WithoutCancel(ctx), current.Task.ID); err != nil {
		if !services.IsRecoverable(err) {
			s.finish(StatePresenting, current)
			return nil, err
		}
		s.logger.Warn("skip release not applied",
			logging.String(logging.FieldTaskID, current.Task.ID),
			logging.Error(err))
	} else {
		released = true
		s.logger.Info("task skipped", logging.String(logging.FieldTaskID, current.Task.ID))
	}

	advance := &AdvanceResult{}
	if next == nil {
		// The released task is pending again, so the queue is not empty.
		// Tell the reviewer what is left instead of claiming exhaustion.
		if released {
			advance.Notice = "only skipped tasks remain"
		}
		s.finish(StateExhausted, nil)
		return advance, nil
	}
	advance.Next = next
	s.finish(StatePresenting, next)
	return advance, nil
}

// Abandon releases the presented task back to pending and returns the session
// to idle. Reviewers quitting mid-session must not keep tasks claimed.
func (s *Session) Abandon(ctx context.Context) error {
	if err := s.begin(StateSubmitting); err != nil {
		return err
	}

	current := s.Current()
	if current == nil || current.Task == nil {
		s.finish(StateIdle, nil)
		return nil
	}

	if err := s.store.Release(context.WithoutCancel(ctx), current.Task.ID); err != nil {
		if !services.IsRecoverable(err) {
			s.finish(StatePresenting, current)
			return err
		}
		s.logger.Warn("abandon release not applied",
			logging.String(logging.FieldTaskID, current.Task.ID),
			logging.Error(err))
	}
	s.finish(StateIdle, nil)
	return nil
}

// advance performs the automatic LoadNext after a decision or skip. The busy
// flag stays held across the whole advance so the two steps never interleave
// with another call.
func (s *Session) advance(ctx context.Context, result *AdvanceResult) (*AdvanceResult, error) {
	s.mu.Lock()
	filters := s.filters
	s.mu.Unlock()

	next, err := s.loadNext(ctx, filters)
	if err != nil {
		s.finish(StateIdle, nil)
		return nil, err
	}
	if next == nil {
		s.finish(StateExhausted, nil)
		return result, nil
	}
	result.Next = next
	s.finish(StatePresenting, next)
	return result, nil
}

// taskDistance reads the recorded match distance from task metadata.
func taskDistance(task *queue.Task) (float64, bool) {
	raw, ok := task.Metadata["distance"]
	if !ok {
		return 0, false
	}
	var distance float64
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%g", &distance); err != nil {
		return 0, false
	}
	return distance, true
}
