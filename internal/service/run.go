package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/repository"
)

// RunRequest asks for one assistant turn on a thread.
type RunRequest struct {
	ThreadID string
	AgentID  string
	UserID   string
	// Content, when set, is appended as the user message before the run starts.
	Content string
}

// DeltaFunc receives incremental output of a run. An error detaches the listener
// without stopping the run.
type DeltaFunc func(domain.Delta) error

// runTracker carries the in-memory run record and mirrors every transition into the registry.
type runTracker struct {
	domain.Run
	registry *runRegistry
	logger   *zap.Logger
}

func (t *runTracker) transition(state domain.RunState) {
	if t.State.IsTerminal() {
		t.logger.Warn("ignoring transition of finished run",
			zap.String("run_id", t.RunID),
			zap.String("state", string(t.State)),
			zap.String("requested", string(state)))
		return
	}
	t.State = state
	t.registry.update(t.Run)
	t.logger.Info("run transition",
		zap.String("run_id", t.RunID),
		zap.String("thread_id", t.ThreadID),
		zap.String("agent_id", t.AgentID),
		zap.String("state", string(state)))
}

// deltaSink forwards deltas to the caller until the caller goes away.
type deltaSink struct {
	mu       sync.Mutex
	fn       DeltaFunc
	detached bool
}

func (d *deltaSink) emit(delta domain.Delta) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached || d.fn == nil {
		return
	}
	if err := d.fn(delta); err != nil {
		d.detached = true
	}
}

func (d *deltaSink) detach() {
	d.mu.Lock()
	d.detached = true
	d.mu.Unlock()
}

type runOutcome struct {
	result *domain.RunResult
	err    error
}

// RunAssistant executes one assistant turn on a thread. At most one run is active per
// thread. If ctx ends first the run keeps going in the background and its writes still land.
func (s *Service) RunAssistant(ctx context.Context, req RunRequest, onDelta DeltaFunc) (*domain.RunResult, error) {
	if req.ThreadID == "" {
		return nil, domain.Required("threadId")
	}
	if req.AgentID == "" {
		return nil, domain.Required("assistantId")
	}

	tracker := &runTracker{
		Run: domain.Run{
			ThreadID:  req.ThreadID,
			AgentID:   req.AgentID,
			Mode:      s.awaiter.Mode(),
			State:     domain.RunStateCreated,
			StartedAt: s.now(),
		},
		registry: s.runs,
		logger:   s.logger,
	}
	release, err := s.runs.acquire(tracker.Run)
	if err != nil {
		return nil, err
	}

	if req.Content != "" {
		if _, err := s.appendUserMessage(ctx, req.ThreadID, req.Content); err != nil {
			release()
			return nil, err
		}
		tracker.transition(domain.RunStateMessagePosted)
	}

	sink := &deltaSink{fn: onDelta}
	done := make(chan runOutcome, 1)
	go func() {
		defer release()
		result, err := s.executeRun(context.WithoutCancel(ctx), tracker, sink)
		done <- runOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		sink.detach()
		s.logger.Info("caller left, run continues in background",
			zap.String("thread_id", req.ThreadID), zap.Error(ctx.Err()))
		return nil, ctx.Err()
	}
}

// ActiveRun returns the run currently holding the thread's slot.
func (s *Service) ActiveRun(threadID string) (domain.Run, bool) {
	return s.runs.get(threadID)
}

func (s *Service) executeRun(ctx context.Context, run *runTracker, sink *deltaSink) (*domain.RunResult, error) {
	draft := domain.NewDraftMessage(newID("msg"), run.ThreadID, s.nowMillis())
	path := repository.MessagePath(run.ThreadID, draft.ID())

	onText := func(delta string) error {
		snapshot := draft.Append(delta)
		if err := s.store.Set(ctx, path, snapshot); err != nil {
			return err
		}
		sink.emit(domain.Delta{MessageID: draft.ID(), Text: delta, Content: snapshot.Content})
		return nil
	}

	text, err := s.awaiter.Await(ctx, run, onText)
	if err != nil {
		s.fail(run, err)
		return nil, err
	}

	// Final write under the draft id overwrites any partial content.
	final := draft.Replace(text)
	if err := s.store.Set(ctx, path, final); err != nil {
		s.fail(run, err)
		return nil, err
	}
	if run.Mode == domain.RunModePolling {
		sink.emit(domain.Delta{MessageID: draft.ID(), Text: text, Content: text})
	}

	msg, err := draft.Finalize()
	if err != nil {
		return nil, err
	}
	run.Status = domain.RunStatusCompleted
	run.transition(domain.RunStateCompleted)
	return &domain.RunResult{Run: run.Run, Message: msg}, nil
}

// fail records the terminal state. Partial draft content stays in the store.
func (s *Service) fail(run *runTracker, err error) {
	state := domain.RunStateFailed
	if errors.Is(err, domain.ErrRunTimedOut) {
		state = domain.RunStateTimedOut
	}
	run.transition(state)
	s.logger.Warn("run did not complete",
		zap.String("run_id", run.RunID),
		zap.String("thread_id", run.ThreadID),
		zap.String("status", string(run.Status)),
		zap.Error(err))
}

// appendUserMessage stores the user turn first, then posts it to the backend.
func (s *Service) appendUserMessage(ctx context.Context, threadID, content string) (*domain.Message, error) {
	msg := domain.Message{
		ID:          newID("msg"),
		Role:        domain.RoleUser,
		Content:     content,
		ContentType: domain.ContentTypeText,
		Created:     s.nowMillis(),
		ThreadID:    threadID,
	}
	path := repository.MessagePath(threadID, msg.ID)
	if err := s.store.Set(ctx, path, msg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	posted, err := s.backend.PostMessage(ctx, threadID, domain.RoleUser, content)
	if err != nil {
		return nil, fmt.Errorf("failed to post user message: %w", err)
	}
	msg.Metadata = map[string]string{"remoteId": posted.ID}
	if err := s.store.Set(ctx, repository.Join(path, "metadata"), msg.Metadata); err != nil {
		s.logger.Warn("failed to record remote message id", zap.String("message_id", msg.ID), zap.Error(err))
	}
	return &msg, nil
}
