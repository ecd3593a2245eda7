package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/adapter/backend"
	"github.com/mpadronm90/simple-chatbot-platform/internal/config"
	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

const (
	defaultPollInterval  = time.Second
	defaultPollAttempts  = 30
	defaultStreamTimeout = 2 * time.Minute
)

// awaiter starts a run on the backend and waits for its final assistant text.
// onText receives incremental text when the mode produces any.
type awaiter interface {
	Mode() domain.RunMode
	Await(ctx context.Context, run *runTracker, onText func(delta string) error) (string, error)
}

func newAwaiter(cfg *config.Config, b backend.Backend, logger *zap.Logger) awaiter {
	if cfg.RunMode == domain.RunModeStreaming {
		return &streamingAwaiter{backend: b, timeout: positive(cfg.StreamTimeout, defaultStreamTimeout), logger: logger}
	}
	attempts := cfg.PollMaxAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	return &pollingAwaiter{
		backend:  b,
		interval: positive(cfg.PollInterval, defaultPollInterval),
		attempts: attempts,
		sleep:    sleepContext,
		logger:   logger,
	}
}

func positive(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// pollingAwaiter fetches the run status on a fixed interval with a bounded budget.
type pollingAwaiter struct {
	backend  backend.Backend
	interval time.Duration
	attempts int
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
}

func (p *pollingAwaiter) Mode() domain.RunMode { return domain.RunModePolling }

func (p *pollingAwaiter) Await(ctx context.Context, run *runTracker, _ func(string) error) (string, error) {
	handle, err := p.backend.StartRun(ctx, run.ThreadID, run.AgentID)
	if err != nil {
		return "", err
	}
	run.RunID = handle.RunID
	run.transition(domain.RunStateRunStarted)
	run.transition(domain.RunStatePolling)

	for attempt := 1; attempt <= p.attempts; attempt++ {
		status, err := p.backend.GetRunStatus(ctx, handle)
		if err != nil {
			return "", err
		}
		run.Status = status

		switch {
		case status == domain.RunStatusCompleted:
			return p.latestAssistantText(ctx, run.ThreadID)
		case status.IsFailure():
			return "", fmt.Errorf("run %s %s: %w", handle.RunID, status, domain.ErrRunFailed)
		case status == domain.RunStatusRequiresAction:
			p.logger.Warn("run requires action, tool calls are not handled",
				zap.String("run_id", handle.RunID), zap.String("thread_id", run.ThreadID))
		}

		if attempt < p.attempts {
			if err := p.sleep(ctx, p.interval); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("run %s still %s after %d polls: %w", handle.RunID, run.Status, p.attempts, domain.ErrRunTimedOut)
}

// latestAssistantText reads the reply of the run that just completed: the newest message
// in the thread, which must be an assistant message with text.
func (p *pollingAwaiter) latestAssistantText(ctx context.Context, threadID string) (string, error) {
	msgs, err := p.backend.ListMessages(ctx, threadID)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("no messages in thread %s: %w", threadID, domain.ErrMalformedResponse)
	}
	newest := msgs[0]
	if newest.Role != domain.RoleAssistant {
		return "", fmt.Errorf("newest message %s in thread %s is from %s: %w", newest.ID, threadID, newest.Role, domain.ErrMalformedResponse)
	}
	if !newest.HasText {
		return "", fmt.Errorf("assistant message %s has no text content: %w", newest.ID, domain.ErrMalformedResponse)
	}
	return newest.Text, nil
}

// streamingAwaiter consumes the backend's event stream under a wall-clock timeout.
type streamingAwaiter struct {
	backend backend.Backend
	timeout time.Duration
	logger  *zap.Logger
}

func (s *streamingAwaiter) Mode() domain.RunMode { return domain.RunModeStreaming }

func (s *streamingAwaiter) Await(ctx context.Context, run *runTracker, onText func(string) error) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		acc       strings.Builder
		final     string
		hasFinal  bool
		failure   string
		failed    bool
		completed bool
	)
	run.transition(domain.RunStateRunStarted)
	run.transition(domain.RunStateStreaming)

	err := s.backend.StreamRun(ctx, run.ThreadID, run.AgentID, func(ev domain.StreamEvent) error {
		if ev.RunID != "" {
			run.RunID = ev.RunID
		}
		switch ev.Type {
		case domain.StreamEventRunCreated:
			s.logger.Debug("run created", zap.String("run_id", ev.RunID), zap.String("thread_id", run.ThreadID))
		case domain.StreamEventTextDelta:
			acc.WriteString(ev.Text)
			return onText(ev.Text)
		case domain.StreamEventToolCallDelta:
			s.logger.Debug("tool call delta passed through", zap.String("run_id", run.RunID), zap.ByteString("tool_call", ev.ToolCall))
		case domain.StreamEventMessageDone:
			final, hasFinal = ev.Text, true
		case domain.StreamEventCompleted:
			completed = true
			run.Status = domain.RunStatusCompleted
		case domain.StreamEventFailed:
			failure, failed = ev.Error, true
			run.Status = domain.RunStatusFailed
		}
		return nil
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded) || (err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)):
		return "", fmt.Errorf("stream exceeded %s: %w", s.timeout, domain.ErrRunTimedOut)
	case err != nil:
		return "", err
	case failed:
		return "", fmt.Errorf("run %s: %s: %w", run.RunID, failure, domain.ErrRunFailed)
	}
	if !completed {
		s.logger.Warn("stream ended without a completion event", zap.String("run_id", run.RunID))
	}
	if hasFinal {
		return final, nil
	}
	if acc.Len() == 0 {
		return "", fmt.Errorf("run %s produced no text: %w", run.RunID, domain.ErrMalformedResponse)
	}
	return acc.String(), nil
}
