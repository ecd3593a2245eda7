package helpers

import (
	"context"
	"sync"

	"github.com/mpadronm90/simple-chatbot-platform/internal/adapter/backend"
	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

// StubBackend is a MockClient whose run-related calls can be scripted per test.
type StubBackend struct {
	*backend.MockClient

	mu sync.Mutex

	// StartRunGate, when set, blocks StartRun and StreamRun until it is closed.
	StartRunGate chan struct{}
	// StatusFunc scripts GetRunStatus. call starts at 1.
	StatusFunc func(call int) (domain.RunStatus, error)
	// ListFunc scripts ListMessages.
	ListFunc func(threadID string) ([]backend.RemoteMessage, error)
	// StreamFunc scripts StreamRun.
	StreamFunc func(ctx context.Context, threadID string, handler backend.StreamHandler) error

	CreateAssistantErr error
	UpdateAssistantErr error
	DeleteAssistantErr error
	CreateThreadErr    error

	statusCalls       int
	startRunCalls     int
	postedMessages    []string
	updatedAssistants []string
	deletedAssistants []string
	deletedThreads    []string
}

func NewStubBackend() *StubBackend {
	return &StubBackend{MockClient: backend.NewMockClient()}
}

func (b *StubBackend) wait(ctx context.Context) error {
	b.mu.Lock()
	gate := b.StartRunGate
	b.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *StubBackend) CreateAssistant(ctx context.Context, spec backend.AssistantSpec) (string, error) {
	if b.CreateAssistantErr != nil {
		return "", b.CreateAssistantErr
	}
	return b.MockClient.CreateAssistant(ctx, spec)
}

func (b *StubBackend) UpdateAssistant(ctx context.Context, id string, spec backend.AssistantSpec) error {
	if b.UpdateAssistantErr != nil {
		return b.UpdateAssistantErr
	}
	b.mu.Lock()
	b.updatedAssistants = append(b.updatedAssistants, id)
	b.mu.Unlock()
	return b.MockClient.UpdateAssistant(ctx, id, spec)
}

func (b *StubBackend) DeleteAssistant(ctx context.Context, id string) error {
	b.mu.Lock()
	b.deletedAssistants = append(b.deletedAssistants, id)
	b.mu.Unlock()
	if b.DeleteAssistantErr != nil {
		return b.DeleteAssistantErr
	}
	return b.MockClient.DeleteAssistant(ctx, id)
}

func (b *StubBackend) CreateThread(ctx context.Context) (string, error) {
	if b.CreateThreadErr != nil {
		return "", b.CreateThreadErr
	}
	return b.MockClient.CreateThread(ctx)
}

func (b *StubBackend) DeleteThread(ctx context.Context, id string) error {
	b.mu.Lock()
	b.deletedThreads = append(b.deletedThreads, id)
	b.mu.Unlock()
	return b.MockClient.DeleteThread(ctx, id)
}

func (b *StubBackend) PostMessage(ctx context.Context, threadID string, role domain.Role, content string) (backend.PostedMessage, error) {
	b.mu.Lock()
	b.postedMessages = append(b.postedMessages, content)
	b.mu.Unlock()
	return b.MockClient.PostMessage(ctx, threadID, role, content)
}

func (b *StubBackend) StartRun(ctx context.Context, threadID, assistantID string) (domain.RunHandle, error) {
	b.mu.Lock()
	b.startRunCalls++
	b.mu.Unlock()
	if err := b.wait(ctx); err != nil {
		return domain.RunHandle{}, err
	}
	return b.MockClient.StartRun(ctx, threadID, assistantID)
}

func (b *StubBackend) GetRunStatus(ctx context.Context, handle domain.RunHandle) (domain.RunStatus, error) {
	b.mu.Lock()
	b.statusCalls++
	call := b.statusCalls
	fn := b.StatusFunc
	b.mu.Unlock()
	if fn != nil {
		return fn(call)
	}
	return b.MockClient.GetRunStatus(ctx, handle)
}

func (b *StubBackend) ListMessages(ctx context.Context, threadID string) ([]backend.RemoteMessage, error) {
	if b.ListFunc != nil {
		return b.ListFunc(threadID)
	}
	return b.MockClient.ListMessages(ctx, threadID)
}

func (b *StubBackend) StreamRun(ctx context.Context, threadID, assistantID string, handler backend.StreamHandler) error {
	b.mu.Lock()
	b.startRunCalls++
	b.mu.Unlock()
	if err := b.wait(ctx); err != nil {
		return err
	}
	if b.StreamFunc != nil {
		return b.StreamFunc(ctx, threadID, handler)
	}
	return b.MockClient.StreamRun(ctx, threadID, assistantID, handler)
}

func (b *StubBackend) StatusCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusCalls
}

func (b *StubBackend) StartRunCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startRunCalls
}

func (b *StubBackend) PostedMessages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.postedMessages...)
}

func (b *StubBackend) UpdatedAssistants() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.updatedAssistants...)
}

func (b *StubBackend) DeletedAssistants() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deletedAssistants...)
}

func (b *StubBackend) DeletedThreads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deletedThreads...)
}

// Ensure StubBackend implements Backend interface.
var _ backend.Backend = (*StubBackend)(nil)
