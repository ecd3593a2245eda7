package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/adapter/backend"
	"github.com/mpadronm90/simple-chatbot-platform/internal/config"
	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/repository"
	"github.com/mpadronm90/simple-chatbot-platform/tests/helpers"
)

func testConfig(mode domain.RunMode) *config.Config {
	return &config.Config{
		RunMode:         mode,
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 30,
		StreamTimeout:   time.Second,
		DefaultModel:    "gpt-4-turbo-preview",
	}
}

func newTestService(t *testing.T, mode domain.RunMode, b backend.Backend, store repository.Store) *Service {
	t.Helper()
	svc := New(store, b, testConfig(mode), zap.NewNop())
	if p, ok := svc.awaiter.(*pollingAwaiter); ok {
		p.sleep = func(context.Context, time.Duration) error { return nil }
	}
	return svc
}

// seedThread creates an agent and a thread known to both the backend and the store.
func seedThread(t *testing.T, svc *Service) (agentID, threadID string) {
	t.Helper()
	ctx := context.Background()
	agent, err := svc.CreateAgent(ctx, domain.CreateAssistantRequest{Name: "Helper", UserID: "admin1"})
	if err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	thread, err := svc.CreateThread(ctx, "user1", "cb1")
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}
	return agent.ID, thread.ID
}

func messagesByRole(t *testing.T, svc *Service, threadID string, role domain.Role) []domain.Message {
	t.Helper()
	msgs, err := svc.GetThreadMessages(context.Background(), threadID)
	if err != nil {
		t.Fatalf("GetThreadMessages failed: %v", err)
	}
	var out []domain.Message
	for _, m := range msgs {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

func newStubService(t *testing.T, mode domain.RunMode) (*Service, *helpers.StubBackend) {
	t.Helper()
	b := helpers.NewStubBackend()
	return newTestService(t, mode, b, helpers.NewTestSQLiteStore(t)), b
}
