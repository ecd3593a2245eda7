package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpadronm90/simple-chatbot-platform/internal/adapter/backend"
	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/repository"
	"github.com/mpadronm90/simple-chatbot-platform/tests/helpers"
)

func TestCreateAgentUsesBackendID(t *testing.T) {
	svc, b := newStubService(t, domain.RunModePolling)
	ctx := context.Background()

	agent, err := svc.CreateAgent(ctx, domain.CreateAssistantRequest{
		Name:         "Support",
		Description:  "answers questions",
		Instructions: "be brief",
		UserID:       "admin1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(agent.ID, "asst_"))
	assert.Equal(t, "gpt-4-turbo-preview", agent.Model)

	stored, err := svc.GetAgent(ctx, "admin1", agent.ID)
	require.NoError(t, err)
	assert.Equal(t, *agent, *stored)

	// The backend knows the same id.
	require.NoError(t, b.MockClient.UpdateAssistant(ctx, agent.ID, backend.AssistantSpec{Name: "Support"}))
}

func TestCreateAgentCompensatesOnStoreFailure(t *testing.T) {
	b := helpers.NewStubBackend()
	store := &helpers.FailingStore{Store: helpers.NewTestMemoryStore(t)}
	store.SetFailSet(func(path string) bool { return strings.HasPrefix(path, repository.AgentsRoot) })
	svc := newTestService(t, domain.RunModePolling, b, store)

	_, err := svc.CreateAgent(context.Background(), domain.CreateAssistantRequest{Name: "Support", UserID: "admin1"})
	assert.ErrorIs(t, err, domain.ErrStoreWriteFailed)
	assert.False(t, errors.Is(err, domain.ErrOrphanedResourceRisk))
	require.Len(t, b.DeletedAssistants(), 1)

	agents, err := svc.ListAgents(context.Background(), "admin1")
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestCreateAgentReportsOrphanWhenCompensationFails(t *testing.T) {
	b := helpers.NewStubBackend()
	b.DeleteAssistantErr = domain.ErrBackendUnavailable
	store := &helpers.FailingStore{Store: helpers.NewTestMemoryStore(t)}
	store.SetFailSet(func(string) bool { return true })
	svc := newTestService(t, domain.RunModePolling, b, store)

	_, err := svc.CreateAgent(context.Background(), domain.CreateAssistantRequest{Name: "Support", UserID: "admin1"})
	assert.ErrorIs(t, err, domain.ErrOrphanedResourceRisk)
	assert.ErrorIs(t, err, domain.ErrStoreWriteFailed)
	assert.Len(t, b.DeletedAssistants(), 1)
}

func TestUpdateAgentStoreFailureAfterBackendUpdate(t *testing.T) {
	b := helpers.NewStubBackend()
	store := &helpers.FailingStore{Store: helpers.NewTestMemoryStore(t)}
	svc := newTestService(t, domain.RunModePolling, b, store)
	ctx := context.Background()

	agent, err := svc.CreateAgent(ctx, domain.CreateAssistantRequest{Name: "Support", UserID: "admin1"})
	require.NoError(t, err)

	store.SetFailSet(func(string) bool { return true })
	updated := *agent
	updated.Instructions = "new instructions"
	_, err = svc.UpdateAgent(ctx, updated)
	assert.ErrorIs(t, err, domain.ErrStoreWriteFailed)
	assert.Equal(t, []string{agent.ID}, b.UpdatedAssistants())

	stored, err := svc.GetAgent(ctx, "admin1", agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "", stored.Instructions)
}

func TestUpdateAgentUnknown(t *testing.T) {
	svc, b := newStubService(t, domain.RunModePolling)
	_, err := svc.UpdateAgent(context.Background(), domain.Agent{ID: "asst_x", OwnerID: "admin1", Name: "n"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, b.UpdatedAssistants())
}

func TestDeleteAgentRefusesWhileReferenced(t *testing.T) {
	svc, b := newStubService(t, domain.RunModePolling)
	ctx := context.Background()
	agent, err := svc.CreateAgent(ctx, domain.CreateAssistantRequest{Name: "Support", UserID: "admin1"})
	require.NoError(t, err)
	cb, err := svc.CreateChatbot(ctx, domain.Chatbot{Name: "Widget", AgentID: agent.ID, OwnerID: "admin1"})
	require.NoError(t, err)

	err = svc.DeleteAgent(ctx, "admin1", agent.ID)
	assert.ErrorIs(t, err, domain.ErrReferencedAgent)
	assert.Empty(t, b.DeletedAssistants())

	require.NoError(t, svc.DeleteChatbot(ctx, cb.ID))
	require.NoError(t, svc.DeleteAgent(ctx, "admin1", agent.ID))
	assert.Equal(t, []string{agent.ID}, b.DeletedAssistants())

	_, err = svc.GetAgent(ctx, "admin1", agent.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAgents(t *testing.T) {
	svc, _ := newStubService(t, domain.RunModePolling)
	ctx := context.Background()
	for _, name := range []string{"a", "b"} {
		_, err := svc.CreateAgent(ctx, domain.CreateAssistantRequest{Name: name, UserID: "admin1"})
		require.NoError(t, err)
	}
	_, err := svc.CreateAgent(ctx, domain.CreateAssistantRequest{Name: "other", UserID: "admin2"})
	require.NoError(t, err)

	agents, err := svc.ListAgents(ctx, "admin1")
	require.NoError(t, err)
	assert.Len(t, agents, 2)
}
