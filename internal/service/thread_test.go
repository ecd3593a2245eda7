package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/repository"
	"github.com/mpadronm90/simple-chatbot-platform/tests/helpers"
)

func TestCreateThreadWritesAllRecords(t *testing.T) {
	svc, _ := newStubService(t, domain.RunModePolling)
	ctx := context.Background()

	thread, err := svc.CreateThread(ctx, "user1", "cb1")
	require.NoError(t, err)

	got, err := svc.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, "user1", got.UserID)
	assert.Equal(t, "cb1", got.ChatbotID)

	raw, err := svc.store.Get(ctx, repository.UserThreadPath("user1", thread.ID))
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(raw))
	raw, err = svc.store.Get(ctx, repository.ChatbotThreadPath("cb1", thread.ID))
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(raw))
}

func TestCreateThreadFailureWritesNothing(t *testing.T) {
	b := helpers.NewStubBackend()
	store := &helpers.FailingStore{Store: helpers.NewTestMemoryStore(t), FailUpdate: true}
	svc := newTestService(t, domain.RunModePolling, b, store)
	ctx := context.Background()

	_, err := svc.CreateThread(ctx, "user1", "cb1")
	assert.ErrorIs(t, err, domain.ErrStoreWriteFailed)
	require.Len(t, b.DeletedThreads(), 1)

	for _, p := range []string{repository.ThreadsRoot, repository.UserThreadsRoot, repository.ChatbotThreadsRoot} {
		raw, err := store.Get(ctx, p)
		require.NoError(t, err)
		assert.Nil(t, raw, p)
	}
}

func TestGetThreadsIntersectsIndexes(t *testing.T) {
	svc, _ := newStubService(t, domain.RunModePolling)
	ctx := context.Background()

	t1, err := svc.CreateThread(ctx, "u1", "cbA")
	require.NoError(t, err)
	t2, err := svc.CreateThread(ctx, "u1", "cbB")
	require.NoError(t, err)
	t3, err := svc.CreateThread(ctx, "u2", "cbB")
	require.NoError(t, err)

	threads, err := svc.GetThreads(ctx, "u1", "cbB")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, t2.ID, threads[0].ID)
	assert.NotEqual(t, t1.ID, threads[0].ID)
	assert.NotEqual(t, t3.ID, threads[0].ID)
}

func TestAddMessageAndDeleteThread(t *testing.T) {
	svc, b := newStubService(t, domain.RunModePolling)
	ctx := context.Background()
	thread, err := svc.CreateThread(ctx, "u1", "cb1")
	require.NoError(t, err)

	msg, err := svc.AddMessage(ctx, thread.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, msg.Role)
	assert.NotEmpty(t, msg.Metadata["remoteId"])

	msgs, err := svc.GetThreadMessages(ctx, thread.ID)
	require.NoError(t, err)
	require.Contains(t, msgs, msg.ID)
	assert.Equal(t, "hello", msgs[msg.ID].Content)

	require.NoError(t, svc.DeleteThread(ctx, thread.ID))
	assert.Equal(t, []string{thread.ID}, b.DeletedThreads())
	threads, err := svc.GetThreads(ctx, "u1", "cb1")
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestAddMessageValidation(t *testing.T) {
	svc, _ := newStubService(t, domain.RunModePolling)
	_, err := svc.AddMessage(context.Background(), "t1", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestChatbotLifecycle(t *testing.T) {
	svc, _ := newStubService(t, domain.RunModePolling)
	ctx := context.Background()
	agent, err := svc.CreateAgent(ctx, domain.CreateAssistantRequest{Name: "Support", UserID: "admin1"})
	require.NoError(t, err)

	_, err = svc.CreateChatbot(ctx, domain.Chatbot{Name: "W", AgentID: "asst_missing", OwnerID: "admin1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cb, err := svc.CreateChatbot(ctx, domain.Chatbot{
		Name:       "Widget",
		AgentID:    agent.ID,
		OwnerID:    "admin1",
		Appearance: domain.Appearance{Color: "#000", Font: "Inter", Size: "md"},
	})
	require.NoError(t, err)

	cb.Description = "updated"
	cb.Appearance = domain.Appearance{}
	_, err = svc.UpdateChatbot(ctx, *cb)
	require.NoError(t, err)

	got, err := svc.GetChatbot(ctx, cb.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)
	assert.Equal(t, domain.Appearance{}, got.Appearance)

	list, err := svc.ListChatbots(ctx, "admin1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.LinkUserWithAdmin(ctx, "user1", "admin1"))
	raw, err := svc.store.Get(ctx, repository.UserAdminPath("user1", "admin1"))
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(raw))
}
