package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/repository"
)

// CreateThread creates the remote thread and records it together with both indexes
// in one atomic update.
func (s *Service) CreateThread(ctx context.Context, userID, chatbotID string) (*domain.Thread, error) {
	if userID == "" {
		return nil, domain.Required("userId")
	}
	if chatbotID == "" {
		return nil, domain.Required("chatbotId")
	}

	remoteID, err := s.backend.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote thread: %w", err)
	}

	thread := &domain.Thread{
		ID:        remoteID,
		UserID:    userID,
		ChatbotID: chatbotID,
		CreatedAt: s.nowMillis(),
	}
	if err := s.store.Update(ctx, map[string]any{
		repository.ThreadPath(remoteID):                   thread,
		repository.UserThreadPath(userID, remoteID):       true,
		repository.ChatbotThreadPath(chatbotID, remoteID): true,
	}); err != nil {
		if derr := s.backend.DeleteThread(ctx, remoteID); derr != nil {
			s.logger.Error("orphaned resource risk: remote thread exists without a record",
				zap.String("thread_id", remoteID), zap.Error(derr))
		}
		return nil, err
	}
	return thread, nil
}

// GetThread loads a thread with its messages.
func (s *Service) GetThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	if threadID == "" {
		return nil, domain.Required("threadId")
	}
	var thread domain.Thread
	ok, err := repository.GetInto(ctx, s.store, repository.ThreadPath(threadID), &thread)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	return &thread, nil
}

// GetThreads returns the threads present in both the user's and the chatbot's index,
// newest first.
func (s *Service) GetThreads(ctx context.Context, userID, chatbotID string) ([]domain.Thread, error) {
	if userID == "" {
		return nil, domain.Required("userId")
	}
	if chatbotID == "" {
		return nil, domain.Required("chatbotId")
	}

	userIndex := map[string]bool{}
	if _, err := repository.GetInto(ctx, s.store, repository.UserThreadsPath(userID), &userIndex); err != nil {
		return nil, err
	}
	chatbotIndex := map[string]bool{}
	if _, err := repository.GetInto(ctx, s.store, repository.ChatbotThreadsPath(chatbotID), &chatbotIndex); err != nil {
		return nil, err
	}

	threads := make([]domain.Thread, 0)
	for id := range userIndex {
		if !chatbotIndex[id] {
			continue
		}
		thread, err := s.GetThread(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("index points at missing thread", zap.String("thread_id", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		threads = append(threads, *thread)
	}
	sort.Slice(threads, func(i, j int) bool {
		if threads[i].CreatedAt != threads[j].CreatedAt {
			return threads[i].CreatedAt > threads[j].CreatedAt
		}
		return threads[i].ID < threads[j].ID
	})
	return threads, nil
}

// AddMessage posts a user message to the backend and appends it to the thread.
func (s *Service) AddMessage(ctx context.Context, threadID, content string) (*domain.Message, error) {
	if threadID == "" {
		return nil, domain.Required("threadId")
	}
	if content == "" {
		return nil, domain.Required("content")
	}

	posted, err := s.backend.PostMessage(ctx, threadID, domain.RoleUser, content)
	if err != nil {
		return nil, fmt.Errorf("failed to post message: %w", err)
	}
	msg := &domain.Message{
		ID:          newID("msg"),
		Role:        domain.RoleUser,
		Content:     content,
		ContentType: domain.ContentTypeText,
		Created:     s.nowMillis(),
		ThreadID:    threadID,
		Metadata:    map[string]string{"remoteId": posted.ID},
	}
	if err := s.store.Set(ctx, repository.MessagePath(threadID, msg.ID), msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetThreadMessages returns the thread's messages keyed by id.
func (s *Service) GetThreadMessages(ctx context.Context, threadID string) (map[string]domain.Message, error) {
	if threadID == "" {
		return nil, domain.Required("threadId")
	}
	msgs := map[string]domain.Message{}
	if _, err := repository.GetInto(ctx, s.store, repository.MessagesPath(threadID), &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteThread removes a thread and its index entries, then the remote thread.
func (s *Service) DeleteThread(ctx context.Context, threadID string) error {
	thread, err := s.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if _, busy := s.runs.get(threadID); busy {
		return fmt.Errorf("thread %s: %w", threadID, domain.ErrRunInProgress)
	}
	if err := s.store.Update(ctx, map[string]any{
		repository.ThreadPath(threadID):                          nil,
		repository.UserThreadPath(thread.UserID, threadID):       nil,
		repository.ChatbotThreadPath(thread.ChatbotID, threadID): nil,
	}); err != nil {
		return err
	}
	if err := s.backend.DeleteThread(ctx, threadID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("orphaned resource risk: thread record removed but remote thread remains",
			zap.String("thread_id", threadID), zap.Error(err))
	}
	return nil
}

// LinkUserWithAdmin records that a user reached one of the admin's chatbots.
func (s *Service) LinkUserWithAdmin(ctx context.Context, userID, adminID string) error {
	if userID == "" {
		return domain.Required("userId")
	}
	if adminID == "" {
		return domain.Required("adminId")
	}
	return s.store.Set(ctx, repository.UserAdminPath(userID, adminID), true)
}
