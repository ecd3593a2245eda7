// Package threadsync keeps client-side views of threads consistent with the
// conversation store: thread selection, merged message views and websocket fan-out.
package threadsync

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

// ThreadSource lists and creates threads. *service.Service satisfies it.
type ThreadSource interface {
	GetThreads(ctx context.Context, userID, chatbotID string) ([]domain.Thread, error)
	CreateThread(ctx context.Context, userID, chatbotID string) (*domain.Thread, error)
}

type selectionKey struct {
	userID    string
	chatbotID string
}

type selection struct {
	mu     sync.Mutex
	thread *domain.Thread
}

// Selector picks the thread a user continues with on a chatbot. The first selection
// per (user, chatbot) is cached for the Selector's lifetime.
type Selector struct {
	source ThreadSource
	logger *zap.Logger

	mu    sync.Mutex
	cache map[selectionKey]*selection
}

func NewSelector(source ThreadSource, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{source: source, logger: logger, cache: make(map[selectionKey]*selection)}
}

// SelectThread returns the cached thread, else the most recent existing thread, else a new one.
func (s *Selector) SelectThread(ctx context.Context, userID, chatbotID string) (*domain.Thread, error) {
	if userID == "" {
		return nil, domain.Required("userId")
	}
	if chatbotID == "" {
		return nil, domain.Required("chatbotId")
	}

	key := selectionKey{userID: userID, chatbotID: chatbotID}
	s.mu.Lock()
	entry, ok := s.cache[key]
	if !ok {
		entry = &selection{}
		s.cache[key] = entry
	}
	s.mu.Unlock()

	// Concurrent callers for the same key wait for one load.
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.thread != nil {
		t := *entry.thread
		return &t, nil
	}

	threads, err := s.source.GetThreads(ctx, userID, chatbotID)
	if err != nil {
		return nil, err
	}

	var chosen *domain.Thread
	for i := range threads {
		if chosen == nil || threads[i].CreatedAt > chosen.CreatedAt {
			chosen = &threads[i]
		}
	}
	if chosen == nil {
		chosen, err = s.source.CreateThread(ctx, userID, chatbotID)
		if err != nil {
			return nil, err
		}
		s.logger.Info("created thread for new conversation",
			zap.String("user_id", userID), zap.String("chatbot_id", chatbotID), zap.String("thread_id", chosen.ID))
	}

	entry.thread = chosen
	t := *chosen
	return &t, nil
}
