// Package service implements the run orchestrator and the agent, chatbot and
// thread operations on top of the conversation store and the completion backend.
package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/adapter/backend"
	"github.com/mpadronm90/simple-chatbot-platform/internal/config"
	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/repository"
)

type Service struct {
	store   repository.Store
	backend backend.Backend
	config  *config.Config
	awaiter awaiter
	runs    *runRegistry
	logger  *zap.Logger
	now     func() time.Time
}

func New(store repository.Store, b backend.Backend, cfg *config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:   store,
		backend: b,
		config:  cfg,
		runs:    newRunRegistry(),
		logger:  logger,
		now:     time.Now,
	}
	s.awaiter = newAwaiter(cfg, b, logger)
	return s
}

// RunMode returns the configured way runs are awaited.
func (s *Service) RunMode() domain.RunMode {
	return s.awaiter.Mode()
}

func newID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

func (s *Service) nowMillis() int64 {
	return s.now().UnixMilli()
}
