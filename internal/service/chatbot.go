package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/repository"
)

func validateChatbot(cb *domain.Chatbot) error {
	switch {
	case cb.Name == "":
		return domain.Required("name")
	case cb.AgentID == "":
		return domain.Required("agentId")
	case cb.OwnerID == "":
		return domain.Required("ownerId")
	}
	return nil
}

// CreateChatbot records a chatbot bound to one of the owner's agents.
func (s *Service) CreateChatbot(ctx context.Context, cb domain.Chatbot) (*domain.Chatbot, error) {
	if err := validateChatbot(&cb); err != nil {
		return nil, err
	}
	if _, err := s.GetAgent(ctx, cb.OwnerID, cb.AgentID); err != nil {
		return nil, err
	}
	if cb.ID == "" {
		cb.ID = newID("cb")
	}
	if err := s.store.Set(ctx, repository.ChatbotPath(cb.ID), cb); err != nil {
		return nil, err
	}
	return &cb, nil
}

// GetChatbot loads a chatbot by id.
func (s *Service) GetChatbot(ctx context.Context, chatbotID string) (*domain.Chatbot, error) {
	if chatbotID == "" {
		return nil, domain.Required("chatbotId")
	}
	var cb domain.Chatbot
	ok, err := repository.GetInto(ctx, s.store, repository.ChatbotPath(chatbotID), &cb)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("chatbot %s: %w", chatbotID, domain.ErrNotFound)
	}
	return &cb, nil
}

// UpdateChatbot overwrites the whole chatbot record.
func (s *Service) UpdateChatbot(ctx context.Context, cb domain.Chatbot) (*domain.Chatbot, error) {
	if cb.ID == "" {
		return nil, domain.Required("id")
	}
	if err := validateChatbot(&cb); err != nil {
		return nil, err
	}
	if _, err := s.GetChatbot(ctx, cb.ID); err != nil {
		return nil, err
	}
	if _, err := s.GetAgent(ctx, cb.OwnerID, cb.AgentID); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, repository.ChatbotPath(cb.ID), cb); err != nil {
		return nil, err
	}
	return &cb, nil
}

// DeleteChatbot removes a chatbot. Its threads stay readable.
func (s *Service) DeleteChatbot(ctx context.Context, chatbotID string) error {
	if _, err := s.GetChatbot(ctx, chatbotID); err != nil {
		return err
	}
	return s.store.Remove(ctx, repository.ChatbotPath(chatbotID))
}

// ListChatbots returns the chatbots of an owner ordered by name.
func (s *Service) ListChatbots(ctx context.Context, ownerID string) ([]domain.Chatbot, error) {
	if ownerID == "" {
		return nil, domain.Required("ownerId")
	}
	all, err := s.allChatbots(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Chatbot, 0, len(all))
	for _, cb := range all {
		if cb.OwnerID == ownerID {
			out = append(out, cb)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Service) allChatbots(ctx context.Context) ([]domain.Chatbot, error) {
	byID := map[string]domain.Chatbot{}
	if _, err := repository.GetInto(ctx, s.store, repository.ChatbotsRoot, &byID); err != nil {
		return nil, err
	}
	out := make([]domain.Chatbot, 0, len(byID))
	for _, cb := range byID {
		out = append(out, cb)
	}
	return out, nil
}
