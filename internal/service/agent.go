package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/adapter/backend"
	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/repository"
)

// CreateAgent creates the backend assistant, then records it. If recording fails the
// assistant is deleted again.
func (s *Service) CreateAgent(ctx context.Context, req domain.CreateAssistantRequest) (*domain.Agent, error) {
	if req.UserID == "" {
		return nil, domain.Required("userId")
	}
	if req.Name == "" {
		return nil, domain.Required("name")
	}
	model := req.Model
	if model == "" {
		model = s.config.DefaultModel
	}

	id, err := s.backend.CreateAssistant(ctx, backend.AssistantSpec{
		Name:         req.Name,
		Description:  req.Description,
		Instructions: req.Instructions,
		Model:        model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}

	agent := &domain.Agent{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		Instructions: req.Instructions,
		Model:        model,
		OwnerID:      req.UserID,
	}
	if err := s.store.Set(ctx, repository.AgentPath(req.UserID, id), agent); err != nil {
		s.logger.Error("failed to save agent, deleting assistant", zap.String("agent_id", id), zap.Error(err))
		if derr := s.backend.DeleteAssistant(ctx, id); derr != nil {
			s.logger.Error("orphaned resource risk: assistant exists without a record",
				zap.String("agent_id", id), zap.Error(derr))
			return nil, fmt.Errorf("assistant %s: %w", id, errors.Join(domain.ErrOrphanedResourceRisk, err, derr))
		}
		return nil, err
	}
	return agent, nil
}

// GetAgent loads one agent of an owner.
func (s *Service) GetAgent(ctx context.Context, ownerID, agentID string) (*domain.Agent, error) {
	var agent domain.Agent
	ok, err := repository.GetInto(ctx, s.store, repository.AgentPath(ownerID, agentID), &agent)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", agentID, domain.ErrNotFound)
	}
	return &agent, nil
}

// UpdateAgent overwrites the backend assistant, then the record. A record failure after a
// successful backend update leaves the two out of sync; it is logged and reported.
func (s *Service) UpdateAgent(ctx context.Context, agent domain.Agent) (*domain.Agent, error) {
	if agent.ID == "" {
		return nil, domain.Required("id")
	}
	if agent.OwnerID == "" {
		return nil, domain.Required("ownerId")
	}
	if agent.Name == "" {
		return nil, domain.Required("name")
	}
	existing, err := s.GetAgent(ctx, agent.OwnerID, agent.ID)
	if err != nil {
		return nil, err
	}
	if agent.Model == "" {
		agent.Model = existing.Model
	}

	if err := s.backend.UpdateAssistant(ctx, agent.ID, backend.AssistantSpec{
		Name:         agent.Name,
		Description:  agent.Description,
		Instructions: agent.Instructions,
		Model:        agent.Model,
	}); err != nil {
		return nil, fmt.Errorf("failed to update assistant: %w", err)
	}

	if err := s.store.Set(ctx, repository.AgentPath(agent.OwnerID, agent.ID), agent); err != nil {
		s.logger.Error("orphaned resource risk: assistant updated but record is stale",
			zap.String("agent_id", agent.ID), zap.Error(err))
		return nil, err
	}
	return &agent, nil
}

// DeleteAgent removes an agent that no chatbot references.
func (s *Service) DeleteAgent(ctx context.Context, ownerID, agentID string) error {
	if ownerID == "" {
		return domain.Required("userId")
	}
	if agentID == "" {
		return domain.Required("assistantId")
	}
	if _, err := s.GetAgent(ctx, ownerID, agentID); err != nil {
		return err
	}

	chatbots, err := s.allChatbots(ctx)
	if err != nil {
		return err
	}
	for _, cb := range chatbots {
		if cb.AgentID == agentID {
			return fmt.Errorf("agent %s is used by chatbot %s: %w", agentID, cb.ID, domain.ErrReferencedAgent)
		}
	}

	if err := s.store.Remove(ctx, repository.AgentPath(ownerID, agentID)); err != nil {
		return err
	}
	if err := s.backend.DeleteAssistant(ctx, agentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("orphaned resource risk: agent record removed but assistant remains",
			zap.String("agent_id", agentID), zap.Error(err))
	}
	return nil
}

// ListAgents returns the agents of an owner ordered by id.
func (s *Service) ListAgents(ctx context.Context, ownerID string) ([]domain.Agent, error) {
	if ownerID == "" {
		return nil, domain.Required("userId")
	}
	byID := map[string]domain.Agent{}
	if _, err := repository.GetInto(ctx, s.store, repository.AgentsPath(ownerID), &byID); err != nil {
		return nil, err
	}
	agents := make([]domain.Agent, 0, len(byID))
	for _, a := range byID {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents, nil
}
