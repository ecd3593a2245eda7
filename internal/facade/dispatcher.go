// Package facade is the single entry point clients call with {action, data}.
// It validates, authorizes and routes requests to the service layer.
package facade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/policy"
	"github.com/mpadronm90/simple-chatbot-platform/internal/service"
)

// Service is the part of the service layer the facade routes to.
type Service interface {
	CreateAgent(ctx context.Context, req domain.CreateAssistantRequest) (*domain.Agent, error)
	UpdateAgent(ctx context.Context, agent domain.Agent) (*domain.Agent, error)
	DeleteAgent(ctx context.Context, ownerID, agentID string) error
	ListAgents(ctx context.Context, ownerID string) ([]domain.Agent, error)
	CreateThread(ctx context.Context, userID, chatbotID string) (*domain.Thread, error)
	GetThread(ctx context.Context, threadID string) (*domain.Thread, error)
	GetThreads(ctx context.Context, userID, chatbotID string) ([]domain.Thread, error)
	AddMessage(ctx context.Context, threadID, content string) (*domain.Message, error)
	GetThreadMessages(ctx context.Context, threadID string) (map[string]domain.Message, error)
	RunAssistant(ctx context.Context, req service.RunRequest, onDelta service.DeltaFunc) (*domain.RunResult, error)
}

// Authorizer decides whether an identity may perform an action.
type Authorizer interface {
	Authorize(ctx context.Context, input policy.Input) (policy.Decision, error)
}

// Dispatcher routes facade requests.
type Dispatcher struct {
	svc    Service
	authz  Authorizer
	logger *zap.Logger
}

func NewDispatcher(svc Service, authz Authorizer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{svc: svc, authz: authz, logger: logger}
}

// Dispatch runs one request with the blocking calling convention.
func (d *Dispatcher) Dispatch(ctx context.Context, id *domain.Identity, req domain.DispatchRequest) (any, error) {
	if !req.Action.Valid() {
		return nil, fmt.Errorf("%q: %w", req.Action, domain.ErrInvalidAction)
	}
	if !id.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}

	switch req.Action {
	case domain.ActionCreateAssistant:
		var p domain.CreateAssistantRequest
		if err := decode(req.Data, &p); err != nil {
			return nil, err
		}
		p.UserID = defaultUser(p.UserID, id)
		if p.Name == "" {
			return nil, domain.Required("name")
		}
		if err := d.authorize(ctx, id, req.Action, p.UserID); err != nil {
			return nil, err
		}
		return d.svc.CreateAgent(ctx, p)

	case domain.ActionGetAgents:
		var p domain.GetAgentsRequest
		if err := decode(req.Data, &p); err != nil {
			return nil, err
		}
		p.UserID = defaultUser(p.UserID, id)
		if err := d.authorize(ctx, id, req.Action, p.UserID); err != nil {
			return nil, err
		}
		return d.svc.ListAgents(ctx, p.UserID)

	case domain.ActionDeleteAssistant:
		var p domain.DeleteAssistantRequest
		if err := decode(req.Data, &p); err != nil {
			return nil, err
		}
		p.UserID = defaultUser(p.UserID, id)
		if p.AssistantID == "" {
			return nil, domain.Required("assistantId")
		}
		if err := d.authorize(ctx, id, req.Action, p.UserID); err != nil {
			return nil, err
		}
		if err := d.svc.DeleteAgent(ctx, p.UserID, p.AssistantID); err != nil {
			return nil, err
		}
		return domain.SuccessResponse{Success: true}, nil

	case domain.ActionUpdateAssistant:
		var p domain.UpdateAssistantRequest
		if err := decode(req.Data, &p); err != nil {
			return nil, err
		}
		p.OwnerID = defaultUser(p.OwnerID, id)
		if p.ID == "" {
			return nil, domain.Required("id")
		}
		if p.Name == "" {
			return nil, domain.Required("name")
		}
		if err := d.authorize(ctx, id, req.Action, p.OwnerID); err != nil {
			return nil, err
		}
		return d.svc.UpdateAgent(ctx, p)

	case domain.ActionCreateThread, domain.ActionGetThreads:
		var p domain.ThreadRequest
		if err := decode(req.Data, &p); err != nil {
			return nil, err
		}
		p.UserID = defaultUser(p.UserID, id)
		if p.ChatbotID == "" {
			return nil, domain.Required("chatbotId")
		}
		if err := d.authorize(ctx, id, req.Action, p.UserID); err != nil {
			return nil, err
		}
		if req.Action == domain.ActionCreateThread {
			return d.svc.CreateThread(ctx, p.UserID, p.ChatbotID)
		}
		return d.svc.GetThreads(ctx, p.UserID, p.ChatbotID)

	case domain.ActionAddMessage:
		var p domain.AddMessageRequest
		if err := decode(req.Data, &p); err != nil {
			return nil, err
		}
		if p.ThreadID == "" {
			return nil, domain.Required("threadId")
		}
		if p.Content == "" {
			return nil, domain.Required("content")
		}
		if err := d.authorizeThread(ctx, id, req.Action, p.ThreadID); err != nil {
			return nil, err
		}
		return d.svc.AddMessage(ctx, p.ThreadID, p.Content)

	case domain.ActionGetThreadMessages:
		var p domain.ThreadMessagesRequest
		if err := decode(req.Data, &p); err != nil {
			return nil, err
		}
		if p.ThreadID == "" {
			return nil, domain.Required("threadId")
		}
		if err := d.authorizeThread(ctx, id, req.Action, p.ThreadID); err != nil {
			return nil, err
		}
		return d.svc.GetThreadMessages(ctx, p.ThreadID)

	case domain.ActionRunAssistant:
		run, err := d.prepareRun(ctx, id, req)
		if err != nil {
			return nil, err
		}
		result, err := d.svc.RunAssistant(ctx, run, nil)
		if err != nil {
			return nil, err
		}
		msg := result.Message.Message()
		return domain.SuccessResponse{Success: true, Message: &msg}, nil
	}

	return nil, fmt.Errorf("%q: %w", req.Action, domain.ErrInvalidAction)
}

// DispatchStream runs RUN_ASSISTANT with the streaming calling convention, writing
// each text increment to w as it arrives.
func (d *Dispatcher) DispatchStream(ctx context.Context, id *domain.Identity, req domain.DispatchRequest, w io.Writer) error {
	if req.Action != domain.ActionRunAssistant {
		return fmt.Errorf("%q cannot stream: %w", req.Action, domain.ErrInvalidAction)
	}
	if !id.Authenticated() {
		return domain.ErrUnauthenticated
	}
	run, err := d.prepareRun(ctx, id, req)
	if err != nil {
		return err
	}
	_, err = d.svc.RunAssistant(ctx, run, func(delta domain.Delta) error {
		_, werr := io.WriteString(w, delta.Text)
		return werr
	})
	return err
}

// IsStreamRequest reports whether a RUN_ASSISTANT payload asks for streaming.
func IsStreamRequest(req domain.DispatchRequest) bool {
	if req.Action != domain.ActionRunAssistant || len(req.Data) == 0 {
		return false
	}
	var p struct {
		Stream bool `json:"stream"`
	}
	return json.Unmarshal(req.Data, &p) == nil && p.Stream
}

func (d *Dispatcher) prepareRun(ctx context.Context, id *domain.Identity, req domain.DispatchRequest) (service.RunRequest, error) {
	var p domain.RunAssistantRequest
	if err := decode(req.Data, &p); err != nil {
		return service.RunRequest{}, err
	}
	if p.ThreadID == "" {
		return service.RunRequest{}, domain.Required("threadId")
	}
	if p.AssistantID == "" {
		return service.RunRequest{}, domain.Required("assistantId")
	}
	if err := d.authorizeThread(ctx, id, req.Action, p.ThreadID); err != nil {
		return service.RunRequest{}, err
	}
	return service.RunRequest{
		ThreadID: p.ThreadID,
		AgentID:  p.AssistantID,
		UserID:   defaultUser(p.UserID, id),
		Content:  p.Content,
	}, nil
}

// authorizeThread authorizes against the owner of the thread.
func (d *Dispatcher) authorizeThread(ctx context.Context, id *domain.Identity, action domain.Action, threadID string) error {
	thread, err := d.svc.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	return d.authorize(ctx, id, action, thread.UserID)
}

func (d *Dispatcher) authorize(ctx context.Context, id *domain.Identity, action domain.Action, userID string) error {
	decision, err := d.authz.Authorize(ctx, policy.Input{
		Action:        string(action),
		Authenticated: id.Authenticated(),
		Admin:         id.Admin,
		UID:           id.UID,
		UserID:        userID,
	})
	if err != nil {
		return err
	}
	if !decision.Allow {
		d.logger.Info("request denied",
			zap.String("action", string(action)), zap.String("uid", id.UID), zap.String("reason", decision.Reason))
		return fmt.Errorf("%s: %w", decision.Reason, domain.ErrForbidden)
	}
	return nil
}

func defaultUser(userID string, id *domain.Identity) string {
	if userID == "" {
		return id.UID
	}
	return userID
}

func decode(data json.RawMessage, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.ValidationError{Field: "data", Reason: "is not valid JSON: " + err.Error()}
	}
	return nil
}
