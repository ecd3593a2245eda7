package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	assistantsHeader = "assistants=v2"
	listPageSize     = 20
)

// Config configures the OpenAI-compatible client.
type Config struct {
	APIKey        string
	BaseURL       string
	RatePerSecond float64
	Timeout       time.Duration
}

// Client implements Backend on top of the OpenAI assistants API.
type Client struct {
	api        *openai.Client
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a new completion backend client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	// Streams are bounded by the caller's context, not by a client timeout.
	httpClient := &http.Client{}
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	apiConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout > 0 {
		apiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		api:        openai.NewClientWithConfig(apiConfig),
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

func (c *Client) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrBackendUnavailable, err)
	}
	return nil
}

// classify maps provider errors onto the domain taxonomy.
func classify(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrNotFound, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrBackendUnavailable, err)
}

func assistantRequest(spec AssistantSpec) openai.AssistantRequest {
	name, description, instructions := spec.Name, spec.Description, spec.Instructions
	return openai.AssistantRequest{
		Model:        spec.Model,
		Name:         &name,
		Description:  &description,
		Instructions: &instructions,
	}
}

// CreateAssistant creates a remote assistant and returns its id.
func (c *Client) CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error) {
	if err := c.wait(ctx, "create assistant"); err != nil {
		return "", err
	}
	assistant, err := c.api.CreateAssistant(ctx, assistantRequest(spec))
	if err != nil {
		return "", classify("create assistant", err)
	}
	return assistant.ID, nil
}

// UpdateAssistant overwrites the configuration of a remote assistant.
func (c *Client) UpdateAssistant(ctx context.Context, assistantID string, spec AssistantSpec) error {
	if err := c.wait(ctx, "update assistant"); err != nil {
		return err
	}
	if _, err := c.api.ModifyAssistant(ctx, assistantID, assistantRequest(spec)); err != nil {
		return classify("update assistant", err)
	}
	return nil
}

// DeleteAssistant deletes a remote assistant.
func (c *Client) DeleteAssistant(ctx context.Context, assistantID string) error {
	if err := c.wait(ctx, "delete assistant"); err != nil {
		return err
	}
	if _, err := c.api.DeleteAssistant(ctx, assistantID); err != nil {
		return classify("delete assistant", err)
	}
	return nil
}

// CreateThread creates an empty remote thread.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	if err := c.wait(ctx, "create thread"); err != nil {
		return "", err
	}
	thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", classify("create thread", err)
	}
	return thread.ID, nil
}

// DeleteThread deletes a remote thread.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	if err := c.wait(ctx, "delete thread"); err != nil {
		return err
	}
	if _, err := c.api.DeleteThread(ctx, threadID); err != nil {
		return classify("delete thread", err)
	}
	return nil
}

// PostMessage appends a message to a remote thread.
func (c *Client) PostMessage(ctx context.Context, threadID string, role domain.Role, content string) (PostedMessage, error) {
	if err := c.wait(ctx, "post message"); err != nil {
		return PostedMessage{}, err
	}
	msg, err := c.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    string(role),
		Content: content,
	})
	if err != nil {
		return PostedMessage{}, classify("post message", err)
	}
	created := int64(msg.CreatedAt) * 1000
	if created == 0 {
		created = time.Now().UnixMilli()
	}
	return PostedMessage{ID: msg.ID, Created: created}, nil
}

// StartRun starts a non-streamed run.
func (c *Client) StartRun(ctx context.Context, threadID, assistantID string) (domain.RunHandle, error) {
	if err := c.wait(ctx, "start run"); err != nil {
		return domain.RunHandle{}, err
	}
	run, err := c.api.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return domain.RunHandle{}, classify("start run", err)
	}
	return domain.RunHandle{ThreadID: threadID, RunID: run.ID}, nil
}

// GetRunStatus fetches the current status of a run.
func (c *Client) GetRunStatus(ctx context.Context, handle domain.RunHandle) (domain.RunStatus, error) {
	if err := c.wait(ctx, "get run status"); err != nil {
		return "", err
	}
	run, err := c.api.RetrieveRun(ctx, handle.ThreadID, handle.RunID)
	if err != nil {
		return "", classify("get run status", err)
	}
	return domain.RunStatus(run.Status), nil
}

// ListMessages lists the latest messages of a thread, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]RemoteMessage, error) {
	if err := c.wait(ctx, "list messages"); err != nil {
		return nil, err
	}
	limit := listPageSize
	order := "desc"
	list, err := c.api.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return nil, classify("list messages", err)
	}

	out := make([]RemoteMessage, 0, len(list.Messages))
	for _, m := range list.Messages {
		rm := RemoteMessage{
			ID:      m.ID,
			Role:    domain.Role(m.Role),
			Created: int64(m.CreatedAt) * 1000,
		}
		var text strings.Builder
		for _, part := range m.Content {
			if part.Type == "text" && part.Text != nil {
				rm.HasText = true
				text.WriteString(part.Text.Value)
			}
		}
		rm.Text = text.String()
		out = append(out, rm)
	}
	return out, nil
}

type streamRunRequest struct {
	AssistantID string `json:"assistant_id"`
	Stream      bool   `json:"stream"`
}

type textPart struct {
	Type string `json:"type"`
	Text *struct {
		Value string `json:"value"`
	} `json:"text,omitempty"`
}

type messageDeltaData struct {
	ID    string `json:"id"`
	Delta struct {
		Content []textPart `json:"content"`
	} `json:"delta"`
}

type messageData struct {
	ID      string     `json:"id"`
	Content []textPart `json:"content"`
}

type runStepDeltaData struct {
	Delta struct {
		StepDetails struct {
			Type      string          `json:"type"`
			ToolCalls json.RawMessage `json:"tool_calls"`
		} `json:"step_details"`
	} `json:"delta"`
}

type runData struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type errorData struct {
	Message string `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StreamRun starts a streamed run and delivers normalized events to handler.
func (c *Client) StreamRun(ctx context.Context, threadID, assistantID string, handler StreamHandler) error {
	if err := c.wait(ctx, "stream run"); err != nil {
		return err
	}

	body, err := json.Marshal(streamRunRequest{AssistantID: assistantID, Stream: true})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/threads/" + threadID + "/runs"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("OpenAI-Beta", assistantsHeader)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("stream run: %w: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("stream run: %w: status %d: %s", domain.ErrNotFound, resp.StatusCode, string(bodyBytes))
		}
		return fmt.Errorf("stream run: %w: status %d: %s", domain.ErrBackendUnavailable, resp.StatusCode, string(bodyBytes))
	}

	var (
		runID      string
		handlerErr error
	)
	err = parseSSE(resp.Body, func(ev sseEvent) error {
		event, ok, err := translateEvent(ev)
		if err != nil {
			c.logger.Warn("skipping malformed stream event", zap.String("event", ev.Event), zap.Error(err))
			return nil
		}
		if !ok {
			return nil
		}
		if event.RunID != "" {
			runID = event.RunID
		} else {
			event.RunID = runID
		}
		handlerErr = handler(event)
		return handlerErr
	})
	switch {
	case err == nil:
		return nil
	case handlerErr != nil:
		return handlerErr
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("stream run: %w: %w", domain.ErrBackendUnavailable, err)
	}
}

// translateEvent maps a provider stream event to a domain event. ok is false for
// events that carry nothing the orchestrator consumes.
func translateEvent(ev sseEvent) (domain.StreamEvent, bool, error) {
	switch ev.Event {
	case "thread.run.created":
		var run runData
		if err := json.Unmarshal([]byte(ev.Data), &run); err != nil {
			return domain.StreamEvent{}, false, err
		}
		return domain.StreamEvent{Type: domain.StreamEventRunCreated, RunID: run.ID}, true, nil

	case "thread.message.delta":
		var delta messageDeltaData
		if err := json.Unmarshal([]byte(ev.Data), &delta); err != nil {
			return domain.StreamEvent{}, false, err
		}
		text := joinText(delta.Delta.Content)
		if text == "" {
			return domain.StreamEvent{}, false, nil
		}
		return domain.StreamEvent{Type: domain.StreamEventTextDelta, Text: text}, true, nil

	case "thread.run.step.delta":
		var step runStepDeltaData
		if err := json.Unmarshal([]byte(ev.Data), &step); err != nil {
			return domain.StreamEvent{}, false, err
		}
		if step.Delta.StepDetails.Type != "tool_calls" {
			return domain.StreamEvent{}, false, nil
		}
		return domain.StreamEvent{Type: domain.StreamEventToolCallDelta, ToolCall: step.Delta.StepDetails.ToolCalls}, true, nil

	case "thread.message.completed":
		var msg messageData
		if err := json.Unmarshal([]byte(ev.Data), &msg); err != nil {
			return domain.StreamEvent{}, false, err
		}
		return domain.StreamEvent{Type: domain.StreamEventMessageDone, Text: joinText(msg.Content)}, true, nil

	case "thread.run.completed":
		return domain.StreamEvent{Type: domain.StreamEventCompleted}, true, nil

	case "thread.run.failed", "thread.run.cancelled", "thread.run.expired", "thread.run.incomplete":
		var run runData
		if err := json.Unmarshal([]byte(ev.Data), &run); err != nil {
			return domain.StreamEvent{}, false, err
		}
		reason := strings.TrimPrefix(ev.Event, "thread.run.")
		if run.LastError != nil && run.LastError.Message != "" {
			reason = run.LastError.Message
		}
		return domain.StreamEvent{Type: domain.StreamEventFailed, RunID: run.ID, Error: reason}, true, nil

	case "error":
		var e errorData
		reason := ev.Data
		if err := json.Unmarshal([]byte(ev.Data), &e); err == nil {
			if e.Error != nil && e.Error.Message != "" {
				reason = e.Error.Message
			} else if e.Message != "" {
				reason = e.Message
			}
		}
		return domain.StreamEvent{Type: domain.StreamEventFailed, Error: reason}, true, nil
	}
	return domain.StreamEvent{}, false, nil
}

func joinText(parts []textPart) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Type == "text" && p.Text != nil {
			b.WriteString(p.Text.Value)
		}
	}
	return b.String()
}
