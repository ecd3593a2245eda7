// Package backend provides an abstraction over the external completion backend
// that hosts assistants, remote threads and runs.
package backend

import (
	"context"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

// AssistantSpec is the configuration of a remote assistant.
type AssistantSpec struct {
	Name         string
	Description  string
	Instructions string
	Model        string
}

// PostedMessage is the backend's acknowledgement of a posted message.
type PostedMessage struct {
	ID      string
	Created int64 // unix milliseconds
}

// RemoteMessage is a message as listed by the backend.
type RemoteMessage struct {
	ID      string
	Role    domain.Role
	Text    string
	HasText bool
	Created int64 // unix milliseconds
}

// StreamHandler is called for each event of a streamed run. Returning an error aborts the stream.
type StreamHandler func(event domain.StreamEvent) error

// Backend defines the completion backend operations.
type Backend interface {
	CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error)
	UpdateAssistant(ctx context.Context, assistantID string, spec AssistantSpec) error
	DeleteAssistant(ctx context.Context, assistantID string) error

	CreateThread(ctx context.Context) (string, error)
	DeleteThread(ctx context.Context, threadID string) error

	// PostMessage appends a message to a remote thread.
	PostMessage(ctx context.Context, threadID string, role domain.Role, content string) (PostedMessage, error)

	StartRun(ctx context.Context, threadID, assistantID string) (domain.RunHandle, error)
	GetRunStatus(ctx context.Context, run domain.RunHandle) (domain.RunStatus, error)

	// ListMessages returns the thread's messages, newest first.
	ListMessages(ctx context.Context, threadID string) ([]RemoteMessage, error)

	// StreamRun starts a run and delivers its events until the stream ends.
	StreamRun(ctx context.Context, threadID, assistantID string, handler StreamHandler) error
}

// Ensure Client implements Backend interface.
var _ Backend = (*Client)(nil)
