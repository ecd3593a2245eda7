package domain

import "encoding/json"

// Action is a facade operation.
type Action string

const (
	ActionCreateAssistant   Action = "CREATE_ASSISTANT"
	ActionGetAgents         Action = "GET_AGENTS"
	ActionDeleteAssistant   Action = "DELETE_ASSISTANT"
	ActionCreateThread      Action = "CREATE_THREAD"
	ActionGetThreads        Action = "GET_THREADS"
	ActionAddMessage        Action = "ADD_MESSAGE"
	ActionRunAssistant      Action = "RUN_ASSISTANT"
	ActionGetThreadMessages Action = "GET_THREAD_MESSAGES"
	ActionUpdateAssistant   Action = "UPDATE_ASSISTANT"
)

// Actions lists every valid action.
var Actions = []Action{
	ActionCreateAssistant,
	ActionGetAgents,
	ActionDeleteAssistant,
	ActionCreateThread,
	ActionGetThreads,
	ActionAddMessage,
	ActionRunAssistant,
	ActionGetThreadMessages,
	ActionUpdateAssistant,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// DispatchRequest is the wire envelope of a facade call.
type DispatchRequest struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// CreateAssistantRequest is the payload of CREATE_ASSISTANT.
type CreateAssistantRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	Model        string `json:"model"`
	UserID       string `json:"userId"`
}

// UpdateAssistantRequest is the payload of UPDATE_ASSISTANT. It is a whole agent record.
type UpdateAssistantRequest = Agent

// GetAgentsRequest is the payload of GET_AGENTS.
type GetAgentsRequest struct {
	UserID string `json:"userId"`
}

// DeleteAssistantRequest is the payload of DELETE_ASSISTANT.
type DeleteAssistantRequest struct {
	AssistantID string `json:"assistantId"`
	UserID      string `json:"userId"`
}

// ThreadRequest is the payload of CREATE_THREAD and GET_THREADS.
type ThreadRequest struct {
	UserID    string `json:"userId"`
	ChatbotID string `json:"chatbotId"`
}

// AddMessageRequest is the payload of ADD_MESSAGE.
type AddMessageRequest struct {
	ThreadID string `json:"threadId"`
	Content  string `json:"content"`
}

// RunAssistantRequest is the payload of RUN_ASSISTANT.
// Content, when set, is appended as the user turn before the run starts.
type RunAssistantRequest struct {
	ThreadID    string `json:"threadId"`
	AssistantID string `json:"assistantId"`
	UserID      string `json:"userId"`
	Content     string `json:"content,omitempty"`
	Stream      bool   `json:"stream,omitempty"`
}

// ThreadMessagesRequest is the payload of GET_THREAD_MESSAGES.
type ThreadMessagesRequest struct {
	ThreadID string `json:"threadId"`
}

// SuccessResponse is returned by actions without a richer result.
type SuccessResponse struct {
	Success bool     `json:"success"`
	Message *Message `json:"message,omitempty"`
}
