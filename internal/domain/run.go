package domain

import "time"

// Run is one assistant turn. It lives only in memory while the turn is active.
type Run struct {
	RunID     string    `json:"run_id"`
	ThreadID  string    `json:"thread_id"`
	AgentID   string    `json:"agent_id"`
	Mode      RunMode   `json:"mode"`
	State     RunState  `json:"state"`
	Status    RunStatus `json:"status,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// RunHandle identifies a backend run.
type RunHandle struct {
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`
}

// StreamEvent is a normalized incremental event from a streamed run.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	RunID    string          `json:"run_id,omitempty"`
	Text     string          `json:"text,omitempty"`
	ToolCall []byte          `json:"tool_call,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Delta is emitted to run callers for every accumulated change of the draft.
type Delta struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
	Content   string `json:"content"`
}

// RunResult is returned when a run completes.
type RunResult struct {
	Run     Run              `json:"run"`
	Message FinalizedMessage `json:"message"`
}
