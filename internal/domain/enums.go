// Package domain defines the core domain models for the chatbot platform.
package domain

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentType describes the payload carried by a message.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeAudio ContentType = "audio"
	ContentTypeVideo ContentType = "video"
	ContentTypeFile  ContentType = "file"
)

// RunStatus is the status reported by the completion backend for a run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
	RunStatusIncomplete     RunStatus = "incomplete"
)

// IsFailure reports whether the backend considers the run finished without output.
func (s RunStatus) IsFailure() bool {
	switch s {
	case RunStatusFailed, RunStatusCancelled, RunStatusExpired, RunStatusIncomplete:
		return true
	}
	return false
}

// RunState is the orchestrator-side lifecycle state of a run.
type RunState string

const (
	RunStateCreated       RunState = "CREATED"
	RunStateMessagePosted RunState = "MESSAGE_POSTED"
	RunStateRunStarted    RunState = "RUN_STARTED"
	RunStateStreaming     RunState = "STREAMING"
	RunStatePolling       RunState = "POLLING"
	RunStateCompleted     RunState = "COMPLETED"
	RunStateFailed        RunState = "FAILED"
	RunStateTimedOut      RunState = "TIMED_OUT"
)

// IsTerminal reports whether no further transitions can happen.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed, RunStateTimedOut:
		return true
	}
	return false
}

// RunMode selects how a run's output is awaited. It is a deployment choice.
type RunMode string

const (
	RunModePolling   RunMode = "polling"
	RunModeStreaming RunMode = "streaming"
)

// ParseRunMode parses a configured run mode, defaulting to polling.
func ParseRunMode(s string) RunMode {
	if RunMode(s) == RunModeStreaming {
		return RunModeStreaming
	}
	return RunModePolling
}

// StreamEventType is the kind of an incremental event produced by a streamed run.
type StreamEventType string

const (
	StreamEventRunCreated    StreamEventType = "run_created"
	StreamEventTextDelta     StreamEventType = "text_delta"
	StreamEventToolCallDelta StreamEventType = "tool_call_delta"
	StreamEventMessageDone   StreamEventType = "message_done"
	StreamEventCompleted     StreamEventType = "completed"
	StreamEventFailed        StreamEventType = "failed"
)
