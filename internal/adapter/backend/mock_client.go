package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

const defaultMockPolls = 2

// MockClient is an in-process Backend that echoes the last user message.
type MockClient struct {
	mu         sync.Mutex
	seq        int
	lastTime   int64
	assistants map[string]AssistantSpec
	threads    map[string][]RemoteMessage // oldest first
	runs       map[string]*mockRun

	// PollsToComplete is the number of status fetches after which a run completes.
	PollsToComplete int
}

type mockRun struct {
	threadID    string
	assistantID string
	polls       int
	done        bool
}

// NewMockClient creates a new mock completion backend.
func NewMockClient() *MockClient {
	return &MockClient{
		assistants:      make(map[string]AssistantSpec),
		threads:         make(map[string][]RemoteMessage),
		runs:            make(map[string]*mockRun),
		PollsToComplete: defaultMockPolls,
	}
}

// Ensure MockClient implements Backend interface.
var _ Backend = (*MockClient)(nil)

func (m *MockClient) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s_mock%d", prefix, m.seq)
}

func (m *MockClient) now() int64 {
	t := time.Now().UnixMilli()
	if t <= m.lastTime {
		t = m.lastTime + 1
	}
	m.lastTime = t
	return t
}

func (m *MockClient) CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID("asst")
	m.assistants[id] = spec
	return id, nil
}

func (m *MockClient) UpdateAssistant(ctx context.Context, assistantID string, spec AssistantSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assistants[assistantID]; !ok {
		return fmt.Errorf("update assistant %s: %w", assistantID, domain.ErrNotFound)
	}
	m.assistants[assistantID] = spec
	return nil
}

func (m *MockClient) DeleteAssistant(ctx context.Context, assistantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assistants[assistantID]; !ok {
		return fmt.Errorf("delete assistant %s: %w", assistantID, domain.ErrNotFound)
	}
	delete(m.assistants, assistantID)
	return nil
}

func (m *MockClient) CreateThread(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID("thread")
	m.threads[id] = nil
	return id, nil
}

func (m *MockClient) DeleteThread(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return fmt.Errorf("delete thread %s: %w", threadID, domain.ErrNotFound)
	}
	delete(m.threads, threadID)
	return nil
}

func (m *MockClient) PostMessage(ctx context.Context, threadID string, role domain.Role, content string) (PostedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.threads[threadID]
	if !ok {
		return PostedMessage{}, fmt.Errorf("post message to %s: %w", threadID, domain.ErrNotFound)
	}
	msg := RemoteMessage{ID: m.nextID("msg"), Role: role, Text: content, HasText: true, Created: m.now()}
	m.threads[threadID] = append(msgs, msg)
	return PostedMessage{ID: msg.ID, Created: msg.Created}, nil
}

func (m *MockClient) startRun(threadID, assistantID string) (string, error) {
	if _, ok := m.threads[threadID]; !ok {
		return "", fmt.Errorf("start run on %s: %w", threadID, domain.ErrNotFound)
	}
	if _, ok := m.assistants[assistantID]; !ok {
		return "", fmt.Errorf("start run with %s: %w", assistantID, domain.ErrNotFound)
	}
	id := m.nextID("run")
	m.runs[id] = &mockRun{threadID: threadID, assistantID: assistantID}
	return id, nil
}

func (m *MockClient) StartRun(ctx context.Context, threadID, assistantID string) (domain.RunHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.startRun(threadID, assistantID)
	if err != nil {
		return domain.RunHandle{}, err
	}
	return domain.RunHandle{ThreadID: threadID, RunID: id}, nil
}

func (m *MockClient) GetRunStatus(ctx context.Context, handle domain.RunHandle) (domain.RunStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[handle.RunID]
	if !ok || run.threadID != handle.ThreadID {
		return "", fmt.Errorf("run %s: %w", handle.RunID, domain.ErrNotFound)
	}
	if run.done {
		return domain.RunStatusCompleted, nil
	}
	run.polls++
	if run.polls < m.PollsToComplete {
		return domain.RunStatusInProgress, nil
	}
	m.complete(run)
	return domain.RunStatusCompleted, nil
}

// complete appends the reply for run. Callers hold m.mu.
func (m *MockClient) complete(run *mockRun) string {
	reply := m.reply(run)
	m.threads[run.threadID] = append(m.threads[run.threadID], RemoteMessage{
		ID:      m.nextID("msg"),
		Role:    domain.RoleAssistant,
		Text:    reply,
		HasText: true,
		Created: m.now(),
	})
	run.done = true
	return reply
}

func (m *MockClient) reply(run *mockRun) string {
	msgs := m.threads[run.threadID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleUser {
			return fmt.Sprintf("[%s] You said: %s", m.assistants[run.assistantID].Name, msgs[i].Text)
		}
	}
	return fmt.Sprintf("[%s] Hello! How can I help?", m.assistants[run.assistantID].Name)
}

func (m *MockClient) ListMessages(ctx context.Context, threadID string) ([]RemoteMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("list messages of %s: %w", threadID, domain.ErrNotFound)
	}
	out := make([]RemoteMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (m *MockClient) StreamRun(ctx context.Context, threadID, assistantID string, handler StreamHandler) error {
	m.mu.Lock()
	runID, err := m.startRun(threadID, assistantID)
	var reply string
	if err == nil {
		reply = m.complete(m.runs[runID])
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if err := handler(domain.StreamEvent{Type: domain.StreamEventRunCreated, RunID: runID}); err != nil {
		return err
	}
	for _, chunk := range splitIntoChunks(reply, 8) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := handler(domain.StreamEvent{Type: domain.StreamEventTextDelta, RunID: runID, Text: chunk}); err != nil {
			return err
		}
	}
	if err := handler(domain.StreamEvent{Type: domain.StreamEventMessageDone, RunID: runID, Text: reply}); err != nil {
		return err
	}
	return handler(domain.StreamEvent{Type: domain.StreamEventCompleted, RunID: runID})
}

// splitIntoChunks splits text into rune-safe chunks of at most size runes.
func splitIntoChunks(text string, size int) []string {
	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
