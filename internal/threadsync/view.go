package threadsync

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/repository"
)

// Listener receives the rendered message list after each change.
type Listener func(messages []domain.Message)

// View merges the store's messages of one thread with local optimistic writes.
// Store snapshots always win over local entries with the same id.
type View struct {
	threadID string
	logger   *zap.Logger

	mu        sync.Mutex
	remote    map[string]domain.Message
	local     map[string]domain.Message
	rendered  []domain.Message
	listeners map[int]Listener
	nextID    int

	// notifyMu keeps listener calls in render order.
	notifyMu    sync.Mutex
	unsubscribe func()
}

// OpenView subscribes to the thread's messages in store.
func OpenView(ctx context.Context, store repository.Store, threadID string, logger *zap.Logger) (*View, error) {
	if threadID == "" {
		return nil, domain.Required("threadId")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &View{
		threadID:  threadID,
		logger:    logger,
		remote:    make(map[string]domain.Message),
		local:     make(map[string]domain.Message),
		listeners: make(map[int]Listener),
	}
	unsubscribe, err := store.Subscribe(ctx, repository.MessagesPath(threadID), v.applySnapshot)
	if err != nil {
		return nil, err
	}
	v.unsubscribe = unsubscribe
	return v, nil
}

// ThreadID returns the viewed thread.
func (v *View) ThreadID() string { return v.threadID }

func (v *View) applySnapshot(raw json.RawMessage) {
	snapshot := map[string]domain.Message{}
	if _, err := repository.Decode(raw, &snapshot); err != nil {
		v.logger.Warn("ignoring undecodable snapshot", zap.String("thread_id", v.threadID), zap.Error(err))
		return
	}
	v.mu.Lock()
	v.remote = make(map[string]domain.Message, len(snapshot))
	for id, m := range snapshot {
		if m.ID == "" {
			m.ID = id
		}
		v.remote[id] = m
		delete(v.local, id)
	}
	v.mu.Unlock()
	v.publish()
}

// AddLocal shows a message before the store confirms it.
func (v *View) AddLocal(msg domain.Message) {
	v.mu.Lock()
	if _, confirmed := v.remote[msg.ID]; !confirmed {
		v.local[msg.ID] = msg
	}
	v.mu.Unlock()
	v.publish()
}

// Messages returns the merged list ordered by creation time, then id.
func (v *View) Messages() []domain.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.render()
}

// render builds the merged list. Callers hold v.mu.
func (v *View) render() []domain.Message {
	out := make([]domain.Message, 0, len(v.remote)+len(v.local))
	for _, m := range v.remote {
		out = append(out, m)
	}
	for id, m := range v.local {
		if _, ok := v.remote[id]; !ok {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Created != out[j].Created {
			return out[i].Created < out[j].Created
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// publish notifies listeners when the rendered list changed.
func (v *View) publish() {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.mu.Lock()
	rendered := v.render()
	if reflect.DeepEqual(rendered, v.rendered) {
		v.mu.Unlock()
		return
	}
	v.rendered = rendered
	listeners := make([]Listener, 0, len(v.listeners))
	for _, l := range v.listeners {
		listeners = append(listeners, l)
	}
	v.mu.Unlock()

	for _, l := range listeners {
		l(append([]domain.Message(nil), rendered...))
	}
}

// OnChange registers l and returns a func that removes it.
func (v *View) OnChange(l Listener) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = l
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

// Close stops following the store.
func (v *View) Close() {
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
}
