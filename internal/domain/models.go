package domain

import "encoding/json"

// Agent is an LLM assistant configuration owned by an admin.
// ID is the identifier assigned by the completion backend.
type Agent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	Model        string `json:"model"`
	OwnerID      string `json:"ownerId"`
}

// Appearance holds the widget styling of a chatbot.
type Appearance struct {
	Color string `json:"color"`
	Font  string `json:"font"`
	Size  string `json:"size"`
}

// Chatbot binds an agent to appearance settings. AgentID is a soft reference.
type Chatbot struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	AgentID     string     `json:"agentId"`
	Description string     `json:"description"`
	Appearance  Appearance `json:"appearance"`
	OwnerID     string     `json:"ownerId"`
}

// Thread is one user's conversation with one chatbot.
type Thread struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	ChatbotID string             `json:"chatbotId"`
	CreatedAt int64              `json:"createdAt"`
	Messages  map[string]Message `json:"messages,omitempty"`
}

// Message is a single entry in a thread's message log. Created is unix milliseconds.
type Message struct {
	ID          string            `json:"id"`
	Role        Role              `json:"role"`
	Content     string            `json:"content"`
	ContentType ContentType       `json:"content_type"`
	Created     int64             `json:"created"`
	ThreadID    string            `json:"threadId"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// DraftMessage is an assistant message still being written by an active run.
// Its content may be overwritten in place; its ID never changes.
type DraftMessage struct {
	msg       Message
	finalized bool
}

// NewDraftMessage starts a draft with a stable id.
func NewDraftMessage(id, threadID string, created int64) *DraftMessage {
	return &DraftMessage{msg: Message{
		ID:          id,
		Role:        RoleAssistant,
		ContentType: ContentTypeText,
		Created:     created,
		ThreadID:    threadID,
	}}
}

// ID returns the stable message id of the draft.
func (d *DraftMessage) ID() string { return d.msg.ID }

// Append adds a delta to the accumulated content and returns the snapshot to persist.
func (d *DraftMessage) Append(delta string) Message {
	if d.finalized {
		return d.msg
	}
	d.msg.Content += delta
	return d.msg
}

// Replace overwrites the accumulated content.
func (d *DraftMessage) Replace(content string) Message {
	if !d.finalized {
		d.msg.Content = content
	}
	return d.msg
}

// Snapshot returns the current content as a message record.
func (d *DraftMessage) Snapshot() Message { return d.msg }

// Finalize converts the draft exactly once. Later calls return ErrAlreadyFinalized.
func (d *DraftMessage) Finalize() (FinalizedMessage, error) {
	if d.finalized {
		return FinalizedMessage{}, ErrAlreadyFinalized
	}
	d.finalized = true
	return FinalizedMessage{msg: d.msg}, nil
}

// FinalizedMessage is an immutable message. It exposes a copy only.
type FinalizedMessage struct {
	msg Message
}

// Message returns a copy of the finalized record.
func (f FinalizedMessage) Message() Message {
	m := f.msg
	if f.msg.Metadata != nil {
		m.Metadata = make(map[string]string, len(f.msg.Metadata))
		for k, v := range f.msg.Metadata {
			m.Metadata[k] = v
		}
	}
	return m
}

// MarshalJSON encodes the underlying message.
func (f FinalizedMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.msg)
}

// Identity is the authenticated actor supplied by the identity provider.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Admin bool   `json:"admin"`
}

// Authenticated reports whether the identity is present.
func (i *Identity) Authenticated() bool {
	return i != nil && i.UID != ""
}
