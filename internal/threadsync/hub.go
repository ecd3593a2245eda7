package threadsync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/repository"
)

// FrameMessages is the frame type carrying a thread's rendered message list.
const FrameMessages = "messages"

// Frame is what the hub sends to websocket clients.
type Frame struct {
	Type     string           `json:"type"`
	ThreadID string           `json:"threadId"`
	Messages []domain.Message `json:"messages"`
}

// Connection represents a single websocket client following one thread.
type Connection struct {
	ID       string
	ThreadID string
	Conn     *websocket.Conn
	Send     chan []byte
	mu       sync.Mutex
}

type threadMessage struct {
	threadID string
	data     []byte
}

type openedView struct {
	view   *View
	remove func()
}

// Hub fans thread views out to websocket connections. One View is kept per
// followed thread and closed when its last connection leaves.
type Hub struct {
	store  repository.Store
	logger *zap.Logger

	connections map[string]*Connection
	threads     map[string]map[string]bool
	views       map[string]*openedView

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *threadMessage

	mu sync.RWMutex
}

func NewHub(store repository.Store, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		store:       store,
		logger:      logger,
		connections: make(map[string]*Connection),
		threads:     make(map[string]map[string]bool),
		views:       make(map[string]*openedView),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *threadMessage, 256),
	}
}

// Run starts the hub's main loop. It returns when ctx ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.threads[conn.ThreadID] == nil {
				h.threads[conn.ThreadID] = make(map[string]bool)
			}
			h.threads[conn.ThreadID][conn.ID] = true
			opened := h.views[conn.ThreadID]
			h.mu.Unlock()

			if opened == nil {
				go h.openView(ctx, conn.ThreadID)
			} else if data, err := encodeFrame(conn.ThreadID, opened.view.Messages()); err == nil {
				_ = h.SendToConnection(conn, data)
			}
			h.logger.Debug("connection registered", zap.String("conn_id", conn.ID), zap.String("thread_id", conn.ThreadID))

		case conn := <-h.unregister:
			var closing *openedView
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				delete(h.threads[conn.ThreadID], conn.ID)
				if len(h.threads[conn.ThreadID]) == 0 {
					delete(h.threads, conn.ThreadID)
					closing = h.views[conn.ThreadID]
					delete(h.views, conn.ThreadID)
				}
				close(conn.Send)
			}
			h.mu.Unlock()
			if closing != nil {
				closing.remove()
				closing.view.Close()
			}
			h.logger.Debug("connection unregistered", zap.String("conn_id", conn.ID))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.threads[msg.threadID] {
				if conn, exists := h.connections[connID]; exists {
					select {
					case conn.Send <- msg.data:
					default:
						h.logger.Warn("connection buffer full, closing", zap.String("conn_id", connID))
						go h.Unregister(conn)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) openView(ctx context.Context, threadID string) {
	view, err := OpenView(ctx, h.store, threadID, h.logger)
	if err != nil {
		h.logger.Error("failed to open thread view", zap.String("thread_id", threadID), zap.Error(err))
		return
	}
	remove := view.OnChange(func(msgs []domain.Message) {
		h.broadcastMessages(threadID, msgs)
	})

	h.mu.Lock()
	_, following := h.threads[threadID]
	_, exists := h.views[threadID]
	if !following || exists {
		h.mu.Unlock()
		remove()
		view.Close()
		return
	}
	h.views[threadID] = &openedView{view: view, remove: remove}
	h.mu.Unlock()

	h.broadcastMessages(threadID, view.Messages())
}

func (h *Hub) broadcastMessages(threadID string, msgs []domain.Message) {
	data, err := encodeFrame(threadID, msgs)
	if err != nil {
		h.logger.Error("failed to encode frame", zap.String("thread_id", threadID), zap.Error(err))
		return
	}
	h.Broadcast(threadID, data)
}

func encodeFrame(threadID string, msgs []domain.Message) ([]byte, error) {
	return json.Marshal(Frame{Type: FrameMessages, ThreadID: threadID, Messages: msgs})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	views := h.views
	h.views = make(map[string]*openedView)
	h.mu.Unlock()
	for _, v := range views {
		v.remove()
		v.view.Close()
	}
}

// NewConnection creates a connection following threadID.
func (h *Hub) NewConnection(ws *websocket.Conn, threadID string) *Connection {
	return &Connection{
		ID:       uuid.New().String(),
		ThreadID: threadID,
		Conn:     ws,
		Send:     make(chan []byte, 256),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Broadcast sends data to all connections following threadID.
func (h *Hub) Broadcast(threadID string, data []byte) {
	h.broadcast <- &threadMessage{threadID: threadID, data: data}
}

// SendToConnection sends data to one connection without blocking.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// ThreadCount returns the number of followed threads.
func (h *Hub) ThreadCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.threads)
}

// HasView reports whether a view is open for threadID.
func (h *Hub) HasView(threadID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.views[threadID]
	return ok
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the underlying websocket.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = errBufferFull{}

type errBufferFull struct{}

func (errBufferFull) Error() string { return "send buffer full" }
