package handler

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/threadsync"
)

// WSConfig holds websocket connection limits.
type WSConfig struct {
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

func DefaultWSConfig() WSConfig {
	return WSConfig{
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 4096,
	}
}

// HandleWebSocket follows one thread. The client receives a "messages" frame with the
// rendered message list each time it changes. Only the thread owner or an admin may follow.
// GET /ws/threads/:thread_id
func (h *Handler) HandleWebSocket(c echo.Context) error {
	id := IdentityFrom(c)
	if !id.Authenticated() {
		return writeError(c, domain.ErrUnauthenticated)
	}
	thread, err := h.service.GetThread(c.Request().Context(), c.Param("thread_id"))
	if err != nil {
		return writeError(c, err)
	}
	if thread.UserID != id.UID && !id.Admin {
		return writeError(c, domain.ErrForbidden)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return err
	}

	conn := h.hub.NewConnection(ws, thread.ID)
	h.hub.Register(conn)

	ws.SetReadLimit(h.ws.MaxMessageSize)

	go h.writePump(conn)
	go h.readPump(conn)

	return nil
}

// readPump drains client frames so pongs and close frames are processed.
func (h *Handler) readPump(conn *threadsync.Connection) {
	defer func() {
		h.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(h.ws.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.ws.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Info("websocket closed", zap.String("thread_id", conn.ThreadID), zap.Error(err))
			}
			return
		}
	}
}

// writePump writes hub frames and keepalive pings to the websocket.
func (h *Handler) writePump(conn *threadsync.Connection) {
	ticker := time.NewTicker(h.ws.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(h.ws.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Warn("failed to write frame", zap.String("thread_id", conn.ThreadID), zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.ws.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
