package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/facade"
	"github.com/mpadronm90/simple-chatbot-platform/internal/service"
	"github.com/mpadronm90/simple-chatbot-platform/internal/threadsync"
)

// Handler handles HTTP requests.
type Handler struct {
	service    *service.Service
	dispatcher *facade.Dispatcher
	selector   *threadsync.Selector
	hub        *threadsync.Hub
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	ws         WSConfig
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, dispatcher *facade.Dispatcher, selector *threadsync.Selector, hub *threadsync.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:    svc,
		dispatcher: dispatcher,
		selector:   selector,
		hub:        hub,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Widgets are embedded on arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ws: DefaultWSConfig(),
	}
}

// RegisterRoutes registers all routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Facade
	e.POST("/api", h.Dispatch)

	// Chatbot management (admin)
	admin := e.Group("/v1/chatbots", RequireAdmin)
	admin.POST("", h.CreateChatbot)
	admin.GET("", h.ListChatbots)
	admin.PUT("/:chatbot_id", h.UpdateChatbot)
	admin.DELETE("/:chatbot_id", h.DeleteChatbot)

	// Widget
	e.GET("/v1/chatbots/:chatbot_id", h.GetChatbot)
	e.POST("/v1/chatbots/:chatbot_id/thread", h.SelectThread)
	e.GET("/ws/threads/:thread_id", h.HandleWebSocket)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"runMode": h.service.RunMode(),
		"threads": h.hub.ThreadCount(),
	})
}
