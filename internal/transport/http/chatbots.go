package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

// CreateChatbot creates a chatbot owned by the calling admin.
// POST /v1/chatbots
func (h *Handler) CreateChatbot(c echo.Context) error {
	ctx := c.Request().Context()

	var cb domain.Chatbot
	if err := c.Bind(&cb); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	cb.ID = ""
	cb.OwnerID = IdentityFrom(c).UID

	created, err := h.service.CreateChatbot(ctx, cb)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// ListChatbots lists the calling admin's chatbots.
// GET /v1/chatbots
func (h *Handler) ListChatbots(c echo.Context) error {
	chatbots, err := h.service.ListChatbots(c.Request().Context(), IdentityFrom(c).UID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"chatbots": chatbots,
	})
}

// GetChatbot returns a chatbot's public settings for the widget.
// GET /v1/chatbots/:chatbot_id
func (h *Handler) GetChatbot(c echo.Context) error {
	cb, err := h.service.GetChatbot(c.Request().Context(), c.Param("chatbot_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cb)
}

// UpdateChatbot replaces a chatbot owned by the calling admin.
// PUT /v1/chatbots/:chatbot_id
func (h *Handler) UpdateChatbot(c echo.Context) error {
	ctx := c.Request().Context()

	var cb domain.Chatbot
	if err := c.Bind(&cb); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	cb.ID = c.Param("chatbot_id")
	if err := h.checkChatbotOwner(c, cb.ID); err != nil {
		return writeError(c, err)
	}
	cb.OwnerID = IdentityFrom(c).UID

	updated, err := h.service.UpdateChatbot(ctx, cb)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteChatbot removes a chatbot owned by the calling admin.
// DELETE /v1/chatbots/:chatbot_id
func (h *Handler) DeleteChatbot(c echo.Context) error {
	chatbotID := c.Param("chatbot_id")
	if err := h.checkChatbotOwner(c, chatbotID); err != nil {
		return writeError(c, err)
	}
	if err := h.service.DeleteChatbot(c.Request().Context(), chatbotID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, domain.SuccessResponse{Success: true})
}

func (h *Handler) checkChatbotOwner(c echo.Context, chatbotID string) error {
	cb, err := h.service.GetChatbot(c.Request().Context(), chatbotID)
	if err != nil {
		return err
	}
	if cb.OwnerID != IdentityFrom(c).UID {
		return domain.ErrForbidden
	}
	return nil
}

// SelectThread returns the thread the caller continues with on a chatbot, creating
// one when none exists, and links the caller to the chatbot's owner.
// POST /v1/chatbots/:chatbot_id/thread
func (h *Handler) SelectThread(c echo.Context) error {
	ctx := c.Request().Context()

	id := IdentityFrom(c)
	if !id.Authenticated() {
		return writeError(c, domain.ErrUnauthenticated)
	}
	cb, err := h.service.GetChatbot(ctx, c.Param("chatbot_id"))
	if err != nil {
		return writeError(c, err)
	}

	thread, err := h.selector.SelectThread(ctx, id.UID, cb.ID)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.service.LinkUserWithAdmin(ctx, id.UID, cb.OwnerID); err != nil {
		h.logger.Warn("failed to link user with admin",
			zap.String("uid", id.UID), zap.String("admin_id", cb.OwnerID), zap.Error(err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"thread":  thread,
		"chatbot": cb,
	})
}
