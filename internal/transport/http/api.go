package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/facade"
)

// Dispatch handles facade requests.
// POST /api
func (h *Handler) Dispatch(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.DispatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	id := IdentityFrom(c)
	if req.Action == domain.ActionRunAssistant && (facade.IsStreamRequest(req) || acceptsEventStream(c.Request())) {
		return h.streamRun(c, id, req)
	}

	out, err := h.dispatcher.Dispatch(ctx, id, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func acceptsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// streamRun writes the raw assistant text as it arrives. Errors that happen before the
// first chunk are reported as JSON; later errors can only end the stream.
func (h *Handler) streamRun(c echo.Context, id *domain.Identity, req domain.DispatchRequest) error {
	w := &streamWriter{res: c.Response()}
	err := h.dispatcher.DispatchStream(c.Request().Context(), id, req, w)
	if err == nil {
		w.start()
		return nil
	}
	if !w.started {
		return writeError(c, err)
	}
	h.logger.Warn("run stream ended with error", zap.Error(err))
	return nil
}

// streamWriter sends event-stream headers on the first write and flushes every chunk.
type streamWriter struct {
	res     *echo.Response
	started bool
}

func (w *streamWriter) start() {
	if w.started {
		return
	}
	w.started = true
	header := w.res.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	w.res.WriteHeader(http.StatusOK)
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.start()
	n, err := w.res.Write(p)
	if err != nil {
		return n, err
	}
	w.res.Flush()
	return n, nil
}
