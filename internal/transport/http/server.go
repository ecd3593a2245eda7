// Package handler provides the HTTP server of the chatbot platform.
package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/auth"
)

// NewServer creates and configures the public HTTP server.
func NewServer(h *Handler, tokens *auth.TokenService, frameAncestors []string, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(FrameAncestors(frameAncestors))
	e.Use(Authenticate(tokens, logger))

	h.RegisterRoutes(e)

	return e
}
