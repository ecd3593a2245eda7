package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/auth"
	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

const identityKey = "identity"

// Authenticate resolves the bearer token into an identity. A missing or invalid token
// leaves the request anonymous; handlers and the facade decide what that means.
// Websocket clients may pass the token in the "token" query parameter.
func Authenticate(tokens *auth.TokenService, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request())
			if token == "" {
				token = c.QueryParam("token")
			}
			if token == "" {
				return next(c)
			}
			id, err := tokens.Validate(token)
			if err != nil {
				logger.Debug("ignoring invalid token", zap.Error(err))
				return next(c)
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// IdentityFrom returns the caller's identity, or nil for anonymous requests.
func IdentityFrom(c echo.Context) *domain.Identity {
	id, _ := c.Get(identityKey).(*domain.Identity)
	return id
}

// RequireAdmin rejects anonymous and non-admin callers.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := IdentityFrom(c)
		if !id.Authenticated() {
			return writeError(c, domain.ErrUnauthenticated)
		}
		if !id.Admin {
			return writeError(c, domain.ErrForbidden)
		}
		return next(c)
	}
}

// FrameAncestors sets the Content-Security-Policy that controls which sites may embed the widget.
func FrameAncestors(sources []string) echo.MiddlewareFunc {
	if len(sources) == 0 {
		sources = []string{"'self'"}
	}
	policy := "frame-ancestors " + strings.Join(sources, " ")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Content-Security-Policy", policy)
			return next(c)
		}
	}
}

// RequestLogger logs one structured line per request.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				logger.Warn("request", fields...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}
