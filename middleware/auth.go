package middleware

import (
	"net/http"
	"strings"

	"eviction_intake_go/services"

	"github.com/labstack/echo/v4"
)

const (
	// ContextKeyActor is the context key for the authenticated actor name
	ContextKeyActor = "actor"
	// ClerkActor is recorded for every dashboard request
	ClerkActor = "clerk"
)

// RequireAdminToken is middleware that requires a bearer token matching
// the bcrypt hash of the dashboard token. An empty hash locks the
// dashboard entirely.
func RequireAdminToken(tokenHash string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tokenHash == "" {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "Dashboard is not configured")
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing bearer token")
			}

			if !services.VerifyAdminToken(tokenHash, strings.TrimSpace(token)) {
				c.Logger().Warnf("[SECURITY] Invalid dashboard token from %s", c.RealIP())
				services.Monitor.TrackFailedCredential(c.RealIP(), "dashboard token")
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set(ContextKeyActor, ClerkActor)
			return next(c)
		}
	}
}

// GetActor returns the authenticated actor or "" for anonymous requests
func GetActor(c echo.Context) string {
	if actor, ok := c.Get(ContextKeyActor).(string); ok {
		return actor
	}
	return ""
}
