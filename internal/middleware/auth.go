package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAPIKey returns a middleware that checks the X-Api-Key header.
// Every surface of this service is server-to-server, so a shared key is
// the whole auth story.
func RequireAPIKey(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "API key not configured")
			}

			provided := c.Request().Header.Get("X-Api-Key")
			if provided == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing API key")
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid API key")
			}

			return next(c)
		}
	}
}
