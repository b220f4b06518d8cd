package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PermissiveCORS allows any origin. The server only exposes operational
// endpoints (health, readiness, metrics), so there is nothing to protect
// with an origin allowlist.
func PermissiveCORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
