package middleware

// identity.go defines helper functions shared across middleware files.
// clientKey identifies the caller for rate limiting purposes: the
// authenticated user when available, otherwise the remote IP.

import "github.com/labstack/echo/v4"

// clientKey returns the authenticated user's ID from the context, or the
// request's real IP when no user is authenticated.
func clientKey(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return v
	}
	return c.RealIP()
}
