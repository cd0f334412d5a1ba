package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets the response headers expected of a JSON API that
// serves patient records. Export downloads pass through here too.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// No MIME sniffing of CSV/XLSX attachments.
			h.Set("X-Content-Type-Options", "nosniff")

			// Dashboards may not be framed by other origins.
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			// HTTPS only, one year.
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			// Patient ids appear in paths; keep them out of Referer.
			h.Set("Referrer-Policy", "no-referrer")

			// Patient data must not sit in shared caches.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
