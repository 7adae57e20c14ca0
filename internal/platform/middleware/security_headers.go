package middleware

import (
	"github.com/labstack/echo/v4"
)

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'"

	// The API docs page loads Swagger UI from unpkg and boots it inline.
	docsCSP = "default-src 'none'; script-src 'unsafe-inline' https://unpkg.com; " +
		"style-src https://unpkg.com; img-src 'self' data:; connect-src 'self'; frame-ancestors 'none'"
)

// SecurityHeaders sets response headers suited to a JSON API that serves
// patient data. Paths in htmlPages are served as HTML documentation and get a
// content security policy that lets them render.
func SecurityHeaders(htmlPages ...string) echo.MiddlewareFunc {
	pages := make(map[string]bool, len(htmlPages))
	for _, p := range htmlPages {
		pages[p] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			if pages[c.Request().URL.Path] {
				h.Set("Content-Security-Policy", docsCSP)
			} else {
				h.Set("Content-Security-Policy", apiCSP)
				// Responses may carry medical records.
				h.Set("Cache-Control", "no-store")
			}

			return next(c)
		}
	}
}
