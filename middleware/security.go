package middleware

import (
	"github.com/labstack/echo/v4"
)

// apiCSP forbids everything: responses are JSON, files or PDFs, never pages
const apiCSP = "default-src 'none'; frame-ancestors 'none'"

// SecurityHeaders sets the response headers every API answer carries
func SecurityHeaders(production bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Content-Security-Policy", apiCSP)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			if production {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			return next(c)
		}
	}
}
