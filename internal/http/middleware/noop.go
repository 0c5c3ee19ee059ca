package middleware

import "github.com/gofiber/fiber/v2"

// Noop simply calls the next handler. It stands in for Authenticate and
// RequireRole when authentication is disabled.
func Noop() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Next()
	}
}
