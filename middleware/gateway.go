// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"strings"

	"hunt-publish-system/logger"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware validates the Bearer token the API gateway attaches to every call.
// With no token configured every request is refused.
func GatewayAuthMiddleware(expectedToken string, log *logger.Logger) fiber.Handler {
	expected := []byte(expectedToken)
	if expectedToken == "" {
		log.Error("❌ GATEWAY_SERVICE_TOKEN is not set; refusing all gateway traffic")
	}

	return func(c *fiber.Ctx) error {
		if len(expected) == 0 {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "gateway authentication is not configured",
				"code":  "unavailable",
			})
		}
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Warn("🚫 gateway token missing", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
				"code":  "unauthorized",
			})
		}

		// "Bearer <token>", or the raw token
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			log.Warn("❌ invalid gateway token", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
				"code":  "unauthorized",
			})
		}
		return c.Next()
	}
}
