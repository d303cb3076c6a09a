// middleware/cron_auth.go
package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CronAuthMiddleware guards the ingestion trigger with CRON_SECRET.
// With an empty secret every caller is accepted.
func CronAuthMiddleware(secret string, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if secret == "" {
		logger.Warn("[CRON_AUTH] CRON_SECRET not set, ingestion endpoint is open")
	}
	expected := []byte(secret)

	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			logger.Warn("[CRON_AUTH] rejected ingestion trigger", zap.String("path", c.Path()), zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
