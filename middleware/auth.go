// middleware/auth.go
package middleware

import (
	"strings"

	"campus-referral-engine/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Locals keys set by ParticipantAuthMiddleware.
const (
	ParticipantIDKey = "participant_id"
	CampusIDKey      = "campus_id"
	ClaimsKey        = "claims"
)

// TokenParser verifies participant tokens.
type TokenParser interface {
	Parse(raw string) (*services.Claims, error)
}

// ParticipantAuthMiddleware requires "Authorization: Bearer <jwt>" and attaches the claims.
func ParticipantAuthMiddleware(tokens TokenParser, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid authorization header",
			})
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			logger.Debug("[AUTH] rejected token", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(ParticipantIDKey, claims.ParticipantID)
		c.Locals(CampusIDKey, claims.CampusID)
		c.Locals(ClaimsKey, claims)
		return c.Next()
	}
}

// ParticipantID returns the authenticated participant, or "" outside the middleware.
func ParticipantID(c *fiber.Ctx) string {
	id, _ := c.Locals(ParticipantIDKey).(string)
	return id
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
