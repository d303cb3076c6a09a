// handlers/auth.go
package handlers

import (
	"context"
	"errors"

	"campus-referral-engine/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Joiner interface {
	Join(ctx context.Context, req services.JoinRequest) (*services.JoinResult, error)
}

var joinErrorMessages = map[int]string{
	fiber.StatusBadRequest:   "Email is required",
	fiber.StatusUnauthorized: "Invalid credentials",
	fiber.StatusForbidden:    "Email domain not eligible for this competition",
	fiber.StatusNotFound:     "No account found for this email. Sign up on the product first.",
}

func SetupAuthRoutes(app *fiber.App, joiner Joiner, logger *zap.Logger) {
	app.Post("/api/auth/join", func(c *fiber.Ctx) error {
		var req services.JoinRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		res, err := joiner.Join(c.UserContext(), req)
		if err != nil {
			status := statusFor(err)
			msg, known := joinErrorMessages[status]
			if errors.Is(err, services.ErrReferralMismatch) {
				msg = "Referral code does not match this account"
			}
			if !known {
				logger.Error("[JOIN] join failed", zap.Error(err))
				msg = "Failed to join competition"
			}
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}
		return c.JSON(res)
	})
}
