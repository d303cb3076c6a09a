// handlers/participant.go
package handlers

import (
	"context"

	"campus-referral-engine/middleware"
	"campus-referral-engine/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ParticipantReader interface {
	Profile(ctx context.Context, participantID string) (*services.ParticipantProfile, error)
	Live(ctx context.Context, participantID string) (*services.LiveMetrics, error)
	Stored(ctx context.Context, participantID string) (*services.StoredMetrics, error)
}

func SetupParticipantRoutes(app *fiber.App, reader ParticipantReader, auth fiber.Handler, logger *zap.Logger) {
	app.Get("/api/participant/me", auth, func(c *fiber.Ctx) error {
		profile, err := reader.Profile(c.UserContext(), middleware.ParticipantID(c))
		if err != nil {
			return participantError(c, logger, "profile", err)
		}
		return c.JSON(profile)
	})

	app.Get("/api/metrics/live", auth, func(c *fiber.Ctx) error {
		live, err := reader.Live(c.UserContext(), middleware.ParticipantID(c))
		if err != nil {
			return participantError(c, logger, "live metrics", err)
		}
		return c.JSON(live)
	})

	app.Get("/api/metrics/my", auth, func(c *fiber.Ctx) error {
		stored, err := reader.Stored(c.UserContext(), middleware.ParticipantID(c))
		if err != nil {
			return participantError(c, logger, "stored metrics", err)
		}
		return c.JSON(stored)
	})
}

func participantError(c *fiber.Ctx, logger *zap.Logger, what string, err error) error {
	status := statusFor(err)
	if status == fiber.StatusNotFound {
		return c.Status(status).JSON(fiber.Map{"error": "Participant not found"})
	}
	logger.Error("[PARTICIPANT] "+what+" failed", zap.String("participant_id", middleware.ParticipantID(c)), zap.Error(err))
	return c.Status(status).JSON(fiber.Map{"error": "Failed to fetch " + what})
}
