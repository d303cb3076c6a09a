// handlers/analytics.go
package handlers

import (
	"context"

	"campus-referral-engine/middleware"
	"campus-referral-engine/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AnalyticsReporter interface {
	Report(ctx context.Context, participantID string, r services.Range, kind services.ScopeKind) (*services.AnalyticsReport, error)
}

// SetupAnalyticsRoutes serves GET /api/analytics?range=7d|30d|90d|all&scope=referrals|campus|all.
func SetupAnalyticsRoutes(app *fiber.App, reporter AnalyticsReporter, auth fiber.Handler, logger *zap.Logger) {
	app.Get("/api/analytics", auth, func(c *fiber.Ctx) error {
		participantID := middleware.ParticipantID(c)
		r := services.ParseRange(c.Query("range", string(services.Range30d)))
		kind := services.ParseScope(c.Query("scope", string(services.ScopeCampus)))

		report, err := reporter.Report(c.UserContext(), participantID, r, kind)
		if err != nil {
			status := statusFor(err)
			if status == fiber.StatusNotFound {
				return c.Status(status).JSON(fiber.Map{"error": "Participant not found"})
			}
			logger.Error("[ANALYTICS] report failed", zap.String("participant_id", participantID), zap.Error(err))
			return c.Status(status).JSON(fiber.Map{"error": "Failed to fetch analytics"})
		}
		return c.JSON(report)
	})
}
