// handlers/ingest.go
package handlers

import (
	"context"

	"campus-referral-engine/middleware"
	"campus-referral-engine/models"
	"campus-referral-engine/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Ingester interface {
	Run(ctx context.Context) (*services.IngestResult, error)
}

type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]models.IngestRun, error)
}

const maxRunsListed = 100

// SetupIngestRoutes exposes the cron trigger on GET and POST, and the run history.
func SetupIngestRoutes(app *fiber.App, ingester Ingester, runs RunLister, cronSecret string, logger *zap.Logger) {
	cron := app.Group("/api/cron", middleware.CronAuthMiddleware(cronSecret, logger))
	run := func(c *fiber.Ctx) error {
		res, err := ingester.Run(c.UserContext())
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{
				"ok":    false,
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"ok":        true,
			"processed": res,
		})
	}
	cron.Get("/ingest", run)
	cron.Post("/ingest", run)

	cron.Get("/runs", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)
		if limit <= 0 || limit > maxRunsListed {
			limit = maxRunsListed
		}
		list, err := runs.RecentRuns(c.UserContext(), limit)
		if err != nil {
			logger.Error("[INGEST] listing runs failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "Failed to list runs"})
		}
		return c.JSON(fiber.Map{"ok": true, "runs": list})
	})
}
