// handlers/health.go
package handlers

import (
	"context"
	"time"

	"campus-referral-engine/instrument"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthDeps struct {
	Database     Pinger
	Source       Pinger
	CountDomains func(ctx context.Context) (int64, error)
	Env          map[string]bool // required variable → present
	Clock        func() time.Time
	PingTimeout time.Duration
}

type check struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SetupHealthRoutes serves /api/health and the Prometheus /metrics endpoint.
func SetupHealthRoutes(app *fiber.App, d HealthDeps) {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.PingTimeout <= 0 {
		d.PingTimeout = 3 * time.Second
	}

	app.Get("/api/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), d.PingTimeout)
		defer cancel()

		healthy := true
		for _, present := range d.Env {
			healthy = healthy && present
		}
		ping := func(p Pinger) check {
			if p == nil {
				return check{OK: false, Error: "not configured"}
			}
			if err := p.Ping(ctx); err != nil {
				return check{OK: false, Error: err.Error()}
			}
			return check{OK: true}
		}
		db := ping(d.Database)
		src := ping(d.Source)
		healthy = healthy && db.OK && src.OK

		domains := fiber.Map{"ok": false}
		if d.CountDomains != nil && db.OK {
			if n, err := d.CountDomains(ctx); err != nil {
				domains["error"] = err.Error()
				healthy = false
			} else {
				domains = fiber.Map{"ok": true, "count": n}
			}
		}

		status, label := fiber.StatusOK, "healthy"
		if !healthy {
			status, label = fiber.StatusServiceUnavailable, "unhealthy"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    label,
			"timestamp": d.Clock().UTC(),
			"checks": fiber.Map{
				"env":             d.Env,
				"database":        db,
				"source":          src,
				"allowed_domains": domains,
			},
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(instrument.Handler()))
}
