package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"campus-referral-engine/models"
	"campus-referral-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		token string
		ok    bool
	}{
		"Bearer abc":   {"abc", true},
		"bearer  abc ": {"abc", true},
		"Bearer ":      {"", false},
		"Basic abc":    {"", false},
		"":             {"", false},
		"Bearerabc":    {"", false},
	}
	for header, want := range cases {
		got, ok := bearerToken(header)
		if got != want.token || ok != want.ok {
			t.Errorf("bearerToken(%q): got %q %v, want %q %v", header, got, ok, want.token, want.ok)
		}
	}
}

func TestParticipantAuthMiddleware(t *testing.T) {
	issuer := services.NewTokenIssuer("s3cret", time.Hour, clockwork.NewRealClock())
	token, err := issuer.Issue(models.Participant{ID: "p-9", CampusID: "c1"})
	if err != nil {
		t.Fatal(err)
	}

	app := fiber.New()
	app.Get("/whoami", ParticipantAuthMiddleware(issuer, nil), func(c *fiber.Ctx) error {
		return c.SendString(ParticipantID(c))
	})

	cases := []struct {
		header string
		want   int
	}{
		{"", fiber.StatusUnauthorized},
		{"Bearer nonsense", fiber.StatusUnauthorized},
		{"Bearer " + token, fiber.StatusOK},
	}
	for _, c := range cases {
		req := httptest.NewRequest("GET", "/whoami", nil)
		if c.header != "" {
			req.Header.Set(fiber.HeaderAuthorization, c.header)
		}
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != c.want {
			t.Errorf("%q: got %d, want %d", c.header, resp.StatusCode, c.want)
		}
	}
}

func TestCronAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Post("/cron", CronAuthMiddleware("topsecret", nil), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	cases := map[string]int{
		"":                 fiber.StatusUnauthorized,
		"Bearer wrong":     fiber.StatusUnauthorized,
		"Bearer topsecre":  fiber.StatusUnauthorized,
		"Bearer topsecret": fiber.StatusNoContent,
	}
	for header, want := range cases {
		req := httptest.NewRequest("POST", "/cron", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != want {
			t.Errorf("%q: got %d, want %d", header, resp.StatusCode, want)
		}
	}
}
