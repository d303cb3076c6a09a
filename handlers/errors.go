// handlers/errors.go
package handlers

import (
	"errors"

	"campus-referral-engine/services"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrDomainNotAllowed), errors.Is(err, services.ErrReferralMismatch):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrLeaseHeld), errors.Is(err, services.ErrCursorConflict):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}
