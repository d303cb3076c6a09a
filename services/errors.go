// services/errors.go
package services

import (
	"errors"

	"campus-referral-engine/models"
)

var (
	ErrNotFound           = models.ErrNotFound
	ErrInvalidRequest     = errors.New("invalid request")
	ErrDomainNotAllowed   = errors.New("email domain is not part of the competition")
	ErrReferralMismatch   = errors.New("referral code does not match account")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrLeaseHeld          = errors.New("another ingestion run holds the lease")
	ErrBudgetExceeded     = errors.New("ingestion run exceeded its time budget")
	ErrCursorConflict     = models.ErrCursorConflict
)
