// services/token.go
package services

import (
	"errors"
	"fmt"
	"time"

	"campus-referral-engine/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// Claims identify a participant on authenticated routes.
type Claims struct {
	ParticipantID  string `json:"participant_id"`
	ExternalUserID string `json:"external_user_id"`
	CampusID       string `json:"campus_id"`
	Email          string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 participant tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewTokenIssuer(secret string, ttl time.Duration, clock clockwork.Clock) *TokenIssuer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, clock: clock}
}

func (t *TokenIssuer) Issue(p models.Participant) (string, error) {
	now := t.clock.Now()
	claims := Claims{
		ParticipantID:  p.ID,
		ExternalUserID: p.ExternalUserID,
		CampusID:       p.CampusID,
		Email:          p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims, or ErrInvalidToken.
func (t *TokenIssuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.ParticipantID == "" {
		return nil, fmt.Errorf("%w: missing participant_id", ErrInvalidToken)
	}
	return claims, nil
}
