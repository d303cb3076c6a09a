// services/join_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campus-referral-engine/instrument"
	"campus-referral-engine/models"
	"campus-referral-engine/utils"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// referralSuffixLen is how many trailing characters of a referral code a joiner must quote.
const referralSuffixLen = 6

type JoinStore interface {
	AllowListStore
	UpsertParticipant(ctx context.Context, p *models.Participant) error
	UpdateReferralState(ctx context.Context, participantID string, count int, unlockedAt *time.Time) error
	RecordUnlockEvent(ctx context.Context, ev models.UnlockEvent) (bool, error)
	UpsertParticipantDays(ctx context.Context, rows []models.ParticipantDay, fields ...string) error
}

type JoinRequest struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	ReferralCodeSuffix string `json:"referralCodeSuffix"`
}

type JoinResult struct {
	ParticipantID string `json:"participant_id"`
	CampusID      string `json:"campus_id"`
	CampusName    string `json:"campus_name"`
	ReferralCount int    `json:"referral_count"`
	Unlocked      bool   `json:"unlocked"`
	Token         string `json:"token"`
}

// JoinService registers product accounts as participants and issues their tokens.
type JoinService struct {
	store  JoinStore
	source AccountSource
	tokens *TokenIssuer
	policy Policy
	loc    *time.Location
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewJoinService(store JoinStore, source AccountSource, tokens *TokenIssuer, policy Policy, loc *time.Location, clock clockwork.Clock, logger *zap.Logger) *JoinService {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JoinService{store: store, source: source, tokens: tokens, policy: policy, loc: loc, clock: clock, logger: logger}
}

func (s *JoinService) Join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	res, err := s.join(ctx, req)
	instrument.Join(joinOutcome(err))
	return res, err
}

func (s *JoinService) join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}

	rows, err := s.store.AllowedDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("load allow-list: %w", err)
	}
	campus, err := s.policy.JoinCampus(NewAllowList(rows), email)
	if err != nil {
		s.logger.Info("[JOIN] domain not allowed", zap.String("domain", EmailDomain(email)))
		return nil, err
	}

	user, err := s.source.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("no product account for %s: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("find product account: %w", err)
	}

	if req.Password != "" {
		if user.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)) != nil {
			return nil, ErrInvalidCredentials
		}
	}
	if err := checkReferralSuffix(req.ReferralCodeSuffix, user.ReferralCode); err != nil {
		return nil, err
	}

	p := &models.Participant{
		ExternalUserID: user.ID,
		Email:          user.Email,
		CampusID:       campus.ID,
		ReferralCode:   user.ReferralCode,
	}
	if err := s.store.UpsertParticipant(ctx, p); err != nil {
		return nil, fmt.Errorf("save participant: %w", err)
	}

	now := s.clock.Now()
	stats, err := referralSnapshot(ctx, s.source, s.store, s.policy, *p, utils.DayKey(now, s.loc), now)
	if err != nil {
		return nil, err
	}
	first, err := applyReferralCount(ctx, s.store, *p, stats.Total, s.policy.Threshold, now)
	if err != nil {
		return nil, err
	}
	if first {
		instrument.Unlocked(1)
	}
	unlocked := EvaluateUnlock(p.UnlockedAt, stats.Total, s.policy.Threshold, now) != nil

	token, err := s.tokens.Issue(*p)
	if err != nil {
		return nil, err
	}

	s.logger.Info("[JOIN] participant joined",
		zap.String("participant_id", p.ID),
		zap.String("campus_id", campus.ID),
		zap.Int("referrals", stats.Total),
		zap.Bool("unlocked", unlocked))

	return &JoinResult{
		ParticipantID: p.ID,
		CampusID:      campus.ID,
		CampusName:    campus.Name,
		ReferralCount: stats.Total,
		Unlocked:      unlocked,
		Token:         token,
	}, nil
}

// checkReferralSuffix compares the quoted suffix with the end of the account's own code.
// Accounts without a code, or requests without a suffix, are not checked.
func checkReferralSuffix(suffix string, code *string) error {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" || code == nil || *code == "" {
		return nil
	}
	want := *code
	if len(want) > referralSuffixLen {
		want = want[len(want)-referralSuffixLen:]
	}
	if suffix != want {
		return ErrReferralMismatch
	}
	return nil
}

func joinOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrDomainNotAllowed), errors.Is(err, ErrReferralMismatch):
		return "forbidden"
	case errors.Is(err, ErrInvalidCredentials):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "error"
}
