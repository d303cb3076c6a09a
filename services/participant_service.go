// services/participant_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"campus-referral-engine/models"
	"campus-referral-engine/utils"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type ParticipantReadStore interface {
	AllowListStore
	GetParticipant(ctx context.Context, id string) (models.Participant, error)
	RankedParticipants(ctx context.Context) ([]models.Participant, error)
	UpsertParticipantDays(ctx context.Context, rows []models.ParticipantDay, fields ...string) error
	ParticipantDays(ctx context.Context, participantID string) ([]models.ParticipantDay, error)
}

type participantDayWriter interface {
	UpsertParticipantDays(ctx context.Context, rows []models.ParticipantDay, fields ...string) error
}

type ParticipantProfile struct {
	ParticipantID     string     `json:"participant_id"`
	ExternalUserID    string     `json:"external_user_id"`
	Email             string     `json:"email"`
	CampusID          string     `json:"campus_id"`
	CampusName        string     `json:"campus_name"`
	ReferralCode      *string    `json:"referral_code"`
	EligibleReferrals int        `json:"eligible_referrals_total"`
	Unlocked          bool       `json:"unlocked"`
	UnlockedAt        *time.Time `json:"unlocked_at"`
	CreatedAt         time.Time  `json:"created_at"`
}

// LiveMetrics are computed from the product database on request.
type LiveMetrics struct {
	ReferralStats
	Ranks
	LastUpdated time.Time `json:"last_updated"`
}

// StoredMetrics are read back from the daily aggregates.
type StoredMetrics struct {
	TotalSignups int `json:"total_signups"`
	D1Activated  int `json:"d1_activated"`
	D7Retained   int `json:"d7_retained"`
	ReferredDAU  int `json:"referred_dau"`
	Ranks
	LastUpdated string `json:"last_updated,omitempty"`
}

type ParticipantService struct {
	store  ParticipantReadStore
	source ReferralSource
	policy Policy
	loc    *time.Location
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewParticipantService(store ParticipantReadStore, source ReferralSource, policy Policy, loc *time.Location, clock clockwork.Clock, logger *zap.Logger) *ParticipantService {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParticipantService{store: store, source: source, policy: policy, loc: loc, clock: clock, logger: logger}
}

func (s *ParticipantService) Profile(ctx context.Context, participantID string) (*ParticipantProfile, error) {
	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("load participant: %w", err)
	}
	rows, err := s.store.AllowedDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("load allow-list: %w", err)
	}
	return &ParticipantProfile{
		ParticipantID:     p.ID,
		ExternalUserID:    p.ExternalUserID,
		Email:             p.Email,
		CampusID:          p.CampusID,
		CampusName:        NewAllowList(rows).CampusName(p.CampusID),
		ReferralCode:      p.ReferralCode,
		EligibleReferrals: p.EligibleReferralsTotal,
		Unlocked:          p.Unlocked(),
		UnlockedAt:        p.UnlockedAt,
		CreatedAt:         p.CreatedAt,
	}, nil
}

// Live recomputes referral stats and stores them as today's snapshot.
func (s *ParticipantService) Live(ctx context.Context, participantID string) (*LiveMetrics, error) {
	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("load participant: %w", err)
	}
	now := s.clock.Now()
	stats, err := referralSnapshot(ctx, s.source, s.store, s.policy, p, utils.DayKey(now, s.loc), now)
	if err != nil {
		return nil, err
	}
	ranks, err := s.ranks(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &LiveMetrics{ReferralStats: stats, Ranks: ranks, LastUpdated: now}, nil
}

// Stored sums attributed signups and reports the most recent snapshot counters.
func (s *ParticipantService) Stored(ctx context.Context, participantID string) (*StoredMetrics, error) {
	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("load participant: %w", err)
	}
	days, err := s.store.ParticipantDays(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load participant days: %w", err)
	}

	out := &StoredMetrics{}
	var latest *models.ParticipantDay
	for i := range days {
		d := &days[i]
		out.TotalSignups += d.Signups
		if out.LastUpdated == "" || d.Date > out.LastUpdated {
			out.LastUpdated = d.Date
		}
		if !hasSnapshot(*d) {
			continue
		}
		if latest == nil || d.Date > latest.Date {
			latest = d
		}
	}
	if latest != nil {
		out.D1Activated = latest.D1Activated
		out.D7Retained = latest.D7Retained
		out.ReferredDAU = latest.ReferredDAU
	}

	out.Ranks, err = s.ranks(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ParticipantService) ranks(ctx context.Context, participantID string) (Ranks, error) {
	all, err := s.store.RankedParticipants(ctx)
	if err != nil {
		return Ranks{}, fmt.Errorf("load participants: %w", err)
	}
	return RankOf(SortForRanking(all), participantID), nil
}

func hasSnapshot(d models.ParticipantDay) bool {
	return d.ReferralTotal > 0 || d.D1Activated > 0 || d.D7Retained > 0 || d.ReferredDAU > 0
}

// referralSnapshot computes a participant's referral stats and upserts them for day.
func referralSnapshot(ctx context.Context, source ReferralSource, store participantDayWriter, policy Policy, p models.Participant, day string, now time.Time) (ReferralStats, error) {
	referred, err := source.ReferredUsers(ctx, []models.ReferralOwner{policy.ReferralOwner(p)})
	if err != nil {
		return ReferralStats{}, fmt.Errorf("load referred users: %w", err)
	}
	stats := SummarizeReferrals(referred[p.ExternalUserID], now)

	row := models.ParticipantDay{
		Date:          day,
		ParticipantID: p.ID,
		ReferralTotal: stats.Total,
		D1Activated:   stats.D1Activated,
		D7Retained:    stats.D7Retained,
		ReferredDAU:   stats.ReferredDAU,
	}
	if err := store.UpsertParticipantDays(ctx, []models.ParticipantDay{row},
		models.ColReferralTotal, models.ColD1Activated, models.ColD7Retained, models.ColReferredDAU); err != nil {
		return ReferralStats{}, fmt.Errorf("upsert participant snapshot: %w", err)
	}
	return stats, nil
}
