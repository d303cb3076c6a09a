// services/analytics_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"campus-referral-engine/models"
	"campus-referral-engine/utils"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CampusLeaderboardSize is how many participants the campus board shows.
const CampusLeaderboardSize = 20

type AnalyticsStore interface {
	AllowListStore
	GetParticipant(ctx context.Context, id string) (models.Participant, error)
	RankedParticipants(ctx context.Context) ([]models.Participant, error)
}

type RangeInfo struct {
	Days int    `json:"days"`
	From string `json:"from"`
	To   string `json:"to"`
}

type LeaderboardEntry struct {
	Rank             int    `json:"rank"`
	ParticipantID    string `json:"participantId"`
	ParticipantEmail string `json:"participantEmail"`
	Referrals        int    `json:"referrals"`
	DAU              int    `json:"dau"`
	ActivationRate   int    `json:"activationRate"`
	RetentionRate    int    `json:"retentionRate"`
	Unlocked         bool   `json:"unlocked"`
}

type AnalyticsReport struct {
	DailyMetrics   []DailyMetric      `json:"dailyMetrics"`
	CurrentMetrics SnapshotMetrics    `json:"currentMetrics"`
	CampusData     []LeaderboardEntry `json:"campusData"`
	Range          RangeInfo          `json:"range"`
	Scope          ScopeKind          `json:"scope"`
}

type AnalyticsService struct {
	store  AnalyticsStore
	source AnalyticsSource
	policy Policy
	loc    *time.Location
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewAnalyticsService(store AnalyticsStore, source AnalyticsSource, policy Policy, loc *time.Location, clock clockwork.Clock, logger *zap.Logger) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{store: store, source: source, policy: policy, loc: loc, clock: clock, logger: logger}
}

// Report builds the analytics view for one participant's chosen scope.
func (s *AnalyticsService) Report(ctx context.Context, participantID string, r Range, kind ScopeKind) (*AnalyticsReport, error) {
	participant, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("load participant: %w", err)
	}
	rows, err := s.store.AllowedDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("load allow-list: %w", err)
	}
	allow := NewAllowList(rows)
	now := s.clock.Now()
	today := utils.DayKey(now, s.loc)

	var (
		act   Activity
		days  int
		board []LeaderboardEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		act, days, err = s.scopeActivity(gctx, ScopeSelector{Kind: kind, Participant: participant}, allow, r, today)
		return err
	})
	g.Go(func() error {
		var err error
		board, err = s.campusLeaderboard(gctx, participant.CampusID, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	daily := ComputeDaily(act, days, today, s.loc)
	report := &AnalyticsReport{
		DailyMetrics:   daily,
		CurrentMetrics: ComputeSnapshot(act, now, s.loc),
		CampusData:     board,
		Range:          RangeInfo{Days: days, From: utils.ShiftDay(today, -(days - 1)), To: today},
		Scope:          kind,
	}
	s.logger.Debug("[ANALYTICS] report built",
		zap.String("participant_id", participantID),
		zap.String("scope", string(kind)),
		zap.Int("users", len(act.Users)),
		zap.Int("days", days))
	return report, nil
}

// scopeActivity loads the scope's users, resolves the window, then loads solver starts covering it.
func (s *AnalyticsService) scopeActivity(ctx context.Context, sel ScopeSelector, allow AllowList, r Range, today string) (Activity, int, error) {
	users, err := s.source.ScopeUsers(ctx, sel.ToQuery(allow, s.policy))
	if err != nil {
		return Activity{}, 0, fmt.Errorf("load scope users: %w", err)
	}
	days := ResolveDays(r, EarliestDay(users, s.loc), today)
	if len(users) == 0 {
		return Activity{}, days, nil
	}

	// MAU of the oldest day looks back a further 29 days.
	first := utils.ShiftDay(today, -(days - 1) - 29)
	since, _, err := utils.DayBounds(first, s.loc)
	if err != nil {
		return Activity{}, 0, err
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	solver, err := s.source.SolverActivity(ctx, ids, since, s.loc)
	if err != nil {
		return Activity{}, 0, fmt.Errorf("load solver activity: %w", err)
	}
	return Activity{Users: users, Solver: solver}, days, nil
}

func (s *AnalyticsService) campusLeaderboard(ctx context.Context, campusID string, now time.Time) ([]LeaderboardEntry, error) {
	all, err := s.store.RankedParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	top := CampusTop(SortForRanking(all), campusID, CampusLeaderboardSize)
	if len(top) == 0 {
		return []LeaderboardEntry{}, nil
	}

	owners := make([]models.ReferralOwner, len(top))
	for i, p := range top {
		owners[i] = s.policy.ReferralOwner(p)
	}
	referred, err := s.source.ReferredUsers(ctx, owners)
	if err != nil {
		return nil, fmt.Errorf("load referred users: %w", err)
	}

	board := make([]LeaderboardEntry, len(top))
	for i, p := range top {
		stats := SummarizeReferrals(referred[p.ExternalUserID], now)
		board[i] = LeaderboardEntry{
			Rank:             i + 1,
			ParticipantID:    p.ID,
			ParticipantEmail: p.Email,
			Referrals:        stats.Total,
			DAU:              stats.ReferredDAU,
			ActivationRate:   Percent(stats.D1Activated, stats.Total),
			RetentionRate:    Percent(stats.D7Retained, stats.Total),
			Unlocked:         p.Unlocked(),
		}
	}
	return board, nil
}
