// services/ingest_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campus-referral-engine/instrument"
	"campus-referral-engine/models"
	"campus-referral-engine/utils"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type IngestConfig struct {
	BatchLimit int
	Budget     time.Duration
	LeaseTTL   time.Duration
	Epoch      time.Time
	Location   *time.Location
}

type IngestDeps struct {
	Store    IngestStore
	Source   IngestSource
	Policy   Policy
	Config   IngestConfig
	Clock    clockwork.Clock
	Archiver RunArchiver // optional
	Logger   *zap.Logger
}

// IngestResult is returned to the cron caller.
type IngestResult struct {
	RunID       string    `json:"runId"`
	NewUsers    int       `json:"newUsers"`
	Skipped     int       `json:"skipped"`
	DAUEligible int       `json:"dauEligible"`
	Date        string    `json:"date"`
	Unlocked    int       `json:"unlocked"`
	Watermark   time.Time `json:"watermark"`
}

// IngestService runs one bounded batch of signup ingestion per call.
type IngestService struct {
	store    IngestStore
	source   IngestSource
	policy   Policy
	cfg      IngestConfig
	clock    clockwork.Clock
	archiver RunArchiver
	logger   *zap.Logger
}

func NewIngestService(d IngestDeps) *IngestService {
	cfg := d.Config
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 1000
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 55 * time.Second
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 2 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Epoch.IsZero() {
		cfg.Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &IngestService{
		store:    d.Store,
		source:   d.Source,
		policy:   d.Policy,
		cfg:      cfg,
		clock:    d.Clock,
		archiver: d.Archiver,
		logger:   d.Logger,
	}
}

// Run ingests at most one batch. It returns ErrLeaseHeld when another run is active
// and ErrBudgetExceeded when the budget ran out before the cursor could be saved.
func (s *IngestService) Run(ctx context.Context) (*IngestResult, error) {
	started := s.clock.Now()
	owner := uuid.NewString()

	ok, err := s.store.AcquireLease(ctx, models.MainCursor, owner, started, s.cfg.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire ingest lease: %w", err)
	}
	if !ok {
		instrument.LeaseContended()
		s.logger.Info("[INGEST] lease held by another run, skipping")
		return nil, ErrLeaseHeld
	}
	defer s.release(ctx, owner)

	run := &models.IngestRun{ID: uuid.NewString(), Owner: owner, StartedAt: started}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Budget)
	defer cancel()

	res, err := s.runBatch(runCtx, run)
	if err != nil && runCtx.Err() != nil && !errors.Is(err, ErrBudgetExceeded) {
		err = fmt.Errorf("%w: %w", ErrBudgetExceeded, err)
	}
	s.finish(ctx, run, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *IngestService) runBatch(ctx context.Context, run *models.IngestRun) (*IngestResult, error) {
	now := s.clock.Now()

	rows, err := s.store.AllowedDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("load allow-list: %w", err)
	}
	allow := NewAllowList(rows)

	cursor, err := s.store.InitCursor(ctx, models.IngestCursor{
		Name:              models.MainCursor,
		LastUserCreatedAt: s.cfg.Epoch,
	})
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	run.WatermarkBefore = cursor.LastUserCreatedAt
	run.WatermarkAfter = cursor.LastUserCreatedAt

	var batch []models.Signup
	if allow.Len() > 0 {
		batch, err = s.source.FetchSignups(ctx, cursor.Watermark(), allow.Domains(), s.cfg.BatchLimit)
		if err != nil {
			return nil, fmt.Errorf("fetch signups: %w", err)
		}
	}
	run.RowsFetched = len(batch)

	plan := PlanIngest(cursor, batch, allow, s.cfg.Location, now)
	run.RowsSkipped = len(plan.Skipped)
	for _, sk := range plan.Skipped {
		s.logger.Warn("[INGEST] skipping signup with unmapped domain",
			zap.String("user_id", sk.UserID), zap.String("domain", EmailDomain(sk.Email)))
	}

	touched, err := s.applySignups(ctx, batch, &plan)
	if err != nil {
		return nil, err
	}

	today := utils.DayKey(now, s.cfg.Location)
	dauTotal, err := s.refreshDAU(ctx, allow, today)
	if err != nil {
		return nil, err
	}

	unlocked, err := s.refreshUnlocks(ctx, touched, now)
	if err != nil {
		return nil, err
	}
	run.ParticipantsUnlocked = unlocked

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBudgetExceeded, err)
	}
	if len(batch) > 0 {
		if err := s.store.SaveCursor(ctx, plan.Cursor); err != nil {
			return nil, fmt.Errorf("save cursor: %w", err)
		}
		run.WatermarkAfter = plan.Cursor.LastUserCreatedAt
	}

	return &IngestResult{
		RunID:       run.ID,
		NewUsers:    len(batch),
		Skipped:     len(plan.Skipped),
		DAUEligible: dauTotal,
		Date:        today,
		Unlocked:    unlocked,
		Watermark:   plan.Cursor.LastUserCreatedAt,
	}, nil
}

// applySignups writes participants and ledger rows, then re-tallies every touched day.
func (s *IngestService) applySignups(ctx context.Context, batch []models.Signup, plan *IngestPlan) ([]models.Participant, error) {
	if len(plan.Ledger) == 0 {
		return nil, nil
	}
	if err := s.store.InsertParticipants(ctx, plan.Participants); err != nil {
		return nil, fmt.Errorf("insert participants: %w", err)
	}

	var referrers []models.Participant
	if len(plan.ReferrerIDs) > 0 {
		var err error
		referrers, err = s.store.ParticipantsByExternalIDs(ctx, plan.ReferrerIDs)
		if err != nil {
			return nil, fmt.Errorf("load referrers: %w", err)
		}
	}
	touched := plan.Attribute(batch, IndexByExternalID(referrers))

	if err := s.store.InsertLedgerEntries(ctx, plan.Ledger); err != nil {
		return nil, fmt.Errorf("insert ledger: %w", err)
	}
	entries, err := s.store.LedgerEntriesForDays(ctx, plan.Days)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	pDays, cDays, oDays := TallySignups(entries, plan.Days)
	if err := s.store.UpsertParticipantDays(ctx, pDays, models.ColSignups); err != nil {
		return nil, fmt.Errorf("upsert participant days: %w", err)
	}
	if err := s.store.UpsertCampusDays(ctx, cDays, models.ColNewSignups); err != nil {
		return nil, fmt.Errorf("upsert campus days: %w", err)
	}
	if err := s.store.UpsertOverallDays(ctx, oDays, models.ColNewSignupsEligible); err != nil {
		return nil, fmt.Errorf("upsert overall days: %w", err)
	}
	return touched, nil
}

// refreshDAU recomputes today's eligible DAU per campus and overall.
func (s *IngestService) refreshDAU(ctx context.Context, allow AllowList, today string) (int, error) {
	start, end, err := utils.DayBounds(today, s.cfg.Location)
	if err != nil {
		return 0, err
	}
	byDomain := map[string]int{}
	if allow.Len() > 0 {
		byDomain, err = s.source.CountActiveByDomain(ctx, start, end, allow.Domains())
		if err != nil {
			return 0, fmt.Errorf("count active users: %w", err)
		}
	}
	byCampus, total := DAUByCampus(byDomain, allow)

	rows := make([]models.CampusDay, 0, len(byCampus))
	for _, id := range sortedKeys(byCampus) {
		rows = append(rows, models.CampusDay{Date: today, CampusID: id, DAU: byCampus[id]})
	}
	if err := s.store.UpsertCampusDays(ctx, rows, models.ColDAU); err != nil {
		return 0, fmt.Errorf("upsert campus dau: %w", err)
	}
	overall := []models.OverallDay{{Date: today, DAUEligible: total}}
	if err := s.store.UpsertOverallDays(ctx, overall, models.ColDAUEligible); err != nil {
		return 0, fmt.Errorf("upsert overall dau: %w", err)
	}
	return total, nil
}

// refreshUnlocks recounts referrals for touched referrers and every locked participant.
func (s *IngestService) refreshUnlocks(ctx context.Context, touched []models.Participant, now time.Time) (int, error) {
	locked, err := s.store.LockedParticipants(ctx)
	if err != nil {
		return 0, fmt.Errorf("load locked participants: %w", err)
	}

	candidates := make([]models.Participant, 0, len(touched)+len(locked))
	seen := make(map[string]bool, cap(candidates))
	for _, group := range [][]models.Participant{touched, locked} {
		for _, p := range group {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	owners := make([]models.ReferralOwner, len(candidates))
	for i, p := range candidates {
		owners[i] = s.policy.ReferralOwner(p)
	}
	counts, err := s.source.CountEligibleReferrals(ctx, owners)
	if err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}

	unlocked := 0
	for _, p := range candidates {
		first, err := applyReferralCount(ctx, s.store, p, counts[p.ExternalUserID], s.policy.Threshold, now)
		if err != nil {
			return unlocked, err
		}
		if first {
			unlocked++
			s.logger.Info("[INGEST] participant unlocked",
				zap.String("participant_id", p.ID), zap.Int("referrals", counts[p.ExternalUserID]))
		}
	}
	instrument.Unlocked(unlocked)
	return unlocked, nil
}

// applyReferralCount persists a recomputed count and reports whether this was the first unlock.
func applyReferralCount(ctx context.Context, store referralStateWriter, p models.Participant, count, threshold int, now time.Time) (bool, error) {
	tr := EvaluateTransition(p.EligibleReferralsTotal, p.UnlockedAt, count, threshold, now)
	if tr.Changed {
		if err := store.UpdateReferralState(ctx, p.ID, count, tr.UnlockedAt); err != nil {
			return false, fmt.Errorf("update referral state for %s: %w", p.ID, err)
		}
	}
	if !tr.FirstUnlock {
		return false, nil
	}
	created, err := store.RecordUnlockEvent(ctx, models.UnlockEvent{
		ParticipantID: p.ID,
		UnlockedAt:    *tr.UnlockedAt,
		ReferralCount: count,
	})
	if err != nil {
		return false, fmt.Errorf("record unlock for %s: %w", p.ID, err)
	}
	return created, nil
}

func (s *IngestService) release(ctx context.Context, owner string) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.ReleaseLease(relCtx, models.MainCursor, owner); err != nil {
		s.logger.Warn("[INGEST] failed to release lease", zap.Error(err))
	}
}

// finish records the run, archives it and emits metrics. Failures here are logged only.
func (s *IngestService) finish(ctx context.Context, run *models.IngestRun, res *IngestResult, runErr error) {
	finished := s.clock.Now()
	run.FinishedAt = &finished
	switch {
	case runErr == nil:
		run.Outcome = models.RunOK
	case errors.Is(runErr, ErrBudgetExceeded):
		run.Outcome = models.RunBudgetExceeded
		run.Error = runErr.Error()
	default:
		run.Outcome = models.RunFailed
		run.Error = runErr.Error()
	}
	if res != nil {
		if report, err := json.Marshal(res); err == nil {
			run.Report = report
		}
	}

	took := finished.Sub(run.StartedAt)
	instrument.ObserveIngestRun(run.Outcome, took, run.RowsFetched, run.RowsSkipped)
	instrument.SetWatermark(run.WatermarkAfter)

	fields := []zap.Field{
		zap.String("run_id", run.ID),
		zap.String("outcome", run.Outcome),
		zap.Int("fetched", run.RowsFetched),
		zap.Int("skipped", run.RowsSkipped),
		zap.Int("unlocked", run.ParticipantsUnlocked),
		zap.Duration("took", took),
	}
	if runErr != nil {
		s.logger.Error("[INGEST] run failed", append(fields, zap.Error(runErr))...)
	} else {
		s.logger.Info("[INGEST] run complete", fields...)
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.SaveRun(saveCtx, run); err != nil {
		s.logger.Warn("[INGEST] failed to save run record", zap.Error(err))
	}
	if s.archiver != nil {
		if err := s.archiver.ArchiveRun(saveCtx, *run); err != nil {
			s.logger.Warn("[ARCHIVE] failed to archive run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
}
