// services/ports.go
package services

import (
	"context"
	"time"

	"campus-referral-engine/models"
)

// Competition-side persistence, implemented by store.Store.

type AllowListStore interface {
	AllowedDomains(ctx context.Context) ([]models.AllowedDomain, error)
}

type CursorStore interface {
	// InitCursor inserts seed if no cursor of that name exists and returns the stored cursor.
	InitCursor(ctx context.Context, seed models.IngestCursor) (models.IngestCursor, error)
	// SaveCursor persists next if the stored version still equals next.Version.
	SaveCursor(ctx context.Context, next models.IngestCursor) error
	AcquireLease(ctx context.Context, name, owner string, now time.Time, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, owner string) error
	SaveRun(ctx context.Context, run *models.IngestRun) error
}

// referralStateWriter is the part of a store that persists a recomputed referral count.
type referralStateWriter interface {
	UpdateReferralState(ctx context.Context, participantID string, count int, unlockedAt *time.Time) error
	// RecordUnlockEvent returns false when the participant already has one.
	RecordUnlockEvent(ctx context.Context, ev models.UnlockEvent) (bool, error)
}

type ParticipantStore interface {
	GetParticipant(ctx context.Context, id string) (models.Participant, error)
	ParticipantsByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Participant, error)
	// InsertParticipants inserts rows whose external user id is new and ignores the rest.
	InsertParticipants(ctx context.Context, ps []models.Participant) error
	// UpsertParticipant creates or refreshes p by external user id and loads the stored row back into p.
	UpsertParticipant(ctx context.Context, p *models.Participant) error
	LockedParticipants(ctx context.Context) ([]models.Participant, error)
	RankedParticipants(ctx context.Context) ([]models.Participant, error)
	UpdateReferralState(ctx context.Context, participantID string, count int, unlockedAt *time.Time) error
	// RecordUnlockEvent returns false when the participant already has one.
	RecordUnlockEvent(ctx context.Context, ev models.UnlockEvent) (bool, error)
}

type AggregateStore interface {
	InsertLedgerEntries(ctx context.Context, entries []models.SignupLedgerEntry) error
	LedgerEntriesForDays(ctx context.Context, days []string) ([]models.SignupLedgerEntry, error)
	UpsertParticipantDays(ctx context.Context, rows []models.ParticipantDay, fields ...string) error
	UpsertCampusDays(ctx context.Context, rows []models.CampusDay, fields ...string) error
	UpsertOverallDays(ctx context.Context, rows []models.OverallDay, fields ...string) error
	ParticipantDays(ctx context.Context, participantID string) ([]models.ParticipantDay, error)
}

type IngestStore interface {
	AllowListStore
	CursorStore
	ParticipantStore
	AggregateStore
}

// Product-side reads, implemented by source.Postgres.

type IngestSource interface {
	// FetchSignups returns eligible signups strictly after the watermark, oldest first.
	FetchSignups(ctx context.Context, after models.Watermark, domains []string, limit int) ([]models.Signup, error)
	// CountEligibleReferrals returns a count for every owner, zero included.
	CountEligibleReferrals(ctx context.Context, owners []models.ReferralOwner) (map[string]int, error)
	// CountActiveByDomain counts distinct eligible users active in [from, to), keyed by email domain.
	CountActiveByDomain(ctx context.Context, from, to time.Time, domains []string) (map[string]int, error)
}

type ReferralSource interface {
	// ReferredUsers returns each owner's eligible referred users, keyed by owner external id.
	ReferredUsers(ctx context.Context, owners []models.ReferralOwner) (map[string][]models.UserRecord, error)
}

type AnalyticsSource interface {
	ReferralSource
	ScopeUsers(ctx context.Context, q models.ScopeQuery) ([]models.UserRecord, error)
	SolverActivity(ctx context.Context, userIDs []string, since time.Time, loc *time.Location) ([]models.SolverDay, error)
}

type AccountSource interface {
	ReferralSource
	FindUserByEmail(ctx context.Context, email string) (models.ExternalUser, error)
}

// RunArchiver copies finished run records somewhere durable.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, run models.IngestRun) error
}
