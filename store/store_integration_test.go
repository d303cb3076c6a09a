package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"campus-referral-engine/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// openTestStore connects to TEST_DATABASE_URL or DATABASE_URL and skips when neither is set.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL or DATABASE_URL not set")
	}
	s, err := Open(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreCursorCompareAndSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	name := "test-" + uuid.NewString()[:8]

	c, err := s.InitCursor(ctx, models.IngestCursor{Name: name})
	if err != nil {
		t.Fatalf("InitCursor: %v", err)
	}
	again, err := s.InitCursor(ctx, models.IngestCursor{Name: name, LastUserID: "ignored"})
	if err != nil {
		t.Fatalf("InitCursor again: %v", err)
	}
	if again.LastUserID != "" || again.Version != c.Version {
		t.Errorf("second InitCursor replaced the row: got %+v", again)
	}

	next := c
	next.LastUserID = "u1"
	next.LastUserCreatedAt = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	next.RowsProcessed = 7
	if err := s.SaveCursor(ctx, next); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	stale := next
	stale.LastUserID = "u2"
	if err := s.SaveCursor(ctx, stale); !errors.Is(err, models.ErrCursorConflict) {
		t.Fatalf("stale SaveCursor: got %v, want ErrCursorConflict", err)
	}

	got, err := s.InitCursor(ctx, models.IngestCursor{Name: name})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.LastUserID != "u1" || got.RowsProcessed != 7 || got.Version != c.Version+1 {
		t.Errorf("stored cursor: got %s/%d/v%d, want u1/7/v%d", got.LastUserID, got.RowsProcessed, got.Version, c.Version+1)
	}
}

func TestStoreLease(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	name := "test-" + uuid.NewString()[:8]
	now := time.Now().UTC()

	ok, err := s.AcquireLease(ctx, name, "a", now, time.Minute)
	if err != nil || !ok {
		t.Fatalf("a acquire: got %v, %v", ok, err)
	}
	if ok, _ := s.AcquireLease(ctx, name, "b", now.Add(time.Second), time.Minute); ok {
		t.Errorf("b acquired a held lease")
	}
	if ok, _ := s.AcquireLease(ctx, name, "a", now.Add(time.Second), time.Minute); !ok {
		t.Errorf("a could not renew its own lease")
	}
	if ok, _ := s.AcquireLease(ctx, name, "b", now.Add(2*time.Minute), time.Minute); !ok {
		t.Errorf("b could not take an expired lease")
	}
	if err := s.ReleaseLease(ctx, name, "b"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := s.AcquireLease(ctx, name, "a", now.Add(2*time.Minute), time.Minute); !ok {
		t.Errorf("a could not take a released lease")
	}
}

func TestStoreInsertsAreIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ext := "ext-" + uuid.NewString()
	campus := "campus-" + uuid.NewString()[:8]

	p := models.Participant{ExternalUserID: ext, Email: "a@uni.edu", CampusID: campus}
	for i := 0; i < 2; i++ {
		if err := s.InsertParticipants(ctx, []models.Participant{p}); err != nil {
			t.Fatalf("InsertParticipants %d: %v", i, err)
		}
	}
	var n int64
	s.db.Model(&models.Participant{}).Where("external_user_id = ?", ext).Count(&n)
	if n != 1 {
		t.Errorf("participants: got %d, want 1", n)
	}

	entry := models.SignupLedgerEntry{ExternalUserID: ext, CampusID: campus, Day: "2025-03-01", SignupAt: time.Now().UTC()}
	for i := 0; i < 2; i++ {
		if err := s.InsertLedgerEntries(ctx, []models.SignupLedgerEntry{entry}); err != nil {
			t.Fatalf("InsertLedgerEntries %d: %v", i, err)
		}
	}
	s.db.Model(&models.SignupLedgerEntry{}).Where("external_user_id = ?", ext).Count(&n)
	if n != 1 {
		t.Errorf("ledger entries: got %d, want 1", n)
	}

	first := models.Participant{ExternalUserID: "join-" + ext, Email: "b@uni.edu", CampusID: campus}
	if err := s.UpsertParticipant(ctx, &first); err != nil {
		t.Fatalf("UpsertParticipant: %v", err)
	}
	second := models.Participant{ExternalUserID: "join-" + ext, Email: "b2@uni.edu", CampusID: campus}
	if err := s.UpsertParticipant(ctx, &second); err != nil {
		t.Fatalf("UpsertParticipant again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert id: got %s, want %s", second.ID, first.ID)
	}
	if second.Email != "b2@uni.edu" {
		t.Errorf("upsert email: got %s, want b2@uni.edu", second.Email)
	}
}

func TestStoreUpsertReplacesNamedFieldsOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	campus := "campus-" + uuid.NewString()[:8]
	day := "2025-03-02"

	if err := s.UpsertCampusDays(ctx, []models.CampusDay{{Date: day, CampusID: campus, NewSignups: 4, DAU: 99}}, "new_signups"); err != nil {
		t.Fatalf("upsert signups: %v", err)
	}
	if err := s.UpsertCampusDays(ctx, []models.CampusDay{{Date: day, CampusID: campus, DAU: 3}}, "dau"); err != nil {
		t.Fatalf("upsert dau: %v", err)
	}
	if err := s.UpsertCampusDays(ctx, []models.CampusDay{{Date: day, CampusID: campus, NewSignups: 5}}, "new_signups"); err != nil {
		t.Fatalf("upsert signups again: %v", err)
	}

	var rows []models.CampusDay
	if err := s.db.Where("date = ? AND campus_id = ?", day, campus).Find(&rows).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("campus rows: got %d, want 1", len(rows))
	}
	if rows[0].NewSignups != 5 || rows[0].DAU != 3 {
		t.Errorf("campus day: got signups=%d dau=%d, want 5 and 3", rows[0].NewSignups, rows[0].DAU)
	}
}
