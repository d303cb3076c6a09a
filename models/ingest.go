// models/ingest.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MainCursor names the singleton cursor and lease used by signup ingestion.
const MainCursor = "main"

// Watermark is the keyset position of the last ingested signup.
type Watermark struct {
	CreatedAt time.Time
	UserID    string
}

// Before reports whether w sorts strictly before o in (created_at, user_id) order.
func (w Watermark) Before(o Watermark) bool {
	if !w.CreatedAt.Equal(o.CreatedAt) {
		return w.CreatedAt.Before(o.CreatedAt)
	}
	return w.UserID < o.UserID
}

// IngestCursor persists how far signup ingestion has progressed.
// Version guards against two writers saving over each other.
type IngestCursor struct {
	Name              string     `gorm:"primaryKey;type:varchar(64)" json:"name"`
	LastUserCreatedAt time.Time  `gorm:"not null" json:"last_user_created_at"`
	LastUserID        string     `gorm:"not null;default:''" json:"last_user_id"`
	LastRunAt         *time.Time `json:"last_run_at,omitempty"`
	RowsProcessed     int        `gorm:"not null;default:0" json:"rows_processed"`
	Version           int64      `gorm:"not null;default:0" json:"version"`
}

func (c IngestCursor) Watermark() Watermark {
	return Watermark{CreatedAt: c.LastUserCreatedAt, UserID: c.LastUserID}
}

// IngestLease is held by exactly one ingestion run until it is released or expires.
type IngestLease struct {
	Name       string    `gorm:"primaryKey;type:varchar(64)" json:"name"`
	Owner      string    `gorm:"not null;default:''" json:"owner"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Run outcomes recorded on IngestRun.Outcome.
const (
	RunOK             = "ok"
	RunFailed         = "failed"
	RunBudgetExceeded = "budget_exceeded"
)

// IngestRun is the audit record of a single ingestion attempt.
type IngestRun struct {
	ID                   string         `gorm:"primaryKey;type:uuid" json:"id"`
	Owner                string         `gorm:"not null" json:"owner"`
	StartedAt            time.Time      `gorm:"index;not null" json:"started_at"`
	FinishedAt           *time.Time     `json:"finished_at,omitempty"`
	Outcome              string         `gorm:"type:varchar(32);not null" json:"outcome"`
	RowsFetched          int            `json:"rows_fetched"`
	RowsSkipped          int            `json:"rows_skipped"`
	ParticipantsUnlocked int            `json:"participants_unlocked"`
	WatermarkBefore      time.Time      `json:"watermark_before"`
	WatermarkAfter       time.Time      `json:"watermark_after"`
	Error                string         `gorm:"type:text" json:"error,omitempty"`
	Report               datatypes.JSON `json:"report,omitempty"`
}

func (r *IngestRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
