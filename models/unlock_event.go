package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnlockEvent is written once, the first time a participant reaches the threshold.
type UnlockEvent struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	ParticipantID string    `gorm:"uniqueIndex;type:uuid;not null" json:"participant_id"`
	UnlockedAt    time.Time `gorm:"not null" json:"unlocked_at"`
	ReferralCount int       `gorm:"not null" json:"referral_count"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (e *UnlockEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
