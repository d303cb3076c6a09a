// models/participant.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Participant is a competition entrant, linked 1:1 to an external product account.
type Participant struct {
	ID                     string     `gorm:"primaryKey;type:uuid" json:"participant_id"`
	ExternalUserID         string     `gorm:"uniqueIndex;not null" json:"external_user_id"` // users.id in the product DB
	Email                  string     `gorm:"not null" json:"email"`
	CampusID               string     `gorm:"index;not null" json:"campus_id"`
	ReferralCode           *string    `json:"referral_code,omitempty"`
	EligibleReferralsTotal int        `gorm:"not null;default:0;index" json:"eligible_referrals_total"`
	UnlockedAt             *time.Time `json:"unlocked_at"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Unlocked reports whether the participant currently holds the reward.
func (p Participant) Unlocked() bool {
	return p.UnlockedAt != nil
}
