package models

import "time"

// Days are stored as competition-local "YYYY-MM-DD" keys so lexical order is chronological.

// ParticipantDay holds one participant's counters for one day.
type ParticipantDay struct {
	Date          string    `gorm:"primaryKey;type:varchar(10);column:date" json:"date"`
	ParticipantID string    `gorm:"primaryKey;type:uuid;column:participant_id" json:"participant_id"`
	Signups       int       `gorm:"not null;default:0;column:signups" json:"signups"`
	ReferralTotal int       `gorm:"not null;default:0;column:referral_total" json:"referral_total"`
	D1Activated   int       `gorm:"not null;default:0;column:d1_activated" json:"d1_activated"`
	D7Retained    int       `gorm:"not null;default:0;column:d7_retained" json:"d7_retained"`
	ReferredDAU   int       `gorm:"not null;default:0;column:referred_dau" json:"referred_dau"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// CampusDay holds one campus's counters for one day.
type CampusDay struct {
	Date       string    `gorm:"primaryKey;type:varchar(10);column:date" json:"date"`
	CampusID   string    `gorm:"primaryKey;type:varchar(255);column:campus_id" json:"campus_id"`
	NewSignups int       `gorm:"not null;default:0;column:new_signups" json:"new_signups"`
	DAU        int       `gorm:"not null;default:0;column:dau" json:"dau"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// OverallDay holds competition-wide counters for one day.
type OverallDay struct {
	Date               string    `gorm:"primaryKey;type:varchar(10);column:date" json:"date"`
	NewSignupsEligible int       `gorm:"not null;default:0;column:new_signups_eligible" json:"new_signups_eligible"`
	DAUEligible        int       `gorm:"not null;default:0;column:dau_eligible" json:"dau_eligible"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Column names accepted by the day upserts.
const (
	ColSignups            = "signups"
	ColReferralTotal      = "referral_total"
	ColD1Activated        = "d1_activated"
	ColD7Retained         = "d7_retained"
	ColReferredDAU        = "referred_dau"
	ColNewSignups         = "new_signups"
	ColDAU                = "dau"
	ColNewSignupsEligible = "new_signups_eligible"
	ColDAUEligible        = "dau_eligible"
)
