package models

import "time"

// SignupLedgerEntry records that an eligible signup has been ingested.
// Day counters are re-tallied from this table, so re-ingesting a row never double counts.
type SignupLedgerEntry struct {
	ExternalUserID        string    `gorm:"primaryKey" json:"external_user_id"`
	CampusID              string    `gorm:"index;not null" json:"campus_id"`
	Day                   string    `gorm:"index;type:varchar(10);not null" json:"day"`
	ReferrerParticipantID *string   `gorm:"index;type:uuid" json:"referrer_participant_id,omitempty"`
	SignupAt              time.Time `gorm:"not null" json:"signup_at"`
	CreatedAt             time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (SignupLedgerEntry) TableName() string { return "signup_ledger" }
