package models

import "time"

// ExternalUser is an account in the product database. Read-only.
type ExternalUser struct {
	ID           string
	Email        string
	IsGuest      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ReferralCode *string // the user's own code
	PasswordHash *string
}

// Signup is one eligible account returned by the ingestion query.
type Signup struct {
	UserID           string
	Email            string
	CreatedAt        time.Time
	ReferralCodeUsed *string
	ReferrerUserID   *string // owner of ReferralCodeUsed
	OwnReferralCode  *string
}

func (s Signup) Watermark() Watermark {
	return Watermark{CreatedAt: s.CreatedAt, UserID: s.UserID}
}

// UserRecord carries the fields the metrics path needs.
type UserRecord struct {
	ID        string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SolverDay counts one user's solver starts on one competition-local day.
type SolverDay struct {
	UserID string
	Day    string
	Events int
}

// ReferralOwner identifies whose referrals to count. An empty Domain means
// referred users are counted regardless of email domain.
type ReferralOwner struct {
	ExternalUserID string
	Domain         string
}

// ScopeQuery selects a population of external users. When Owner is set the
// population is that owner's referred users; otherwise users whose email
// domain is in Domains.
type ScopeQuery struct {
	Owner   *ReferralOwner
	Domains []string
}
