// services/scope.go
package services

import "campus-referral-engine/models"

type ScopeKind string

const (
	ScopeReferrals ScopeKind = "referrals"
	ScopeCampus    ScopeKind = "campus"
	ScopeGlobal    ScopeKind = "all"
)

// ParseScope accepts referrals, campus and all. Anything else means campus.
func ParseScope(s string) ScopeKind {
	switch k := ScopeKind(s); k {
	case ScopeReferrals, ScopeCampus, ScopeGlobal:
		return k
	}
	return ScopeCampus
}

// ScopeSelector names a population relative to one participant.
type ScopeSelector struct {
	Kind        ScopeKind
	Participant models.Participant
}

// ToQuery resolves the selector into the single query shape the source understands.
func (s ScopeSelector) ToQuery(allow AllowList, policy Policy) models.ScopeQuery {
	switch s.Kind {
	case ScopeReferrals:
		owner := policy.ReferralOwner(s.Participant)
		return models.ScopeQuery{Owner: &owner}
	case ScopeGlobal:
		return models.ScopeQuery{Domains: allow.Domains()}
	default:
		return models.ScopeQuery{Domains: append([]string(nil), allow.CampusDomains(s.Participant.CampusID)...)}
	}
}
