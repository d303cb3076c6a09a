// services/eligibility.go
package services

import (
	"sort"
	"strings"

	"campus-referral-engine/models"
)

// FallbackCampus is used for unrestricted accounts when no campus domain is configured.
var FallbackCampus = Campus{ID: "test-campus", Name: "Test Campus"}

type Campus struct {
	ID   string `json:"campus_id"`
	Name string `json:"campus_name"`
}

// AllowList is the domain → campus map loaded once per operation.
type AllowList struct {
	byDomain map[string]Campus
	byCampus map[string][]string
	names    map[string]string
}

func NewAllowList(rows []models.AllowedDomain) AllowList {
	a := AllowList{
		byDomain: make(map[string]Campus, len(rows)),
		byCampus: make(map[string][]string),
		names:    make(map[string]string),
	}
	for _, r := range rows {
		d := strings.ToLower(strings.TrimSpace(r.Domain))
		if d == "" {
			continue
		}
		if _, dup := a.byDomain[d]; dup {
			continue
		}
		a.byDomain[d] = Campus{ID: r.CampusID, Name: r.CampusName}
		a.byCampus[r.CampusID] = append(a.byCampus[r.CampusID], d)
		if _, ok := a.names[r.CampusID]; !ok {
			a.names[r.CampusID] = r.CampusName
		}
	}
	for id := range a.byCampus {
		sort.Strings(a.byCampus[id])
	}
	return a
}

func (a AllowList) Len() int { return len(a.byDomain) }

// Domains returns every allow-listed domain, sorted.
func (a AllowList) Domains() []string {
	out := make([]string, 0, len(a.byDomain))
	for d := range a.byDomain {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (a AllowList) Lookup(domain string) (Campus, bool) {
	c, ok := a.byDomain[strings.ToLower(domain)]
	return c, ok
}

// CampusDomains returns the domains mapped to campusID, or nil.
func (a AllowList) CampusDomains(campusID string) []string {
	return a.byCampus[campusID]
}

// CampusName falls back to the id when the campus has no domains on file.
func (a AllowList) CampusName(campusID string) string {
	if n, ok := a.names[campusID]; ok {
		return n
	}
	if campusID == FallbackCampus.ID {
		return FallbackCampus.Name
	}
	return campusID
}

// Eligible reports the campus of a user who may take part in the competition.
func (a AllowList) Eligible(email string, isGuest bool) (Campus, bool) {
	if isGuest || strings.TrimSpace(email) == "" {
		return Campus{}, false
	}
	return a.Lookup(EmailDomain(email))
}

// EmailDomain returns the lower-cased text after the final '@', or "".
func EmailDomain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[i+1:]))
}

// Policy carries the competition rules that are configuration rather than data.
type Policy struct {
	Threshold                int
	UnrestrictedEmails       map[string]bool
	UnrestrictedCampusDomain string
}

func NewPolicy(threshold int, unrestrictedEmails []string, unrestrictedCampusDomain string) Policy {
	p := Policy{
		Threshold:                threshold,
		UnrestrictedEmails:       make(map[string]bool, len(unrestrictedEmails)),
		UnrestrictedCampusDomain: strings.ToLower(strings.TrimSpace(unrestrictedCampusDomain)),
	}
	if p.Threshold <= 0 {
		p.Threshold = 5
	}
	for _, e := range unrestrictedEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			p.UnrestrictedEmails[e] = true
		}
	}
	return p
}

// IsUnrestricted reports whether the account bypasses the domain rules.
func (p Policy) IsUnrestricted(email string) bool {
	return p.UnrestrictedEmails[strings.ToLower(strings.TrimSpace(email))]
}

// ReferralOwner describes how a participant's referrals are counted:
// same email domain as the participant, or any domain for unrestricted accounts.
func (p Policy) ReferralOwner(pt models.Participant) models.ReferralOwner {
	owner := models.ReferralOwner{ExternalUserID: pt.ExternalUserID}
	if !p.IsUnrestricted(pt.Email) {
		owner.Domain = EmailDomain(pt.Email)
	}
	return owner
}

// JoinCampus resolves the campus a joining account belongs to.
func (p Policy) JoinCampus(allow AllowList, email string) (Campus, error) {
	if p.IsUnrestricted(email) {
		if c, ok := allow.Lookup(p.UnrestrictedCampusDomain); ok {
			return c, nil
		}
		return FallbackCampus, nil
	}
	c, ok := allow.Lookup(EmailDomain(email))
	if !ok {
		return Campus{}, ErrDomainNotAllowed
	}
	return c, nil
}
