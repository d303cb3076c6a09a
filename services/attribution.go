// services/attribution.go
package services

import (
	"sort"

	"campus-referral-engine/models"
)

// ResolveReferrer returns the participant who owns the code a signup used.
// Attribution is one hop: only the direct referrer is credited.
func ResolveReferrer(s models.Signup, byExternalID map[string]models.Participant) (models.Participant, bool) {
	if s.ReferrerUserID == nil || *s.ReferrerUserID == "" || *s.ReferrerUserID == s.UserID {
		return models.Participant{}, false
	}
	p, ok := byExternalID[*s.ReferrerUserID]
	return p, ok
}

// Attribute links ledger entries to their referrers and returns the referrers touched, ordered by id.
func (p *IngestPlan) Attribute(batch []models.Signup, byExternalID map[string]models.Participant) []models.Participant {
	signups := make(map[string]models.Signup, len(batch))
	for _, s := range batch {
		signups[s.UserID] = s
	}

	touched := make(map[string]models.Participant)
	for i := range p.Ledger {
		ref, ok := ResolveReferrer(signups[p.Ledger[i].ExternalUserID], byExternalID)
		if !ok {
			continue
		}
		id := ref.ID
		p.Ledger[i].ReferrerParticipantID = &id
		touched[ref.ID] = ref
	}

	out := make([]models.Participant, 0, len(touched))
	for _, ref := range touched {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IndexByExternalID keys participants by their product account id.
func IndexByExternalID(ps []models.Participant) map[string]models.Participant {
	m := make(map[string]models.Participant, len(ps))
	for _, p := range ps {
		m[p.ExternalUserID] = p
	}
	return m
}
