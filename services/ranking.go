// services/ranking.go
package services

import (
	"sort"

	"campus-referral-engine/models"
)

// SortForRanking orders participants by eligible referrals, then earliest join, then id.
func SortForRanking(ps []models.Participant) []models.Participant {
	out := append([]models.Participant(nil), ps...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.EligibleReferralsTotal != b.EligibleReferralsTotal {
			return a.EligibleReferralsTotal > b.EligibleReferralsTotal
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

type Ranks struct {
	Overall int `json:"overall_rank"`
	Campus  int `json:"campus_rank"`
}

// RankOf finds a participant in an already ranked list. Zero means not ranked.
func RankOf(ranked []models.Participant, participantID string) Ranks {
	idx := -1
	for i, p := range ranked {
		if p.ID == participantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Ranks{}
	}

	r := Ranks{Overall: idx + 1}
	campusID := ranked[idx].CampusID
	for _, p := range ranked[:idx+1] {
		if p.CampusID == campusID {
			r.Campus++
		}
	}
	return r
}

// CampusTop returns the first limit ranked participants of a campus.
func CampusTop(ranked []models.Participant, campusID string, limit int) []models.Participant {
	var out []models.Participant
	for _, p := range ranked {
		if p.CampusID != campusID {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}
