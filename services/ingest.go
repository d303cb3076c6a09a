// services/ingest.go
package services

import (
	"sort"
	"time"

	"campus-referral-engine/models"
	"campus-referral-engine/utils"
)

// IngestPlan is everything one batch will write, computed without I/O.
type IngestPlan struct {
	Cursor       models.IngestCursor
	Participants []models.Participant
	Ledger       []models.SignupLedgerEntry
	Days         []string        // touched competition-local days, sorted
	Skipped      []models.Signup // rows whose domain is not allow-listed
	ReferrerIDs  []string        // external ids of referrers named in the batch
}

// PlanIngest turns a fetched batch into the rows to write and the cursor to save afterwards.
func PlanIngest(cursor models.IngestCursor, batch []models.Signup, allow AllowList, loc *time.Location, now time.Time) IngestPlan {
	plan := IngestPlan{Cursor: AdvanceCursor(cursor, batch, now)}
	days := make(map[string]struct{})
	referrers := make(map[string]struct{})

	for _, s := range batch {
		campus, ok := allow.Eligible(s.Email, false)
		if !ok {
			plan.Skipped = append(plan.Skipped, s)
			continue
		}
		day := utils.DayKey(s.CreatedAt, loc)
		days[day] = struct{}{}

		plan.Participants = append(plan.Participants, models.Participant{
			ExternalUserID: s.UserID,
			Email:          s.Email,
			CampusID:       campus.ID,
			ReferralCode:   s.OwnReferralCode,
		})
		plan.Ledger = append(plan.Ledger, models.SignupLedgerEntry{
			ExternalUserID: s.UserID,
			CampusID:       campus.ID,
			Day:            day,
			SignupAt:       s.CreatedAt,
		})
		if s.ReferrerUserID != nil && *s.ReferrerUserID != "" && *s.ReferrerUserID != s.UserID {
			referrers[*s.ReferrerUserID] = struct{}{}
		}
	}

	plan.Days = sortedKeys(days)
	plan.ReferrerIDs = sortedKeys(referrers)
	return plan
}

// AdvanceCursor moves the watermark to the last row of a non-empty batch. It never moves backwards.
func AdvanceCursor(cursor models.IngestCursor, batch []models.Signup, now time.Time) models.IngestCursor {
	if len(batch) == 0 {
		return cursor
	}
	next := cursor
	last := batch[len(batch)-1].Watermark()
	if cursor.Watermark().Before(last) {
		next.LastUserCreatedAt = last.CreatedAt
		next.LastUserID = last.UserID
	}
	next.RowsProcessed = len(batch)
	ran := now
	next.LastRunAt = &ran
	return next
}

// TallySignups rebuilds absolute signup counters for days from the full ledger of those days.
func TallySignups(entries []models.SignupLedgerEntry, days []string) ([]models.ParticipantDay, []models.CampusDay, []models.OverallDay) {
	type campusKey struct{ day, campus string }
	type participantKey struct{ day, participant string }

	wanted := make(map[string]bool, len(days))
	overall := make(map[string]int, len(days))
	for _, d := range days {
		wanted[d] = true
		overall[d] = 0
	}
	campus := make(map[campusKey]int)
	participant := make(map[participantKey]int)

	for _, e := range entries {
		if !wanted[e.Day] {
			continue
		}
		overall[e.Day]++
		campus[campusKey{e.Day, e.CampusID}]++
		if e.ReferrerParticipantID != nil {
			participant[participantKey{e.Day, *e.ReferrerParticipantID}]++
		}
	}

	pRows := make([]models.ParticipantDay, 0, len(participant))
	for k, n := range participant {
		pRows = append(pRows, models.ParticipantDay{Date: k.day, ParticipantID: k.participant, Signups: n})
	}
	sort.Slice(pRows, func(i, j int) bool {
		if pRows[i].Date != pRows[j].Date {
			return pRows[i].Date < pRows[j].Date
		}
		return pRows[i].ParticipantID < pRows[j].ParticipantID
	})

	cRows := make([]models.CampusDay, 0, len(campus))
	for k, n := range campus {
		cRows = append(cRows, models.CampusDay{Date: k.day, CampusID: k.campus, NewSignups: n})
	}
	sort.Slice(cRows, func(i, j int) bool {
		if cRows[i].Date != cRows[j].Date {
			return cRows[i].Date < cRows[j].Date
		}
		return cRows[i].CampusID < cRows[j].CampusID
	})

	oRows := make([]models.OverallDay, 0, len(overall))
	for _, d := range sortedKeys(overall) {
		oRows = append(oRows, models.OverallDay{Date: d, NewSignupsEligible: overall[d]})
	}
	return pRows, cRows, oRows
}

// DAUByCampus folds per-domain active counts into campus totals and the overall total.
func DAUByCampus(byDomain map[string]int, allow AllowList) (map[string]int, int) {
	campus := make(map[string]int)
	total := 0
	for domain, n := range byDomain {
		c, ok := allow.Lookup(domain)
		if !ok {
			continue
		}
		campus[c.ID] += n
		total += n
	}
	return campus, total
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
