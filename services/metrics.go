// services/metrics.go
package services

import (
	"math"
	"time"

	"campus-referral-engine/models"
	"campus-referral-engine/utils"
)

// MaxRangeDays caps every analytics series.
const MaxRangeDays = 365

// Range is the requested analytics window.
type Range string

const (
	Range7d  Range = "7d"
	Range30d Range = "30d"
	Range90d Range = "90d"
	RangeAll Range = "all"
)

// ParseRange accepts 7d, 30d, 90d and all. Anything else means 30d.
func ParseRange(s string) Range {
	switch r := Range(s); r {
	case Range7d, Range30d, Range90d, RangeAll:
		return r
	}
	return Range30d
}

func (r Range) Days() int {
	switch r {
	case Range7d:
		return 7
	case Range90d:
		return 90
	case RangeAll:
		return MaxRangeDays
	}
	return 30
}

// ResolveDays clamps the requested window to the history available in scope.
// earliest is the first in-scope creation day, or "" when the scope is empty.
func ResolveDays(r Range, earliest, today string) int {
	days := r.Days()
	if days > MaxRangeDays {
		days = MaxRangeDays
	}
	if earliest == "" {
		return days
	}
	available := utils.DaysBetween(earliest, today) + 1
	if available < 1 {
		available = 1
	}
	if available < days {
		days = available
	}
	return days
}

type DailyMetric struct {
	Date         string `json:"date"`
	Signups      int    `json:"signups"`
	DAU          int    `json:"dau"`
	WAU          int    `json:"wau"`
	MAU          int    `json:"mau"`
	SolverUsers  int    `json:"solverUsers"`
	SolverEvents int    `json:"solverEvents"`
}

type SnapshotMetrics struct {
	TotalSignups      int `json:"totalSignups"`
	DAU               int `json:"dau"`
	WAU               int `json:"wau"`
	MAU               int `json:"mau"`
	SolverUniqueUsers int `json:"solverUniqueUsers"`
	SolverTotalEvents int `json:"solverTotalEvents"`
	D1Retention       int `json:"d1Retention"`
	D7Retention       int `json:"d7Retention"`
	D30Retention      int `json:"d30Retention"`
	DAUWAUStickiness  int `json:"dauWauStickiness"`
	DAUMAUStickiness  int `json:"dauMauStickiness"`
}

// Percent rounds num/den to a whole percentage; a zero denominator yields 0.
func Percent(num, den int) int {
	if den <= 0 {
		return 0
	}
	return int(math.Round(float64(num) * 100 / float64(den)))
}

// Activity is the resolved population of one scope.
type Activity struct {
	Users  []models.UserRecord
	Solver []models.SolverDay
}

type set map[string]struct{}

func (s set) add(id string) { s[id] = struct{}{} }

// activityIndex buckets users by competition-local day.
type activityIndex struct {
	created      map[string]set
	active       map[string]set // updated that day or started a solver
	solverUsers  map[string]set
	solverEvents map[string]int
}

func indexActivity(act Activity, loc *time.Location) activityIndex {
	idx := activityIndex{
		created:      make(map[string]set),
		active:       make(map[string]set),
		solverUsers:  make(map[string]set),
		solverEvents: make(map[string]int),
	}
	inScope := make(set, len(act.Users))
	bucket := func(m map[string]set, day, id string) {
		if m[day] == nil {
			m[day] = make(set)
		}
		m[day].add(id)
	}
	for _, u := range act.Users {
		inScope.add(u.ID)
		bucket(idx.created, utils.DayKey(u.CreatedAt, loc), u.ID)
		if !u.UpdatedAt.IsZero() {
			bucket(idx.active, utils.DayKey(u.UpdatedAt, loc), u.ID)
		}
	}
	for _, s := range act.Solver {
		if _, ok := inScope[s.UserID]; !ok {
			continue
		}
		bucket(idx.active, s.Day, s.UserID)
		bucket(idx.solverUsers, s.Day, s.UserID)
		idx.solverEvents[s.Day] += s.Events
	}
	return idx
}

// window counts distinct users created or active in the n days ending at day.
// Counting creations as well as activity keeps DAU <= WAU <= MAU for every day.
func (idx activityIndex) window(day string, n int) int {
	seen := make(set)
	for i := 0; i < n; i++ {
		d := utils.ShiftDay(day, -i)
		for id := range idx.created[d] {
			seen.add(id)
		}
		for id := range idx.active[d] {
			seen.add(id)
		}
	}
	return len(seen)
}

func (idx activityIndex) metric(day string) DailyMetric {
	return DailyMetric{
		Date:         day,
		Signups:      len(idx.created[day]),
		DAU:          len(idx.active[day]),
		WAU:          idx.window(day, 7),
		MAU:          idx.window(day, 30),
		SolverUsers:  len(idx.solverUsers[day]),
		SolverEvents: idx.solverEvents[day],
	}
}

// ComputeDaily returns the series for the days ending at today, oldest first.
func ComputeDaily(act Activity, days int, today string, loc *time.Location) []DailyMetric {
	idx := indexActivity(act, loc)
	out := make([]DailyMetric, 0, days)
	for _, d := range utils.DayRange(today, days) {
		out = append(out, idx.metric(d))
	}
	return out
}

// ComputeSnapshot summarises the scope as of now.
func ComputeSnapshot(act Activity, now time.Time, loc *time.Location) SnapshotMetrics {
	idx := indexActivity(act, loc)
	today := utils.DayKey(now, loc)
	m := idx.metric(today)

	snap := SnapshotMetrics{
		TotalSignups: len(act.Users),
		DAU:          m.DAU,
		WAU:          m.WAU,
		MAU:          m.MAU,
	}

	solverUsers := make(set)
	for _, d := range utils.DayRange(today, 30) {
		for id := range idx.solverUsers[d] {
			solverUsers.add(id)
		}
		snap.SolverTotalEvents += idx.solverEvents[d]
	}
	snap.SolverUniqueUsers = len(solverUsers)

	d1 := 0
	for _, u := range act.Users {
		if !u.UpdatedAt.Before(u.CreatedAt.Add(time.Hour)) {
			d1++
		}
	}
	snap.D1Retention = Percent(d1, len(act.Users))
	snap.D7Retention = cohortRetention(act.Users, now, 7)
	snap.D30Retention = cohortRetention(act.Users, now, 30)
	snap.DAUWAUStickiness = Percent(snap.DAU, snap.WAU)
	snap.DAUMAUStickiness = Percent(snap.DAU, snap.MAU)
	return snap
}

// cohortRetention: of users created at least n days ago, the share updated n days after creation.
func cohortRetention(users []models.UserRecord, now time.Time, n int) int {
	span := time.Duration(n) * 24 * time.Hour
	cutoff := now.Add(-span)
	eligible, retained := 0, 0
	for _, u := range users {
		if u.CreatedAt.After(cutoff) {
			continue
		}
		eligible++
		if !u.UpdatedAt.Before(u.CreatedAt.Add(span)) {
			retained++
		}
	}
	return Percent(retained, eligible)
}

// ReferralStats are the counters shown for one participant's referred users.
type ReferralStats struct {
	Total       int `json:"total_signups"`
	D1Activated int `json:"d1_activated"`
	D7Retained  int `json:"d7_retained"`
	ReferredDAU int `json:"referred_dau"`
}

func SummarizeReferrals(users []models.UserRecord, now time.Time) ReferralStats {
	stats := ReferralStats{Total: len(users)}
	weekAgo := now.Add(-7 * 24 * time.Hour)
	dayAgo := now.Add(-24 * time.Hour)
	for _, u := range users {
		if !u.UpdatedAt.Before(u.CreatedAt.Add(time.Hour)) {
			stats.D1Activated++
		}
		if !u.CreatedAt.After(weekAgo) && !u.UpdatedAt.Before(u.CreatedAt.Add(7*24*time.Hour)) {
			stats.D7Retained++
		}
		if !u.UpdatedAt.Before(dayAgo) {
			stats.ReferredDAU++
		}
	}
	return stats
}

// EarliestDay returns the first creation day among users, or "".
func EarliestDay(users []models.UserRecord, loc *time.Location) string {
	earliest := ""
	for _, u := range users {
		if d := utils.DayKey(u.CreatedAt, loc); earliest == "" || d < earliest {
			earliest = d
		}
	}
	return earliest
}
