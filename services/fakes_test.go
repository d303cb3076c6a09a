package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"campus-referral-engine/models"
	"campus-referral-engine/utils"

	"github.com/google/uuid"
)

// memStore is an in-memory IngestStore.
type memStore struct {
	mu sync.Mutex

	domains      []models.AllowedDomain
	cursors      map[string]models.IngestCursor
	leases       map[string]models.IngestLease
	runs         []models.IngestRun
	participants map[string]models.Participant // by id
	events       map[string]models.UnlockEvent // by participant id
	ledger       map[string]models.SignupLedgerEntry
	pDays        map[[2]string]models.ParticipantDay
	cDays        map[[2]string]models.CampusDay
	oDays        map[string]models.OverallDay

	saveCursorErr error
	cursorSaves   int
}

func newMemStore(domains ...models.AllowedDomain) *memStore {
	return &memStore{
		domains:      domains,
		cursors:      map[string]models.IngestCursor{},
		leases:       map[string]models.IngestLease{},
		participants: map[string]models.Participant{},
		events:       map[string]models.UnlockEvent{},
		ledger:       map[string]models.SignupLedgerEntry{},
		pDays:        map[[2]string]models.ParticipantDay{},
		cDays:        map[[2]string]models.CampusDay{},
		oDays:        map[string]models.OverallDay{},
	}
}

func (m *memStore) AllowedDomains(ctx context.Context) ([]models.AllowedDomain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AllowedDomain(nil), m.domains...), nil
}

func (m *memStore) InitCursor(ctx context.Context, seed models.IngestCursor) (models.IngestCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cursors[seed.Name]; ok {
		return c, nil
	}
	m.cursors[seed.Name] = seed
	return seed, nil
}

func (m *memStore) SaveCursor(ctx context.Context, next models.IngestCursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveCursorErr != nil {
		return m.saveCursorErr
	}
	cur := m.cursors[next.Name]
	if cur.Version != next.Version {
		return models.ErrCursorConflict
	}
	next.Version++
	m.cursors[next.Name] = next
	m.cursorSaves++
	return nil
}

func (m *memStore) cursor() models.IngestCursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[models.MainCursor]
}

func (m *memStore) AcquireLease(ctx context.Context, name, owner string, now time.Time, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[name]
	if ok && l.Owner != "" && l.Owner != owner && !l.ExpiresAt.Before(now) {
		return false, nil
	}
	m.leases[name] = models.IngestLease{Name: name, Owner: owner, ExpiresAt: now.Add(ttl), AcquiredAt: now}
	return true, nil
}

func (m *memStore) ReleaseLease(ctx context.Context, name, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[name]; ok && l.Owner == owner {
		l.Owner = ""
		m.leases[name] = l
	}
	return nil
}

func (m *memStore) SaveRun(ctx context.Context, run *models.IngestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memStore) GetParticipant(ctx context.Context, id string) (models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return models.Participant{}, models.ErrNotFound
	}
	return p, nil
}

func (m *memStore) byExternal(ext string) (models.Participant, bool) {
	for _, p := range m.participants {
		if p.ExternalUserID == ext {
			return p, true
		}
	}
	return models.Participant{}, false
}

func (m *memStore) participantByExternal(ext string) (models.Participant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byExternal(ext)
}

func (m *memStore) ParticipantsByExternalIDs(ctx context.Context, ids []string) ([]models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Participant
	for _, id := range ids {
		if p, ok := m.byExternal(id); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) InsertParticipants(ctx context.Context, ps []models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ps {
		if _, ok := m.byExternal(p.ExternalUserID); ok {
			continue
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}
		m.participants[p.ID] = p
	}
	return nil
}

// put stores a participant verbatim, for test setup.
func (m *memStore) put(p models.Participant) models.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.participants[p.ID] = p
	return p
}

func (m *memStore) UpsertParticipant(ctx context.Context, p *models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byExternal(p.ExternalUserID); ok {
		existing.Email = p.Email
		existing.CampusID = p.CampusID
		existing.ReferralCode = p.ReferralCode
		m.participants[existing.ID] = existing
		*p = existing
		return nil
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now()
	m.participants[p.ID] = *p
	return nil
}

func (m *memStore) LockedParticipants(ctx context.Context) ([]models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Participant
	for _, p := range m.participants {
		if p.UnlockedAt == nil {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) RankedParticipants(ctx context.Context) ([]models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Participant, 0, len(m.participants))
	for _, p := range m.participants {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) UpdateReferralState(ctx context.Context, id string, count int, unlockedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return models.ErrNotFound
	}
	p.EligibleReferralsTotal = count
	p.UnlockedAt = unlockedAt
	m.participants[id] = p
	return nil
}

func (m *memStore) RecordUnlockEvent(ctx context.Context, ev models.UnlockEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[ev.ParticipantID]; ok {
		return false, nil
	}
	m.events[ev.ParticipantID] = ev
	return true, nil
}

func (m *memStore) InsertLedgerEntries(ctx context.Context, entries []models.SignupLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if _, ok := m.ledger[e.ExternalUserID]; !ok {
			m.ledger[e.ExternalUserID] = e
		}
	}
	return nil
}

func (m *memStore) LedgerEntriesForDays(ctx context.Context, days []string) ([]models.SignupLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, d := range days {
		want[d] = true
	}
	var out []models.SignupLedgerEntry
	for _, e := range m.ledger {
		if want[e.Day] {
			out = append(out, e)
		}
	}
	return out, nil
}

func hasField(fields []string, f string) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}

func (m *memStore) UpsertParticipantDays(ctx context.Context, rows []models.ParticipantDay, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		k := [2]string{r.Date, r.ParticipantID}
		cur, ok := m.pDays[k]
		if !ok {
			m.pDays[k] = r
			continue
		}
		if hasField(fields, models.ColSignups) {
			cur.Signups = r.Signups
		}
		if hasField(fields, models.ColReferralTotal) {
			cur.ReferralTotal = r.ReferralTotal
		}
		if hasField(fields, models.ColD1Activated) {
			cur.D1Activated = r.D1Activated
		}
		if hasField(fields, models.ColD7Retained) {
			cur.D7Retained = r.D7Retained
		}
		if hasField(fields, models.ColReferredDAU) {
			cur.ReferredDAU = r.ReferredDAU
		}
		m.pDays[k] = cur
	}
	return nil
}

func (m *memStore) UpsertCampusDays(ctx context.Context, rows []models.CampusDay, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		k := [2]string{r.Date, r.CampusID}
		cur, ok := m.cDays[k]
		if !ok {
			m.cDays[k] = r
			continue
		}
		if hasField(fields, models.ColNewSignups) {
			cur.NewSignups = r.NewSignups
		}
		if hasField(fields, models.ColDAU) {
			cur.DAU = r.DAU
		}
		m.cDays[k] = cur
	}
	return nil
}

func (m *memStore) UpsertOverallDays(ctx context.Context, rows []models.OverallDay, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		cur, ok := m.oDays[r.Date]
		if !ok {
			m.oDays[r.Date] = r
			continue
		}
		if hasField(fields, models.ColNewSignupsEligible) {
			cur.NewSignupsEligible = r.NewSignupsEligible
		}
		if hasField(fields, models.ColDAUEligible) {
			cur.DAUEligible = r.DAUEligible
		}
		m.oDays[r.Date] = cur
	}
	return nil
}

func (m *memStore) ParticipantDays(ctx context.Context, participantID string) ([]models.ParticipantDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ParticipantDay
	for _, r := range m.pDays {
		if r.ParticipantID == participantID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// extUser is a row of the fake product database.
type extUser struct {
	ID           string
	Email        string
	Guest        bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	OwnCode      string
	UsedCode     string
	PasswordHash string
}

type solverStart struct {
	UserID string
	At     time.Time
}

// fakeSource is an in-memory product database.
type fakeSource struct {
	mu     sync.Mutex
	users  []extUser
	solver []solverStart

	fetchErr error
	// blockCounts makes CountEligibleReferrals wait for ctx to end.
	blockCounts bool
	fetchCalls  int
}

func (f *fakeSource) add(users ...extUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, users...)
}

func eligibleExt(u extUser) bool {
	return u.Email != "" && !u.Guest
}

func (f *fakeSource) ownerOf(code string) (extUser, bool) {
	if code == "" {
		return extUser{}, false
	}
	for _, u := range f.users {
		if u.OwnCode == code {
			return u, true
		}
	}
	return extUser{}, false
}

func (f *fakeSource) FetchSignups(ctx context.Context, after models.Watermark, domains []string, limit int) ([]models.Signup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	allowed := map[string]bool{}
	for _, d := range domains {
		allowed[d] = true
	}
	var rows []models.Signup
	for _, u := range f.users {
		if !eligibleExt(u) || !allowed[EmailDomain(u.Email)] {
			continue
		}
		wm := models.Watermark{CreatedAt: u.CreatedAt, UserID: u.ID}
		if !after.Before(wm) {
			continue
		}
		s := models.Signup{UserID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
		if u.OwnCode != "" {
			code := u.OwnCode
			s.OwnReferralCode = &code
		}
		if owner, ok := f.ownerOf(u.UsedCode); ok {
			code, id := u.UsedCode, owner.ID
			s.ReferralCodeUsed = &code
			s.ReferrerUserID = &id
		}
		rows = append(rows, s)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Watermark().Before(rows[j].Watermark()) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeSource) referred(owner models.ReferralOwner) []models.UserRecord {
	var own string
	for _, u := range f.users {
		if u.ID == owner.ExternalUserID {
			own = u.OwnCode
		}
	}
	if own == "" {
		return nil
	}
	var out []models.UserRecord
	for _, u := range f.users {
		if u.UsedCode != own || !eligibleExt(u) {
			continue
		}
		if owner.Domain != "" && EmailDomain(u.Email) != owner.Domain {
			continue
		}
		out = append(out, models.UserRecord{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt})
	}
	return out
}

func (f *fakeSource) CountEligibleReferrals(ctx context.Context, owners []models.ReferralOwner) (map[string]int, error) {
	if f.blockCounts {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int{}
	for _, o := range owners {
		out[o.ExternalUserID] = len(f.referred(o))
	}
	return out, nil
}

func (f *fakeSource) ReferredUsers(ctx context.Context, owners []models.ReferralOwner) (map[string][]models.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string][]models.UserRecord{}
	for _, o := range owners {
		out[o.ExternalUserID] = f.referred(o)
	}
	return out, nil
}

func (f *fakeSource) CountActiveByDomain(ctx context.Context, from, to time.Time, domains []string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	allowed := map[string]bool{}
	for _, d := range domains {
		allowed[d] = true
	}
	in := func(t time.Time) bool { return !t.Before(from) && t.Before(to) }
	active := map[string]bool{}
	for _, u := range f.users {
		if in(u.UpdatedAt) {
			active[u.ID] = true
		}
	}
	for _, s := range f.solver {
		if in(s.At) {
			active[s.UserID] = true
		}
	}
	out := map[string]int{}
	for _, u := range f.users {
		d := EmailDomain(u.Email)
		if active[u.ID] && eligibleExt(u) && allowed[d] {
			out[d]++
		}
	}
	return out, nil
}

func (f *fakeSource) ScopeUsers(ctx context.Context, q models.ScopeQuery) ([]models.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q.Owner != nil {
		return f.referred(*q.Owner), nil
	}
	allowed := map[string]bool{}
	for _, d := range q.Domains {
		allowed[d] = true
	}
	var out []models.UserRecord
	for _, u := range f.users {
		if eligibleExt(u) && allowed[EmailDomain(u.Email)] {
			out = append(out, models.UserRecord{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt})
		}
	}
	return out, nil
}

func (f *fakeSource) SolverActivity(ctx context.Context, userIDs []string, since time.Time, loc *time.Location) ([]models.SolverDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[string]bool{}
	for _, id := range userIDs {
		want[id] = true
	}
	counts := map[[2]string]int{}
	for _, s := range f.solver {
		if want[s.UserID] && !s.At.Before(since) {
			counts[[2]string{s.UserID, utils.DayKey(s.At, loc)}]++
		}
	}
	var out []models.SolverDay
	for k, n := range counts {
		out = append(out, models.SolverDay{UserID: k[0], Day: k[1], Events: n})
	}
	return out, nil
}

func (f *fakeSource) FindUserByEmail(ctx context.Context, email string) (models.ExternalUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Guest || !strings.EqualFold(u.Email, email) {
			continue
		}
		ext := models.ExternalUser{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
		if u.OwnCode != "" {
			code := u.OwnCode
			ext.ReferralCode = &code
		}
		if u.PasswordHash != "" {
			hash := u.PasswordHash
			ext.PasswordHash = &hash
		}
		return ext, nil
	}
	return models.ExternalUser{}, models.ErrNotFound
}

type memArchiver struct {
	mu   sync.Mutex
	runs []models.IngestRun
}

func (a *memArchiver) ArchiveRun(ctx context.Context, run models.IngestRun) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, run)
	return nil
}
