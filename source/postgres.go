// source/postgres.go
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-referral-engine/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Timestamps in the product database are naive UTC; every bound is sent as UTC.

const emailDomainSQL = `LOWER(SUBSTRING(u.email FROM '@([^@]*)$'))`

const eligibleUserSQL = `u.email IS NOT NULL AND u.email <> '' AND u."isGuest" IS FALSE`

// Postgres reads the product database. It never writes.
type Postgres struct {
	pool           *pgxpool.Pool
	passwordColumn string
	logger         *zap.Logger
}

// Connect opens a pool and verifies it within five seconds.
func Connect(ctx context.Context, dsn, passwordColumn string, logger *zap.Logger) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create source connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping source database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("[SOURCE] connected to product database")
	return &Postgres{pool: pool, passwordColumn: passwordColumn, logger: logger}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() { p.pool.Close() }

const fetchSignupsSQL = `
SELECT u.id::text, u.email, u."createdAt", ref.code, ref.referrer_id, own.code
FROM users u
LEFT JOIN LATERAL (
    SELECT ur."referralCode" AS code, urc."userId"::text AS referrer_id
    FROM user_referrals ur
    LEFT JOIN user_referral_codes urc ON urc."referralCode" = ur."referralCode"
    WHERE ur."referredUserId" = u.id
    LIMIT 1
) ref ON TRUE
LEFT JOIN LATERAL (
    SELECT c."referralCode" AS code
    FROM user_referral_codes c
    WHERE c."userId" = u.id
    ORDER BY c."referralCode"
    LIMIT 1
) own ON TRUE
WHERE (u."createdAt", u.id::text COLLATE "C") > ($1, $2::text COLLATE "C")
  AND ` + eligibleUserSQL + `
  AND ` + emailDomainSQL + ` = ANY($3)
ORDER BY u."createdAt", u.id::text COLLATE "C"
LIMIT $4`

func (p *Postgres) FetchSignups(ctx context.Context, after models.Watermark, domains []string, limit int) ([]models.Signup, error) {
	if len(domains) == 0 || limit <= 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, fetchSignupsSQL, after.CreatedAt.UTC(), after.UserID, domains, limit)
	if err != nil {
		return nil, fmt.Errorf("query signups: %w", err)
	}
	defer rows.Close()

	var out []models.Signup
	for rows.Next() {
		var s models.Signup
		if err := rows.Scan(&s.UserID, &s.Email, &s.CreatedAt, &s.ReferralCodeUsed, &s.ReferrerUserID, &s.OwnReferralCode); err != nil {
			return nil, fmt.Errorf("scan signup: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// referredSQL joins each (owner, domain) pair to the eligible users who used one of the owner's codes.
// An empty domain matches any domain.
const referredSQL = `
FROM unnest($1::text[], $2::text[]) AS o(owner_id, domain)
JOIN user_referral_codes urc ON urc."userId"::text = o.owner_id
JOIN user_referrals ur ON ur."referralCode" = urc."referralCode"
JOIN users u ON u.id = ur."referredUserId"
WHERE ` + eligibleUserSQL + `
  AND (o.domain = '' OR ` + emailDomainSQL + ` = o.domain)`

func ownerArrays(owners []models.ReferralOwner) ([]string, []string) {
	ids := make([]string, len(owners))
	domains := make([]string, len(owners))
	for i, o := range owners {
		ids[i] = o.ExternalUserID
		domains[i] = o.Domain
	}
	return ids, domains
}

func (p *Postgres) CountEligibleReferrals(ctx context.Context, owners []models.ReferralOwner) (map[string]int, error) {
	counts := make(map[string]int, len(owners))
	if len(owners) == 0 {
		return counts, nil
	}
	for _, o := range owners {
		counts[o.ExternalUserID] = 0
	}
	ids, domains := ownerArrays(owners)
	rows, err := p.pool.Query(ctx, `SELECT o.owner_id, COUNT(DISTINCT u.id)`+referredSQL+` GROUP BY o.owner_id`, ids, domains)
	if err != nil {
		return nil, fmt.Errorf("query referral counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var owner string
		var n int64
		if err := rows.Scan(&owner, &n); err != nil {
			return nil, fmt.Errorf("scan referral count: %w", err)
		}
		counts[owner] = int(n)
	}
	return counts, rows.Err()
}

func (p *Postgres) ReferredUsers(ctx context.Context, owners []models.ReferralOwner) (map[string][]models.UserRecord, error) {
	out := make(map[string][]models.UserRecord, len(owners))
	if len(owners) == 0 {
		return out, nil
	}
	ids, domains := ownerArrays(owners)
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT o.owner_id, u.id::text, u.email, u."createdAt", u."updatedAt"`+referredSQL, ids, domains)
	if err != nil {
		return nil, fmt.Errorf("query referred users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var owner string
		var u models.UserRecord
		if err := rows.Scan(&owner, &u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan referred user: %w", err)
		}
		out[owner] = append(out[owner], u)
	}
	return out, rows.Err()
}

const activeByDomainSQL = `
WITH active AS (
    SELECT u.id FROM users u
    WHERE u."updatedAt" >= $1 AND u."updatedAt" < $2
    UNION
    SELECT st."userId" FROM task_problem_solutions tps
    JOIN problem_files pf ON pf.id = tps."problemFileId"
    JOIN solver_tasks st ON st.id = pf."taskId"
    WHERE tps."startedAt" >= $1 AND tps."startedAt" < $2
)
SELECT ` + emailDomainSQL + ` AS domain, COUNT(DISTINCT u.id)
FROM active a
JOIN users u ON u.id = a.id
WHERE ` + eligibleUserSQL + `
  AND ` + emailDomainSQL + ` = ANY($3)
GROUP BY 1`

func (p *Postgres) CountActiveByDomain(ctx context.Context, from, to time.Time, domains []string) (map[string]int, error) {
	out := make(map[string]int)
	if len(domains) == 0 {
		return out, nil
	}
	rows, err := p.pool.Query(ctx, activeByDomainSQL, from.UTC(), to.UTC(), domains)
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var domain string
		var n int64
		if err := rows.Scan(&domain, &n); err != nil {
			return nil, fmt.Errorf("scan active users: %w", err)
		}
		out[domain] = int(n)
	}
	return out, rows.Err()
}

func (p *Postgres) ScopeUsers(ctx context.Context, q models.ScopeQuery) ([]models.UserRecord, error) {
	if q.Owner != nil {
		referred, err := p.ReferredUsers(ctx, []models.ReferralOwner{*q.Owner})
		if err != nil {
			return nil, err
		}
		return referred[q.Owner.ExternalUserID], nil
	}
	if len(q.Domains) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, `
SELECT u.id::text, u.email, u."createdAt", u."updatedAt"
FROM users u
WHERE `+eligibleUserSQL+`
  AND `+emailDomainSQL+` = ANY($1)`, q.Domains)
	if err != nil {
		return nil, fmt.Errorf("query scope users: %w", err)
	}
	defer rows.Close()

	var out []models.UserRecord
	for rows.Next() {
		var u models.UserRecord
		if err := rows.Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan scope user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

const solverActivitySQL = `
SELECT st."userId"::text,
       to_char((tps."startedAt" AT TIME ZONE 'UTC') AT TIME ZONE $3, 'YYYY-MM-DD') AS day,
       COUNT(*)
FROM task_problem_solutions tps
JOIN problem_files pf ON pf.id = tps."problemFileId"
JOIN solver_tasks st ON st.id = pf."taskId"
WHERE st."userId"::text = ANY($1)
  AND tps."startedAt" >= $2
GROUP BY 1, 2`

func (p *Postgres) SolverActivity(ctx context.Context, userIDs []string, since time.Time, loc *time.Location) ([]models.SolverDay, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	rows, err := p.pool.Query(ctx, solverActivitySQL, userIDs, since.UTC(), loc.String())
	if err != nil {
		return nil, fmt.Errorf("query solver activity: %w", err)
	}
	defer rows.Close()

	var out []models.SolverDay
	for rows.Next() {
		var d models.SolverDay
		var n int64
		if err := rows.Scan(&d.UserID, &d.Day, &n); err != nil {
			return nil, fmt.Errorf("scan solver activity: %w", err)
		}
		d.Events = int(n)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) FindUserByEmail(ctx context.Context, email string) (models.ExternalUser, error) {
	password := "NULL::text"
	if p.passwordColumn != "" {
		password = "u." + pgx.Identifier{p.passwordColumn}.Sanitize()
	}
	query := `
SELECT u.id::text, u.email, COALESCE(u."isGuest", FALSE), u."createdAt", u."updatedAt", own.code, ` + password + `
FROM users u
LEFT JOIN LATERAL (
    SELECT c."referralCode" AS code
    FROM user_referral_codes c
    WHERE c."userId" = u.id
    ORDER BY c."referralCode"
    LIMIT 1
) own ON TRUE
WHERE LOWER(u.email) = $1 AND u."isGuest" IS FALSE
LIMIT 1`

	var u models.ExternalUser
	err := p.pool.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.IsGuest, &u.CreatedAt, &u.UpdatedAt, &u.ReferralCode, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ExternalUser{}, models.ErrNotFound
	}
	if err != nil {
		return models.ExternalUser{}, fmt.Errorf("query user by email: %w", err)
	}
	return u, nil
}
