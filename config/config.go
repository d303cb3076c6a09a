// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the service reads from the environment.
type Config struct {
	AppEnv   string
	LogLevel string
	Port     string

	AllowedOrigins []string

	DatabaseURL       string // competition database (gorm)
	SourceDatabaseURL string // product database (pgx, read-only)
	// SourcePasswordColumn names the users column holding bcrypt hashes.
	// Empty disables the password variant of join.
	SourcePasswordColumn string

	JWTSecret  string
	TokenTTL   time.Duration
	CronSecret string

	IngestBatchLimit int
	IngestBudget     time.Duration
	IngestInterval   time.Duration // 0 disables the in-process scheduler
	IngestEpoch      time.Time
	LeaseTTL         time.Duration

	Timezone        string
	Location        *time.Location
	UnlockThreshold int

	UnrestrictedEmails       []string
	UnrestrictedCampusDomain string

	AllowlistSeedPath string

	R2 R2Config
}

// R2Config is optional. When Bucket is empty run archiving is off.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Prefix          string
}

func (r R2Config) Enabled() bool {
	return r.Bucket != "" && r.AccountID != ""
}

// Load reads the environment, applying defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:               "production",
		LogLevel:             "info",
		Port:                 "5200",
		AllowedOrigins:       []string{"http://localhost:3000"},
		SourcePasswordColumn: "",
		TokenTTL:             7 * 24 * time.Hour,
		IngestBatchLimit:     1000,
		IngestBudget:         55 * time.Second,
		IngestEpoch:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LeaseTTL:             2 * time.Minute,
		Timezone:             "Asia/Kolkata",
		UnlockThreshold:      5,
		R2:                   R2Config{Prefix: "ingest-runs"},
	}

	setString(&cfg.AppEnv, "APP_ENV")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Port, "PORT")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = parseCSV(v)
	}
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.SourceDatabaseURL, "SOURCE_DATABASE_URL")
	setString(&cfg.SourcePasswordColumn, "SOURCE_PASSWORD_COLUMN")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.CronSecret, "CRON_SECRET")
	setString(&cfg.Timezone, "COMPETITION_TIMEZONE")
	setString(&cfg.UnrestrictedCampusDomain, "UNRESTRICTED_CAMPUS_DOMAIN")
	setString(&cfg.AllowlistSeedPath, "ALLOWLIST_SEED_PATH")
	if v := os.Getenv("UNRESTRICTED_EMAILS"); v != "" {
		cfg.UnrestrictedEmails = parseCSV(strings.ToLower(v))
	}

	if err := setInt(&cfg.IngestBatchLimit, "INGEST_BATCH_LIMIT"); err != nil {
		return nil, err
	}
	if err := setInt(&cfg.UnlockThreshold, "UNLOCK_THRESHOLD"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.IngestBudget, "INGEST_BUDGET"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.IngestInterval, "INGEST_INTERVAL"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.LeaseTTL, "LEASE_TTL"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.TokenTTL, "TOKEN_TTL"); err != nil {
		return nil, err
	}
	if v := os.Getenv("INGEST_EPOCH"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			if t, err = time.Parse(time.RFC3339, v); err != nil {
				return nil, fmt.Errorf("invalid INGEST_EPOCH: %w", err)
			}
		}
		cfg.IngestEpoch = t.UTC()
	}

	setString(&cfg.R2.AccountID, "CLOUDFLARE_ACCOUNT_ID")
	setString(&cfg.R2.AccessKeyID, "R2_ACCESS_KEY_ID")
	setString(&cfg.R2.AccessKeySecret, "R2_ACCESS_KEY_SECRET")
	setString(&cfg.R2.Bucket, "R2_BUCKET_NAME")
	setString(&cfg.R2.Prefix, "R2_ARCHIVE_PREFIX")

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid COMPETITION_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

// Validate reports every missing or out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.SourceDatabaseURL == "" {
		errs = append(errs, errors.New("SOURCE_DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IngestBatchLimit <= 0 {
		errs = append(errs, fmt.Errorf("INGEST_BATCH_LIMIT must be positive, got %d", c.IngestBatchLimit))
	}
	if c.IngestBudget <= 0 {
		errs = append(errs, fmt.Errorf("INGEST_BUDGET must be positive, got %s", c.IngestBudget))
	}
	if c.LeaseTTL < c.IngestBudget {
		errs = append(errs, fmt.Errorf("LEASE_TTL (%s) must cover INGEST_BUDGET (%s)", c.LeaseTTL, c.IngestBudget))
	}
	if c.UnlockThreshold <= 0 {
		errs = append(errs, fmt.Errorf("UNLOCK_THRESHOLD must be positive, got %d", c.UnlockThreshold))
	}
	if c.IngestInterval < 0 {
		errs = append(errs, fmt.Errorf("INGEST_INTERVAL must not be negative, got %s", c.IngestInterval))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func parseCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
