// store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-referral-engine/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the competition database.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to DATABASE_URL. Slow queries are reported through zap.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db), nil
}

// Migrate creates or updates every table the service owns.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&models.Participant{},
		&models.AllowedDomain{},
		&models.IngestCursor{},
		&models.IngestLease{},
		&models.IngestRun{},
		&models.SignupLedgerEntry{},
		&models.UnlockEvent{},
		&models.ParticipantDay{},
		&models.CampusDay{},
		&models.OverallDay{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}

// zapGormLogger forwards gorm's warnings, errors and slow queries to zap.
type zapGormLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger(l *zap.Logger) gormlogger.Interface {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapGormLogger{log: l.Named("gorm"), level: gormlogger.Warn, slow: 500 * time.Millisecond}
}

func (z *zapGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *z
	c.level = level
	return &c
}

func (z *zapGormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if z.level >= gormlogger.Info {
		z.log.Sugar().Infof(msg, args...)
	}
}

func (z *zapGormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if z.level >= gormlogger.Warn {
		z.log.Sugar().Warnf(msg, args...)
	}
}

func (z *zapGormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if z.level >= gormlogger.Error {
		z.log.Sugar().Errorf(msg, args...)
	}
}

func (z *zapGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if z.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && z.level >= gormlogger.Error:
		sql, rows := fc()
		z.log.Error("[DB] query failed", zap.Error(err), zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	case elapsed > z.slow && z.level >= gormlogger.Warn:
		sql, rows := fc()
		z.log.Warn("[DB] slow query", zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	}
}
