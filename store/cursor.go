// store/cursor.go
package store

import (
	"context"
	"time"

	"campus-referral-engine/models"

	"gorm.io/gorm/clause"
)

func (s *Store) InitCursor(ctx context.Context, seed models.IngestCursor) (models.IngestCursor, error) {
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return models.IngestCursor{}, err
	}
	var c models.IngestCursor
	err := db.Where("name = ?", seed.Name).First(&c).Error
	return c, notFound(err)
}

// SaveCursor is a compare-and-set on Version.
func (s *Store) SaveCursor(ctx context.Context, next models.IngestCursor) error {
	res := s.db.WithContext(ctx).Model(&models.IngestCursor{}).
		Where("name = ? AND version = ?", next.Name, next.Version).
		Updates(map[string]interface{}{
			"last_user_created_at": next.LastUserCreatedAt,
			"last_user_id":         next.LastUserID,
			"last_run_at":          next.LastRunAt,
			"rows_processed":       next.RowsProcessed,
			"version":              next.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrCursorConflict
	}
	return nil
}

// AcquireLease takes the named lease if it is free, expired, or already ours.
func (s *Store) AcquireLease(ctx context.Context, name, owner string, now time.Time, ttl time.Duration) (bool, error) {
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.IngestLease{Name: name, ExpiresAt: time.Unix(0, 0).UTC()}).Error; err != nil {
		return false, err
	}
	res := db.Model(&models.IngestLease{}).
		Where("name = ? AND (expires_at < ? OR owner = ?)", name, now, owner).
		Updates(map[string]interface{}{
			"owner":       owner,
			"expires_at":  now.Add(ttl),
			"acquired_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ReleaseLease(ctx context.Context, name, owner string) error {
	return s.db.WithContext(ctx).Model(&models.IngestLease{}).
		Where("name = ? AND owner = ?", name, owner).
		Updates(map[string]interface{}{"owner": "", "expires_at": time.Unix(0, 0).UTC()}).Error
}

func (s *Store) SaveRun(ctx context.Context, run *models.IngestRun) error {
	return s.db.WithContext(ctx).Create(run).Error
}

// RecentRuns lists the latest ingestion runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.IngestRun, error) {
	var runs []models.IngestRun
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
