// store/allowlist.go
package store

import (
	"context"

	"campus-referral-engine/models"

	"gorm.io/gorm/clause"
)

func (s *Store) AllowedDomains(ctx context.Context) ([]models.AllowedDomain, error) {
	var rows []models.AllowedDomain
	err := s.db.WithContext(ctx).Order("domain ASC").Find(&rows).Error
	return rows, err
}

func (s *Store) CountAllowedDomains(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.AllowedDomain{}).Count(&n).Error
	return n, err
}

// UpsertAllowedDomains writes seed rows keyed by domain.
func (s *Store) UpsertAllowedDomains(ctx context.Context, rows []models.AllowedDomain) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "domain"}},
		DoUpdates: clause.AssignmentColumns([]string{"campus_id", "campus_name", "updated_at"}),
	}).Create(&rows).Error
}
