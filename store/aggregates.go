// store/aggregates.go
package store

import (
	"context"

	"campus-referral-engine/models"

	"gorm.io/gorm/clause"
)

func (s *Store) InsertLedgerEntries(ctx context.Context, entries []models.SignupLedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_user_id"}}, DoNothing: true}).
		CreateInBatches(&entries, 500).Error
}

func (s *Store) LedgerEntriesForDays(ctx context.Context, days []string) ([]models.SignupLedgerEntry, error) {
	var entries []models.SignupLedgerEntry
	if len(days) == 0 {
		return entries, nil
	}
	err := s.db.WithContext(ctx).Where("day IN ?", days).Find(&entries).Error
	return entries, err
}

// The Upsert*Days methods replace exactly the named columns on (date, entity) conflict.

func (s *Store) UpsertParticipantDays(ctx context.Context, rows []models.ParticipantDay, fields ...string) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "participant_id"}},
		DoUpdates: clause.AssignmentColumns(withUpdatedAt(fields)),
	}).Create(&rows).Error
}

func (s *Store) UpsertCampusDays(ctx context.Context, rows []models.CampusDay, fields ...string) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "campus_id"}},
		DoUpdates: clause.AssignmentColumns(withUpdatedAt(fields)),
	}).Create(&rows).Error
}

func (s *Store) UpsertOverallDays(ctx context.Context, rows []models.OverallDay, fields ...string) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns(withUpdatedAt(fields)),
	}).Create(&rows).Error
}

func (s *Store) ParticipantDays(ctx context.Context, participantID string) ([]models.ParticipantDay, error) {
	var rows []models.ParticipantDay
	err := s.db.WithContext(ctx).Where("participant_id = ?", participantID).Order("date ASC").Find(&rows).Error
	return rows, err
}

func withUpdatedAt(fields []string) []string {
	out := make([]string, 0, len(fields)+1)
	out = append(out, fields...)
	return append(out, "updated_at")
}
