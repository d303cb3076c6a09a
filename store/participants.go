// store/participants.go
package store

import (
	"context"
	"time"

	"campus-referral-engine/models"

	"gorm.io/gorm/clause"
)

func (s *Store) GetParticipant(ctx context.Context, id string) (models.Participant, error) {
	var p models.Participant
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	return p, notFound(err)
}

func (s *Store) ParticipantsByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Participant, error) {
	var ps []models.Participant
	if len(externalIDs) == 0 {
		return ps, nil
	}
	err := s.db.WithContext(ctx).Where("external_user_id IN ?", externalIDs).Find(&ps).Error
	return ps, err
}

func (s *Store) InsertParticipants(ctx context.Context, ps []models.Participant) error {
	if len(ps) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_user_id"}}, DoNothing: true}).
		CreateInBatches(&ps, 200).Error
}

func (s *Store) UpsertParticipant(ctx context.Context, p *models.Participant) error {
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "campus_id", "referral_code", "updated_at"}),
	}).Create(p).Error; err != nil {
		return err
	}
	// On conflict the generated id is not the stored one, so read the row back
	// into a zero value; First would otherwise filter on p's id as well.
	var stored models.Participant
	if err := db.Where("external_user_id = ?", p.ExternalUserID).First(&stored).Error; err != nil {
		return notFound(err)
	}
	*p = stored
	return nil
}

func (s *Store) LockedParticipants(ctx context.Context) ([]models.Participant, error) {
	var ps []models.Participant
	err := s.db.WithContext(ctx).Where("unlocked_at IS NULL").Find(&ps).Error
	return ps, err
}

func (s *Store) RankedParticipants(ctx context.Context) ([]models.Participant, error) {
	var ps []models.Participant
	err := s.db.WithContext(ctx).
		Order("eligible_referrals_total DESC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&ps).Error
	return ps, err
}

func (s *Store) UpdateReferralState(ctx context.Context, participantID string, count int, unlockedAt *time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Participant{}).
		Where("id = ?", participantID).
		Updates(map[string]interface{}{
			"eligible_referrals_total": count,
			"unlocked_at":              unlockedAt,
			"updated_at":               time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Store) RecordUnlockEvent(ctx context.Context, ev models.UnlockEvent) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "participant_id"}}, DoNothing: true}).
		Create(&ev)
	return res.RowsAffected == 1, res.Error
}
