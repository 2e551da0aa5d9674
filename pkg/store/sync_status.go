package store

import (
	"context"
	"errors"

	"SellerHub/models"

	"gorm.io/gorm"
)

// SetSyncStatus records the outcome of a sync. Errors increment error_count;
// a success resets it.
func (s *Store) SetSyncStatus(ctx context.Context, entityType, entityID string, syncErr error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st models.SyncStatus
		err := tx.Where("entity_type = ? AND entity_id = ?", entityType, entityID).First(&st).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		st.EntityType = entityType
		st.EntityID = entityID
		if syncErr != nil {
			st.Status = models.SyncStatusError
			st.ErrorMessage = syncErr.Error()
			st.ErrorCount++
		} else {
			now := s.now()
			st.Status = models.SyncStatusOK
			st.ErrorMessage = ""
			st.ErrorCount = 0
			st.LastSyncAt = &now
		}
		return tx.Save(&st).Error
	})
}

func (s *Store) GetSyncStatus(ctx context.Context, entityType, entityID string) (*models.SyncStatus, error) {
	var st models.SyncStatus
	err := s.db.WithContext(ctx).Where("entity_type = ? AND entity_id = ?", entityType, entityID).First(&st).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}
