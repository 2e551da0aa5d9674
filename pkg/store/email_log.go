package store

import (
	"context"

	"SellerHub/models"
)

func (s *Store) LogEmail(ctx context.Context, entry *models.EmailLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// ListEmailLogs returns the most recent entries first.
func (s *Store) ListEmailLogs(ctx context.Context, limit int) ([]models.EmailLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []models.EmailLog
	err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}
