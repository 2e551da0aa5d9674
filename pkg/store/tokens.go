package store

import (
	"context"
	"errors"
	"strconv"

	"SellerHub/models"
	"SellerHub/pkg/mercadolibre"

	"gorm.io/gorm/clause"
)

const PlatformMercadoLibre = "mercadolibre"

func (s *Store) LoadPlatformToken(ctx context.Context, platform string) (*models.PlatformToken, error) {
	var t models.PlatformToken
	if err := s.db.WithContext(ctx).Where("platform = ?", platform).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) SavePlatformToken(ctx context.Context, t models.PlatformToken) error {
	t.UpdatedAt = s.now()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&t).Error
}

// MercadoLibreTokens exposes the token row as a mercadolibre.TokenStore.
func (s *Store) MercadoLibreTokens() mercadolibre.TokenStore {
	return mlTokens{s: s}
}

type mlTokens struct {
	s *Store
}

func (m mlTokens) LoadToken(ctx context.Context) (*mercadolibre.Token, error) {
	row, err := m.s.LoadPlatformToken(ctx, PlatformMercadoLibre)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	uid, _ := strconv.ParseInt(row.UserID, 10, 64)
	return &mercadolibre.Token{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		Scope:        row.Scope,
		UserID:       uid,
		ExpiresAt:    row.ExpiresAt,
		RefreshedAt:  row.UpdatedAt,
	}, nil
}

func (m mlTokens) SaveToken(ctx context.Context, t mercadolibre.Token) error {
	row := models.PlatformToken{
		Platform:     PlatformMercadoLibre,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Scope:        t.Scope,
		ExpiresAt:    t.ExpiresAt,
	}
	if t.UserID != 0 {
		row.UserID = strconv.FormatInt(t.UserID, 10)
	}
	return m.s.SavePlatformToken(ctx, row)
}
