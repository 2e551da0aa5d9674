package models

import "time"

// PlatformToken persists OAuth credentials so rotated refresh tokens survive restarts.
type PlatformToken struct {
	Platform     string    `gorm:"primaryKey;size:32"`
	AccessToken  string    `gorm:"type:text"`
	RefreshToken string    `gorm:"type:text"`
	UserID       string    `gorm:"size:32"`
	Scope        string    `gorm:"size:255"`
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}
