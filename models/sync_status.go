package models

import "time"

const (
	SyncEntityConversation = "conversation"
	SyncEntityMessage      = "message"

	SyncStatusOK    = "ok"
	SyncStatusError = "error"
)

// SyncStatus is per-entity sync bookkeeping keyed on (entity_type, entity_id).
type SyncStatus struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EntityType   string     `gorm:"size:20;not null;uniqueIndex:idx_sync_entity" json:"entity_type"`
	EntityID     string     `gorm:"size:64;not null;uniqueIndex:idx_sync_entity" json:"entity_id"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
	Status       string     `gorm:"size:20" json:"status"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	ErrorCount   int        `json:"error_count"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (SyncStatus) TableName() string {
	return "sync_status"
}
