package models

import "time"

// Conversation is the cached state of one MercadoLibre post-sale thread.
// PackID is the natural key; TotalMessages and UnreadMessages are recomputed
// from the messages table whenever messages are written.
type Conversation struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	PackID          string     `gorm:"uniqueIndex;size:32;not null" json:"pack_id"`
	SellerID        string     `gorm:"index;size:32;not null" json:"seller_id"`
	BuyerID         string     `gorm:"index;size:32" json:"buyer_id"`
	BuyerNickname   string     `gorm:"size:120" json:"buyer_nickname"`
	OrderID         string     `gorm:"size:32" json:"order_id"`
	TotalMessages   int        `gorm:"not null;default:0" json:"total_messages"`
	UnreadMessages  int        `gorm:"not null;default:0" json:"unread_messages"`
	LastMessageDate *time.Time `gorm:"index" json:"last_message_date"`
	LastMessageText string     `gorm:"type:text" json:"last_message_text"`
	LastSyncedAt    *time.Time `json:"last_synced_at"`
	SyncError       string     `gorm:"type:text" json:"sync_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Messages        []Message  `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}
