package models

import (
	"time"

	"gorm.io/datatypes"
)

type Message struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	MessageID        string         `gorm:"uniqueIndex;size:64;not null" json:"message_id"`
	ConversationID   uint           `gorm:"index;not null" json:"conversation_id"`
	PackID           string         `gorm:"index;size:32" json:"pack_id"`
	FromUserID       string         `gorm:"size:32" json:"from_user_id"`
	ToUserID         string         `gorm:"size:32" json:"to_user_id"`
	Text             string         `gorm:"type:text" json:"text"`
	Status           string         `gorm:"size:32" json:"status"`
	ModerationStatus string         `gorm:"size:32" json:"moderation_status,omitempty"`
	ModerationReason string         `gorm:"size:120" json:"moderation_reason,omitempty"`
	ModeratedAt      *time.Time     `json:"moderated_at,omitempty"`
	Attachments      datatypes.JSON `json:"attachments,omitempty"`
	SentAt           time.Time      `gorm:"index" json:"sent_at"`
	ReadAt           *time.Time     `json:"read_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// FromSeller reports whether the message was written by the given seller.
func (m Message) FromSeller(sellerID string) bool {
	return m.FromUserID != "" && m.FromUserID == sellerID
}
