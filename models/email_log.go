package models

import "gorm.io/gorm"

type EmailLog struct {
	gorm.Model
	To       string `gorm:"size:255;not null" json:"to"`
	Subject  string `gorm:"size:255" json:"subject"`
	Template string `gorm:"size:50" json:"template"`
	Platform string `gorm:"size:20" json:"platform"`
	OrderID  string `gorm:"size:32;index" json:"order_id"`
	Status   string `gorm:"size:20" json:"status"` // "sent" or "failed"
	Error    string `gorm:"type:text" json:"error,omitempty"`
}
