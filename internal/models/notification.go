package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies inbox entries
type NotificationType string

const (
	NotificationTypeDonation NotificationType = "donation"
)

// Notification is an inbox entry for a single recipient
type Notification struct {
	Base
	UserID  uuid.UUID        `gorm:"type:uuid;index;not null" json:"user_id"`
	Type    NotificationType `gorm:"type:varchar(50);not null" json:"type"`
	Title   string           `gorm:"type:varchar(255);not null" json:"title"`
	Message string           `gorm:"type:text;not null" json:"message"`
	Icon    string           `gorm:"type:varchar(100)" json:"icon"`
	Link    string           `gorm:"type:text" json:"link"`
	IsRead  bool             `gorm:"not null;index" json:"is_read"`
	ReadAt  *time.Time       `json:"read_at"`
}
