package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is a payout/payin account registered by a user. At most one
// method per user has IsDefault set.
type PaymentMethod struct {
	Base
	UserID        uuid.UUID         `gorm:"type:uuid;index;not null" json:"user_id"`
	Type          PaymentMethodType `gorm:"type:varchar(20);not null" json:"type"`
	Provider      *string           `gorm:"type:varchar(100)" json:"provider"`
	AccountNumber string            `gorm:"type:varchar(100);not null" json:"account_number"`
	AccountName   *string           `gorm:"type:varchar(255)" json:"account_name"`
	IsDefault     bool              `gorm:"not null" json:"is_default"`
	IsVerified    bool              `gorm:"not null" json:"is_verified"`
	Balance       decimal.Decimal   `gorm:"type:decimal(20,2);not null" json:"balance"`
}
