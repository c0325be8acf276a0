package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies wallet ledger rows
type TransactionType string

const (
	TransactionTypeDonation TransactionType = "donation"
)

// TransactionStatus mirrors the status of the money-moving record it tracks
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// TransactionStatusFor returns the ledger status paired with a donation status
func TransactionStatusFor(s DonationStatus) TransactionStatus {
	return TransactionStatus(s)
}

// Transaction is a wallet ledger row for one money-moving event by UserID.
// ReferenceID is the paired donation's transaction_ref; the two rows are
// created together and their statuses are changed together.
type Transaction struct {
	Base
	UserID      uuid.UUID         `gorm:"type:uuid;index;not null" json:"user_id"`
	Type        TransactionType   `gorm:"type:varchar(50);not null" json:"type"`
	Amount      decimal.Decimal   `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency    string            `gorm:"type:varchar(3);not null" json:"currency"`
	Status      TransactionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Description string            `gorm:"type:text" json:"description"`
	ReferenceID string            `gorm:"type:varchar(100);uniqueIndex;not null" json:"reference_id"`
	MetaData    JSON              `gorm:"type:text" json:"metadata"`
}
