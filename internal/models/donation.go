package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DonationStatus is a state of the donation state machine
type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "pending"
	DonationStatusCompleted DonationStatus = "completed"
	DonationStatusFailed    DonationStatus = "failed"
	DonationStatusRefunded  DonationStatus = "refunded"
)

var donationTransitions = map[DonationStatus][]DonationStatus{
	DonationStatusPending:   {DonationStatusCompleted, DonationStatusFailed},
	DonationStatusCompleted: {DonationStatusRefunded},
}

// CanTransitionTo reports whether the state machine allows s -> next
func (s DonationStatus) CanTransitionTo(next DonationStatus) bool {
	for _, allowed := range donationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethodType is a supported way to pay
type PaymentMethodType string

const (
	PaymentMethodMonCash      PaymentMethodType = "moncash"
	PaymentMethodNatCash      PaymentMethodType = "natcash"
	PaymentMethodBankTransfer PaymentMethodType = "bank_transfer"
	PaymentMethodCreditCard   PaymentMethodType = "credit_card"
)

// PaymentMethodTypes lists the accepted payment method types
var PaymentMethodTypes = []PaymentMethodType{
	PaymentMethodMonCash,
	PaymentMethodNatCash,
	PaymentMethodBankTransfer,
	PaymentMethodCreditCard,
}

// Valid reports whether t is an accepted payment method type
func (t PaymentMethodType) Valid() bool {
	for _, known := range PaymentMethodTypes {
		if t == known {
			return true
		}
	}
	return false
}

// MaxAmount is the largest donation or campaign goal accepted. Money columns
// are decimal(20,2) and campaign totals are sums of donations.
var MaxAmount = decimal.RequireFromString("9999999999999.99")

// Donation is a single contribution from a donor to a campaign. DonorID and
// InfluencerID are profile ids; InfluencerID is copied from the campaign owner
// at creation. Amount, donor and campaign never change once the donation is
// completed.
type Donation struct {
	Base
	DonorID        uuid.UUID         `gorm:"type:uuid;index;not null" json:"donor_id"`
	InfluencerID   uuid.UUID         `gorm:"type:uuid;index;not null" json:"influencer_id"`
	CampaignID     uuid.UUID         `gorm:"type:uuid;index;not null" json:"campaign_id"`
	Amount         decimal.Decimal   `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency       string            `gorm:"type:varchar(3);not null" json:"currency"`
	PaymentMethod  PaymentMethodType `gorm:"type:varchar(20);not null" json:"payment_method"`
	TransactionRef string            `gorm:"type:varchar(100);uniqueIndex;not null" json:"transaction_ref"`
	Status         DonationStatus    `gorm:"type:varchar(20);not null;index" json:"status"`
	IsAnonymous    bool              `gorm:"not null" json:"is_anonymous"`
	Message        *string           `gorm:"type:text" json:"message"`
	FailureReason  *string           `gorm:"type:text" json:"failure_reason,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at"`
}

// DonationDetail is a donation joined with its campaign title and donor name
type DonationDetail struct {
	Donation
	CampaignTitle string `json:"campaign_title"`
	DonorName     string `json:"donor_name"`
}
