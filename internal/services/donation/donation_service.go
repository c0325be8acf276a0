package donation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/config"
	"github.com/jakob/backend/internal/logger"
	"github.com/jakob/backend/internal/models"
	"github.com/jakob/backend/internal/utils"
)

const (
	anonymousDonor   = "Anonymous"
	maxMessageLength = 1000

	defaultListLimit = 20
	maxListLimit     = 100
)

var (
	// ErrNotPending is returned when settling or failing a donation that has
	// already left the pending state. Nothing is applied.
	ErrNotPending = apperr.Conflict("donation is not pending")
	// ErrRefundUnsupported is returned for the completed -> refunded transition,
	// which has no settlement reversal yet.
	ErrRefundUnsupported = apperr.Conflict("refunds are not supported")
)

// Notifier emits the inbox entry for a settled donation inside the
// settlement's unit of work
type Notifier interface {
	DonationReceived(tx *gorm.DB, recipientID uuid.UUID, donation *models.Donation, campaignTitle string) (*models.Notification, error)
}

// CreateDonationInput is a donor's request to give to a campaign
type CreateDonationInput struct {
	CampaignID    uuid.UUID                `json:"campaign_id"`
	Amount        decimal.Decimal          `json:"amount"`
	PaymentMethod models.PaymentMethodType `json:"payment_method"`
	Message       *string                  `json:"message"`
	IsAnonymous   bool                     `json:"is_anonymous"`
}

// Validate checks the input shape without touching storage
func (in CreateDonationInput) Validate() error {
	fields := map[string]string{}
	if in.CampaignID == uuid.Nil {
		fields["campaign_id"] = "campaign_id is required"
	}
	if !in.Amount.IsPositive() {
		fields["amount"] = "amount must be greater than 0"
	} else if !in.Amount.Equal(in.Amount.Round(2)) {
		fields["amount"] = "amount cannot have more than 2 decimal places"
	} else if in.Amount.GreaterThan(models.MaxAmount) {
		fields["amount"] = "amount cannot exceed " + utils.FormatAmount(models.MaxAmount)
	}
	if !in.PaymentMethod.Valid() {
		fields["payment_method"] = "invalid payment method"
	}
	if in.Message != nil && len(*in.Message) > maxMessageLength {
		fields["message"] = fmt.Sprintf("message cannot exceed %d characters", maxMessageLength)
	}

	if len(fields) > 0 {
		return apperr.ValidationFields("invalid donation", fields)
	}
	return nil
}

// DonationResult is returned by CreateDonation
type DonationResult struct {
	Donation       *models.DonationDetail `json:"donation"`
	TransactionRef string                 `json:"transaction_ref"`
	// PaymentURL is where the donor completes payment. Nil until a gateway is wired.
	PaymentURL *string `json:"payment_url"`
}

// DonationService drives donations through their lifecycle:
// pending -> completed, pending -> failed
type DonationService struct {
	db         *gorm.DB
	aggregator *Aggregator
	notifier   Notifier
	cfg        config.DonationConfig
	log        *zap.Logger
}

// NewDonationService creates a new donation service
func NewDonationService(db *gorm.DB, aggregator *Aggregator, notifier Notifier, cfg config.DonationConfig, log *zap.Logger) *DonationService {
	return &DonationService{
		db:         db,
		aggregator: aggregator,
		notifier:   notifier,
		cfg:        cfg,
		log:        logger.OrNop(log),
	}
}

// CreateDonation records a pending donation and its paired wallet
// transaction. When auto settlement is enabled the donation is settled in the
// same unit of work.
func (s *DonationService) CreateDonation(ctx context.Context, actor models.Actor, in CreateDonationInput) (*DonationResult, error) {
	if !actor.IsDonor() {
		return nil, apperr.Forbidden("only donors can make donations")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	now := time.Now().UTC()

	var donor models.DonorProfile
	if err := db.Where("user_id = ?", actor.UserID).First(&donor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("donor profile not found")
		}
		return nil, apperr.Storage("could not load donor profile", err)
	}

	var campaign models.Campaign
	if err := db.Where("id = ? AND status = ?", in.CampaignID, models.CampaignStatusActive).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("campaign not found or not active")
		}
		return nil, apperr.Storage("could not load campaign", err)
	}
	// Lapsed campaigns stay active until the maintenance job closes them
	if !campaign.AcceptsDonations(now) {
		return nil, apperr.Validation("campaign has ended")
	}

	ref, err := utils.GenerateReference(utils.DonationRefPrefix, now)
	if err != nil {
		return nil, apperr.Storage("could not generate transaction reference", err)
	}

	donation := models.Donation{
		DonorID:        donor.ID,
		InfluencerID:   campaign.InfluencerID,
		CampaignID:     campaign.ID,
		Amount:         in.Amount.Round(2),
		Currency:       campaign.Currency,
		PaymentMethod:  in.PaymentMethod,
		TransactionRef: ref,
		Status:         models.DonationStatusPending,
		IsAnonymous:    in.IsAnonymous,
		Message:        in.Message,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&donation).Error; err != nil {
			return apperr.Storage("could not create donation", err)
		}

		transaction := models.Transaction{
			UserID:      actor.UserID,
			Type:        models.TransactionTypeDonation,
			Amount:      donation.Amount,
			Currency:    donation.Currency,
			Status:      models.TransactionStatusPending,
			Description: "Donation to " + campaign.Title,
			ReferenceID: ref,
			MetaData: models.JSON{
				"donation_id":    donation.ID.String(),
				"campaign_id":    campaign.ID.String(),
				"campaign_title": campaign.Title,
				"payment_method": string(donation.PaymentMethod),
			},
		}
		if err := tx.Create(&transaction).Error; err != nil {
			return apperr.Storage("could not create transaction", err)
		}

		if s.cfg.AutoSettle {
			return s.settle(tx, &donation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("donation created",
		zap.String("donation_id", donation.ID.String()),
		zap.String("transaction_ref", ref),
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("amount", donation.Amount.String()),
		zap.String("status", string(donation.Status)))

	detail, err := s.loadDetail(db, actor, "d.id = ?", donation.ID)
	if err != nil {
		return nil, err
	}

	return &DonationResult{Donation: detail, TransactionRef: ref}, nil
}

// SettleDonation completes a pending donation. It is the entry point for
// payment confirmations and is idempotent: settling a donation that is no
// longer pending returns ErrNotPending and changes nothing.
func (s *DonationService) SettleDonation(ctx context.Context, donationID uuid.UUID) (*models.Donation, error) {
	return s.transition(ctx, "id = ?", donationID, func(tx *gorm.DB, d *models.Donation) error {
		return s.settle(tx, d)
	})
}

// SettleByReference settles the donation carrying transactionRef
func (s *DonationService) SettleByReference(ctx context.Context, transactionRef string) (*models.Donation, error) {
	return s.transition(ctx, "transaction_ref = ?", transactionRef, func(tx *gorm.DB, d *models.Donation) error {
		return s.settle(tx, d)
	})
}

// FailDonation moves a pending donation and its transaction to failed. No
// aggregate is touched.
func (s *DonationService) FailDonation(ctx context.Context, donationID uuid.UUID, reason string) (*models.Donation, error) {
	return s.transition(ctx, "id = ?", donationID, func(tx *gorm.DB, d *models.Donation) error {
		return s.fail(tx, d, reason)
	})
}

// FailByReference fails the donation carrying transactionRef
func (s *DonationService) FailByReference(ctx context.Context, transactionRef, reason string) (*models.Donation, error) {
	return s.transition(ctx, "transaction_ref = ?", transactionRef, func(tx *gorm.DB, d *models.Donation) error {
		return s.fail(tx, d, reason)
	})
}

// StatusByReference returns the stored status of the donation carrying transactionRef
func (s *DonationService) StatusByReference(ctx context.Context, transactionRef string) (models.DonationStatus, error) {
	var donation models.Donation
	if err := s.db.WithContext(ctx).Select("id", "status").
		First(&donation, "transaction_ref = ?", transactionRef).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.NotFound("donation not found")
		}
		return "", apperr.Storage("could not load donation", err)
	}
	return donation.Status, nil
}

// Refund would move a completed donation to refunded and reverse its
// aggregates. Reversal is not implemented.
func (s *DonationService) Refund(ctx context.Context, donationID uuid.UUID) (*models.Donation, error) {
	var donation models.Donation
	if err := s.db.WithContext(ctx).First(&donation, "id = ?", donationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("donation not found")
		}
		return nil, apperr.Storage("could not load donation", err)
	}
	if !donation.Status.CanTransitionTo(models.DonationStatusRefunded) {
		return nil, apperr.Conflict(fmt.Sprintf("cannot refund a %s donation", donation.Status))
	}
	return nil, ErrRefundUnsupported
}

// ExpirePending fails every donation still pending since before cutoff and
// returns how many were failed.
func (s *DonationService) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	var ids []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Donation{}).
		Where("status = ? AND created_at < ?", models.DonationStatusPending, cutoff.UTC()).
		Pluck("id", &ids).Error; err != nil {
		return 0, apperr.Storage("could not load pending donations", err)
	}

	expired := 0
	for _, id := range ids {
		if _, err := s.FailDonation(ctx, id, "payment was not confirmed in time"); err != nil {
			if errors.Is(err, ErrNotPending) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *DonationService) transition(ctx context.Context, query string, key interface{}, apply func(tx *gorm.DB, d *models.Donation) error) (*models.Donation, error) {
	var donation models.Donation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(query, key).First(&donation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("donation not found")
			}
			return apperr.Storage("could not load donation", err)
		}
		return apply(tx, &donation)
	})
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

// settle applies the settlement to a pending donation on tx. The status flip
// is a compare-and-swap on the donation row, so a donation is settled at most
// once no matter how many callers race on it.
func (s *DonationService) settle(tx *gorm.DB, donation *models.Donation) error {
	now := time.Now().UTC()

	result := tx.Model(&models.Donation{}).
		Where("id = ? AND status = ?", donation.ID, models.DonationStatusPending).
		Updates(map[string]interface{}{
			"status":       models.DonationStatusCompleted,
			"completed_at": now,
		})
	if result.Error != nil {
		return apperr.Storage("could not settle donation", result.Error)
	}
	if result.RowsAffected != 1 {
		return ErrNotPending
	}
	donation.Status = models.DonationStatusCompleted
	donation.CompletedAt = &now

	if err := syncTransaction(tx, donation); err != nil {
		return apperr.Storage("could not settle donation", err)
	}

	var campaign models.Campaign
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "title").
		First(&campaign, "id = ?", donation.CampaignID).Error; err != nil {
		return apperr.Storage("could not lock campaign", err)
	}

	if err := s.aggregator.ApplySettlement(tx, donation); err != nil {
		return apperr.Storage("could not update balances", err)
	}

	var influencer models.InfluencerProfile
	if err := tx.Select("id", "user_id").First(&influencer, "id = ?", donation.InfluencerID).Error; err != nil {
		return apperr.Storage("could not load influencer", err)
	}
	if _, err := s.notifier.DonationReceived(tx, influencer.UserID, donation, campaign.Title); err != nil {
		return apperr.Storage("could not notify influencer", err)
	}

	s.log.Info("donation settled",
		zap.String("donation_id", donation.ID.String()),
		zap.String("transaction_ref", donation.TransactionRef),
		zap.String("amount", donation.Amount.String()))
	return nil
}

func (s *DonationService) fail(tx *gorm.DB, donation *models.Donation, reason string) error {
	result := tx.Model(&models.Donation{}).
		Where("id = ? AND status = ?", donation.ID, models.DonationStatusPending).
		Updates(map[string]interface{}{
			"status":         models.DonationStatusFailed,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return apperr.Storage("could not fail donation", result.Error)
	}
	if result.RowsAffected != 1 {
		return ErrNotPending
	}
	donation.Status = models.DonationStatusFailed
	donation.FailureReason = &reason

	if err := syncTransaction(tx, donation); err != nil {
		return apperr.Storage("could not fail donation", err)
	}

	s.log.Info("donation failed",
		zap.String("donation_id", donation.ID.String()),
		zap.String("transaction_ref", donation.TransactionRef),
		zap.String("reason", reason))
	return nil
}

// syncTransaction moves the pending wallet transaction paired with donation to
// the status matching the donation's new status
func syncTransaction(tx *gorm.DB, donation *models.Donation) error {
	ref := donation.TransactionRef
	result := tx.Model(&models.Transaction{}).
		Where("reference_id = ? AND status = ?", ref, models.TransactionStatusPending).
		Update("status", models.TransactionStatusFor(donation.Status))
	if result.Error != nil {
		return fmt.Errorf("error updating transaction %s: %w", ref, result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("transaction %s is not pending", ref)
	}
	return nil
}
