package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/config"
	"github.com/jakob/backend/internal/logger"
	"github.com/jakob/backend/internal/models"
)

const (
	maxAccountNumberLength = 100
	maxRecentTransactions  = 100
)

// WalletService handles payment methods and the wallet view
type WalletService struct {
	db  *gorm.DB
	cfg config.WalletConfig
	log *zap.Logger
}

// NewWalletService creates a new wallet service
func NewWalletService(db *gorm.DB, cfg config.WalletConfig, log *zap.Logger) *WalletService {
	if cfg.RecentTransactions <= 0 {
		cfg.RecentTransactions = 10
	}
	if cfg.RecentTransactions > maxRecentTransactions {
		cfg.RecentTransactions = maxRecentTransactions
	}
	return &WalletService{db: db, cfg: cfg, log: logger.OrNop(log)}
}

// AddPaymentMethodInput describes a payment method to register
type AddPaymentMethodInput struct {
	Type          models.PaymentMethodType `json:"type"`
	AccountNumber string                   `json:"account_number"`
	AccountName   *string                  `json:"account_name"`
	Provider      *string                  `json:"provider"`
	IsDefault     bool                     `json:"is_default"`
}

// Validate checks the input shape without touching storage
func (in *AddPaymentMethodInput) Validate() error {
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)

	fields := map[string]string{}
	if !in.Type.Valid() {
		fields["type"] = "invalid payment method type"
	}
	switch {
	case in.AccountNumber == "":
		fields["account_number"] = "account number is required"
	case len(in.AccountNumber) > maxAccountNumberLength:
		fields["account_number"] = "account number is too long"
	}

	if len(fields) > 0 {
		return apperr.ValidationFields("invalid payment method", fields)
	}
	return nil
}

// AddPaymentMethod registers a payment method for the actor. The user's
// first method always becomes the default, and requesting a new default
// clears the old one in the same transaction.
func (s *WalletService) AddPaymentMethod(ctx context.Context, actor models.Actor, in AddPaymentMethodInput) (*models.PaymentMethod, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperr.Storage("could not start transaction", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var existing int64
	if err := tx.Model(&models.PaymentMethod{}).Where("user_id = ?", actor.UserID).Count(&existing).Error; err != nil {
		tx.Rollback()
		return nil, apperr.Storage("could not count payment methods", err)
	}
	isFirst := existing == 0
	makeDefault := in.IsDefault || isFirst

	if makeDefault {
		if err := tx.Model(&models.PaymentMethod{}).
			Where("user_id = ? AND is_default = ?", actor.UserID, true).
			Update("is_default", false).Error; err != nil {
			tx.Rollback()
			return nil, apperr.Storage("could not clear default payment method", err)
		}
	}

	method := models.PaymentMethod{
		UserID:        actor.UserID,
		Type:          in.Type,
		Provider:      in.Provider,
		AccountNumber: in.AccountNumber,
		AccountName:   in.AccountName,
		IsDefault:     makeDefault,
		IsVerified:    false,
		Balance:       decimal.Zero,
	}
	if err := tx.Create(&method).Error; err != nil {
		tx.Rollback()
		return nil, apperr.Storage("could not create payment method", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperr.Storage("could not save payment method", err)
	}

	s.log.Info("payment method added",
		zap.String("user_id", actor.UserID.String()),
		zap.String("type", string(method.Type)),
		zap.Bool("is_default", method.IsDefault))
	return &method, nil
}

// ListPaymentMethods returns the actor's payment methods, default first
func (s *WalletService) ListPaymentMethods(ctx context.Context, actor models.Actor) ([]models.PaymentMethod, error) {
	return listPaymentMethods(s.db.WithContext(ctx), actor)
}

func listPaymentMethods(db *gorm.DB, actor models.Actor) ([]models.PaymentMethod, error) {
	methods := []models.PaymentMethod{}
	if err := db.Where("user_id = ?", actor.UserID).
		Order("is_default DESC, created_at DESC").
		Find(&methods).Error; err != nil {
		return nil, apperr.Storage("could not load payment methods", err)
	}
	return methods, nil
}

// profileID resolves the role-specific profile of the actor
func profileID(db *gorm.DB, actor models.Actor) (interface{}, error) {
	profile := models.NewProfile(actor.Role)
	if profile == nil {
		return nil, apperr.Forbidden("unknown account type")
	}
	if err := db.Select("id").Where("user_id = ?", actor.UserID).First(profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("%s profile not found", actor.Role))
		}
		return nil, apperr.Storage("could not load profile", err)
	}
	return profile.ProfileID(), nil
}
