package wallet

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/config"
	"github.com/jakob/backend/internal/database/dbtest"
	"github.com/jakob/backend/internal/models"
)

func newService(t *testing.T) (*WalletService, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t)
	return NewWalletService(db, config.WalletConfig{RecentTransactions: 10}, nil), db
}

func defaults(t *testing.T, db *gorm.DB, actor models.Actor) []models.PaymentMethod {
	t.Helper()
	var methods []models.PaymentMethod
	require.NoError(t, db.Where("user_id = ? AND is_default = ?", actor.UserID, true).Find(&methods).Error)
	return methods
}

func TestAddPaymentMethod_FirstBecomesDefault(t *testing.T) {
	service, db := newService(t)
	donor := dbtest.CreateDonor(t, db, "Ana", "Pierre")

	method, err := service.AddPaymentMethod(context.Background(), donor.Actor(), AddPaymentMethodInput{
		Type:          models.PaymentMethodMonCash,
		AccountNumber: " 37001234 ",
	})
	require.NoError(t, err)

	assert.True(t, method.IsDefault)
	assert.False(t, method.IsVerified)
	assert.True(t, method.Balance.IsZero())
	assert.Equal(t, "37001234", method.AccountNumber)

	got := defaults(t, db, donor.Actor())
	require.Len(t, got, 1)
	assert.Equal(t, method.ID, got[0].ID)
}

func TestAddPaymentMethod_NewDefaultReplacesOld(t *testing.T) {
	service, db := newService(t)
	ctx := context.Background()
	donor := dbtest.CreateDonor(t, db, "Ana", "Pierre")

	first, err := service.AddPaymentMethod(ctx, donor.Actor(), AddPaymentMethodInput{Type: models.PaymentMethodMonCash, AccountNumber: "1"})
	require.NoError(t, err)

	second, err := service.AddPaymentMethod(ctx, donor.Actor(), AddPaymentMethodInput{Type: models.PaymentMethodNatCash, AccountNumber: "2"})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	got := defaults(t, db, donor.Actor())
	require.Len(t, got, 1)
	assert.Equal(t, first.ID, got[0].ID)

	third, err := service.AddPaymentMethod(ctx, donor.Actor(), AddPaymentMethodInput{
		Type:          models.PaymentMethodBankTransfer,
		AccountNumber: "3",
		IsDefault:     true,
	})
	require.NoError(t, err)
	assert.True(t, third.IsDefault)

	got = defaults(t, db, donor.Actor())
	require.Len(t, got, 1)
	assert.Equal(t, third.ID, got[0].ID)

	methods, err := service.ListPaymentMethods(ctx, donor.Actor())
	require.NoError(t, err)
	require.Len(t, methods, 3)
	assert.Equal(t, third.ID, methods[0].ID)

	t.Run("defaults are per user", func(t *testing.T) {
		other := dbtest.CreateDonor(t, db, "Jean", "Baptiste")
		m, err := service.AddPaymentMethod(ctx, other.Actor(), AddPaymentMethodInput{Type: models.PaymentMethodCreditCard, AccountNumber: "4"})
		require.NoError(t, err)
		assert.True(t, m.IsDefault)
		assert.Len(t, defaults(t, db, donor.Actor()), 1)
	})
}

func TestAddPaymentMethod_Validation(t *testing.T) {
	service, db := newService(t)
	donor := dbtest.CreateDonor(t, db, "Ana", "Pierre")

	for name, in := range map[string]AddPaymentMethodInput{
		"unknown type":   {Type: "paypal", AccountNumber: "1"},
		"missing number": {Type: models.PaymentMethodMonCash, AccountNumber: "  "},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := service.AddPaymentMethod(context.Background(), donor.Actor(), in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Zero(t, dbtest.Count(t, db, &models.PaymentMethod{}, ""))
}

func TestAddPaymentMethod_RollsBackOnInsertFailure(t *testing.T) {
	service, db := newService(t)
	ctx := context.Background()
	donor := dbtest.CreateDonor(t, db, "Ana", "Pierre")

	first, err := service.AddPaymentMethod(ctx, donor.Actor(), AddPaymentMethodInput{Type: models.PaymentMethodMonCash, AccountNumber: "1"})
	require.NoError(t, err)

	dbtest.FailCreatesOn(t, db, "payment_methods", errors.New("insert failed"))
	_, err = service.AddPaymentMethod(ctx, donor.Actor(), AddPaymentMethodInput{
		Type:          models.PaymentMethodNatCash,
		AccountNumber: "2",
		IsDefault:     true,
	})
	assert.ErrorIs(t, err, apperr.ErrStorage)

	got := defaults(t, db, donor.Actor())
	require.Len(t, got, 1)
	assert.Equal(t, first.ID, got[0].ID)
}

func seedDonation(t *testing.T, db *gorm.DB, donor *dbtest.Donor, influencer *dbtest.Influencer, campaign *models.Campaign, amount string, status models.DonationStatus) {
	t.Helper()
	ref := "DON_" + amount + "_" + string(status) + "_" + donor.User.Email
	require.NoError(t, db.Create(&models.Donation{
		DonorID:        donor.Profile.ID,
		InfluencerID:   influencer.Profile.ID,
		CampaignID:     campaign.ID,
		Amount:         decimal.RequireFromString(amount),
		Currency:       models.DefaultCurrency,
		PaymentMethod:  models.PaymentMethodMonCash,
		TransactionRef: ref,
		Status:         status,
	}).Error)
	require.NoError(t, db.Create(&models.Transaction{
		UserID:      donor.User.ID,
		Type:        models.TransactionTypeDonation,
		Amount:      decimal.RequireFromString(amount),
		Currency:    models.DefaultCurrency,
		Status:      models.TransactionStatusFor(status),
		ReferenceID: ref,
	}).Error)
}

func TestGetWallet(t *testing.T) {
	service, db := newService(t)
	ctx := context.Background()

	influencer := dbtest.CreateInfluencer(t, db, "tiboule")
	campaign := dbtest.CreateCampaign(t, db, influencer, "Konbit", "5000")
	ana := dbtest.CreateDonor(t, db, "Ana", "Pierre")
	jean := dbtest.CreateDonor(t, db, "Jean", "Baptiste")

	seedDonation(t, db, ana, influencer, campaign, "100", models.DonationStatusCompleted)
	seedDonation(t, db, ana, influencer, campaign, "50", models.DonationStatusCompleted)
	seedDonation(t, db, ana, influencer, campaign, "999", models.DonationStatusPending)
	seedDonation(t, db, jean, influencer, campaign, "25", models.DonationStatusCompleted)
	seedDonation(t, db, jean, influencer, campaign, "10", models.DonationStatusFailed)

	_, err := service.AddPaymentMethod(ctx, influencer.Actor(), AddPaymentMethodInput{Type: models.PaymentMethodMonCash, AccountNumber: "1"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.PaymentMethod{}).Where("user_id = ?", influencer.User.ID).
		Update("balance", decimal.RequireFromString("42.50")).Error)

	t.Run("donor", func(t *testing.T) {
		view, err := service.GetWallet(ctx, ana.Actor(), 0)
		require.NoError(t, err)

		assert.True(t, view.Wallet.TotalBalance.IsZero())
		assert.True(t, view.Wallet.LedgerTotal.IsZero())
		assert.Equal(t, "HTG", view.Wallet.Currency)
		assert.Empty(t, view.Wallet.PaymentMethods)
		assert.Len(t, view.Transactions, 3)

		stats, ok := view.Stats.(*DonorStats)
		require.True(t, ok)
		assert.Equal(t, int64(2), stats.TotalDonations)
		assert.True(t, decimal.NewFromInt(150).Equal(stats.TotalDonated), stats.TotalDonated.String())
		assert.True(t, decimal.NewFromInt(75).Equal(stats.AvgDonation), stats.AvgDonation.String())
	})

	t.Run("donor transactions respect limit", func(t *testing.T) {
		view, err := service.GetWallet(ctx, ana.Actor(), 2)
		require.NoError(t, err)
		assert.Len(t, view.Transactions, 2)
	})

	t.Run("influencer", func(t *testing.T) {
		view, err := service.GetWallet(ctx, influencer.Actor(), 0)
		require.NoError(t, err)

		assert.True(t, decimal.RequireFromString("42.50").Equal(view.Wallet.TotalBalance))
		assert.True(t, decimal.NewFromInt(175).Equal(view.Wallet.LedgerTotal))
		assert.Len(t, view.Wallet.PaymentMethods, 1)

		stats, ok := view.Stats.(*InfluencerStats)
		require.True(t, ok)
		assert.Equal(t, int64(3), stats.TotalReceived)
		assert.True(t, decimal.NewFromInt(175).Equal(stats.TotalRaised))
		assert.Equal(t, int64(2), stats.UniqueDonors)
	})

	t.Run("donor with no donations", func(t *testing.T) {
		newcomer := dbtest.CreateDonor(t, db, "Rose", "Michel")
		view, err := service.GetWallet(ctx, newcomer.Actor(), 0)
		require.NoError(t, err)

		stats := view.Stats.(*DonorStats)
		assert.Zero(t, stats.TotalDonations)
		assert.True(t, stats.AvgDonation.IsZero())
		assert.Empty(t, view.Transactions)
	})
}

func TestGetWalletClampsLimit(t *testing.T) {
	db := dbtest.New(t)
	service := NewWalletService(db, config.WalletConfig{RecentTransactions: 500}, nil)
	donor := dbtest.CreateDonor(t, db, "Ana", "Pierre")

	rows := make([]models.Transaction, maxRecentTransactions+5)
	for i := range rows {
		rows[i] = models.Transaction{
			UserID:      donor.User.ID,
			Type:        models.TransactionTypeDonation,
			Amount:      decimal.NewFromInt(1),
			Currency:    models.DefaultCurrency,
			Status:      models.TransactionStatusCompleted,
			ReferenceID: fmt.Sprintf("DON_limit_%03d", i),
		}
	}
	require.NoError(t, db.CreateInBatches(rows, 50).Error)

	for _, limit := range []int{0, maxRecentTransactions + 1, 1000000} {
		view, err := service.GetWallet(context.Background(), donor.Actor(), limit)
		require.NoError(t, err)
		assert.Len(t, view.Transactions, maxRecentTransactions, "limit %d", limit)
	}
}
