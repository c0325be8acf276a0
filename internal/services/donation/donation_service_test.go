package donation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/config"
	"github.com/jakob/backend/internal/database/dbtest"
	"github.com/jakob/backend/internal/models"
	"github.com/jakob/backend/internal/services/notification"
)

type fixture struct {
	db         *gorm.DB
	service    *DonationService
	aggregator *Aggregator
	donor      *dbtest.Donor
	influencer *dbtest.Influencer
	campaign   *models.Campaign
}

func setup(t *testing.T, autoSettle bool) *fixture {
	t.Helper()

	db := dbtest.New(t)
	aggregator := NewAggregator(db, nil)
	notifier := notification.NewNotificationService(db, nil)
	service := NewDonationService(db, aggregator, notifier, config.DonationConfig{AutoSettle: autoSettle}, nil)

	influencer := dbtest.CreateInfluencer(t, db, "tiboule")
	return &fixture{
		db:         db,
		service:    service,
		aggregator: aggregator,
		donor:      dbtest.CreateDonor(t, db, "Ana", "Pierre"),
		influencer: influencer,
		campaign:   dbtest.CreateCampaign(t, db, influencer, "Konbit Mizik", "5000"),
	}
}

func (f *fixture) input(amount string) CreateDonationInput {
	return CreateDonationInput{
		CampaignID:    f.campaign.ID,
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: models.PaymentMethodMonCash,
	}
}

func (f *fixture) reload(t *testing.T) (models.Campaign, models.DonorProfile, models.InfluencerProfile) {
	t.Helper()

	var campaign models.Campaign
	var donor models.DonorProfile
	var influencer models.InfluencerProfile
	require.NoError(t, f.db.First(&campaign, "id = ?", f.campaign.ID).Error)
	require.NoError(t, f.db.First(&donor, "id = ?", f.donor.Profile.ID).Error)
	require.NoError(t, f.db.First(&influencer, "id = ?", f.influencer.Profile.ID).Error)
	return campaign, donor, influencer
}

func assertAmount(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func (f *fixture) assertBalances(t *testing.T, raised string, donations int64) {
	t.Helper()

	campaign, donor, influencer := f.reload(t)
	assertAmount(t, raised, campaign.RaisedAmount)
	assertAmount(t, raised, donor.TotalDonated)
	assert.Equal(t, donations, donor.DonationCount)
	assertAmount(t, raised, influencer.TotalRaised)
}

func TestCreateDonation_AutoSettle(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	result, err := f.service.CreateDonation(ctx, f.donor.Actor(), f.input("500"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.TransactionRef, "DON_"))
	assert.Nil(t, result.PaymentURL)
	require.NotNil(t, result.Donation)
	assert.Equal(t, models.DonationStatusCompleted, result.Donation.Status)
	assert.NotNil(t, result.Donation.CompletedAt)
	assert.Equal(t, "Konbit Mizik", result.Donation.CampaignTitle)
	assert.Equal(t, "Ana Pierre", result.Donation.DonorName)
	assert.Equal(t, f.influencer.Profile.ID, result.Donation.InfluencerID)
	assert.Equal(t, models.DefaultCurrency, result.Donation.Currency)

	var transaction models.Transaction
	require.NoError(t, f.db.First(&transaction, "reference_id = ?", result.TransactionRef).Error)
	assert.Equal(t, models.TransactionStatusCompleted, transaction.Status)
	assert.Equal(t, models.TransactionTypeDonation, transaction.Type)
	assert.Equal(t, f.donor.User.ID, transaction.UserID)
	assertAmount(t, "500", transaction.Amount)
	assert.Equal(t, result.Donation.ID.String(), transaction.MetaData["donation_id"])
	assert.Equal(t, f.campaign.ID.String(), transaction.MetaData["campaign_id"])
	assert.Equal(t, "Konbit Mizik", transaction.MetaData["campaign_title"])
	assert.Equal(t, "moncash", transaction.MetaData["payment_method"])

	f.assertBalances(t, "500", 1)

	var notifications []models.Notification
	require.NoError(t, f.db.Where("user_id = ?", f.influencer.User.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationTypeDonation, notifications[0].Type)
	assert.Contains(t, notifications[0].Message, "500")
	assert.Contains(t, notifications[0].Message, "Konbit Mizik")
	assert.Equal(t, int64(0), dbtest.Count(t, f.db, &models.Notification{}, "user_id = ?", f.donor.User.ID))
}

func TestCreateDonation_PendingThenSettle(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	result, err := f.service.CreateDonation(ctx, f.donor.Actor(), f.input("250.75"))
	require.NoError(t, err)
	assert.Equal(t, models.DonationStatusPending, result.Donation.Status)
	assert.Nil(t, result.Donation.CompletedAt)

	var transaction models.Transaction
	require.NoError(t, f.db.First(&transaction, "reference_id = ?", result.TransactionRef).Error)
	assert.Equal(t, models.TransactionStatusPending, transaction.Status)

	f.assertBalances(t, "0", 0)
	assert.Zero(t, dbtest.Count(t, f.db, &models.Notification{}, ""))

	settled, err := f.service.SettleDonation(ctx, result.Donation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DonationStatusCompleted, settled.Status)
	f.assertBalances(t, "250.75", 1)

	t.Run("settling twice is rejected without double counting", func(t *testing.T) {
		_, err := f.service.SettleDonation(ctx, result.Donation.ID)
		assert.ErrorIs(t, err, ErrNotPending)
		assert.ErrorIs(t, err, apperr.ErrConflict)

		_, err = f.service.SettleByReference(ctx, result.TransactionRef)
		assert.ErrorIs(t, err, ErrNotPending)

		f.assertBalances(t, "250.75", 1)
		assert.Equal(t, int64(1), dbtest.Count(t, f.db, &models.Notification{}, ""))
	})

	t.Run("completed donation cannot fail", func(t *testing.T) {
		_, err := f.service.FailDonation(ctx, result.Donation.ID, "late callback")
		assert.ErrorIs(t, err, ErrNotPending)

		var stored models.Donation
		require.NoError(t, f.db.First(&stored, "id = ?", result.Donation.ID).Error)
		assert.Equal(t, models.DonationStatusCompleted, stored.Status)
	})
}

func TestCreateDonation_Validation(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor models.Actor
		input CreateDonationInput
		kind  apperr.Kind
		field string
	}{
		{"zero amount", f.donor.Actor(), f.input("0"), apperr.KindValidation, "amount"},
		{"negative amount", f.donor.Actor(), f.input("-10"), apperr.KindValidation, "amount"},
		{"sub-cent amount", f.donor.Actor(), f.input("10.005"), apperr.KindValidation, "amount"},
		{"amount above column range", f.donor.Actor(), f.input("10000000000000000000"), apperr.KindValidation, "amount"},
		{"amount above maximum", f.donor.Actor(), f.input("10000000000000"), apperr.KindValidation, "amount"},
		{"unknown payment method", f.donor.Actor(), CreateDonationInput{
			CampaignID:    f.campaign.ID,
			Amount:        decimal.NewFromInt(10),
			PaymentMethod: "paypal",
		}, apperr.KindValidation, "payment_method"},
		{"missing campaign id", f.donor.Actor(), CreateDonationInput{
			Amount:        decimal.NewFromInt(10),
			PaymentMethod: models.PaymentMethodNatCash,
		}, apperr.KindValidation, "campaign_id"},
		{"influencer cannot donate", f.influencer.Actor(), f.input("10"), apperr.KindForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateDonation(ctx, tt.actor, tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))

			if tt.field != "" {
				var appErr *apperr.Error
				require.True(t, errors.As(err, &appErr))
				assert.Contains(t, appErr.Fields, tt.field)
			}
		})
	}

	assert.Zero(t, dbtest.Count(t, f.db, &models.Donation{}, ""))
	assert.Zero(t, dbtest.Count(t, f.db, &models.Transaction{}, ""))
	f.assertBalances(t, "0", 0)
}

func TestCreateDonationInput_MaxAmount(t *testing.T) {
	in := CreateDonationInput{
		CampaignID:    uuid.New(),
		Amount:        models.MaxAmount,
		PaymentMethod: models.PaymentMethodCreditCard,
	}
	require.NoError(t, in.Validate())

	in.Amount = models.MaxAmount.Add(decimal.RequireFromString("0.01"))
	err := in.Validate()
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apperr.HTTPStatus(err))
	assert.Equal(t, "amount cannot exceed 9,999,999,999,999.99", appErr.Fields["amount"])
}

func TestCreateDonation_CampaignNotOpen(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	ended := dbtest.CreateCampaign(t, f.db, f.influencer, "Lapsed", "1000",
		dbtest.WithEndDate(time.Now().Add(-time.Hour)))
	draft := dbtest.CreateCampaign(t, f.db, f.influencer, "Draft", "1000",
		dbtest.WithStatus(models.CampaignStatusDraft))

	t.Run("end date passed while still active", func(t *testing.T) {
		in := f.input("100")
		in.CampaignID = ended.ID
		_, err := f.service.CreateDonation(ctx, f.donor.Actor(), in)
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.Contains(t, err.Error(), "campaign has ended")
	})

	t.Run("not active", func(t *testing.T) {
		in := f.input("100")
		in.CampaignID = draft.ID
		_, err := f.service.CreateDonation(ctx, f.donor.Actor(), in)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("missing", func(t *testing.T) {
		in := f.input("100")
		in.CampaignID = uuid.New()
		_, err := f.service.CreateDonation(ctx, f.donor.Actor(), in)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	assert.Zero(t, dbtest.Count(t, f.db, &models.Donation{}, ""))
	assert.Zero(t, dbtest.Count(t, f.db, &models.Transaction{}, ""))
}

func TestCreateDonation_ConcurrentSettlements(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	amounts := []string{"300", "700"}
	var wg sync.WaitGroup
	errs := make(chan error, len(amounts))
	for _, amount := range amounts {
		wg.Add(1)
		go func(amount string) {
			defer wg.Done()
			_, err := f.service.CreateDonation(ctx, f.donor.Actor(), f.input(amount))
			errs <- err
		}(amount)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	f.assertBalances(t, "1000", 2)
}

func TestCreateDonation_ManyConcurrentDonors(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	const donors = 10
	var wg sync.WaitGroup
	expected := decimal.Zero
	for i := 0; i < donors; i++ {
		donor := dbtest.CreateDonor(t, f.db, fmt.Sprintf("Donor%d", i), "Test")
		amount := decimal.NewFromInt(int64(10 * (i + 1))).Add(decimal.RequireFromString("0.25"))
		expected = expected.Add(amount)

		wg.Add(1)
		go func(actor models.Actor, amount decimal.Decimal) {
			defer wg.Done()
			_, err := f.service.CreateDonation(ctx, actor, CreateDonationInput{
				CampaignID:    f.campaign.ID,
				Amount:        amount,
				PaymentMethod: models.PaymentMethodNatCash,
			})
			assert.NoError(t, err)
		}(donor.Actor(), amount)
	}
	wg.Wait()

	campaign, _, influencer := f.reload(t)
	assert.True(t, expected.Equal(campaign.RaisedAmount), "expected %s, got %s", expected, campaign.RaisedAmount)
	assert.True(t, expected.Equal(influencer.TotalRaised))

	drifts, err := f.aggregator.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestCreateDonation_RollsBackWhenNotificationFails(t *testing.T) {
	f := setup(t, true)
	dbtest.FailCreatesOn(t, f.db, "notifications", errors.New("disk full"))

	_, err := f.service.CreateDonation(context.Background(), f.donor.Actor(), f.input("500"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))

	assert.Zero(t, dbtest.Count(t, f.db, &models.Donation{}, ""))
	assert.Zero(t, dbtest.Count(t, f.db, &models.Transaction{}, ""))
	assert.Zero(t, dbtest.Count(t, f.db, &models.Notification{}, ""))
	f.assertBalances(t, "0", 0)
}

func TestSettleDonation_RollsBackWhenNotificationFails(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	result, err := f.service.CreateDonation(ctx, f.donor.Actor(), f.input("120"))
	require.NoError(t, err)

	dbtest.FailCreatesOn(t, f.db, "notifications", errors.New("connection reset"))
	_, err = f.service.SettleDonation(ctx, result.Donation.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrStorage)

	var donation models.Donation
	require.NoError(t, f.db.First(&donation, "id = ?", result.Donation.ID).Error)
	assert.Equal(t, models.DonationStatusPending, donation.Status)
	assert.Nil(t, donation.CompletedAt)

	var transaction models.Transaction
	require.NoError(t, f.db.First(&transaction, "reference_id = ?", result.TransactionRef).Error)
	assert.Equal(t, models.TransactionStatusPending, transaction.Status)

	f.assertBalances(t, "0", 0)
}

func TestFailDonation(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	result, err := f.service.CreateDonation(ctx, f.donor.Actor(), f.input("80"))
	require.NoError(t, err)

	failed, err := f.service.FailByReference(ctx, result.TransactionRef, "payment rejected")
	require.NoError(t, err)
	assert.Equal(t, models.DonationStatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	assert.Equal(t, "payment rejected", *failed.FailureReason)

	var transaction models.Transaction
	require.NoError(t, f.db.First(&transaction, "reference_id = ?", result.TransactionRef).Error)
	assert.Equal(t, models.TransactionStatusFailed, transaction.Status)

	_, err = f.service.SettleDonation(ctx, result.Donation.ID)
	assert.ErrorIs(t, err, ErrNotPending)
	_, err = f.service.FailDonation(ctx, result.Donation.ID, "again")
	assert.ErrorIs(t, err, ErrNotPending)

	f.assertBalances(t, "0", 0)
	assert.Zero(t, dbtest.Count(t, f.db, &models.Notification{}, ""))
}

func TestSettleByReference_Unknown(t *testing.T) {
	f := setup(t, false)

	_, err := f.service.SettleByReference(context.Background(), "DON_20250101000000_missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.service.SettleDonation(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRefund(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	result, err := f.service.CreateDonation(ctx, f.donor.Actor(), f.input("40"))
	require.NoError(t, err)

	_, err = f.service.Refund(ctx, result.Donation.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NotErrorIs(t, err, ErrRefundUnsupported)

	_, err = f.service.SettleDonation(ctx, result.Donation.ID)
	require.NoError(t, err)

	_, err = f.service.Refund(ctx, result.Donation.ID)
	assert.ErrorIs(t, err, ErrRefundUnsupported)
	f.assertBalances(t, "40", 1)
}

func TestExpirePending(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	stale, err := f.service.CreateDonation(ctx, f.donor.Actor(), f.input("15"))
	require.NoError(t, err)
	settled, err := f.service.CreateDonation(ctx, f.donor.Actor(), f.input("25"))
	require.NoError(t, err)
	_, err = f.service.SettleDonation(ctx, settled.Donation.ID)
	require.NoError(t, err)

	expired, err := f.service.ExpirePending(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	var donation models.Donation
	require.NoError(t, f.db.First(&donation, "id = ?", stale.Donation.ID).Error)
	assert.Equal(t, models.DonationStatusFailed, donation.Status)
	f.assertBalances(t, "25", 1)

	expired, err = f.service.ExpirePending(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestGetAndListDonations(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	public, err := f.service.CreateDonation(ctx, f.donor.Actor(), f.input("10"))
	require.NoError(t, err)

	in := f.input("20")
	in.IsAnonymous = true
	hidden, err := f.service.CreateDonation(ctx, f.donor.Actor(), in)
	require.NoError(t, err)
	assert.Equal(t, "Ana Pierre", hidden.Donation.DonorName)

	t.Run("influencer sees anonymous donor hidden", func(t *testing.T) {
		detail, err := f.service.GetDonation(ctx, f.influencer.Actor(), hidden.Donation.ID)
		require.NoError(t, err)
		assert.Equal(t, "Anonymous", detail.DonorName)

		detail, err = f.service.GetDonation(ctx, f.influencer.Actor(), public.Donation.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana Pierre", detail.DonorName)
	})

	t.Run("strangers cannot see donations", func(t *testing.T) {
		stranger := dbtest.CreateDonor(t, f.db, "Jean", "Baptiste")
		_, err := f.service.GetDonation(ctx, stranger.Actor(), public.Donation.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		list, err := f.service.ListDonations(ctx, stranger.Actor(), 0)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("donor lists own donations", func(t *testing.T) {
		list, err := f.service.ListDonations(ctx, f.donor.Actor(), 0)
		require.NoError(t, err)
		require.Len(t, list, 2)
		for _, d := range list {
			assert.Equal(t, "Ana Pierre", d.DonorName)
			assert.Equal(t, "Konbit Mizik", d.CampaignTitle)
		}
	})

	t.Run("influencer lists received donations", func(t *testing.T) {
		list, err := f.service.ListDonations(ctx, f.influencer.Actor(), 1)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}
