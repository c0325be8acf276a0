package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakob/backend/internal/database/dbtest"
	"github.com/jakob/backend/internal/models"
)

func TestDonationMessage(t *testing.T) {
	msg := DonationMessage(decimal.RequireFromString("1234.5"), "HTG", "Konbit Mizik")
	assert.Equal(t, `You received 1,234.50 HTG for your campaign "Konbit Mizik"`, msg)

	// beyond float64 precision
	msg = DonationMessage(decimal.RequireFromString("9007199254740993.01"), "HTG", "C")
	assert.Equal(t, `You received 9,007,199,254,740,993.01 HTG for your campaign "C"`, msg)
}

func TestDonationReceived(t *testing.T) {
	db := dbtest.New(t)
	service := NewNotificationService(db, nil)

	recipient := uuid.New()
	donation := &models.Donation{
		CampaignID: uuid.New(),
		Amount:     decimal.NewFromInt(500),
		Currency:   models.DefaultCurrency,
	}

	n, err := service.DonationReceived(db, recipient, donation, "Lakou Lekti")
	require.NoError(t, err)

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", n.ID).Error)
	assert.Equal(t, recipient, stored.UserID)
	assert.Equal(t, models.NotificationTypeDonation, stored.Type)
	assert.Equal(t, "New Donation!", stored.Title)
	assert.Equal(t, `You received 500.00 HTG for your campaign "Lakou Lekti"`, stored.Message)
	assert.Equal(t, "volunteer_activism", stored.Icon)
	assert.Equal(t, "/pages/main/campaign-details.html?id="+donation.CampaignID.String(), stored.Link)
	assert.False(t, stored.IsRead)
}

func seedInbox(t *testing.T, service *NotificationService, userID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := service.DonationReceived(service.db, userID, &models.Donation{
			CampaignID: uuid.New(),
			Amount:     decimal.NewFromInt(int64(100 * (i + 1))),
			Currency:   models.DefaultCurrency,
		}, "Campaign")
		require.NoError(t, err)
	}
}

func TestListAndMarkRead(t *testing.T) {
	db := dbtest.New(t)
	service := NewNotificationService(db, nil)
	ctx := context.Background()

	me := models.Actor{UserID: uuid.New(), Role: models.RoleInfluencer}
	other := models.Actor{UserID: uuid.New(), Role: models.RoleInfluencer}
	seedInbox(t, service, me.UserID, 3)
	seedInbox(t, service, other.UserID, 2)

	inbox, err := service.List(ctx, me, 2, false)
	require.NoError(t, err)
	assert.Len(t, inbox.Notifications, 2)
	assert.Equal(t, int64(3), inbox.UnreadCount)

	first := inbox.Notifications[0].ID
	n, err := service.MarkRead(ctx, me, []uuid.UUID{first})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	unread, err := service.List(ctx, me, 0, true)
	require.NoError(t, err)
	assert.Len(t, unread.Notifications, 2)
	assert.Equal(t, int64(2), unread.UnreadCount)
	for _, item := range unread.Notifications {
		assert.NotEqual(t, first, item.ID)
	}

	t.Run("cannot mark someone else's notification", func(t *testing.T) {
		n, err := service.MarkRead(ctx, other, []uuid.UUID{unread.Notifications[0].ID})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("empty id list marks the whole inbox", func(t *testing.T) {
		n, err := service.MarkRead(ctx, me, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		inbox, err := service.List(ctx, me, 0, false)
		require.NoError(t, err)
		assert.Zero(t, inbox.UnreadCount)
		assert.Len(t, inbox.Notifications, 3)

		theirs, err := service.List(ctx, other, 0, false)
		require.NoError(t, err)
		assert.Equal(t, int64(2), theirs.UnreadCount)
	})
}
