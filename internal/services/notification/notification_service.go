package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/logger"
	"github.com/jakob/backend/internal/models"
	"github.com/jakob/backend/internal/utils"
)

const (
	donationTitle = "New Donation!"
	donationIcon  = "volunteer_activism"

	defaultListLimit = 50
	maxListLimit     = 100
)

// CampaignLink is the frontend page showing a campaign
func CampaignLink(campaignID uuid.UUID) string {
	return "/pages/main/campaign-details.html?id=" + campaignID.String()
}

// DonationMessage renders the inbox message for a settled donation
func DonationMessage(amount decimal.Decimal, currency, campaignTitle string) string {
	return fmt.Sprintf("You received %s for your campaign \"%s\"", utils.FormatCurrency(amount, currency), campaignTitle)
}

// NotificationService writes and reads user inbox entries
type NotificationService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *gorm.DB, log *zap.Logger) *NotificationService {
	return &NotificationService{db: db, log: logger.OrNop(log)}
}

// DonationReceived inserts the notification for a settled donation using the
// caller's transaction, so it commits or rolls back with the settlement.
func (s *NotificationService) DonationReceived(tx *gorm.DB, recipientID uuid.UUID, donation *models.Donation, campaignTitle string) (*models.Notification, error) {
	notification := models.Notification{
		UserID:  recipientID,
		Type:    models.NotificationTypeDonation,
		Title:   donationTitle,
		Message: DonationMessage(donation.Amount, donation.Currency, campaignTitle),
		Icon:    donationIcon,
		Link:    CampaignLink(donation.CampaignID),
	}

	if err := tx.Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("error creating notification: %w", err)
	}
	return &notification, nil
}

// Inbox is a page of a user's notifications
type Inbox struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unread_count"`
}

// List returns the actor's newest notifications and the number still unread
func (s *NotificationService) List(ctx context.Context, actor models.Actor, limit int, unreadOnly bool) (*Inbox, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	db := s.db.WithContext(ctx)
	query := db.Where("user_id = ?", actor.UserID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	inbox := Inbox{Notifications: []models.Notification{}}
	if err := query.Order("created_at DESC").Limit(limit).Find(&inbox.Notifications).Error; err != nil {
		return nil, apperr.Storage("could not load notifications", err)
	}

	if err := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.UserID, false).
		Count(&inbox.UnreadCount).Error; err != nil {
		return nil, apperr.Storage("could not count notifications", err)
	}

	return &inbox, nil
}

// MarkRead flags the given notifications as read. An empty ids list marks the
// whole inbox. Rows belonging to other users are never touched.
func (s *NotificationService) MarkRead(ctx context.Context, actor models.Actor, ids []uuid.UUID) (int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.UserID, false)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	result := query.Updates(map[string]interface{}{
		"is_read": true,
		"read_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return 0, apperr.Storage("could not update notifications", result.Error)
	}

	s.log.Debug("notifications marked read",
		zap.String("user_id", actor.UserID.String()),
		zap.Int64("count", result.RowsAffected))
	return result.RowsAffected, nil
}
