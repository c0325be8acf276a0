package campaign

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/models"
)

// CampaignView is a campaign with its owner and computed progress
type CampaignView struct {
	models.Campaign
	Username           string          `json:"username"`
	DisplayName        string          `json:"display_name"`
	AvatarURL          *string         `json:"avatar_url"`
	Verified           bool            `json:"verified"`
	OwnerUserID        uuid.UUID       `json:"-"`
	ProgressPercentage decimal.Decimal `json:"progress_percentage"`
	DaysRemaining      int             `json:"days_remaining"`
}

// GetCampaign returns a campaign with progress figures. Drafts are visible
// only to their owner; viewer may be nil for anonymous requests.
func (s *CampaignService) GetCampaign(ctx context.Context, viewer *models.Actor, campaignID uuid.UUID) (*CampaignView, error) {
	var views []CampaignView
	err := s.db.WithContext(ctx).Table("campaigns AS c").
		Select(`c.*, ip.username AS username, ip.display_name AS display_name,
			ip.avatar_url AS avatar_url, ip.verified AS verified, ip.user_id AS owner_user_id`).
		Joins("JOIN influencer_profiles ip ON ip.id = c.influencer_id").
		Where("c.id = ?", campaignID).
		Limit(1).
		Scan(&views).Error
	if err != nil {
		return nil, apperr.Storage("could not load campaign", err)
	}
	if len(views) == 0 {
		return nil, apperr.NotFound("campaign not found")
	}

	view := views[0]
	if view.Status == models.CampaignStatusDraft && (viewer == nil || viewer.UserID != view.OwnerUserID) {
		return nil, apperr.NotFound("campaign not found")
	}

	now := time.Now().UTC()
	view.ProgressPercentage = view.Campaign.ProgressPercentage()
	view.DaysRemaining = view.Campaign.DaysRemaining(now)
	return &view, nil
}
