package campaign

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/logger"
	"github.com/jakob/backend/internal/models"
)

const maxTitleLength = 255

// CampaignService manages campaigns owned by influencers
type CampaignService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewCampaignService creates a new campaign service
func NewCampaignService(db *gorm.DB, log *zap.Logger) *CampaignService {
	return &CampaignService{db: db, log: logger.OrNop(log)}
}

// CreateCampaignInput holds the fields of a new campaign
type CreateCampaignInput struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Story       *string                 `json:"story"`
	GoalAmount  decimal.Decimal         `json:"goal_amount"`
	Currency    string                  `json:"currency"`
	Category    models.CampaignCategory `json:"category"`
	ImageURL    *string                 `json:"image_url"`
	VideoURL    *string                 `json:"video_url"`
	StartDate   *time.Time              `json:"start_date"`
	EndDate     time.Time               `json:"end_date"`
	Status      models.CampaignStatus   `json:"status"`
}

func (in *CreateCampaignInput) normalize(now time.Time) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = models.DefaultCurrency
	}
	if in.Status == "" {
		in.Status = models.CampaignStatusDraft
	}
	if in.StartDate == nil {
		in.StartDate = &now
	}

	fields := map[string]string{}
	switch {
	case in.Title == "":
		fields["title"] = "title is required"
	case len(in.Title) > maxTitleLength:
		fields["title"] = "title is too long"
	}
	if in.Description == "" {
		fields["description"] = "description is required"
	}
	if !in.GoalAmount.IsPositive() {
		fields["goal_amount"] = "goal amount must be greater than 0"
	} else if in.GoalAmount.GreaterThan(models.MaxAmount) {
		fields["goal_amount"] = "goal amount is too large"
	}
	if in.Currency != models.DefaultCurrency {
		fields["currency"] = "only " + models.DefaultCurrency + " is supported"
	}
	if !in.Category.Valid() {
		fields["category"] = "invalid category"
	}
	if in.EndDate.IsZero() {
		fields["end_date"] = "end date is required"
	} else if !in.EndDate.After(now) {
		fields["end_date"] = "end date must be in the future"
	} else if !in.EndDate.After(*in.StartDate) {
		fields["end_date"] = "end date must be after start date"
	}
	if in.Status != models.CampaignStatusDraft && in.Status != models.CampaignStatusActive {
		fields["status"] = "status must be draft or active"
	}

	if len(fields) > 0 {
		return apperr.ValidationFields("invalid campaign", fields)
	}
	return nil
}

// CreateCampaign creates a campaign for the acting influencer and bumps their
// campaign count in the same transaction
func (s *CampaignService) CreateCampaign(ctx context.Context, actor models.Actor, in CreateCampaignInput) (*CampaignView, error) {
	if !actor.IsInfluencer() {
		return nil, apperr.Forbidden("only influencers can create campaigns")
	}
	now := time.Now().UTC()
	if err := in.normalize(now); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	profile, err := influencerProfile(db, actor)
	if err != nil {
		return nil, err
	}

	campaign := models.Campaign{
		InfluencerID: profile.ID,
		Title:        in.Title,
		Description:  in.Description,
		Story:        in.Story,
		GoalAmount:   in.GoalAmount.Round(2),
		RaisedAmount: decimal.Zero,
		Currency:     in.Currency,
		Category:     in.Category,
		ImageURL:     in.ImageURL,
		VideoURL:     in.VideoURL,
		StartDate:    in.StartDate.UTC(),
		EndDate:      in.EndDate.UTC(),
		Status:       in.Status,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&campaign).Error; err != nil {
			return apperr.Storage("could not create campaign", err)
		}

		result := tx.Model(&models.InfluencerProfile{}).
			Where("id = ?", profile.ID).
			Update("total_campaigns", gorm.Expr("total_campaigns + ?", 1))
		if result.Error != nil {
			return apperr.Storage("could not update campaign count", result.Error)
		}
		if result.RowsAffected != 1 {
			return apperr.Storage("could not update campaign count", errors.New("influencer profile vanished"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("campaign created",
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("influencer_id", profile.ID.String()),
		zap.String("status", string(campaign.Status)))

	return s.GetCampaign(ctx, &actor, campaign.ID)
}

// UpdateCampaign applies the allow-listed fields to a campaign owned by the
// acting influencer. Unknown fields are ignored. Changing the goal does not
// re-check it against the amount already raised.
func (s *CampaignService) UpdateCampaign(ctx context.Context, actor models.Actor, campaignID uuid.UUID, fields map[string]interface{}) (*CampaignView, error) {
	if !actor.IsInfluencer() {
		return nil, apperr.Forbidden("only influencers can update campaigns")
	}

	updates, err := parseUpdates(fields)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign models.Campaign
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&campaign, "id = ?", campaignID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("campaign not found")
			}
			return apperr.Storage("could not load campaign", err)
		}

		profile, err := influencerProfile(tx, actor)
		if err != nil {
			return err
		}
		if campaign.InfluencerID != profile.ID {
			return apperr.Forbidden("you do not own this campaign")
		}

		if err := checkDates(&campaign, updates); err != nil {
			return err
		}

		if err := tx.Model(&campaign).Updates(updates).Error; err != nil {
			return apperr.Storage("could not update campaign", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("campaign updated",
		zap.String("campaign_id", campaignID.String()),
		zap.Int("fields", len(updates)))

	return s.GetCampaign(ctx, &actor, campaignID)
}

// CloseLapsedCampaigns marks active campaigns whose end date has passed as
// completed and returns how many were closed
func (s *CampaignService) CloseLapsedCampaigns(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("status = ? AND end_date < ?", models.CampaignStatusActive, now.UTC()).
		Update("status", models.CampaignStatusCompleted)
	if result.Error != nil {
		return 0, apperr.Storage("could not close lapsed campaigns", result.Error)
	}
	if result.RowsAffected > 0 {
		s.log.Info("closed lapsed campaigns", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

func influencerProfile(db *gorm.DB, actor models.Actor) (*models.InfluencerProfile, error) {
	var profile models.InfluencerProfile
	if err := db.Where("user_id = ?", actor.UserID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("influencer profile not found")
		}
		return nil, apperr.Storage("could not load influencer profile", err)
	}
	return &profile, nil
}

// checkDates keeps end_date after start_date once the update is applied
func checkDates(campaign *models.Campaign, updates map[string]interface{}) error {
	start, end := campaign.StartDate, campaign.EndDate
	if v, ok := updates["start_date"].(time.Time); ok {
		start = v
	}
	if v, ok := updates["end_date"].(time.Time); ok {
		end = v
	}
	if !end.After(start) {
		return apperr.ValidationFields("invalid campaign", map[string]string{
			"end_date": "end date must be after start date",
		})
	}
	return nil
}
