package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/jakob/backend/internal/api"
	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/middleware"
	"github.com/jakob/backend/internal/models"
	"github.com/jakob/backend/internal/services/campaign"
)

// CampaignHandler handles campaign endpoints
type CampaignHandler struct {
	campaigns *campaign.CampaignService
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaigns *campaign.CampaignService) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns}
}

// CreateCampaignRequest is the create-campaign body. Dates are accepted in
// the formats campaign.ParseDate understands.
type CreateCampaignRequest struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Story       *string                 `json:"story"`
	GoalAmount  decimal.Decimal         `json:"goal_amount"`
	Currency    string                  `json:"currency"`
	Category    models.CampaignCategory `json:"category"`
	ImageURL    *string                 `json:"image_url"`
	VideoURL    *string                 `json:"video_url"`
	StartDate   string                  `json:"start_date"`
	EndDate     string                  `json:"end_date"`
	Status      models.CampaignStatus   `json:"status"`
}

func (r CreateCampaignRequest) input() (campaign.CreateCampaignInput, error) {
	in := campaign.CreateCampaignInput{
		Title:       r.Title,
		Description: r.Description,
		Story:       r.Story,
		GoalAmount:  r.GoalAmount,
		Currency:    r.Currency,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
		VideoURL:    r.VideoURL,
		Status:      r.Status,
	}

	fields := map[string]string{}
	if s := strings.TrimSpace(r.StartDate); s != "" {
		start, err := campaign.ParseDate(s)
		if err != nil {
			fields["start_date"] = "invalid date"
		} else {
			in.StartDate = &start
		}
	}
	if s := strings.TrimSpace(r.EndDate); s == "" {
		fields["end_date"] = "end date is required"
	} else if end, err := campaign.ParseDate(s); err != nil {
		fields["end_date"] = "invalid date"
	} else {
		in.EndDate = end
	}

	if len(fields) > 0 {
		return in, apperr.ValidationFields("Invalid campaign", fields)
	}
	return in, nil
}

// CreateCampaign creates a campaign owned by the signed-in influencer
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		api.Error(c, err)
		return
	}

	var req CreateCampaignRequest
	if err := api.BindJSON(c, &req); err != nil {
		api.Error(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		api.Error(c, err)
		return
	}

	view, err := h.campaigns.CreateCampaign(c.Request.Context(), actor, in)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusCreated, "Campaign created successfully", view)
}

// UpdateCampaign applies a partial update. The campaign is named by
// campaign_id in the body or the query string.
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		api.Error(c, err)
		return
	}

	var fields map[string]interface{}
	decoder := json.NewDecoder(c.Request.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&fields); err != nil {
		api.Error(c, apperr.Validation("invalid request body"))
		return
	}

	rawID := c.Query("campaign_id")
	if v, ok := fields["campaign_id"].(string); ok && v != "" {
		rawID = v
	}
	delete(fields, "campaign_id")
	if rawID == "" {
		api.Error(c, apperr.ValidationFields("Campaign ID is required", map[string]string{"campaign_id": "required"}))
		return
	}
	campaignID, err := parseID(rawID, "campaign_id")
	if err != nil {
		api.Error(c, err)
		return
	}

	view, err := h.campaigns.UpdateCampaign(c.Request.Context(), actor, campaignID, fields)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusOK, "Campaign updated successfully", view)
}

// GetCampaign returns one campaign. Drafts are only visible to their owner.
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	campaignID, err := parseID(c.Param("id"), "id")
	if err != nil {
		api.Error(c, err)
		return
	}

	var viewer *models.Actor
	if actor, ok := middleware.CurrentActor(c); ok {
		viewer = &actor
	}

	view, err := h.campaigns.GetCampaign(c.Request.Context(), viewer, campaignID)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusOK, "", view)
}
