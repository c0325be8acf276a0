package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jakob/backend/internal/api"
	"github.com/jakob/backend/internal/services/donation"
)

// DonationHandler handles donation endpoints
type DonationHandler struct {
	donations *donation.DonationService
}

// NewDonationHandler creates a new donation handler
func NewDonationHandler(donations *donation.DonationService) *DonationHandler {
	return &DonationHandler{donations: donations}
}

// CreateDonation records a donation from the signed-in donor
func (h *DonationHandler) CreateDonation(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		api.Error(c, err)
		return
	}

	var req donation.CreateDonationInput
	if err := api.BindJSON(c, &req); err != nil {
		api.Error(c, err)
		return
	}

	result, err := h.donations.CreateDonation(c.Request.Context(), actor, req)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusCreated, "Donation created successfully", result)
}

// ListDonations lists donations made or received by the signed-in user
func (h *DonationHandler) ListDonations(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		api.Error(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		api.Error(c, err)
		return
	}

	donations, err := h.donations.ListDonations(c.Request.Context(), actor, limit)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusOK, "", gin.H{"donations": donations})
}

// GetDonation returns one donation visible to the signed-in user
func (h *DonationHandler) GetDonation(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		api.Error(c, err)
		return
	}
	donationID, err := parseID(c.Param("id"), "id")
	if err != nil {
		api.Error(c, err)
		return
	}

	detail, err := h.donations.GetDonation(c.Request.Context(), actor, donationID)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusOK, "", detail)
}
