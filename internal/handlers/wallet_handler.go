package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jakob/backend/internal/api"
	"github.com/jakob/backend/internal/services/wallet"
)

// WalletHandler handles wallet and payment method requests
type WalletHandler struct {
	walletService *wallet.WalletService
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletService *wallet.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

// AddPaymentMethod registers a payment method for the signed-in user
func (h *WalletHandler) AddPaymentMethod(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		api.Error(c, err)
		return
	}

	var req wallet.AddPaymentMethodInput
	if err := api.BindJSON(c, &req); err != nil {
		api.Error(c, err)
		return
	}

	method, err := h.walletService.AddPaymentMethod(c.Request.Context(), actor, req)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusCreated, "Payment method added successfully", method)
}

// ListPaymentMethods lists the signed-in user's payment methods
func (h *WalletHandler) ListPaymentMethods(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		api.Error(c, err)
		return
	}

	methods, err := h.walletService.ListPaymentMethods(c.Request.Context(), actor)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusOK, "", gin.H{"payment_methods": methods})
}

// GetWallet returns the wallet projection. ?limit bounds recent transactions.
func (h *WalletHandler) GetWallet(c *gin.Context) {
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

	view, err := h.walletService.GetWallet(c.Request.Context(), actor, limit)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusOK, "", view)
}
