// Package routes mounts the HTTP surface onto a gin engine.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/jakob/backend/internal/api"
	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/handlers"
	"github.com/jakob/backend/internal/middleware"
	"github.com/jakob/backend/internal/models"
)

// Handlers groups every endpoint handler the router mounts
type Handlers struct {
	Account      *handlers.AccountHandler
	Campaign     *handlers.CampaignHandler
	Donation     *handlers.DonationHandler
	Wallet       *handlers.WalletHandler
	Notification *handlers.NotificationHandler
	Webhook      *handlers.WebhookHandler
	Health       *handlers.HealthHandler
}

// Setup registers all routes. Unknown paths get 404 and known paths called
// with the wrong method get 405, both in the standard envelope.
func Setup(router *gin.Engine, h Handlers, sessions *middleware.SessionAuth, limiter *middleware.RateLimiter) {
	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) {
		api.Error(c, apperr.NotFound("Endpoint not found"))
	})
	router.NoMethod(func(c *gin.Context) {
		api.Error(c, apperr.MethodNotAllowed("Method not allowed"))
	})

	router.GET("/health", h.Health.Health)

	router.POST("/webhooks/payments", h.Webhook.PaymentCallback)

	public := router.Group("/api")
	{
		auth := public.Group("")
		auth.Use(limiter.AuthRateLimiterMiddleware())
		auth.POST("/register", h.Account.Register)
		auth.POST("/login", h.Account.Login)

		public.POST("/logout", h.Account.Logout)
		public.GET("/campaigns/:id", sessions.OptionalSession(), h.Campaign.GetCampaign)
	}

	private := router.Group("/api")
	private.Use(sessions.RequireSession())
	{
		private.GET("/me", h.Account.Me)
		private.POST("/update-profile", h.Account.UpdateProfile)
		private.PUT("/update-profile", h.Account.UpdateProfile)

		influencer := private.Group("")
		influencer.Use(middleware.RequireRole(models.RoleInfluencer))
		influencer.POST("/create-campaign", h.Campaign.CreateCampaign)
		influencer.POST("/update-campaign", h.Campaign.UpdateCampaign)
		influencer.PUT("/update-campaign", h.Campaign.UpdateCampaign)

		private.POST("/create-donation", middleware.RequireRole(models.RoleDonor), h.Donation.CreateDonation)
		private.GET("/donations", h.Donation.ListDonations)
		private.GET("/donations/:id", h.Donation.GetDonation)

		private.POST("/add-payment-method", h.Wallet.AddPaymentMethod)
		private.GET("/payment-methods", h.Wallet.ListPaymentMethods)
		private.GET("/get-wallet", h.Wallet.GetWallet)

		private.GET("/get-notifications", h.Notification.GetNotifications)
		private.POST("/notifications/read", h.Notification.MarkRead)
	}
}
