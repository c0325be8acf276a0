package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jakob/backend/internal/api"
	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/jobs"
	"github.com/jakob/backend/internal/logger"
	"github.com/jakob/backend/internal/utils"
)

const (
	SignatureHeader     = "X-Signature"
	maxWebhookBodyBytes = 64 << 10
)

// WebhookHandler receives payment provider callbacks
type WebhookHandler struct {
	queue  jobs.Enqueuer
	secret string
	log    *zap.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(queue jobs.Enqueuer, secret string, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		queue:  queue,
		secret: secret,
		log:    logger.OrNop(log).Named("webhook"),
	}
}

// PaymentCallback verifies the signature over the raw body and queues the
// settlement. Processing happens in the worker; the provider gets 202.
func (h *WebhookHandler) PaymentCallback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		api.Error(c, apperr.Validation("could not read request body"))
		return
	}

	if !utils.VerifyHMAC(body, c.GetHeader(SignatureHeader), h.secret) {
		h.log.Warn("rejected payment callback with bad signature", zap.String("client_ip", c.ClientIP()))
		api.Error(c, apperr.Unauthenticated("Invalid signature"))
		return
	}

	var payload jobs.SettlementPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		api.Error(c, apperr.Validation("invalid request body"))
		return
	}

	jobID, err := jobs.EnqueueSettlement(c.Request.Context(), h.queue, payload)
	if err != nil {
		api.Error(c, err)
		return
	}

	h.log.Info("payment callback queued",
		zap.String("job_id", jobID),
		zap.String("reference", payload.Reference),
		zap.String("status", payload.Status))
	api.Success(c, http.StatusAccepted, "Callback accepted", gin.H{"job_id": jobID})
}
