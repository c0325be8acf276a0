package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jakob/backend/internal/api"
	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/services/notification"
)

// NotificationHandler serves the notification inbox
type NotificationHandler struct {
	notifications *notification.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications *notification.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// GetNotifications lists the inbox. ?unread_only=true hides read entries.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
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
	unreadOnly := false
	if raw := c.Query("unread_only"); raw != "" {
		if unreadOnly, err = strconv.ParseBool(raw); err != nil {
			api.Error(c, apperr.ValidationFields("invalid query parameter", map[string]string{"unread_only": "must be true or false"}))
			return
		}
	}

	inbox, err := h.notifications.List(c.Request.Context(), actor, limit, unreadOnly)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusOK, "", inbox)
}

// MarkReadRequest names the notifications to mark. An empty list marks all.
type MarkReadRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// MarkRead marks notifications as read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		api.Error(c, err)
		return
	}

	var req MarkReadRequest
	if c.Request.ContentLength != 0 {
		if err := api.BindJSON(c, &req); err != nil {
			api.Error(c, err)
			return
		}
	}

	updated, err := h.notifications.MarkRead(c.Request.Context(), actor, req.IDs)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusOK, "", gin.H{"updated": updated})
}
