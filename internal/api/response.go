// Package api holds the JSON envelope every endpoint answers with.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jakob/backend/internal/apperr"
)

const debugKey = "api.debug"

// Response is the standard envelope
type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Debug   string            `json:"debug,omitempty"`
}

// DebugErrors exposes internal error causes in responses when enabled.
// Only development servers turn it on.
func DebugErrors(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(debugKey, enabled)
		c.Next()
	}
}

// Success writes a successful envelope
func Success(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error writes err as a failed envelope and aborts the chain. Unclassified
// and storage errors are reported as a generic server error.
func Error(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	resp := Response{Success: false}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindStorage {
		resp.Message = appErr.Message
		resp.Errors = appErr.Fields
	} else {
		resp.Message = "Internal server error"
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if c.GetBool(debugKey) {
			resp.Debug = err.Error()
		}
	}

	c.AbortWithStatusJSON(status, resp)
}

// BindJSON decodes the request body into v
func BindJSON(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}
