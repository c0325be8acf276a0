package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jakob/backend/internal/api"
	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/logger"
	"github.com/jakob/backend/internal/middleware"
	"github.com/jakob/backend/internal/models"
	"github.com/jakob/backend/internal/services/account"
)

// AccountHandler handles registration, sessions and profiles
type AccountHandler struct {
	accounts *account.AccountService
	sessions *middleware.SessionAuth
	log      *zap.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts *account.AccountService, sessions *middleware.SessionAuth, log *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		sessions: sessions,
		log:      logger.OrNop(log),
	}
}

// LoginRequest accepts an email or phone number as the identifier
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

func (r LoginRequest) identifier() string {
	for _, v := range []string{r.Identifier, r.Email, r.Phone} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type sessionResponse struct {
	*account.Account
	ExpiresAt time.Time `json:"expires_at"`
}

// Register creates an account and starts a session
func (h *AccountHandler) Register(c *gin.Context) {
	var req account.RegisterInput
	if err := api.BindJSON(c, &req); err != nil {
		api.Error(c, err)
		return
	}

	acct, err := h.accounts.Register(c.Request.Context(), req)
	if err != nil {
		api.Error(c, err)
		return
	}

	_, expiresAt, err := h.sessions.IssueSession(c, acct.Actor(), false)
	if err != nil {
		api.Error(c, apperr.Storage("failed to start session", err))
		return
	}

	api.Success(c, http.StatusCreated, "Registration successful", sessionResponse{Account: acct, ExpiresAt: expiresAt})
}

// Login verifies credentials and starts a session
func (h *AccountHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := api.BindJSON(c, &req); err != nil {
		api.Error(c, err)
		return
	}

	fields := map[string]string{}
	if req.identifier() == "" {
		fields["phone"] = "Phone number or email is required"
	}
	if req.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		api.Error(c, apperr.ValidationFields("Missing credentials", fields))
		return
	}

	acct, err := h.accounts.Login(c.Request.Context(), req.identifier(), req.Password)
	if err != nil {
		api.Error(c, err)
		return
	}

	_, expiresAt, err := h.sessions.IssueSession(c, acct.Actor(), req.RememberMe)
	if err != nil {
		api.Error(c, apperr.Storage("failed to start session", err))
		return
	}

	api.Success(c, http.StatusOK, "Login successful", sessionResponse{Account: acct, ExpiresAt: expiresAt})
}

// Logout ends the session
func (h *AccountHandler) Logout(c *gin.Context) {
	h.sessions.ClearSession(c)
	api.Success(c, http.StatusOK, "Logged out successfully", nil)
}

// Me returns the signed-in account
func (h *AccountHandler) Me(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		api.Error(c, err)
		return
	}

	acct, err := h.accounts.Me(c.Request.Context(), actor)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusOK, "", acct)
}

// UpdateProfile edits the signed-in user's profile
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		api.Error(c, err)
		return
	}

	var req models.ProfileUpdate
	if err := api.BindJSON(c, &req); err != nil {
		api.Error(c, err)
		return
	}

	acct, err := h.accounts.UpdateProfile(c.Request.Context(), actor, req)
	if err != nil {
		api.Error(c, err)
		return
	}
	api.Success(c, http.StatusOK, "Profile updated successfully", acct)
}
