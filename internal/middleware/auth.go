package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jakob/backend/internal/api"
	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/models"
	"github.com/jakob/backend/internal/utils"
)

const actorKey = "actor"

// SessionAuth resolves the session token carried by a request into an Actor
type SessionAuth struct {
	signer       *utils.SessionSigner
	cookieName   string
	secureCookie bool
}

// NewSessionAuth creates session middleware reading the named cookie or a
// Bearer token.
func NewSessionAuth(signer *utils.SessionSigner, cookieName string, secureCookie bool) *SessionAuth {
	return &SessionAuth{
		signer:       signer,
		cookieName:   cookieName,
		secureCookie: secureCookie,
	}
}

// RequireSession rejects requests without a valid session
func (a *SessionAuth) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := a.extractToken(c)
		if tokenString == "" {
			api.Error(c, apperr.Unauthenticated("Authentication required"))
			return
		}

		claims, err := a.signer.Validate(tokenString)
		if err != nil {
			api.Error(c, apperr.Unauthenticated("Invalid or expired session"))
			return
		}

		c.Set(actorKey, claims.Actor())
		c.Next()
	}
}

// OptionalSession sets the Actor when a valid session is present and lets
// anonymous requests through.
func (a *SessionAuth) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := a.extractToken(c); tokenString != "" {
			if claims, err := a.signer.Validate(tokenString); err == nil {
				c.Set(actorKey, claims.Actor())
			}
		}
		c.Next()
	}
}

// RememberMeTTL is the session lifetime when the user asks to stay signed in
const RememberMeTTL = 30 * 24 * time.Hour

// IssueSession signs a token for actor and sets it as the session cookie
func (a *SessionAuth) IssueSession(c *gin.Context, actor models.Actor, remember bool) (string, time.Time, error) {
	ttl := a.signer.TTL()
	if remember {
		ttl = RememberMeTTL
	}

	token, expiresAt, err := a.signer.IssueWithTTL(actor, time.Now(), ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	a.setCookie(c, token, int(ttl.Seconds()))
	return token, expiresAt, nil
}

// ClearSession expires the session cookie
func (a *SessionAuth) ClearSession(c *gin.Context) {
	a.setCookie(c, "", -1)
}

func (a *SessionAuth) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(a.cookieName, value, maxAge, "/", "", a.secureCookie, true)
}

// extractToken prefers the Authorization header and falls back to the cookie
func (a *SessionAuth) extractToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}

	if cookie, err := c.Cookie(a.cookieName); err == nil {
		return cookie
	}
	return ""
}

// RequireRole ensures the session belongs to the given account type. It must
// run after RequireSession.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			api.Error(c, apperr.Unauthenticated("Authentication required"))
			return
		}
		if actor.Role != role {
			api.Error(c, apperr.Forbidden("Only "+string(role)+"s can perform this action"))
			return
		}
		c.Next()
	}
}

// CurrentActor returns the Actor set by the session middleware
func CurrentActor(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}
