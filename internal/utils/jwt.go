package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/jakob/backend/internal/models"
)

// SessionClaims represents the claims carried by a session token
type SessionClaims struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   models.Role `json:"user_type"`
	jwt.StandardClaims
}

// Actor returns the identity the session acts as
func (c *SessionClaims) Actor() models.Actor {
	return models.Actor{UserID: c.UserID, Role: c.Role}
}

// SessionSigner issues and validates session tokens
type SessionSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionSigner creates a signer using an HMAC secret and token lifetime
func NewSessionSigner(secret string, ttl time.Duration) *SessionSigner {
	return &SessionSigner{secret: []byte(secret), ttl: ttl}
}

// TTL is the lifetime of issued tokens
func (s *SessionSigner) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed session token for the actor
func (s *SessionSigner) Issue(actor models.Actor, now time.Time) (string, time.Time, error) {
	return s.IssueWithTTL(actor, now, s.ttl)
}

// IssueWithTTL creates a token with a lifetime other than the default
func (s *SessionSigner) IssueWithTTL(actor models.Actor, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := SessionClaims{
		UserID: actor.UserID,
		Role:   actor.Role,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: expiresAt.Unix(),
			Subject:   actor.UserID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate validates a session token and returns the claims
func (s *SessionSigner) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, errors.New("failed to parse token claims")
	}
	if claims.UserID == uuid.Nil || !claims.Role.Valid() {
		return nil, errors.New("token does not carry a valid identity")
	}

	return claims, nil
}
