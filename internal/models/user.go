package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the immutable account type chosen at registration
type Role string

const (
	RoleDonor      Role = "donor"
	RoleInfluencer Role = "influencer"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleDonor || r == RoleInfluencer
}

// User represents an account on the platform. Every user owns exactly one
// role-specific profile.
type User struct {
	Base
	Email           string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone           string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone"`
	PasswordHash    string     `gorm:"type:varchar(255);not null" json:"-"`
	Role            Role       `gorm:"type:varchar(20);not null;index" json:"user_type"`
	AvatarURL       *string    `gorm:"type:text" json:"avatar_url"`
	IsVerified      bool       `gorm:"not null" json:"is_verified"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	PhoneVerifiedAt *time.Time `json:"phone_verified_at"`
	IsActive        bool       `gorm:"not null" json:"is_active"`
	LastLoginAt     *time.Time `json:"last_login_at"`
}

// Actor is the authenticated identity a request acts as. It is built from the
// session once per request and passed explicitly into every service call.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"user_type"`
}

// IsDonor reports whether the actor is a donor
func (a Actor) IsDonor() bool { return a.Role == RoleDonor }

// IsInfluencer reports whether the actor is an influencer
func (a Actor) IsInfluencer() bool { return a.Role == RoleInfluencer }
