package models

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DonorProfile holds donor display fields and the donor's running totals.
// TotalDonated and DonationCount are derived state and only change through
// donation settlement.
type DonorProfile struct {
	Base
	UserID             uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	FirstName          string          `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName           string          `gorm:"type:varchar(100);not null" json:"last_name"`
	Bio                *string         `gorm:"type:text" json:"bio"`
	Location           *string         `gorm:"type:varchar(255)" json:"location"`
	FavoriteCategories StringList      `gorm:"type:text" json:"favorite_categories"`
	TotalDonated       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_donated"`
	DonationCount      int64           `gorm:"not null" json:"donation_count"`
}

// InfluencerProfile holds campaign creator display fields and running totals.
// TotalRaised is derived state and only changes through donation settlement.
type InfluencerProfile struct {
	Base
	UserID         uuid.UUID        `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Username       string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	DisplayName    string           `gorm:"type:varchar(100);not null" json:"display_name"`
	Bio            *string          `gorm:"type:text" json:"bio"`
	Location       *string          `gorm:"type:varchar(255)" json:"location"`
	Category       CampaignCategory `gorm:"type:varchar(20);not null" json:"category"`
	AvatarURL      *string          `gorm:"type:text" json:"avatar_url"`
	CoverImageURL  *string          `gorm:"type:text" json:"cover_image_url"`
	SocialLinks    JSON             `gorm:"type:text" json:"social_links"`
	Verified       bool             `gorm:"not null" json:"verified"`
	TotalRaised    decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"total_raised"`
	TotalCampaigns int64            `gorm:"not null" json:"total_campaigns"`
}

// ProfileUpdate carries the optional profile fields a user may change. Nil
// fields are left untouched. Each profile variant applies only the fields it
// owns.
type ProfileUpdate struct {
	FirstName          *string                `json:"first_name"`
	LastName           *string                `json:"last_name"`
	Bio                *string                `json:"bio"`
	Location           *string                `json:"location"`
	FavoriteCategories []string               `json:"favorite_categories"`
	DisplayName        *string                `json:"display_name"`
	Username           *string                `json:"username"`
	CoverImageURL      *string                `json:"cover_image_url"`
	SocialLinks        map[string]interface{} `json:"social_links"`
}

// Profile is the role-specific half of an account: either a *DonorProfile or
// an *InfluencerProfile.
type Profile interface {
	ProfileRole() Role
	ProfileID() uuid.UUID
	DisplayLabel() string
	// ApplyUpdate copies the fields this variant owns from u onto the profile
	// and returns the changed columns keyed by column name.
	ApplyUpdate(u ProfileUpdate) map[string]interface{}
}

// NewProfile returns an empty profile variant for role, or nil for an unknown role
func NewProfile(role Role) Profile {
	switch role {
	case RoleDonor:
		return &DonorProfile{}
	case RoleInfluencer:
		return &InfluencerProfile{}
	}
	return nil
}

func (p *DonorProfile) ProfileRole() Role { return RoleDonor }
func (p *DonorProfile) ProfileID() uuid.UUID { return p.ID }

// DisplayLabel is the donor's full name
func (p *DonorProfile) DisplayLabel() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *DonorProfile) ApplyUpdate(u ProfileUpdate) map[string]interface{} {
	changes := map[string]interface{}{}
	if u.FirstName != nil {
		p.FirstName = strings.TrimSpace(*u.FirstName)
		changes["first_name"] = p.FirstName
	}
	if u.LastName != nil {
		p.LastName = strings.TrimSpace(*u.LastName)
		changes["last_name"] = p.LastName
	}
	if u.Bio != nil {
		p.Bio = u.Bio
		changes["bio"] = *u.Bio
	}
	if u.Location != nil {
		p.Location = u.Location
		changes["location"] = *u.Location
	}
	if u.FavoriteCategories != nil {
		p.FavoriteCategories = StringList(u.FavoriteCategories)
		changes["favorite_categories"] = p.FavoriteCategories
	}
	return changes
}

func (p *InfluencerProfile) ProfileRole() Role { return RoleInfluencer }
func (p *InfluencerProfile) ProfileID() uuid.UUID { return p.ID }

// DisplayLabel is the display name, falling back to the username
func (p *InfluencerProfile) DisplayLabel() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}

func (p *InfluencerProfile) ApplyUpdate(u ProfileUpdate) map[string]interface{} {
	changes := map[string]interface{}{}
	if u.DisplayName != nil {
		p.DisplayName = strings.TrimSpace(*u.DisplayName)
		changes["display_name"] = p.DisplayName
	}
	if u.Username != nil {
		p.Username = strings.ToLower(strings.TrimSpace(*u.Username))
		changes["username"] = p.Username
	}
	if u.Bio != nil {
		p.Bio = u.Bio
		changes["bio"] = *u.Bio
	}
	if u.Location != nil {
		p.Location = u.Location
		changes["location"] = *u.Location
	}
	if u.CoverImageURL != nil {
		p.CoverImageURL = u.CoverImageURL
		changes["cover_image_url"] = *u.CoverImageURL
	}
	if u.SocialLinks != nil {
		p.SocialLinks = JSON(u.SocialLinks)
		changes["social_links"] = p.SocialLinks
	}
	return changes
}
