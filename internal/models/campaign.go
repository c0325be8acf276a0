package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CampaignStatus is the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Valid reports whether s is a known campaign status
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	}
	return false
}

// CampaignCategory groups campaigns for discovery
type CampaignCategory string

const (
	CategoryArt       CampaignCategory = "art"
	CategoryMusic     CampaignCategory = "music"
	CategoryEducation CampaignCategory = "education"
	CategoryYouth     CampaignCategory = "youth"
	CategoryHeritage  CampaignCategory = "heritage"
)

// Valid reports whether c is a known category
func (c CampaignCategory) Valid() bool {
	switch c {
	case CategoryArt, CategoryMusic, CategoryEducation, CategoryYouth, CategoryHeritage:
		return true
	}
	return false
}

// Campaign is a fundraising goal owned by exactly one influencer profile.
// RaisedAmount starts at zero and is only ever increased by settlement.
type Campaign struct {
	Base
	InfluencerID uuid.UUID        `gorm:"type:uuid;index;not null" json:"influencer_id"`
	Title        string           `gorm:"type:varchar(255);not null" json:"title"`
	Description  string           `gorm:"type:text;not null" json:"description"`
	Story        *string          `gorm:"type:text" json:"story"`
	GoalAmount   decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"goal_amount"`
	RaisedAmount decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"raised_amount"`
	Currency     string           `gorm:"type:varchar(3);not null" json:"currency"`
	Category     CampaignCategory `gorm:"type:varchar(20);not null;index" json:"category"`
	ImageURL     *string          `gorm:"type:text" json:"image_url"`
	VideoURL     *string          `gorm:"type:text" json:"video_url"`
	StartDate    time.Time        `gorm:"not null" json:"start_date"`
	EndDate      time.Time        `gorm:"not null;index" json:"end_date"`
	Status       CampaignStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
}

// HasEnded reports whether the campaign's end date is before now, regardless
// of its stored status.
func (c *Campaign) HasEnded(now time.Time) bool {
	return c.EndDate.Before(now)
}

// AcceptsDonations reports whether a donation may be created against the campaign
func (c *Campaign) AcceptsDonations(now time.Time) bool {
	return c.Status == CampaignStatusActive && !c.HasEnded(now)
}

// ProgressPercentage is raised/goal*100 rounded to two places
func (c *Campaign) ProgressPercentage() decimal.Decimal {
	if !c.GoalAmount.IsPositive() {
		return decimal.Zero
	}
	return c.RaisedAmount.Div(c.GoalAmount).Mul(decimal.NewFromInt(100)).Round(2)
}

// DaysRemaining is the number of whole days until the end date, never negative
func (c *Campaign) DaysRemaining(now time.Time) int {
	if c.HasEnded(now) {
		return 0
	}
	return int(math.Ceil(c.EndDate.Sub(now).Hours() / 24))
}
