package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/models"
)

// Donor is a donor account with its profile
type Donor struct {
	User    models.User
	Profile models.DonorProfile
}

// Actor returns the request identity of the donor
func (d *Donor) Actor() models.Actor {
	return models.Actor{UserID: d.User.ID, Role: models.RoleDonor}
}

// Influencer is an influencer account with its profile
type Influencer struct {
	User    models.User
	Profile models.InfluencerProfile
}

// Actor returns the request identity of the influencer
func (i *Influencer) Actor() models.Actor {
	return models.Actor{UserID: i.User.ID, Role: models.RoleInfluencer}
}

var userSeq int64

func newUser(role models.Role) models.User {
	n := atomic.AddInt64(&userSeq, 1)
	return models.User{
		Email:        fmt.Sprintf("%s%d@example.com", role, n),
		Phone:        fmt.Sprintf("+5093%07d", n),
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
}

// CreateDonor inserts a donor account
func CreateDonor(t testing.TB, db *gorm.DB, firstName, lastName string) *Donor {
	t.Helper()

	d := &Donor{User: newUser(models.RoleDonor)}
	require.NoError(t, db.Create(&d.User).Error)

	d.Profile = models.DonorProfile{
		UserID:       d.User.ID,
		FirstName:    firstName,
		LastName:     lastName,
		TotalDonated: decimal.Zero,
	}
	require.NoError(t, db.Create(&d.Profile).Error)
	return d
}

// CreateInfluencer inserts an influencer account
func CreateInfluencer(t testing.TB, db *gorm.DB, username string) *Influencer {
	t.Helper()

	i := &Influencer{User: newUser(models.RoleInfluencer)}
	require.NoError(t, db.Create(&i.User).Error)

	i.Profile = models.InfluencerProfile{
		UserID:      i.User.ID,
		Username:    username,
		DisplayName: username,
		Category:    models.CategoryMusic,
		TotalRaised: decimal.Zero,
	}
	require.NoError(t, db.Create(&i.Profile).Error)
	return i
}

// CampaignOption adjusts a fixture campaign before it is inserted
type CampaignOption func(*models.Campaign)

// WithStatus sets the campaign status
func WithStatus(status models.CampaignStatus) CampaignOption {
	return func(c *models.Campaign) { c.Status = status }
}

// WithEndDate sets the campaign end date
func WithEndDate(end time.Time) CampaignOption {
	return func(c *models.Campaign) { c.EndDate = end }
}

// CreateCampaign inserts an active campaign owned by the influencer, ending in 30 days
func CreateCampaign(t testing.TB, db *gorm.DB, owner *Influencer, title string, goal string, opts ...CampaignOption) *models.Campaign {
	t.Helper()

	now := time.Now().UTC()
	c := &models.Campaign{
		InfluencerID: owner.Profile.ID,
		Title:        title,
		Description:  title + " description",
		GoalAmount:   decimal.RequireFromString(goal),
		RaisedAmount: decimal.Zero,
		Currency:     models.DefaultCurrency,
		Category:     models.CategoryMusic,
		StartDate:    now.Add(-24 * time.Hour),
		EndDate:      now.Add(30 * 24 * time.Hour),
		Status:       models.CampaignStatusActive,
	}
	for _, opt := range opts {
		opt(c)
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

// Count returns the number of rows in model's table matching the query
func Count(t testing.TB, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
