package donation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/database/dbtest"
	"github.com/jakob/backend/internal/models"
)

func TestAggregator_Recompute(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	other := dbtest.CreateDonor(t, f.db, "Jean", "Baptiste")
	for _, d := range []struct {
		actor  models.Actor
		amount string
		settle bool
	}{
		{f.donor.Actor(), "100", true},
		{f.donor.Actor(), "50.50", true},
		{other.Actor(), "25", true},
		{other.Actor(), "999", false},
	} {
		result, err := f.service.CreateDonation(ctx, d.actor, f.input(d.amount))
		require.NoError(t, err)
		if d.settle {
			_, err = f.service.SettleDonation(ctx, result.Donation.ID)
			require.NoError(t, err)
		}
	}

	totals, err := f.aggregator.Recompute(ctx, f.campaign.ID)
	require.NoError(t, err)
	assertAmount(t, "175.50", totals.Raised)
	assert.Equal(t, int64(3), totals.DonationCount)
	assert.Equal(t, int64(2), totals.UniqueDonors)

	campaign, _, _ := f.reload(t)
	assert.True(t, totals.Raised.Equal(campaign.RaisedAmount))
}

func TestAggregator_VerifyReportsDrift(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	_, err := f.service.CreateDonation(ctx, f.donor.Actor(), f.input("300"))
	require.NoError(t, err)

	drifts, err := f.aggregator.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	// Simulate a write that bypassed settlement
	require.NoError(t, f.db.Model(&models.Campaign{}).Where("id = ?", f.campaign.ID).
		Update("raised_amount", gorm.Expr("raised_amount + ?", 1)).Error)

	drifts, err = f.aggregator.Verify(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "campaigns", drifts[0].Table)
	assert.Equal(t, "raised_amount", drifts[0].Column)
	assert.Equal(t, f.campaign.ID, drifts[0].ID)
	assertAmount(t, "301", drifts[0].Stored)
	assertAmount(t, "300", drifts[0].Derived)

	campaign, _, _ := f.reload(t)
	assertAmount(t, "301", campaign.RaisedAmount)
}

func TestAggregator_ApplySettlementRequiresEveryRow(t *testing.T) {
	f := setup(t, false)

	donation := &models.Donation{
		CampaignID:   f.campaign.ID,
		DonorID:      f.donor.Profile.ID,
		InfluencerID: f.influencer.Profile.ID,
	}
	donation.Amount = f.input("10").Amount

	err := f.db.Transaction(func(tx *gorm.DB) error {
		missing := *donation
		missing.DonorID = f.influencer.Profile.ID
		return f.aggregator.ApplySettlement(tx, &missing)
	})
	require.Error(t, err)
	f.assertBalances(t, "0", 0)

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.aggregator.ApplySettlement(tx, donation)
	}))
	f.assertBalances(t, "10", 1)
}

// SQLite runs with one connection, so the concurrency tests cannot tell a
// read-modify-write from an in-SQL increment. Pin the statements instead.
func TestAggregator_ApplySettlementIncrementsInSQL(t *testing.T) {
	f := setup(t, false)

	var statements []string
	require.NoError(t, f.db.Callback().Update().After("gorm:update").Register("test:capture_update", func(db *gorm.DB) {
		statements = append(statements, db.Statement.SQL.String())
	}))
	require.NoError(t, f.db.Callback().Query().After("gorm:query").Register("test:capture_query", func(db *gorm.DB) {
		statements = append(statements, db.Statement.SQL.String())
	}))

	donation := &models.Donation{
		CampaignID:   f.campaign.ID,
		DonorID:      f.donor.Profile.ID,
		InfluencerID: f.influencer.Profile.ID,
		Amount:       f.input("12.50").Amount,
	}
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.aggregator.ApplySettlement(tx, donation)
	}))

	require.Len(t, statements, 3)
	for _, sql := range statements {
		assert.True(t, strings.HasPrefix(sql, "UPDATE "), sql)
	}
	assert.Regexp(t, "raised_amount`?=raised_amount \\+ \\?", statements[0])
	assert.Regexp(t, "total_donated`?=total_donated \\+ \\?", statements[1])
	assert.Regexp(t, "donation_count`?=donation_count \\+ \\?", statements[1])
	assert.Regexp(t, "total_raised`?=total_raised \\+ \\?", statements[2])

	f.assertBalances(t, "12.50", 1)
}
