package donation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/logger"
	"github.com/jakob/backend/internal/models"
)

// Aggregator owns the derived totals: campaign raised amount, donor totals
// and influencer totals. Nothing else writes those columns.
type Aggregator struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewAggregator creates a new balance aggregator
func NewAggregator(db *gorm.DB, log *zap.Logger) *Aggregator {
	return &Aggregator{db: db, log: logger.OrNop(log)}
}

type increment struct {
	model   interface{}
	id      uuid.UUID
	updates map[string]interface{}
}

// ApplySettlement adds a settled donation to every aggregate it feeds, using
// the caller's transaction. Increments are computed in SQL so concurrent
// settlements never overwrite each other. Each increment must hit exactly one
// row, otherwise the unit of work is failed.
func (a *Aggregator) ApplySettlement(tx *gorm.DB, donation *models.Donation) error {
	increments := []increment{
		{
			model:   &models.Campaign{},
			id:      donation.CampaignID,
			updates: map[string]interface{}{"raised_amount": gorm.Expr("raised_amount + ?", donation.Amount)},
		},
		{
			model: &models.DonorProfile{},
			id:    donation.DonorID,
			updates: map[string]interface{}{
				"total_donated":  gorm.Expr("total_donated + ?", donation.Amount),
				"donation_count": gorm.Expr("donation_count + ?", 1),
			},
		},
		{
			model:   &models.InfluencerProfile{},
			id:      donation.InfluencerID,
			updates: map[string]interface{}{"total_raised": gorm.Expr("total_raised + ?", donation.Amount)},
		},
	}

	for _, inc := range increments {
		result := tx.Model(inc.model).Where("id = ?", inc.id).Updates(inc.updates)
		if result.Error != nil {
			return fmt.Errorf("error incrementing %T %s: %w", inc.model, inc.id, result.Error)
		}
		if result.RowsAffected != 1 {
			return fmt.Errorf("error incrementing %T %s: %d rows affected", inc.model, inc.id, result.RowsAffected)
		}
	}

	return nil
}

// Totals are aggregates derived from the set of completed donations
type Totals struct {
	Raised        decimal.Decimal `json:"raised"`
	DonationCount int64           `json:"donation_count"`
	UniqueDonors  int64           `json:"unique_donors"`
}

// Recompute derives a campaign's totals from its completed donations without
// touching the stored aggregates.
func (a *Aggregator) Recompute(ctx context.Context, campaignID uuid.UUID) (*Totals, error) {
	var totals Totals
	err := a.db.WithContext(ctx).Model(&models.Donation{}).
		Select("COALESCE(SUM(amount), 0) AS raised, COUNT(*) AS donation_count, COUNT(DISTINCT donor_id) AS unique_donors").
		Where("campaign_id = ? AND status = ?", campaignID, models.DonationStatusCompleted).
		Scan(&totals).Error
	if err != nil {
		return nil, apperr.Storage("could not recompute campaign totals", err)
	}
	return &totals, nil
}

// Drift is a stored aggregate that disagrees with its derived value
type Drift struct {
	Table   string          `json:"table"`
	ID      uuid.UUID       `json:"id"`
	Column  string          `json:"column"`
	Stored  decimal.Decimal `json:"stored"`
	Derived decimal.Decimal `json:"derived"`
}

type aggregateRow struct {
	ID      uuid.UUID
	Stored  decimal.Decimal
	Derived decimal.Decimal
}

var driftChecks = []struct {
	table  string
	column string
	query  string
}{
	{
		table:  "campaigns",
		column: "raised_amount",
		query: `SELECT c.id AS id, c.raised_amount AS stored, COALESCE(SUM(d.amount), 0) AS derived
			FROM campaigns c
			LEFT JOIN donations d ON d.campaign_id = c.id AND d.status = ?
			GROUP BY c.id, c.raised_amount`,
	},
	{
		table:  "donor_profiles",
		column: "total_donated",
		query: `SELECT p.id AS id, p.total_donated AS stored, COALESCE(SUM(d.amount), 0) AS derived
			FROM donor_profiles p
			LEFT JOIN donations d ON d.donor_id = p.id AND d.status = ?
			GROUP BY p.id, p.total_donated`,
	},
	{
		table:  "donor_profiles",
		column: "donation_count",
		query: `SELECT p.id AS id, p.donation_count AS stored, COUNT(d.id) AS derived
			FROM donor_profiles p
			LEFT JOIN donations d ON d.donor_id = p.id AND d.status = ?
			GROUP BY p.id, p.donation_count`,
	},
	{
		table:  "influencer_profiles",
		column: "total_raised",
		query: `SELECT p.id AS id, p.total_raised AS stored, COALESCE(SUM(d.amount), 0) AS derived
			FROM influencer_profiles p
			LEFT JOIN donations d ON d.influencer_id = p.id AND d.status = ?
			GROUP BY p.id, p.total_raised`,
	},
}

// Verify compares every stored aggregate with the value derived from
// completed donations and reports the rows that drifted. It never repairs.
func (a *Aggregator) Verify(ctx context.Context) ([]Drift, error) {
	drifts := []Drift{}
	db := a.db.WithContext(ctx)

	for _, check := range driftChecks {
		var rows []aggregateRow
		if err := db.Raw(check.query, models.DonationStatusCompleted).Scan(&rows).Error; err != nil {
			return nil, apperr.Storage("could not verify aggregates", err)
		}

		for _, row := range rows {
			if row.Stored.Round(2).Equal(row.Derived.Round(2)) {
				continue
			}
			drift := Drift{
				Table:   check.table,
				ID:      row.ID,
				Column:  check.column,
				Stored:  row.Stored,
				Derived: row.Derived,
			}
			drifts = append(drifts, drift)
			a.log.Warn("aggregate drift detected",
				zap.String("table", drift.Table),
				zap.String("id", drift.ID.String()),
				zap.String("column", drift.Column),
				zap.String("stored", drift.Stored.String()),
				zap.String("derived", drift.Derived.String()))
		}
	}

	return drifts, nil
}
