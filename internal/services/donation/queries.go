package donation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/models"
)

// donationRow carries the owning users alongside the joined donation so
// visibility can be decided without another query
type donationRow struct {
	models.DonationDetail
	DonorUserID      uuid.UUID
	InfluencerUserID uuid.UUID
}

const detailSelect = `d.*, c.title AS campaign_title,
	dp.first_name || ' ' || dp.last_name AS donor_name,
	dp.user_id AS donor_user_id, ip.user_id AS influencer_user_id`

func detailQuery(db *gorm.DB) *gorm.DB {
	return db.Table("donations AS d").
		Select(detailSelect).
		Joins("JOIN campaigns c ON c.id = d.campaign_id").
		Joins("JOIN donor_profiles dp ON dp.id = d.donor_id").
		Joins("JOIN influencer_profiles ip ON ip.id = d.influencer_id")
}

// present hides the donor's name from everyone but the donor when the
// donation is anonymous
func (r *donationRow) present(viewer models.Actor) *models.DonationDetail {
	detail := r.DonationDetail
	if detail.IsAnonymous && viewer.UserID != r.DonorUserID {
		detail.DonorName = anonymousDonor
	}
	return &detail
}

func (r *donationRow) visibleTo(viewer models.Actor) bool {
	return viewer.UserID == r.DonorUserID || viewer.UserID == r.InfluencerUserID
}

func (s *DonationService) loadDetail(db *gorm.DB, viewer models.Actor, query string, args ...interface{}) (*models.DonationDetail, error) {
	var rows []donationRow
	if err := detailQuery(db).Where(query, args...).Limit(1).Scan(&rows).Error; err != nil {
		return nil, apperr.Storage("could not load donation", err)
	}
	if len(rows) == 0 || !rows[0].visibleTo(viewer) {
		return nil, apperr.NotFound("donation not found")
	}
	return rows[0].present(viewer), nil
}

// GetDonation returns a donation visible to its donor or its receiving influencer
func (s *DonationService) GetDonation(ctx context.Context, actor models.Actor, donationID uuid.UUID) (*models.DonationDetail, error) {
	return s.loadDetail(s.db.WithContext(ctx), actor, "d.id = ?", donationID)
}

// ListDonations returns a donor's own donations or an influencer's received
// donations, newest first
func (s *DonationService) ListDonations(ctx context.Context, actor models.Actor, limit int) ([]*models.DonationDetail, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := detailQuery(s.db.WithContext(ctx))
	switch {
	case actor.IsDonor():
		query = query.Where("dp.user_id = ?", actor.UserID)
	case actor.IsInfluencer():
		query = query.Where("ip.user_id = ?", actor.UserID)
	default:
		return nil, apperr.Forbidden("unknown account type")
	}

	var rows []donationRow
	if err := query.Order("d.created_at DESC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, apperr.Storage("could not list donations", err)
	}

	details := make([]*models.DonationDetail, 0, len(rows))
	for i := range rows {
		details = append(details, rows[i].present(actor))
	}
	return details, nil
}
