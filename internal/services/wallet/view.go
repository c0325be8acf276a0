package wallet

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/models"
)

// Summary is the balance part of the wallet view
type Summary struct {
	// TotalBalance is the sum of the stored payment method balances
	TotalBalance decimal.Decimal `json:"total_balance"`
	// LedgerTotal is derived from completed donations: what an influencer has
	// received. Always zero for donors.
	LedgerTotal    decimal.Decimal        `json:"ledger_total"`
	Currency       string                 `json:"currency"`
	PaymentMethods []models.PaymentMethod `json:"payment_methods"`
}

// DonorStats summarises a donor's completed donations
type DonorStats struct {
	TotalDonations int64           `json:"total_donations"`
	TotalDonated   decimal.Decimal `json:"total_donated"`
	AvgDonation    decimal.Decimal `json:"avg_donation"`
}

// InfluencerStats summarises the completed donations an influencer received
type InfluencerStats struct {
	TotalReceived int64           `json:"total_received"`
	TotalRaised   decimal.Decimal `json:"total_raised"`
	UniqueDonors  int64           `json:"unique_donors"`
}

// WalletView is the read-only wallet projection
type WalletView struct {
	Wallet       Summary              `json:"wallet"`
	Transactions []models.Transaction `json:"transactions"`
	// Stats is a *DonorStats or an *InfluencerStats depending on the role
	Stats interface{} `json:"stats"`
}

// GetWallet builds the wallet view for the actor. limit caps the recent
// transactions; zero uses the configured default and anything above 100 is
// clamped.
func (s *WalletService) GetWallet(ctx context.Context, actor models.Actor, limit int) (*WalletView, error) {
	if limit <= 0 {
		limit = s.cfg.RecentTransactions
	}
	if limit > maxRecentTransactions {
		limit = maxRecentTransactions
	}
	db := s.db.WithContext(ctx)

	id, err := profileID(db, actor)
	if err != nil {
		return nil, err
	}

	methods, err := listPaymentMethods(db, actor)
	if err != nil {
		return nil, err
	}

	view := &WalletView{
		Wallet: Summary{
			TotalBalance:   decimal.Zero,
			LedgerTotal:    decimal.Zero,
			Currency:       models.DefaultCurrency,
			PaymentMethods: methods,
		},
		Transactions: []models.Transaction{},
	}
	for _, m := range methods {
		view.Wallet.TotalBalance = view.Wallet.TotalBalance.Add(m.Balance)
	}

	if err := db.Where("user_id = ?", actor.UserID).
		Order("created_at DESC").
		Limit(limit).
		Find(&view.Transactions).Error; err != nil {
		return nil, apperr.Storage("could not load transactions", err)
	}

	completed := db.Model(&models.Donation{}).Where("status = ?", models.DonationStatusCompleted)

	if actor.IsDonor() {
		stats := &DonorStats{}
		if err := completed.
			Select("COUNT(*) AS total_donations, COALESCE(SUM(amount), 0) AS total_donated").
			Where("donor_id = ?", id).
			Scan(stats).Error; err != nil {
			return nil, apperr.Storage("could not load donation stats", err)
		}
		stats.AvgDonation = decimal.Zero
		if stats.TotalDonations > 0 {
			stats.AvgDonation = stats.TotalDonated.Div(decimal.NewFromInt(stats.TotalDonations)).Round(2)
		}
		view.Stats = stats
		return view, nil
	}

	stats := &InfluencerStats{}
	if err := completed.
		Select("COUNT(*) AS total_received, COALESCE(SUM(amount), 0) AS total_raised, COUNT(DISTINCT donor_id) AS unique_donors").
		Where("influencer_id = ?", id).
		Scan(stats).Error; err != nil {
		return nil, apperr.Storage("could not load donation stats", err)
	}
	view.Stats = stats
	view.Wallet.LedgerTotal = stats.TotalRaised
	return view, nil
}
