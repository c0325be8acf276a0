package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("AUTO_SETTLE_DONATIONS", "")
	t.Setenv("WALLET_RECENT_TRANSACTIONS", "")

	cfg := LoadConfig()

	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.False(t, cfg.Donation.AutoSettle)
	assert.Equal(t, 10, cfg.Wallet.RecentTransactions)
	assert.Equal(t, time.Hour, cfg.Donation.PendingTTL)
	assert.False(t, cfg.IsDevelopment())
}

func TestAutoSettleFollowsEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTO_SETTLE_DONATIONS", "")

	cfg := LoadConfig()
	assert.True(t, cfg.Donation.AutoSettle)
	assert.True(t, cfg.IsDevelopment())

	t.Setenv("AUTO_SETTLE_DONATIONS", "false")
	assert.False(t, LoadConfig().Donation.AutoSettle)
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("WALLET_RECENT_TRANSACTIONS", "ten")
	assert.Equal(t, 10, LoadConfig().Wallet.RecentTransactions)

	t.Setenv("WALLET_RECENT_TRANSACTIONS", "25")
	assert.Equal(t, 25, LoadConfig().Wallet.RecentTransactions)
}

func TestSecurityDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("SECURE_COOKIES", "")
	t.Setenv("MAINTENANCE_CRON", "")

	cfg := LoadConfig()
	assert.True(t, cfg.Security.SecureCookies)
	assert.Equal(t, 5, cfg.Security.LoginBurst)
	assert.Equal(t, "*/10 * * * *", cfg.Worker.MaintenanceCron)

	t.Setenv("APP_ENV", "development")
	assert.False(t, LoadConfig().Security.SecureCookies)
}
