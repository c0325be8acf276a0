package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jakob/backend/internal/services/donation"
)

type mockMaintenance struct {
	mock.Mock
}

func (m *mockMaintenance) CloseLapsedCampaigns(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMaintenance) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

func (m *mockMaintenance) Verify(ctx context.Context) ([]donation.Drift, error) {
	args := m.Called(ctx)
	drift, _ := args.Get(0).([]donation.Drift)
	return drift, args.Error(1)
}

func newMaintenance(svc *mockMaintenance, ttl time.Duration, now time.Time) *Maintenance {
	m := NewMaintenance(svc, svc, svc, ttl, nil)
	m.now = func() time.Time { return now }
	return m
}

func TestMaintenanceCloseLapsedCampaigns(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := new(mockMaintenance)
	svc.On("CloseLapsedCampaigns", mock.Anything, now).Return(int64(2), nil)

	require.NoError(t, newMaintenance(svc, time.Hour, now).CloseLapsedCampaigns(context.Background()))
	svc.AssertExpectations(t)
}

func TestMaintenanceExpirePendingUsesTTL(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := new(mockMaintenance)
	svc.On("ExpirePending", mock.Anything, now.Add(-90*time.Minute)).Return(3, nil)

	require.NoError(t, newMaintenance(svc, 90*time.Minute, now).ExpirePendingDonations(context.Background()))
	svc.AssertExpectations(t)
}

func TestMaintenanceExpirePendingDisabled(t *testing.T) {
	svc := new(mockMaintenance)

	require.NoError(t, newMaintenance(svc, 0, time.Now()).ExpirePendingDonations(context.Background()))
	svc.AssertNotCalled(t, "ExpirePending", mock.Anything, mock.Anything)
}

func TestMaintenanceVerifyAggregates(t *testing.T) {
	svc := new(mockMaintenance)
	svc.On("Verify", mock.Anything).Return([]donation.Drift{{Table: "campaigns", Column: "raised_amount"}}, nil).Once()
	svc.On("Verify", mock.Anything).Return(nil, assert.AnError).Once()

	m := newMaintenance(svc, time.Hour, time.Now())
	require.NoError(t, m.VerifyAggregates(context.Background()))
	assert.ErrorIs(t, m.VerifyAggregates(context.Background()), assert.AnError)
	svc.AssertExpectations(t)
}

func TestNewSchedulerRejectsInvalidCron(t *testing.T) {
	svc := new(mockMaintenance)
	_, err := NewScheduler(newMaintenance(svc, time.Hour, time.Now()), "not a cron", nil)
	require.Error(t, err)
}

func TestSchedulerRunsMinuteJobsOnStart(t *testing.T) {
	ran := make(chan string, 8)
	svc := new(mockMaintenance)
	svc.On("CloseLapsedCampaigns", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { ran <- "close" }).Return(int64(0), nil)
	svc.On("ExpirePending", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { ran <- "expire" }).Return(0, assert.AnError)

	s, err := NewScheduler(newMaintenance(svc, time.Hour, time.Now()), "0 3 * * *", nil)
	require.NoError(t, err)
	assert.Len(t, s.scheduler.Jobs(), 3)

	s.Start()

	seen := map[string]bool{}
	timeout := time.After(5 * time.Second)
	for len(seen) < 2 {
		select {
		case name := <-ran:
			seen[name] = true
		case <-timeout:
			t.Fatalf("minute jobs did not run on start, saw %v", seen)
		}
	}
	s.Stop()
	svc.AssertNotCalled(t, "Verify", mock.Anything)
}
