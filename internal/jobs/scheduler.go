// Package jobs holds the background work of the ledger: the payment
// settlement handler fed by the queue, and periodic maintenance.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakob/backend/internal/logger"
	"github.com/jakob/backend/internal/services/donation"
)

// CampaignCloser completes campaigns whose end date has passed
type CampaignCloser interface {
	CloseLapsedCampaigns(ctx context.Context, now time.Time) (int64, error)
}

// PendingExpirer fails donations left pending too long
type PendingExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time) (int, error)
}

// AggregateVerifier compares stored totals with the ledger
type AggregateVerifier interface {
	Verify(ctx context.Context) ([]donation.Drift, error)
}

// Job is a periodic maintenance task
type Job interface {
	Name() string
	Execute(ctx context.Context) error
}

type jobFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (j jobFunc) Name() string                      { return j.name }
func (j jobFunc) Execute(ctx context.Context) error { return j.fn(ctx) }

// Maintenance builds the periodic jobs
type Maintenance struct {
	campaigns  CampaignCloser
	donations  PendingExpirer
	aggregates AggregateVerifier
	pendingTTL time.Duration
	now        func() time.Time
	log        *zap.Logger
}

// NewMaintenance wires the maintenance jobs to their services
func NewMaintenance(campaigns CampaignCloser, donations PendingExpirer, aggregates AggregateVerifier, pendingTTL time.Duration, log *zap.Logger) *Maintenance {
	return &Maintenance{
		campaigns:  campaigns,
		donations:  donations,
		aggregates: aggregates,
		pendingTTL: pendingTTL,
		now:        time.Now,
		log:        logger.OrNop(log).Named("maintenance"),
	}
}

// CloseLapsedCampaigns marks active campaigns past their end date completed
func (m *Maintenance) CloseLapsedCampaigns(ctx context.Context) error {
	closed, err := m.campaigns.CloseLapsedCampaigns(ctx, m.now().UTC())
	if err != nil {
		return err
	}
	if closed > 0 {
		m.log.Info("closed lapsed campaigns", zap.Int64("count", closed))
	}
	return nil
}

// ExpirePendingDonations fails donations pending for longer than the TTL
func (m *Maintenance) ExpirePendingDonations(ctx context.Context) error {
	if m.pendingTTL <= 0 {
		return nil
	}
	expired, err := m.donations.ExpirePending(ctx, m.now().UTC().Add(-m.pendingTTL))
	if err != nil {
		return err
	}
	if expired > 0 {
		m.log.Info("expired pending donations", zap.Int("count", expired))
	}
	return nil
}

// VerifyAggregates reports drift between stored and derived totals. Drift is
// logged by the verifier and never corrected automatically.
func (m *Maintenance) VerifyAggregates(ctx context.Context) error {
	drift, err := m.aggregates.Verify(ctx)
	if err != nil {
		return err
	}
	if len(drift) > 0 {
		m.log.Warn("aggregate drift detected", zap.Int("rows", len(drift)))
	}
	return nil
}

// Scheduler runs maintenance jobs on gocron
type Scheduler struct {
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	log       *zap.Logger
}

// NewScheduler registers the lapsed-campaign and pending-expiry jobs every
// minute and the aggregate check on verifyCron.
func NewScheduler(m *Maintenance, verifyCron string, log *zap.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		ctx:       ctx,
		cancel:    cancel,
		log:       logger.OrNop(log).Named("scheduler"),
	}
	s.scheduler.SingletonModeAll()

	every := []Job{
		jobFunc{name: "close_lapsed_campaigns", fn: m.CloseLapsedCampaigns},
		jobFunc{name: "expire_pending_donations", fn: m.ExpirePendingDonations},
	}
	for _, job := range every {
		if _, err := s.scheduler.Every(1).Minute().Tag(job.Name()).Do(s.run, job); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to schedule %s: %w", job.Name(), err)
		}
	}

	verify := jobFunc{name: "verify_aggregates", fn: m.VerifyAggregates}
	if _, err := s.scheduler.Cron(verifyCron).Tag(verify.Name()).Do(s.run, verify); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule %s: %w", verify.Name(), err)
	}

	return s, nil
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.log.Info("starting scheduler", zap.Int("jobs", len(s.scheduler.Jobs())))
	s.scheduler.StartAsync()
}

// Stop halts the scheduler and cancels running jobs
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(job Job) {
	runID := uuid.New().String()
	start := time.Now()
	log := s.log.With(zap.String("job", job.Name()), zap.String("run_id", runID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("maintenance job panicked", zap.Any("panic", r))
		}
	}()

	if err := job.Execute(s.ctx); err != nil {
		log.Error("maintenance job failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	log.Debug("maintenance job finished", zap.Duration("took", time.Since(start)))
}
