package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/logger"
	"github.com/jakob/backend/internal/models"
	"github.com/jakob/backend/internal/queue"
	"github.com/jakob/backend/internal/services/donation"
)

// Payment provider statuses carried by settlement callbacks
const (
	PaymentStatusSuccessful = "SUCCESSFUL"
	PaymentStatusFailed     = "FAILED"
	PaymentStatusRejected   = "REJECTED"
	PaymentStatusTimeout    = "TIMEOUT"
	PaymentStatusPending    = "PENDING"
	PaymentStatusOngoing    = "ONGOING"
)

// settlementMaxRetries bounds redelivery of a callback whose processing hit a
// storage error.
const settlementMaxRetries = 5

// SettlementPayload is the body of a donation_settlement job
type SettlementPayload struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// Normalize trims the payload and upper-cases the status
func (p *SettlementPayload) Normalize() {
	p.Reference = strings.TrimSpace(p.Reference)
	p.Status = strings.ToUpper(strings.TrimSpace(p.Status))
	p.Reason = strings.TrimSpace(p.Reason)
}

// Validate checks the payload after Normalize
func (p SettlementPayload) Validate() error {
	fields := map[string]string{}
	if p.Reference == "" {
		fields["reference"] = "reference is required"
	}
	switch p.Status {
	case PaymentStatusSuccessful, PaymentStatusFailed, PaymentStatusRejected,
		PaymentStatusTimeout, PaymentStatusPending, PaymentStatusOngoing:
	default:
		fields["status"] = "unknown payment status"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields("invalid payment callback", fields)
	}
	return nil
}

// Enqueuer puts jobs on a queue
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, payload interface{}, opts ...queue.EnqueueOption) (string, error)
}

// EnqueueSettlement validates p and queues it for the settlement worker
func EnqueueSettlement(ctx context.Context, q Enqueuer, p SettlementPayload) (string, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return "", err
	}
	return q.Enqueue(ctx, queue.QueueDonationSettlement, p, queue.WithMaxRetries(settlementMaxRetries))
}

// DonationSettler moves donations out of pending
type DonationSettler interface {
	SettleByReference(ctx context.Context, transactionRef string) (*models.Donation, error)
	FailByReference(ctx context.Context, transactionRef, reason string) (*models.Donation, error)
	StatusByReference(ctx context.Context, transactionRef string) (models.DonationStatus, error)
}

// SettlementJob applies payment callbacks to donations
type SettlementJob struct {
	donations DonationSettler
	log       *zap.Logger
}

// NewSettlementJob creates the donation_settlement handler
func NewSettlementJob(donations DonationSettler, log *zap.Logger) *SettlementJob {
	return &SettlementJob{
		donations: donations,
		log:       logger.OrNop(log).Named("settlement"),
	}
}

// Register attaches the handler to the processor
func (j *SettlementJob) Register(p *queue.JobProcessor) {
	p.RegisterHandler(queue.QueueDonationSettlement, j.Handle)
}

// Handle processes one callback. A donation that already left pending is
// treated as processed, so redelivered callbacks are harmless.
func (j *SettlementJob) Handle(ctx context.Context, job *queue.Job) error {
	var p SettlementPayload
	if err := job.Decode(&p); err != nil {
		return err
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return queue.Permanent(err)
	}

	log := j.log.With(zap.String("job_id", job.ID), zap.String("reference", p.Reference), zap.String("status", p.Status))

	var err error
	switch p.Status {
	case PaymentStatusSuccessful:
		_, err = j.donations.SettleByReference(ctx, p.Reference)
	case PaymentStatusFailed, PaymentStatusRejected, PaymentStatusTimeout:
		_, err = j.donations.FailByReference(ctx, p.Reference, failureReason(p))
	default:
		log.Debug("payment still in progress")
		return nil
	}

	switch {
	case err == nil:
		log.Info("payment callback applied")
		return nil
	case errors.Is(err, donation.ErrNotPending):
		j.ignored(ctx, log, p)
		return nil
	case errors.Is(err, apperr.ErrNotFound):
		return queue.Permanent(fmt.Errorf("no donation for reference %s: %w", p.Reference, err))
	default:
		return err
	}
}

// ignored logs a callback for a donation that already left pending. A callback
// disagreeing with the stored outcome needs reconciliation with the provider.
func (j *SettlementJob) ignored(ctx context.Context, log *zap.Logger, p SettlementPayload) {
	stored, err := j.donations.StatusByReference(ctx, p.Reference)
	if err != nil {
		log.Warn("donation no longer pending, callback ignored", zap.Error(err))
		return
	}
	log = log.With(zap.String("stored_status", string(stored)))

	captured := p.Status == PaymentStatusSuccessful
	if captured != (stored == models.DonationStatusCompleted) {
		log.Warn("payment callback contradicts donation status, reconcile with provider")
		return
	}
	log.Info("donation already processed, callback ignored")
}

func failureReason(p SettlementPayload) string {
	if p.Reason != "" {
		return p.Reason
	}
	return "payment " + strings.ToLower(p.Status)
}
