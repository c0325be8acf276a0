package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jakob/backend/internal/logger"
)

// Handler processes one job. Returning an error schedules a retry unless the
// error is wrapped with Permanent.
type Handler func(ctx context.Context, job *Job) error

// JobProcessor processes jobs from queues
type JobProcessor struct {
	queue          *RedisQueue
	handlers       map[string]Handler
	workerCount    int
	pollTimeout    time.Duration
	wg             sync.WaitGroup
	processingJobs sync.Map
	cancel         context.CancelFunc
	log            *zap.Logger
}

// NewJobProcessor creates a new JobProcessor
func NewJobProcessor(queue *RedisQueue, workerCount int, log *zap.Logger) *JobProcessor {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &JobProcessor{
		queue:       queue,
		handlers:    make(map[string]Handler),
		workerCount: workerCount,
		pollTimeout: time.Second,
		log:         logger.OrNop(log).Named("worker"),
	}
}

// RegisterHandler registers a handler for a specific queue. Handlers must be
// registered before Start.
func (p *JobProcessor) RegisterHandler(queueName string, handler Handler) {
	p.handlers[queueName] = handler
}

// Start launches the workers. They run until Stop is called or ctx is done.
func (p *JobProcessor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	queues := make([]string, 0, len(p.handlers))
	for name := range p.handlers {
		queues = append(queues, name)
	}
	sort.Strings(queues)

	p.log.Info("starting job processor", zap.Int("workers", p.workerCount), zap.Strings("queues", queues))
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i, queues)
	}
}

// Stop cancels the workers and waits for in-flight jobs to finish
func (p *JobProcessor) Stop() {
	if p.cancel == nil {
		return
	}
	p.log.Info("stopping job processor")
	p.cancel()
	p.wg.Wait()
	p.log.Info("job processor stopped")
}

func (p *JobProcessor) worker(ctx context.Context, id int, queues []string) {
	defer p.wg.Done()

	if len(queues) == 0 {
		p.log.Warn("worker exiting: no queues registered", zap.Int("worker", id))
		return
	}

	for ctx.Err() == nil {
		for _, queueName := range queues {
			job, err := p.queue.Dequeue(ctx, queueName, p.pollTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.log.Error("failed to dequeue job", zap.Int("worker", id), zap.String("queue", queueName), zap.Error(err))
				sleep(ctx, p.pollTimeout)
				continue
			}
			if job == nil {
				continue
			}

			p.processingJobs.Store(job.ID, true)
			if err := p.ProcessJob(ctx, job); err != nil {
				p.log.Warn("job failed", zap.Int("worker", id), zap.String("job_id", job.ID), zap.Error(err))
			}
			p.processingJobs.Delete(job.ID)
		}
	}
}

// ProcessJob runs the handler registered for job.Queue and records the outcome
func (p *JobProcessor) ProcessJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("nil job")
	}

	handler, ok := p.handlers[job.Queue]
	if !ok {
		err := Permanent(fmt.Errorf("no handler registered for queue: %s", job.Queue))
		if failErr := p.queue.Fail(context.WithoutCancel(ctx), job, err); failErr != nil {
			p.log.Error("failed to record job failure", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return err
	}

	err := p.run(ctx, handler, job)
	// Outcome bookkeeping must survive shutdown of the worker context.
	bg := context.WithoutCancel(ctx)
	if err != nil {
		if failErr := p.queue.Fail(bg, job, err); failErr != nil {
			p.log.Error("failed to record job failure", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return fmt.Errorf("job processing failed: %w", err)
	}

	if err := p.queue.Complete(bg, job); err != nil {
		p.log.Error("failed to mark job completed", zap.String("job_id", job.ID), zap.Error(err))
	}
	return nil
}

// IsProcessing checks if a job is currently being processed
func (p *JobProcessor) IsProcessing(jobID string) bool {
	_, ok := p.processingJobs.Load(jobID)
	return ok
}

func (p *JobProcessor) run(ctx context.Context, handler Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
