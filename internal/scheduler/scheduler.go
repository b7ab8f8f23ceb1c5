package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Anuar-boop/teamrankrise/internal/audit"
	"github.com/Anuar-boop/teamrankrise/internal/metrics"
)

const (
	defaultConcurrency = 2
	defaultMaxPending  = 64
)

// Config controls Scheduler behavior.
type Config struct {
	// Concurrency is the number of workers, and so the number of audits that
	// may run at once.
	Concurrency int
	// MaxPending bounds the number of jobs waiting for a worker.
	MaxPending int
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Active int
	Queued int
}

// Scheduler feeds submitted audits to a fixed pool of workers.
type Scheduler struct {
	runner audit.Runner
	cfg    Config
	queue  *queue
	idGen  audit.IDGenerator
	clock  audit.Clock
	logger *zap.Logger

	active atomic.Int64

	mu         sync.Mutex
	started    bool
	closed     bool
	stopLoop   context.CancelFunc
	cancelRuns context.CancelFunc
	wg         sync.WaitGroup
}

// New constructs a Scheduler. Call Start to begin running jobs.
func New(
	runner audit.Runner,
	cfg Config,
	idGen audit.IDGenerator,
	clock audit.Clock,
	logger *zap.Logger,
) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaultMaxPending
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		queue:  newQueue(cfg.MaxPending),
		idGen:  idGen,
		clock:  clock,
		logger: logger,
	}
}

// Concurrency returns the worker count.
func (s *Scheduler) Concurrency() int {
	return s.cfg.Concurrency
}

// Start launches the workers. Audits run on a context derived from ctx, so
// cancelling it aborts in-flight audits. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true

	runCtx, cancelRuns := context.WithCancel(ctx)
	loopCtx, stopLoop := context.WithCancel(runCtx)
	s.cancelRuns = cancelRuns
	s.stopLoop = stopLoop

	for i := range s.cfg.Concurrency {
		s.wg.Add(1)
		go func(workerID int) {
			defer s.wg.Done()
			s.work(loopCtx, runCtx, workerID)
		}(i)
	}
	s.logger.Info("scheduler started",
		zap.Int("concurrency", s.cfg.Concurrency),
		zap.Int("max_pending", s.cfg.MaxPending),
	)
}

// Submit queues an audit of targetURL and returns its handle.
func (s *Scheduler) Submit(targetURL string) (*Job, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrShuttingDown
	}

	id, err := s.idGen.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate job id: %w", err)
	}
	job := newJob(id, targetURL, s.clock.Now())
	if err := s.queue.tryEnqueue(job); err != nil {
		if errors.Is(err, ErrQueueFull) {
			s.logger.Warn("audit rejected, queue full",
				zap.String("url", targetURL),
				zap.Int("max_pending", s.cfg.MaxPending),
			)
		}
		return nil, err
	}
	metrics.SetQueuedAudits(s.queue.len())
	s.logger.Debug("audit queued",
		zap.String("job_id", job.ID),
		zap.String("url", targetURL),
		zap.Int("queued", s.queue.len()),
	)
	return job, nil
}

// Stats reports how many audits are running and waiting.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Active: int(s.active.Load()),
		Queued: s.queue.len(),
	}
}

// Shutdown stops accepting jobs, settles pending ones with ErrShuttingDown
// and waits for running audits. If ctx ends first, running audits are
// cancelled and ctx's error is returned.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stopLoop, cancelRuns := s.stopLoop, s.cancelRuns
	s.mu.Unlock()

	s.queue.close()
	if stopLoop != nil {
		stopLoop()
	}
	for _, job := range s.queue.drain() {
		job.settle(audit.Result{}, ErrShuttingDown)
	}
	metrics.SetQueuedAudits(0)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("wait for running audits: %w", ctx.Err())
	}
	if cancelRuns != nil {
		cancelRuns()
	}
	s.logger.Info("scheduler stopped")
	return err
}

// work is one worker: it takes the oldest pending job as soon as it is free.
func (s *Scheduler) work(loopCtx, runCtx context.Context, workerID int) {
	logger := s.logger.With(zap.Int("worker", workerID))
	for {
		job, err := s.queue.dequeue(loopCtx)
		if err != nil {
			return
		}
		if loopCtx.Err() != nil {
			job.settle(audit.Result{}, ErrShuttingDown)
			return
		}
		s.process(runCtx, job, logger)
	}
}

func (s *Scheduler) process(ctx context.Context, job *Job, logger *zap.Logger) {
	metrics.SetActiveAudits(int(s.active.Add(1)))
	metrics.SetQueuedAudits(s.queue.len())
	job.markRunning()

	logger.Debug("audit started",
		zap.String("job_id", job.ID),
		zap.String("url", job.URL),
		zap.Duration("waited", s.clock.Now().Sub(job.Submitted)),
	)
	start := time.Now()
	res, err := s.run(ctx, job, logger)
	elapsed := time.Since(start)

	metrics.SetActiveAudits(int(s.active.Add(-1)))
	metrics.ObserveAudit(outcome(err), elapsed)
	job.settle(res, err)

	if err != nil {
		logger.Warn("audit failed",
			zap.String("job_id", job.ID),
			zap.String("url", job.URL),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return
	}
	logger.Info("audit completed",
		zap.String("job_id", job.ID),
		zap.String("url", job.URL),
		zap.Duration("duration", elapsed),
	)
}

// run calls the runner, turning a panic into a tool failure for this job.
func (s *Scheduler) run(ctx context.Context, job *Job, logger *zap.Logger) (res audit.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("audit panicked",
				zap.String("job_id", job.ID),
				zap.String("url", job.URL),
				zap.Any("panic", rec),
			)
			res = audit.Result{}
			err = fmt.Errorf("%w: panic: %v", audit.ErrToolFailure, rec)
		}
	}()
	return s.runner.Run(ctx, job.URL)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, audit.ErrAuditTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, audit.ErrInvalidInput):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeFailure
	}
}
