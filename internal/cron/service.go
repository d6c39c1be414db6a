package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/brandpay-backend/pkg/logger"
	"github.com/angelmondragon/brandpay-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

// ErrUnknownTarget is returned by RunTarget for a target with no registered jobs.
var ErrUnknownTarget = errors.New("unknown cron target")

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	// TargetLock builds the cross-instance lock for a triggered target. Nil runs
	// triggered targets without one.
	TargetLock func(target string) (Lock, error)
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
}

// Service executes registered cron jobs on a fixed cadence and on demand.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	targetLock func(target string) (Lock, error)
	metrics    *metrics.CronJobMetrics
	interval   time.Duration

	mu      sync.Mutex
	running map[string]bool
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		targetLock: params.TargetLock,
		metrics:    params.Metrics,
		interval:   interval,
		running:    map[string]bool{},
	}, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(ctx, "scheduled run starting")
	for _, job := range s.registry.Jobs() {
		_ = s.runJob(ctx, job)
	}
	s.logg.Info(ctx, "scheduled run complete")
	return nil
}

// RunTarget runs the jobs of one target. A target already running in this process is
// skipped, so a burst of triggers collapses into one sweep.
func (s *Service) RunTarget(ctx context.Context, target string) error {
	jobs := s.registry.ForTarget(target)
	if jobs == nil {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	ctx = s.logg.WithField(ctx, "target", target)
	if !s.begin(target) {
		s.logg.Debug(ctx, "target already running")
		s.metrics.IncSkipped(target, metrics.SkipRunning)
		return nil
	}
	defer s.end(target)

	if s.targetLock != nil {
		lock, err := s.targetLock(target)
		if err != nil {
			return fmt.Errorf("target lock: %w", err)
		}
		locked, err := lock.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("lock acquire: %w", err)
		}
		if !locked {
			s.logg.Debug(ctx, "target running on another instance")
			s.metrics.IncSkipped(target, metrics.SkipLocked)
			return nil
		}
		defer func() {
			if relErr := lock.Release(ctx); relErr != nil {
				s.logg.Error(ctx, "failed to release target lock", relErr)
			}
		}()
	}

	var errs error
	for _, job := range jobs {
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return errs
}

func (s *Service) begin(target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[target] {
		return false
	}
	s.running[target] = true
	return true
}

func (s *Service) end(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, target)
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
			s.logg.Error(jobCtx, "job panicked", err)
			s.metrics.IncFailure(job.Name())
		}
	}()
	err = job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return fmt.Errorf("job %s: %w", job.Name(), err)
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
	return nil
}
