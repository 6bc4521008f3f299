package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrSchedulerStarted is returned when Start is called on a scheduler that
// is already running. Exactly one scheduler is active per process.
var ErrSchedulerStarted = errors.New("scheduler already started")

// Job is one scheduled unit of work on its own fixed-interval timer.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler fires its jobs on independent timers. Each job runs inside an
// isolated error boundary: a failure or panic is logged and never cancels
// the timer or the other jobs. A job never overlaps itself; ticks that
// arrive while it is still running are dropped.
type Scheduler struct {
	jobs   []Job
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		logger: logger,
	}
}

// Start launches one goroutine per job. It fails when called twice, which
// guards against duplicate timers under process-reload conditions.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrSchedulerStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return fmt.Errorf("job %q has non-positive interval", job.Name)
		}
		s.wg.Add(1)
		go s.runLoop(ctx, job)
		s.logger.Info("scheduled job", "job", job.Name, "interval", job.Interval)
	}
	return nil
}

// Stop cancels the timers and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
}

// runLoop runs the job synchronously per tick, so a slow run can never
// overlap the next one.
func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	defer s.wg.Done()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", job.Name, "panic", r)
		}
	}()
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed", "job", job.Name, "error", err)
		return
	}
	s.logger.Debug("job finished", "job", job.Name, "duration_ms", time.Since(start).Milliseconds())
}
