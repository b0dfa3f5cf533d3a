package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/shared"
)

// Job is a named unit of work run on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (models.JobOutcome, error)
}

// RunRecorder persists job runs. [repositories.JobRunRepository] implements it.
type RunRecorder interface {
	Start(ctx context.Context, job string, trigger models.JobTrigger) (*models.JobRun, error)
	Finish(ctx context.Context, run *models.JobRun, outcome models.JobOutcome, runErr error) error
}

type scheduledJob struct {
	Job
	running atomic.Bool
}

// Scheduler runs each job on its own ticker.
//
// A job never overlaps with itself: a tick that arrives while the previous run is still going is
// skipped. Runs are detached from the scheduler's context, so stopping waits for them to finish
// rather than interrupting a batch.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*scheduledJob
	order    []string
	recorder RunRecorder
	logger   *log.Logger

	runOnStart bool
	cancel     context.CancelFunc
	stopped    bool
	tickers    sync.WaitGroup
	inflight   sync.WaitGroup
}

// SchedulerOpts configures a [Scheduler]. Recorder is optional.
type SchedulerOpts struct {
	Recorder   RunRecorder
	Logger     *log.Logger
	RunOnStart bool
}

// NewScheduler creates an idle Scheduler with no jobs.
func NewScheduler(opts SchedulerOpts) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Scheduler{
		jobs:       make(map[string]*scheduledJob),
		recorder:   opts.Recorder,
		logger:     shared.WithLogger(opts.Logger, "component", "scheduler"),
		runOnStart: opts.RunOnStart,
	}
}

// Add registers job. Jobs cannot be added while the scheduler is running.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.cancel != nil:
		return shared.ErrSchedulerActive
	case job.Name == "":
		return fmt.Errorf("%w: job name is required", shared.ErrInvalidInput)
	case job.Interval <= 0:
		return fmt.Errorf("%w: job %s needs a positive interval", shared.ErrInvalidInput, job.Name)
	case job.Run == nil:
		return fmt.Errorf("%w: job %s has no run function", shared.ErrInvalidInput, job.Name)
	}
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("%w: job %s already registered", shared.ErrInvalidInput, job.Name)
	}

	s.jobs[job.Name] = &scheduledJob{Job: job}
	s.order = append(s.order, job.Name)
	return nil
}

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Start launches one ticker goroutine per job. Cancelling ctx stops the tickers like [Scheduler.Stop],
// without waiting for in-flight runs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.stopped:
		return shared.ErrSchedulerStopped
	case s.cancel != nil:
		return shared.ErrSchedulerActive
	}

	ctx, s.cancel = context.WithCancel(ctx)
	for _, name := range s.order {
		j := s.jobs[name]
		s.tickers.Add(1)
		go s.loop(ctx, j)
		s.logger.Info("job scheduled", "job", j.Name, "interval", j.Interval)
	}
	return nil
}

// Stop halts all tickers and waits for in-flight runs to finish. A stopped scheduler accepts
// no further triggers and cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.stopped = true
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.tickers.Wait()
	s.inflight.Wait()
	s.logger.Info("scheduler stopped")
}

// Trigger runs the named job now and waits for it. It fails with [shared.ErrJobRunning] when the
// job is already in progress and with [shared.ErrSchedulerStopped] after [Scheduler.Stop].
func (s *Scheduler) Trigger(ctx context.Context, name string) (models.JobOutcome, error) {
	j, err := s.claim(name)
	if err != nil {
		return models.JobOutcome{}, err
	}
	defer func() {
		j.running.Store(false)
		s.inflight.Done()
	}()

	return s.execute(ctx, j, models.TriggerManual)
}

// claim marks the named job running and registers it as in flight.
// Holding mu keeps inflight.Add from racing with the Wait in Stop.
func (s *Scheduler) claim(name string) (*scheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, name)
	case s.stopped:
		return nil, fmt.Errorf("%w: %s", shared.ErrSchedulerStopped, name)
	case !j.running.CompareAndSwap(false, true):
		return nil, fmt.Errorf("%w: %s", shared.ErrJobRunning, name)
	}
	s.inflight.Add(1)
	return j, nil
}

func (s *Scheduler) loop(ctx context.Context, j *scheduledJob) {
	defer s.tickers.Done()

	if s.runOnStart {
		s.dispatch(ctx, j)
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx, j)
		}
	}
}

// dispatch starts a scheduled run in the background unless the job is already running.
func (s *Scheduler) dispatch(ctx context.Context, j *scheduledJob) {
	if _, err := s.claim(j.Name); err != nil {
		if errors.Is(err, shared.ErrJobRunning) {
			s.logger.Warn("previous run still in progress, skipping tick", "job", j.Name)
		}
		return
	}

	go func() {
		defer func() {
			j.running.Store(false)
			s.inflight.Done()
		}()
		s.execute(ctx, j, models.TriggerSchedule)
	}()
}

func (s *Scheduler) execute(ctx context.Context, j *scheduledJob, trigger models.JobTrigger) (models.JobOutcome, error) {
	ctx = context.WithoutCancel(ctx)
	logger := shared.WithLogger(s.logger, "job", j.Name, "trigger", trigger)

	var run *models.JobRun
	if s.recorder != nil {
		var err error
		if run, err = s.recorder.Start(ctx, j.Name, trigger); err != nil {
			logger.Warn("failed to record job start", "error", err)
		} else {
			logger = shared.WithLogger(logger, "run_id", run.ID)
		}
	}

	logger.Info("job started")
	started := time.Now()
	outcome, err := s.safeRun(ctx, j)
	elapsed := time.Since(started)

	if run != nil {
		if ferr := s.recorder.Finish(ctx, run, outcome, err); ferr != nil {
			logger.Warn("failed to record job finish", "error", ferr)
		}
	}

	if err != nil {
		logger.Error("job failed", "error", err, "added", outcome.Added, "updated", outcome.Updated, "duration", elapsed)
	} else {
		logger.Info("job finished", "added", outcome.Added, "updated", outcome.Updated, "processed", outcome.Processed, "duration", elapsed)
	}
	return outcome, err
}

func (s *Scheduler) safeRun(ctx context.Context, j *scheduledJob) (outcome models.JobOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.Name, r)
		}
	}()
	return j.Run(ctx)
}
