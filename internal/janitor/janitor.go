// Package janitor runs periodic housekeeping: it reclaims expired entries
// from the in-memory tables that are otherwise only cleaned lazily.
package janitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one housekeeping task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Sweeper is anything with a memory-only expiry pass.
type Sweeper interface {
	Sweep() int
}

// SweepJob wraps a Sweeper; report, if set, receives the number of reclaimed entries.
func SweepJob(name string, s Sweeper, report func(name string, n int)) Job {
	return JobFunc{JobName: name, Fn: func(context.Context) error {
		n := s.Sweep()
		if report != nil {
			report(name, n)
		}
		return nil
	}}
}

const defaultJobTimeout = 30 * time.Second

// Scheduler wraps cron with logging and graceful stop.
type Scheduler struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	mu      sync.Mutex
	started bool
}

// New builds a scheduler accepting optional-seconds specs and descriptors
// such as "@every 1m".
func New(logger zerolog.Logger) *Scheduler {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:   cron.New(cron.WithParser(parser)),
		logger: logger.With().Str("component", "janitor").Logger(),
	}
}

// Register binds a job to a cron spec.
func (s *Scheduler) Register(spec string, job Job) (cron.EntryID, error) {
	if job == nil {
		return 0, fmt.Errorf("janitor: job is required")
	}
	if spec == "" {
		return 0, fmt.Errorf("janitor: spec is required for %s", job.Name())
	}
	id, err := s.cron.AddFunc(spec, s.wrap(job))
	if err != nil {
		return 0, fmt.Errorf("janitor: register %s: %w", job.Name(), err)
	}
	s.logger.Debug().Str("job", job.Name()).Str("spec", spec).Msg("job registered")
	return id, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
}

// Stop halts scheduling; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.started = false
	return s.cron.Stop()
}

// RunNow executes every registered job once, synchronously.
func (s *Scheduler) RunNow() {
	for _, e := range s.cron.Entries() {
		e.Job.Run()
	}
}

func (s *Scheduler) wrap(job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultJobTimeout)
		defer cancel()
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			s.logger.Error().Err(err).Str("job", job.Name()).Dur("elapsed", time.Since(start)).Msg("job failed")
			return
		}
		s.logger.Debug().Str("job", job.Name()).Dur("elapsed", time.Since(start)).Msg("job completed")
	}
}
