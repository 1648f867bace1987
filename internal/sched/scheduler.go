// Package sched runs the daily background jobs.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "bondwatch/internal/errors"
	"bondwatch/internal/logging"
	"bondwatch/internal/store"
)

// Job names used for single-flight guards and run bookkeeping.
const (
	JobSync   = "sync"
	JobNotify = "notify"
)

// checkInterval is how often the scheduler compares the clock against
// the configured job times.
const checkInterval = 30 * time.Second

// JobFunc performs one run of a scheduled job.
type JobFunc func(ctx context.Context) error

// Scheduler fires registered jobs once per day at their configured
// wall-clock times. Each job carries its own mutex so overlapping
// triggers collapse into a single run.
type Scheduler struct {
	store  store.DataStore
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	jobs map[string]*scheduledJob

	stopCh chan struct{}
	wg     sync.WaitGroup
}

type scheduledJob struct {
	name    string
	at      string // HH:MM
	fn      JobFunc
	running sync.Mutex
}

// NewScheduler creates a scheduler.
func NewScheduler(ds store.DataStore, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:  ds,
		logger: logger,
		now:    time.Now,
		jobs:   make(map[string]*scheduledJob),
		stopCh: make(chan struct{}),
	}
}

// SetNow overrides the clock, for tests.
func (s *Scheduler) SetNow(now func() time.Time) {
	s.now = now
}

// Register adds a daily job firing at the given HH:MM local time.
func (s *Scheduler) Register(name, at string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = &scheduledJob{name: name, at: at, fn: fn}
}

// Start launches the background loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop shuts the loop down and waits for a running job to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fires every job whose scheduled time has passed today and that
// has not yet run today.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	jobs := make([]*scheduledJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	for _, job := range jobs {
		due, err := dueTime(job.at, now)
		if err != nil {
			log := logging.WithJob(s.logger, job.name)
			log.Error().Err(err).Msg("Invalid job time")
			continue
		}
		if now.Before(due) {
			continue
		}
		if sameDay(s.store.GetLastRun(job.name), now) {
			continue
		}
		s.runJob(ctx, job)
	}
}

// RunNow fires a job immediately, outside its schedule. A concurrent
// run of the same job returns ErrJobRunning instead of piling up.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}

	if !job.running.TryLock() {
		return apperrors.ErrJobRunning
	}
	defer job.running.Unlock()

	return s.execute(ctx, job)
}

func (s *Scheduler) runJob(ctx context.Context, job *scheduledJob) {
	log := logging.WithJob(s.logger, job.name)
	if !job.running.TryLock() {
		log.Warn().Msg("Job still running, skipping trigger")
		return
	}
	defer job.running.Unlock()

	if err := s.execute(ctx, job); err != nil {
		log.Error().Err(err).Msg("Job failed")
	}
}

// execute runs the job body with panic containment and records the
// completed run.
func (s *Scheduler) execute(ctx context.Context, job *scheduledJob) (err error) {
	log := logging.WithJob(s.logger, job.name)
	start := s.now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	log.Info().Msg("Job started")
	if err := job.fn(ctx); err != nil {
		return err
	}

	if err := s.store.SetLastRun(job.name, s.now()); err != nil {
		log.Warn().Err(err).Msg("Failed to record job run")
	}
	log.Info().Dur("duration", s.now().Sub(start)).Msg("Job completed")
	return nil
}

// CatchUp fires a job immediately when it has not yet run today, used
// at startup so a restart after the scheduled time does not skip a day.
func (s *Scheduler) CatchUp(ctx context.Context, name string) error {
	if sameDay(s.store.GetLastRun(name), s.now()) {
		return nil
	}
	return s.RunNow(ctx, name)
}

// dueTime resolves an HH:MM string to today's concrete time.
func dueTime(at string, now time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", at, err)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
