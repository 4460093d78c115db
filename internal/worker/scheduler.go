// internal/worker/scheduler.go
package worker

import (
	"context"
	"sync"
	"time"

	"tenant-ledger/internal/util"
)

// Job is a periodic batch. Run must be safe to call again after a failure.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each job on its own ticker. A job never overlaps itself;
// ticks that arrive while it is still running are dropped.
type Scheduler struct {
	jobs     []*jobRunner
	stop     chan struct{}
	wg       sync.WaitGroup
	runFirst bool

	startOnce sync.Once
	stopOnce  sync.Once
}

type jobRunner struct {
	job     Job
	trigger chan struct{}
	sem     chan struct{}
}

// NewScheduler creates a scheduler. With runOnStart every job also runs once
// immediately after Start.
func NewScheduler(runOnStart bool, jobs ...Job) *Scheduler {
	s := &Scheduler{stop: make(chan struct{}), runFirst: runOnStart}
	for _, job := range jobs {
		s.jobs = append(s.jobs, &jobRunner{
			job:     job,
			trigger: make(chan struct{}, 1),
			sem:     make(chan struct{}, 1),
		})
	}
	return s
}

func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.startOnce.Do(func() {
		for _, r := range s.jobs {
			s.wg.Add(1)
			go s.run(ctx, r)
			if s.runFirst {
				r.fire()
			}
		}
	})
}

// Stop ends the tickers and waits for running jobs to return.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}

// Trigger runs the named job as soon as possible. It reports false for an unknown name.
func (s *Scheduler) Trigger(name string) bool {
	for _, r := range s.jobs {
		if r.job.Name == name {
			r.fire()
			return true
		}
	}
	return false
}

func (r *jobRunner) fire() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context, r *jobRunner) {
	defer s.wg.Done()

	var tick <-chan time.Time
	if r.job.Interval > 0 {
		ticker := time.NewTicker(r.job.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-r.trigger:
			s.launch(ctx, r)
		case <-tick:
			s.launch(ctx, r)
		}
	}
}

func (s *Scheduler) launch(ctx context.Context, r *jobRunner) {
	select {
	case r.sem <- struct{}{}:
	default:
		util.Log(ctx).Debug().Str("job", r.job.Name).Msg("job still running, tick skipped")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-r.sem }()

		start := time.Now()
		if err := r.job.Run(ctx); err != nil {
			util.Log(ctx).Error().Err(err).Str("job", r.job.Name).Dur("duration", time.Since(start)).Msg("job failed")
			return
		}
		util.Log(ctx).Info().Str("job", r.job.Name).Dur("duration", time.Since(start)).Msg("job finished")
	}()
}
