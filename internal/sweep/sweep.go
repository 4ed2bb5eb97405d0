// Package sweep runs periodic maintenance tasks. A tick that arrives while the
// previous run of the same task is still in progress is skipped.
package sweep

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Task is one named periodic job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	running atomic.Bool
}

// RunOnce executes the task unless it is already running. It reports whether
// the task ran.
func (t *Task) RunOnce(ctx context.Context) (bool, error) {
	if !t.running.CompareAndSwap(false, true) {
		return false, nil
	}
	defer t.running.Store(false)
	return true, t.Run(ctx)
}

// Scheduler drives a set of tasks on their own tickers.
type Scheduler struct {
	tasks []*Task
	log   zerolog.Logger
	wg    sync.WaitGroup
}

// NewScheduler constructs a Scheduler.
func NewScheduler(log zerolog.Logger, tasks ...*Task) *Scheduler {
	return &Scheduler{tasks: tasks, log: log}
}

// Start launches every task and returns immediately. Tasks stop when ctx is
// cancelled; Wait blocks until they have.
func (s *Scheduler) Start(ctx context.Context) {
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
}

// Wait blocks until all task loops have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t *Task) {
	defer s.wg.Done()
	log := s.log.With().Str("task", t.Name).Logger()
	log.Info().Dur("interval", t.Interval).Msg("sweep started")

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweep stopped")
			return
		case <-ticker.C:
			s.wg.Add(1)
			go s.tick(ctx, t, log)
		}
	}
}

// tick runs on its own goroutine so a slow run does not delay the ticker; the
// task's running flag turns overlapping ticks into skips.
func (s *Scheduler) tick(ctx context.Context, t *Task, log zerolog.Logger) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("sweep panicked")
		}
	}()

	start := time.Now()
	ran, err := t.RunOnce(ctx)
	switch {
	case !ran:
		log.Debug().Msg("previous run still in progress, skipping")
	case err != nil:
		log.Error().Err(err).Msg("sweep failed, retrying next tick")
	default:
		log.Debug().Dur("took", time.Since(start)).Msg("sweep finished")
	}
}
