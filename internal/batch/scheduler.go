package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Clock abstracts the timer used for stagger delays.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func RealClock() Clock {
	return realClock{}
}

// Task is one unit of scheduled work. Run starts once Delay has elapsed.
type Task struct {
	Delay time.Duration
	Run   func(ctx context.Context)
}

// Scheduler drains a task queue on a fixed-size worker pool. Tasks do not
// report errors, so one task's failure never affects another.
type Scheduler struct {
	Workers int
	Clock   Clock
}

// Run blocks until every task has returned. A cancelled context skips the
// remaining delays but still runs each task so it can record the failure.
func (s *Scheduler) Run(ctx context.Context, tasks []Task) {
	clock := s.Clock
	if clock == nil {
		clock = RealClock()
	}
	workers := s.Workers
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, task := range tasks {
		g.Go(func() error {
			select {
			case <-ctx.Done():
			case <-clock.After(task.Delay):
			}
			task.Run(ctx)
			return nil
		})
	}
	g.Wait()
}
