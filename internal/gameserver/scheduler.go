package gameserver

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type job struct {
	interval time.Duration
	fn       func()
}

// Scheduler runs named periodic jobs, each on its own ticker.
//
// Invariant: a job's callback never overlaps with itself.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]job
	logger *zap.Logger
}

// NewScheduler returns a Scheduler with no jobs.
//
// Precondition: logger must be non-nil.
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{jobs: make(map[string]job), logger: logger}
}

// Every registers fn to run once per interval under name. Replaces any
// existing job with that name. Jobs registered after Run has started are
// not picked up.
//
// Precondition: interval must be > 0.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) {
	if interval <= 0 {
		panic("gameserver.Scheduler.Every: interval must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = job{interval: interval, fn: fn}
}

// Names returns the registered job names.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	return out
}

// Run ticks every job until ctx is cancelled, then waits for in-flight
// callbacks to return.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	jobs := make(map[string]job, len(s.jobs))
	for k, v := range s.jobs {
		jobs[k] = v
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for name, j := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(j.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					start := time.Now()
					j.fn()
					s.logger.Debug("scheduled job ran",
						zap.String("job", name),
						zap.Duration("elapsed", time.Since(start)),
					)
				}
			}
		}()
	}
	wg.Wait()
}
