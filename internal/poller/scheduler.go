package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/marketdeck/syncd/internal/metrics"
)

// Errors
var (
	ErrDestroyed = errors.New("scheduler destroyed")
	ErrJobExists = errors.New("job already scheduled")
)

// Task is one cycle of a recurring job. It must honor ctx: when the
// context is cancelled the task abandons its work and returns, typically
// with ctx.Err().
type Task func(ctx context.Context) error

// Scheduler runs named recurring jobs.
type Scheduler struct {
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	jobs      map[string]*job
	destroyed bool
}

type job struct {
	name     string
	interval time.Duration
	task     Task

	// cancelCycle cancels the most recently started cycle. Owned by the
	// scheduler; replaced at the top of every cycle.
	cancelCycle context.CancelFunc
}

// New creates a Scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*job),
	}
}

// Schedule registers a named recurring job. The task runs once immediately,
// then every interval until Destroy. Duplicate names are rejected.
func (s *Scheduler) Schedule(name string, interval time.Duration, task Task) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if _, exists := s.jobs[name]; exists {
		s.mu.Unlock()
		return ErrJobExists
	}

	j := &job{name: name, interval: interval, task: task}
	s.jobs[name] = j
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(j)

	s.logger.Debug("job scheduled", "job", name, "interval", interval)
	return nil
}

// Jobs returns the names of all scheduled jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Destroy stops all jobs and cancels any in-flight cycles, then waits for
// them to drain. After Destroy no job starts a new cycle.
func (s *Scheduler) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	for _, j := range s.jobs {
		if j.cancelCycle != nil {
			j.cancelCycle()
		}
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.logger.Debug("scheduler destroyed")
}

// run is one job's interval loop.
func (s *Scheduler) run(j *job) {
	defer s.wg.Done()

	// First cycle runs immediately.
	s.startCycle(j)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.startCycle(j)
		}
	}
}

// startCycle cancels the job's previous cycle, then launches a new one.
// An interval tick may already be queued when Destroy is requested, so the
// destroyed flag is re-checked here.
func (s *Scheduler) startCycle(j *job) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	if j.cancelCycle != nil {
		// Previous cycle still owns the slot: cancel it before the new
		// fetch begins.
		j.cancelCycle()
	}
	cycleCtx, cancel := context.WithCancel(s.ctx)
	j.cancelCycle = cancel
	s.mu.Unlock()

	metrics.PollCycles.WithLabelValues(j.name).Inc()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		err := j.task(cycleCtx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			// Superseded by a newer cycle or shutdown: benign, silent.
		default:
			s.logger.Warn("poll cycle failed", "job", j.name, "error", err)
		}
	}()
}
