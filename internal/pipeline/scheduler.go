package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultDebounce is the quiet period before a scheduled task runs.
const DefaultDebounce = 180 * time.Millisecond

// Task computes a result. It should return promptly once ctx is done.
type Task[T any] func(ctx context.Context) (T, error)

// Result carries a finished task's outcome and the generation it was
// scheduled under.
type Result[T any] struct {
	Generation uint64
	Value      T
	Err        error
	Duration   time.Duration
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Delay is the quiet period. Zero means DefaultDebounce.
	Delay time.Duration

	// Timeout bounds a single task run. Zero means no bound.
	Timeout time.Duration
}

// Scheduler debounces tasks and discards stale results.
//
// Each Schedule call increments the generation, stops the pending timer and
// cancels the context of any task still running. When the quiet period
// elapses without another Schedule, the task runs; its result is handed to
// the deliver callback if no newer generation exists by then. Results of
// cancelled runs are dropped silently.
//
// The generation check before deliver is best-effort: a Schedule that lands
// between the check and the call still lets the older result through. deliver
// must therefore compare Result.Generation with Generation under whatever
// lock also guards its calls to Schedule.
//
// A Task that fails because its Timeout expired is still delivered, with the
// deadline error in Result.Err.
type Scheduler[T any] struct {
	delay   time.Duration
	timeout time.Duration
	deliver func(Result[T])
	log     logrus.FieldLogger

	mu         sync.Mutex
	generation uint64
	timer      *time.Timer
	pending    func()
	cancel     context.CancelFunc
	running    int
	stopped    bool
}

// NewScheduler creates a scheduler that reports accepted results to deliver.
// deliver runs on a timer goroutine (or the Flush caller) without the
// scheduler lock held, so it may call back into the scheduler. It must not
// block for long.
func NewScheduler[T any](cfg SchedulerConfig, deliver func(Result[T]), log logrus.FieldLogger) *Scheduler[T] {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDebounce
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler[T]{
		delay:   cfg.Delay,
		timeout: cfg.Timeout,
		deliver: deliver,
		log:     log,
	}
}

// Schedule supersedes any pending or running task and arms task to run after
// the quiet period. It returns the generation captured for task.
func (s *Scheduler[T]) Schedule(task Task[T]) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.supersedeLocked()
	gen := s.generation
	if s.stopped {
		return gen
	}

	ctx, cancel := context.WithCancel(context.Background())
	fire := func() { s.run(ctx, cancel, gen, task) }
	s.cancel = cancel
	s.pending = fire
	s.timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		if s.generation != gen || s.pending == nil {
			// Superseded or flushed before we got the lock.
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.pending = nil
		s.running++
		s.mu.Unlock()

		fire()
	})

	s.log.WithFields(logrus.Fields{
		"generation": gen,
		"delay_ms":   s.delay.Milliseconds(),
	}).Debug("Recompute scheduled")
	return gen
}

// Supersede invalidates pending and running tasks without scheduling a new
// one, and returns the new generation. Callers that compute a result
// themselves use the returned generation to check it is still current.
func (s *Scheduler[T]) Supersede() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked()
	return s.generation
}

// Flush runs the pending task now on the calling goroutine instead of waiting
// for the quiet period. It reports whether there was a task to run.
func (s *Scheduler[T]) Flush() bool {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return false
	}
	fire := s.pending
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.running++
	s.mu.Unlock()

	fire()
	return true
}

// Generation returns the latest generation.
func (s *Scheduler[T]) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Pending reports whether a task is waiting for its quiet period or running.
func (s *Scheduler[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil || s.running > 0
}

// Stop cancels all work. Later Schedule calls are ignored.
func (s *Scheduler[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked()
	s.stopped = true
}

func (s *Scheduler[T]) supersedeLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Scheduler[T]) run(ctx context.Context, cancel context.CancelFunc, gen uint64, task Task[T]) {
	defer func() {
		cancel()
		s.mu.Lock()
		s.running--
		s.mu.Unlock()
	}()

	if s.timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, s.timeout)
		defer tcancel()
	}

	start := time.Now()
	value, err := task(ctx)
	res := Result[T]{
		Generation: gen,
		Value:      value,
		Err:        err,
		Duration:   time.Since(start),
	}

	latest := s.Generation()
	if latest != gen || errors.Is(ctx.Err(), context.Canceled) {
		s.log.WithFields(logrus.Fields{
			"generation": gen,
			"latest":     latest,
			"duration":   res.Duration,
		}).Debug("Discarding stale recompute result")
		return
	}

	s.deliver(res)
}
