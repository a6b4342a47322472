// Package jobs runs background work in-process: a bounded queue of
// per-user geocoding sweeps with at-least-once execution and bounded
// retries. Jobs for different users have no ordering guarantee.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/introhq/introhq/internal/resilience"
)

// SweepFunc executes one geocoding sweep for a user.
type SweepFunc func(ctx context.Context, userID string) error

// Options tunes the runner.
type Options struct {
	// QueueCapacity bounds the number of pending jobs. Default: 64.
	QueueCapacity int

	// Workers is the number of concurrent job executors. Default: 1.
	Workers int

	// JobTimeout is the hard wall-clock limit per attempt. Default: 5m.
	JobTimeout time.Duration

	// MaxAttempts bounds execution attempts per job. Default: 3.
	MaxAttempts int
}

func (o Options) withDefaults() Options {
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 64
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 5 * time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	return o
}

// Runner owns the queue and its worker goroutines.
type Runner struct {
	sweep SweepFunc
	opts  Options

	queue chan string
	group *errgroup.Group

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewRunner creates a Runner. Call Start before enqueueing.
func NewRunner(sweep SweepFunc, opts Options) *Runner {
	opts = opts.withDefaults()
	return &Runner{
		sweep: sweep,
		opts:  opts,
		queue: make(chan string, opts.QueueCapacity),
	}
}

// Start launches the workers. They drain the queue until Stop is called
// or ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	r.group = &errgroup.Group{}
	for i := 0; i < r.opts.Workers; i++ {
		r.group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case userID, ok := <-r.queue:
					if !ok {
						return nil
					}
					r.run(ctx, userID)
				}
			}
		})
	}
}

// EnqueueSweep schedules a sweep for the user. A full queue is an
// error; callers treat it as "try again later", not a failure of the
// triggering request.
func (r *Runner) EnqueueSweep(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return eris.New("jobs: runner stopped")
	}

	select {
	case r.queue <- userID:
		return nil
	default:
		return eris.New("jobs: queue full")
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	group := r.group
	r.mu.Unlock()

	if group != nil {
		group.Wait() //nolint:errcheck
	}
}

// run executes one job with a per-attempt timeout and bounded retries.
// Every error retries: at-least-once semantics, and a repeated sweep is
// idempotent.
func (r *Runner) run(ctx context.Context, userID string) {
	err := resilience.Do(ctx, resilience.RetryConfig{
		MaxAttempts:    r.opts.MaxAttempts,
		InitialBackoff: time.Second,
		ShouldRetry:    func(error) bool { return true },
		OnRetry:        resilience.RetryLogger("jobs", "sweep"),
	}, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.opts.JobTimeout)
		defer cancel()
		return r.sweep(attemptCtx, userID)
	})
	if err != nil {
		zap.L().Error("sweep job failed",
			zap.String("user_id", userID),
			zap.Int("max_attempts", r.opts.MaxAttempts),
			zap.Error(err),
		)
	}
}
