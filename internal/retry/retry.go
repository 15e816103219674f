// Package retry wraps a single board invocation with bounded retries and
// exponential backoff. The backoff loop is modeled as an explicit state
// machine with injectable sleeping and jitter so it can be tested without
// real time delays.
package retry

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jonathan/jobscraper/internal/source"
)

// Policy holds the retry parameters for one board invocation chain.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt, pre-jitter
	MaxDelay    time.Duration // cap on the pre-jitter delay
}

// DefaultPolicy is three attempts with exponential wait capped at ten seconds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// BackoffDelay returns the capped exponential delay after `attempt`
// completed attempts, before jitter is applied.
func (p Policy) BackoffDelay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// State is the observable progress of one invocation chain. It is owned by
// the controller for the duration of the chain and discarded afterwards.
type State struct {
	Attempt   int           // attempts completed so far
	NextDelay time.Duration // backoff chosen before the upcoming attempt
	LastErr   error
}

// Sleeper abstracts backoff waiting. The production implementation honours
// context cancellation; tests substitute an instant fake.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jitter maps a pre-jitter delay to the actual delay. Full jitter picks
// uniformly from [0, d].
type Jitter func(d time.Duration) time.Duration

// FullJitter returns a Jitter drawing uniformly from [0, d] using rng.
func FullJitter(rng *rand.Rand) Jitter {
	var mu sync.Mutex
	return func(d time.Duration) time.Duration {
		if d <= 0 {
			return 0
		}
		mu.Lock()
		defer mu.Unlock()
		return time.Duration(rng.Int63n(int64(d) + 1))
	}
}

// Controller executes board fetches under a Policy. Safe for concurrent use.
type Controller struct {
	policy  Policy
	sleeper Sleeper
	jitter  Jitter
}

// Option customizes a Controller.
type Option func(*Controller)

// WithSleeper substitutes the backoff sleeper (used by tests).
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) { c.sleeper = s }
}

// WithJitter substitutes the jitter function (used by tests).
func WithJitter(j Jitter) Option {
	return func(c *Controller) { c.jitter = j }
}

// New builds a Controller with full jitter and a real timer by default.
func New(policy Policy, opts ...Option) *Controller {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	c := &Controller{
		policy:  policy,
		sleeper: timerSleeper{},
		jitter:  FullJitter(rand.New(rand.NewSource(time.Now().UnixNano()))),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnRetry is notified before each backoff sleep, with the state of the
// chain after a failed attempt. Used to surface per-source "retrying"
// status; may be nil.
type OnRetry func(s State)

// Do invokes fn up to MaxAttempts times. Only retryable failures (source
// unavailable or rate limited) trigger another attempt; anything else
// terminates the chain immediately. Each backoff respects ctx: if the run
// deadline would elapse before the next attempt could even start, Do aborts
// early and returns the context error so the caller can mark the source
// timed out rather than burning an attempt that cannot finish.
func (c *Controller) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry OnRetry) error {
	st := State{}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		st.Attempt++
		if err == nil {
			return nil
		}
		st.LastErr = err

		if !source.Retryable(err) || st.Attempt >= c.policy.MaxAttempts {
			return err
		}

		st.NextDelay = c.jitter(c.policy.BackoffDelay(st.Attempt))
		if deadline, ok := ctx.Deadline(); ok {
			if time.Until(deadline) <= st.NextDelay {
				return context.DeadlineExceeded
			}
		}

		if onRetry != nil {
			onRetry(st)
		}
		if err := c.sleeper.Sleep(ctx, st.NextDelay); err != nil {
			return err
		}
	}
}
