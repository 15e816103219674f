// Package scrape orchestrates one job-search run: it fans a query out to
// every enabled board concurrently, guards each board with retry/backoff,
// and merges the normalized, deduplicated results.
package scrape

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/jobscraper/internal/dedup"
	"github.com/jonathan/jobscraper/internal/model"
	"github.com/jonathan/jobscraper/internal/normalize"
	"github.com/jonathan/jobscraper/internal/retry"
	"github.com/jonathan/jobscraper/internal/source"
)

// ErrNoSourcesAvailable is returned when every enabled board failed or
// timed out, so the run produced nothing at all.
var ErrNoSourcesAvailable = errors.New("no sources available")

// DefaultTimeout bounds one orchestration run end to end.
const DefaultTimeout = 45 * time.Second

// Result is the aggregate outcome of one run. Jobs is the deduplicated set
// ready for the committer; Sources reports per-board status so callers can
// observe partial degradation.
type Result struct {
	RunID     uuid.UUID                     `json:"run_id"`
	StartedAt time.Time                     `json:"started_at"`
	Jobs      []model.Job                   `json:"jobs"`
	Sources   map[string]model.SourceStatus `json:"sources"`
	Errors    map[string]string             `json:"source_errors,omitempty"`
	Dropped   int                           `json:"dropped_listings"`
}

// Orchestrator coordinates runs against a fixed source registry.
type Orchestrator struct {
	registry *source.Registry
	retries  *retry.Controller
	timeout  time.Duration
}

// New builds an Orchestrator. A zero timeout falls back to DefaultTimeout.
func New(registry *source.Registry, retries *retry.Controller, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{
		registry: registry,
		retries:  retries,
		timeout:  timeout,
	}
}

// run tracks the mutable state of one orchestration run. The status map is
// written by every source goroutine, so all access goes through the mutex.
type run struct {
	mu       sync.Mutex
	statuses map[string]model.SourceStatus
	errs     map[string]string
	listings []source.RawListing
}

func (r *run) setStatus(id string, s model.SourceStatus) {
	r.mu.Lock()
	r.statuses[id] = s
	r.mu.Unlock()
}

func (r *run) recordFailure(id string, s model.SourceStatus, err error) {
	r.mu.Lock()
	r.statuses[id] = s
	r.errs[id] = err.Error()
	r.mu.Unlock()
}

func (r *run) addListings(batch []source.RawListing) {
	r.mu.Lock()
	r.listings = append(r.listings, batch...)
	r.mu.Unlock()
}

// Run executes the query against every selected board in parallel, bounded
// by the run deadline. One board's failure never blocks or fails another:
// the run proceeds with whatever completed, and only total exhaustion
// yields ErrNoSourcesAvailable (alongside the per-source statuses).
func (o *Orchestrator) Run(ctx context.Context, q source.Query) (*Result, error) {
	sources := o.registry.Select(q.Sites)
	result := &Result{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
		Sources:   make(map[string]model.SourceStatus, len(sources)),
		Errors:    make(map[string]string),
	}
	if len(sources) == 0 {
		return result, ErrNoSourcesAvailable
	}

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	st := &run{
		statuses: make(map[string]model.SourceStatus, len(sources)),
		errs:     make(map[string]string),
	}
	for _, s := range sources {
		st.statuses[s.ID()] = model.StatusPending
	}

	g, gCtx := errgroup.WithContext(runCtx)
	for _, s := range sources {
		g.Go(func() error {
			o.fetchSource(gCtx, st, s, q)
			return nil
		})
	}
	// Source goroutines never return an error; Wait is purely a barrier.
	// Deadline expiry propagates through gCtx into each fetch and backoff,
	// so outstanding sources unwind promptly and get marked timed_out.
	_ = g.Wait()

	st.mu.Lock()
	result.Sources = st.statuses
	result.Errors = st.errs
	listings := st.listings
	st.mu.Unlock()

	succeeded := 0
	for _, status := range result.Sources {
		if status == model.StatusSucceeded {
			succeeded++
		}
	}
	if succeeded == 0 {
		return result, ErrNoSourcesAvailable
	}

	jobs := make([]model.Job, 0, len(listings))
	for _, l := range listings {
		job, err := normalize.Listing(l)
		if err != nil {
			log.Printf("[scrape] run %s: dropping listing: %v", result.RunID, err)
			result.Dropped++
			continue
		}
		jobs = append(jobs, job)
	}
	result.Jobs = dedup.Jobs(jobs, o.registry)

	return result, nil
}

// fetchSource runs one retry-wrapped board invocation and records its
// terminal status. All failures are contained here.
func (o *Orchestrator) fetchSource(ctx context.Context, st *run, s source.Source, q source.Query) {
	id := s.ID()

	err := o.retries.Do(ctx, func(ctx context.Context) error {
		batch, err := s.Fetch(ctx, q)
		if err != nil {
			return err
		}
		if q.ResultsWanted > 0 && len(batch) > q.ResultsWanted {
			batch = batch[:q.ResultsWanted]
		}
		st.addListings(batch)
		return nil
	}, func(rs retry.State) {
		log.Printf("[scrape] source %s attempt %d failed, backing off %v: %v",
			id, rs.Attempt, rs.NextDelay, rs.LastErr)
		st.setStatus(id, model.StatusRetrying)
	})

	switch {
	case err == nil:
		st.setStatus(id, model.StatusSucceeded)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		st.recordFailure(id, model.StatusTimedOut, err)
	default:
		st.recordFailure(id, model.StatusFailed, err)
	}
}
