// Package scheduler wires up the cron job that periodically re-runs the
// configured saved searches so the store stays warm between API requests.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/jonathan/jobscraper/internal/source"
)

// RunFunc executes one saved search end to end (scrape, normalize, commit).
type RunFunc func(ctx context.Context, q source.Query) error

// Scheduler wraps robfig/cron and manages the background scrape loop.
type Scheduler struct {
	cron     *cron.Cron
	run      RunFunc
	searches []source.Query
	spec     string // cron spec, e.g. "@every 6h"
}

// New creates a Scheduler that replays searches every intervalHours hours.
func New(run RunFunc, searches []source.Query, intervalHours int) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cron.DefaultLogger)),
		run:      run,
		searches: searches,
		spec:     fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the scheduler. Also runs one cycle
// immediately so the store is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started with spec %s", s.spec)

	// Run immediately on startup (non-blocking)
	go s.runCycle(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

// runCycle replays every saved search sequentially. A failing search is
// logged and skipped so one broken board cannot starve the rest.
func (s *Scheduler) runCycle(ctx context.Context) {
	if len(s.searches) == 0 {
		log.Println("[scheduler] No saved searches configured, nothing to do")
		return
	}

	log.Printf("[scheduler] Scrape cycle started for %d saved search(es)", len(s.searches))
	for _, q := range s.searches {
		if ctx.Err() != nil {
			log.Println("[scheduler] Scrape cycle interrupted by shutdown")
			return
		}
		if err := s.run(ctx, q); err != nil {
			log.Printf("[scheduler] Saved search %q failed: %v", q.SearchTerm, err)
		}
	}
	log.Println("[scheduler] Scrape cycle complete")
}
