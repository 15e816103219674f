// Package ingest commits a run's deduplicated jobs to the store with
// per-record idempotent upserts.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/jobscraper/internal/model"
)

// JobStore is the slice of the store the committer needs. Each upsert is
// independently atomic; the committer never spans a transaction across the
// batch, so a crash mid-batch leaves previously committed records valid.
type JobStore interface {
	UpsertJobByFingerprint(ctx context.Context, job model.Job, now time.Time) error
}

// StorageWriteError wraps a single record's failed upsert.
type StorageWriteError struct {
	Fingerprint string
	Cause       error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("failed to persist job %s: %v", e.Fingerprint, e.Cause)
}

func (e *StorageWriteError) Unwrap() error {
	return e.Cause
}

// Report summarises one commit pass.
type Report struct {
	Committed int      `json:"committed"`
	Failed    []string `json:"failed_commits,omitempty"` // fingerprints that could not be persisted
}

// Committer writes job batches to a JobStore.
type Committer struct {
	store JobStore
	now   func() time.Time
}

// New builds a Committer. now may be nil, defaulting to time.Now.
func New(store JobStore, now func() time.Time) *Committer {
	if now == nil {
		now = time.Now
	}
	return &Committer{store: store, now: now}
}

// Commit upserts every job keyed by fingerprint. A new record gets
// first_seen_at = last_seen_at = now; an existing one keeps first_seen_at
// and advances last_seen_at (enforced by the store's upsert). A single
// record's failure is logged and reported, never fatal to the run.
func (c *Committer) Commit(ctx context.Context, jobs []model.Job) Report {
	var report Report
	now := c.now().UTC()

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			// Remaining records count as failed so the caller can report them.
			report.Failed = append(report.Failed, job.Fingerprint)
			continue
		}
		if err := c.store.UpsertJobByFingerprint(ctx, job, now); err != nil {
			werr := &StorageWriteError{Fingerprint: job.Fingerprint, Cause: err}
			log.Printf("[ingest] %v", werr)
			report.Failed = append(report.Failed, job.Fingerprint)
			continue
		}
		report.Committed++
	}

	return report
}
