package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonathan/jobscraper/internal/model"
)

// fakeStore records upserts and simulates per-fingerprint write failures.
type fakeStore struct {
	upserts []string
	times   []time.Time
	failOn  map[string]error
}

func (f *fakeStore) UpsertJobByFingerprint(_ context.Context, job model.Job, now time.Time) error {
	if err := f.failOn[job.Fingerprint]; err != nil {
		return err
	}
	f.upserts = append(f.upserts, job.Fingerprint)
	f.times = append(f.times, now)
	return nil
}

func TestCommitAllSucceed(t *testing.T) {
	store := &fakeStore{}
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	c := New(store, func() time.Time { return fixed })

	report := c.Commit(context.Background(), []model.Job{
		{Fingerprint: "fp1"},
		{Fingerprint: "fp2"},
	})

	if report.Committed != 2 || len(report.Failed) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for _, ts := range store.times {
		if !ts.Equal(fixed) {
			t.Errorf("expected injected now %v, got %v", fixed, ts)
		}
	}
}

func TestCommitSkipsFailedRecords(t *testing.T) {
	store := &fakeStore{failOn: map[string]error{"fp2": errors.New("connection reset")}}
	c := New(store, nil)

	report := c.Commit(context.Background(), []model.Job{
		{Fingerprint: "fp1"},
		{Fingerprint: "fp2"},
		{Fingerprint: "fp3"},
	})

	if report.Committed != 2 {
		t.Errorf("expected 2 committed, got %d", report.Committed)
	}
	if len(report.Failed) != 1 || report.Failed[0] != "fp2" {
		t.Errorf("expected fp2 reported failed, got %v", report.Failed)
	}
	if len(store.upserts) != 2 {
		t.Errorf("failed record should be skipped, upserts: %v", store.upserts)
	}
}

func TestCommitCancelledContext(t *testing.T) {
	store := &fakeStore{}
	c := New(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := c.Commit(ctx, []model.Job{{Fingerprint: "fp1"}})
	if report.Committed != 0 || len(report.Failed) != 1 {
		t.Fatalf("cancelled commit should report all records failed: %+v", report)
	}
	if len(store.upserts) != 0 {
		t.Errorf("no upserts expected after cancellation, got %v", store.upserts)
	}
}
