package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobscraper/internal/model"
	"github.com/jonathan/jobscraper/internal/retry"
	"github.com/jonathan/jobscraper/internal/source"
)

// fakeSource scripts one board's behaviour for a run.
type fakeSource struct {
	id       string
	listings []source.RawListing
	errs     []error // consumed one per attempt; nil means success
	calls    int
	block    bool // block until ctx is done (simulates a hung board)
}

func (f *fakeSource) ID() string { return f.id }

func (f *fakeSource) Fetch(ctx context.Context, _ source.Query) ([]source.RawListing, error) {
	if f.block {
		<-ctx.Done()
		return nil, &source.UnavailableError{SourceID: f.id, Cause: ctx.Err()}
	}
	call := f.calls
	f.calls++
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	return f.listings, nil
}

// instantSleeper removes real backoff delays from orchestrator tests.
type instantSleeper struct{}

func (instantSleeper) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newOrchestrator(timeout time.Duration, sources ...source.Source) *Orchestrator {
	ctrl := retry.New(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		retry.WithSleeper(instantSleeper{}), retry.WithJitter(func(d time.Duration) time.Duration { return d }))
	return New(source.NewRegistry(sources...), ctrl, timeout)
}

func listing(sourceID, key, title string) source.RawListing {
	return source.RawListing{
		SourceID:        sourceID,
		SourceNativeKey: key,
		Title:           title,
		Company:         "Acme",
		Location:        "Remote",
	}
}

func TestRunMergesAllSources(t *testing.T) {
	x := &fakeSource{id: "x", listings: []source.RawListing{
		listing("x", "x1", "Backend Engineer"),
		listing("x", "x2", "Platform Engineer"),
	}}
	y := &fakeSource{id: "y", listings: []source.RawListing{
		listing("y", "y1", "Backend Engineer"), // same fingerprint as x1
	}}

	o := newOrchestrator(time.Second, x, y)
	res, err := o.Run(context.Background(), source.Query{SearchTerm: "backend engineer", Location: "remote"})
	require.NoError(t, err)

	assert.Len(t, res.Jobs, 2, "overlapping listing should dedup to 2 distinct fingerprints")
	assert.Equal(t, model.StatusSucceeded, res.Sources["x"])
	assert.Equal(t, model.StatusSucceeded, res.Sources["y"])
}

func TestRunToleratesPartialFailure(t *testing.T) {
	bad := &fakeSource{id: "bad", errs: []error{&source.MalformedError{SourceID: "bad"}}}
	good := &fakeSource{id: "good", listings: []source.RawListing{listing("good", "g1", "SRE")}}

	o := newOrchestrator(time.Second, bad, good)
	res, err := o.Run(context.Background(), source.Query{SearchTerm: "sre"})
	require.NoError(t, err, "one malformed source must not fail the run")

	assert.Len(t, res.Jobs, 1)
	assert.Equal(t, model.StatusFailed, res.Sources["bad"])
	assert.Equal(t, model.StatusSucceeded, res.Sources["good"])
	assert.NotEmpty(t, res.Errors["bad"])
	assert.Equal(t, 1, bad.calls, "malformed responses must not be retried")
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	flaky := &fakeSource{
		id:       "flaky",
		errs:     []error{&source.UnavailableError{SourceID: "flaky"}, &source.RateLimitedError{SourceID: "flaky"}},
		listings: []source.RawListing{listing("flaky", "f1", "Data Engineer")},
	}

	o := newOrchestrator(time.Second, flaky)
	res, err := o.Run(context.Background(), source.Query{SearchTerm: "data"})
	require.NoError(t, err)

	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, model.StatusSucceeded, res.Sources["flaky"])
	assert.Len(t, res.Jobs, 1)
}

func TestRunAllSourcesFail(t *testing.T) {
	a := &fakeSource{id: "a", errs: []error{&source.MalformedError{SourceID: "a"}}}
	b := &fakeSource{id: "b", errs: []error{
		&source.UnavailableError{SourceID: "b"},
		&source.UnavailableError{SourceID: "b"},
		&source.UnavailableError{SourceID: "b"},
	}}

	o := newOrchestrator(time.Second, a, b)
	res, err := o.Run(context.Background(), source.Query{SearchTerm: "anything"})

	require.ErrorIs(t, err, ErrNoSourcesAvailable)
	assert.Empty(t, res.Jobs)
	assert.Equal(t, model.StatusFailed, res.Sources["a"])
	assert.Equal(t, model.StatusFailed, res.Sources["b"])
}

func TestRunDeadlineMarksTimedOut(t *testing.T) {
	hung := &fakeSource{id: "hung", block: true}
	fast := &fakeSource{id: "fast", listings: []source.RawListing{listing("fast", "f1", "Go Developer")}}

	o := newOrchestrator(50*time.Millisecond, hung, fast)

	start := time.Now()
	res, err := o.Run(context.Background(), source.Query{SearchTerm: "go"})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, model.StatusTimedOut, res.Sources["hung"])
	assert.Equal(t, model.StatusSucceeded, res.Sources["fast"])
	assert.Len(t, res.Jobs, 1)
	assert.Less(t, elapsed, time.Second, "run must not linger past the deadline")
}

func TestRunHonorsResultsWanted(t *testing.T) {
	src := &fakeSource{id: "big", listings: []source.RawListing{
		listing("big", "1", "Role One"),
		listing("big", "2", "Role Two"),
		listing("big", "3", "Role Three"),
	}}

	o := newOrchestrator(time.Second, src)
	res, err := o.Run(context.Background(), source.Query{SearchTerm: "role", ResultsWanted: 2})
	require.NoError(t, err)
	assert.Len(t, res.Jobs, 2)
}

func TestRunDropsUnnormalizableListings(t *testing.T) {
	src := &fakeSource{id: "s", listings: []source.RawListing{
		listing("s", "ok", "Fine Role"),
		{SourceID: "s", SourceNativeKey: "bad", Title: "", Company: "Acme"},
	}}

	o := newOrchestrator(time.Second, src)
	res, err := o.Run(context.Background(), source.Query{SearchTerm: "fine"})
	require.NoError(t, err)

	assert.Len(t, res.Jobs, 1)
	assert.Equal(t, 1, res.Dropped)
}

func TestRunSiteSelection(t *testing.T) {
	x := &fakeSource{id: "x", listings: []source.RawListing{listing("x", "x1", "Role")}}
	y := &fakeSource{id: "y", listings: []source.RawListing{listing("y", "y1", "Other Role")}}

	o := newOrchestrator(time.Second, x, y)
	res, err := o.Run(context.Background(), source.Query{SearchTerm: "role", Sites: []string{"y"}})
	require.NoError(t, err)

	_, ranX := res.Sources["x"]
	assert.False(t, ranX, "unselected source must not run")
	assert.Equal(t, model.StatusSucceeded, res.Sources["y"])
}

func TestRunNoSourcesConfigured(t *testing.T) {
	o := newOrchestrator(time.Second)
	_, err := o.Run(context.Background(), source.Query{SearchTerm: "anything"})
	assert.True(t, errors.Is(err, ErrNoSourcesAvailable))
}
