// Package source defines the adapter contract for external job boards and
// the registry that enumerates the boards enabled for a deployment.
package source

import (
	"context"
	"time"
)

// Query holds the search parameters for one orchestration run.
// It is immutable once a run starts.
type Query struct {
	Sites         []string `json:"sites" validate:"omitempty,dive,oneof=linkedin indeed zip_recruiter glassdoor google bayt"`
	SearchTerm    string   `json:"search_term" validate:"required_without=Location"`
	Location      string   `json:"location" validate:"required_without=SearchTerm"`
	Distance      int      `json:"distance" validate:"gte=0"`
	JobType       string   `json:"job_type" validate:"omitempty,oneof=fulltime parttime internship contract"`
	IsRemote      *bool    `json:"is_remote,omitempty"`
	ResultsWanted int      `json:"results_wanted" validate:"gte=0"`
	Offset        int      `json:"offset" validate:"gte=0"`
	HoursOld      int      `json:"hours_old" validate:"gte=0"`
}

// RawListing is a single posting as emitted by one board, before
// normalization. It is never persisted directly.
type RawListing struct {
	SourceID        string
	SourceNativeKey string
	Title           string
	Company         string
	Location        string
	Description     string
	URL             string
	PostedAt        *time.Time
	JobType         string
	IsRemote        *bool
}

// Source is the uniform capability wrapping one external job board.
// Fetch issues the board's search request and returns the raw listings in
// the board's emission order. A fresh call re-issues the request; results
// are finite and not restartable. Implementations are stateless across runs
// and have no side effects beyond the network call itself.
type Source interface {
	// ID returns the stable identifier of the board (e.g. "indeed").
	ID() string

	// Fetch returns raw listings for the query, or one of the typed errors
	// in this package (UnavailableError, RateLimitedError, MalformedError).
	Fetch(ctx context.Context, q Query) ([]RawListing, error)
}

// Registry holds the configured sources in deployment order. The order is
// significant: deduplication tie-breaks prefer the earliest-listed source.
type Registry struct {
	sources []Source
	index   map[string]int
}

// NewRegistry builds a registry from sources in configuration order.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{index: make(map[string]int, len(sources))}
	for _, s := range sources {
		if _, dup := r.index[s.ID()]; dup {
			continue
		}
		r.index[s.ID()] = len(r.sources)
		r.sources = append(r.sources, s)
	}
	return r
}

// All returns every registered source in configuration order.
func (r *Registry) All() []Source {
	return r.sources
}

// Select returns the sources matching the given IDs, preserving
// configuration order. Unknown IDs are skipped; an empty selection
// means all sources.
func (r *Registry) Select(ids []string) []Source {
	if len(ids) == 0 {
		return r.sources
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Source
	for _, s := range r.sources {
		if want[s.ID()] {
			out = append(out, s)
		}
	}
	return out
}

// Rank returns the configuration-order index of a source ID, or the number
// of registered sources when the ID is unknown. Used for deterministic
// dedup tie-breaking.
func (r *Registry) Rank(id string) int {
	if i, ok := r.index[id]; ok {
		return i
	}
	return len(r.sources)
}
