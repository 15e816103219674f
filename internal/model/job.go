// Package model defines the canonical data structures shared across the
// scrape pipeline and the store.
package model

import "time"

// Job is the canonical posting record. Fingerprint is the deduplication and
// idempotency key: it is derived deterministically from normalized identity
// fields and is stable for semantically identical postings regardless of
// which board produced them.
type Job struct {
	Fingerprint     string     `json:"fingerprint"`
	Title           string     `json:"job_title"`
	Company         string     `json:"company"`
	Location        string     `json:"location"`
	Description     string     `json:"job_description,omitempty"`
	URL             string     `json:"url,omitempty"`
	JobType         string     `json:"job_type,omitempty"`
	IsRemote        *bool      `json:"is_remote,omitempty"`
	PostedAt        *time.Time `json:"date_posted,omitempty"`
	SourceID        string     `json:"source_website"`
	SourceNativeKey string     `json:"source_native_key"`
	FirstSeenAt     time.Time  `json:"first_seen_at,omitzero"`
	LastSeenAt      time.Time  `json:"last_seen_at,omitzero"`
}

// SourceStatus is the terminal (or in-flight) state of one board within a
// single orchestration run.
type SourceStatus string

const (
	StatusPending   SourceStatus = "pending"
	StatusRetrying  SourceStatus = "retrying"
	StatusSucceeded SourceStatus = "succeeded"
	StatusFailed    SourceStatus = "failed"
	StatusTimedOut  SourceStatus = "timed_out"
)
