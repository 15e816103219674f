// Package dedup collapses canonical Job records that represent the same
// posting across boards or repeated scrapes.
package dedup

import (
	"sort"

	"github.com/jonathan/jobscraper/internal/model"
)

// SourceRanker resolves a board ID to its configuration-order index.
// Lower is earlier. Unknown IDs rank last.
type SourceRanker interface {
	Rank(sourceID string) int
}

// Jobs groups the run's normalized records by fingerprint and keeps one
// representative per group. Tie-break when several listings share a
// fingerprint: a record with a non-nil PostedAt wins over one without; if
// still tied, the earliest-listed source in configuration order wins. No
// other fields are merged.
//
// The result is deterministic for the same multiset of inputs in any
// arrival order, and is returned sorted by fingerprint.
func Jobs(jobs []model.Job, ranker SourceRanker) []model.Job {
	byFingerprint := make(map[string]model.Job, len(jobs))
	for _, j := range jobs {
		current, seen := byFingerprint[j.Fingerprint]
		if !seen || prefer(j, current, ranker) {
			byFingerprint[j.Fingerprint] = j
		}
	}

	out := make([]model.Job, 0, len(byFingerprint))
	for _, j := range byFingerprint {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].Fingerprint < out[k].Fingerprint
	})
	return out
}

// prefer reports whether candidate should replace current as the
// representative of a fingerprint group. The final native-key comparison
// keeps the choice independent of arrival order even for duplicates from
// the same board.
func prefer(candidate, current model.Job, ranker SourceRanker) bool {
	candidatePosted := candidate.PostedAt != nil
	currentPosted := current.PostedAt != nil
	if candidatePosted != currentPosted {
		return candidatePosted
	}
	cr, or := ranker.Rank(candidate.SourceID), ranker.Rank(current.SourceID)
	if cr != or {
		return cr < or
	}
	return candidate.SourceNativeKey < current.SourceNativeKey
}
