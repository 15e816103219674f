// Package normalize converts raw board listings into canonical Job records
// and computes their deduplication fingerprints.
package normalize

import (
	"fmt"
	"strings"

	"github.com/jonathan/jobscraper/internal/model"
	"github.com/jonathan/jobscraper/internal/source"
)

// UnnormalizableError indicates a listing is missing the identity fields
// required to build a canonical record. Such listings are dropped and
// counted, never fatal to a run.
type UnnormalizableError struct {
	SourceID string
	Missing  string
}

func (e *UnnormalizableError) Error() string {
	return fmt.Sprintf("listing from %s cannot be normalized: missing %s", e.SourceID, e.Missing)
}

// Listing converts one RawListing into a canonical Job. Display fields are
// preserved as emitted (trimmed only); lowercase normalization applies to
// fingerprinting alone. Optional fields (posted_at, description) are left
// unset when absent. Timestamps are managed by the committer, not here.
func Listing(l source.RawListing) (model.Job, error) {
	title := strings.TrimSpace(l.Title)
	company := strings.TrimSpace(l.Company)
	key := strings.TrimSpace(l.SourceNativeKey)

	switch {
	case title == "":
		return model.Job{}, &UnnormalizableError{SourceID: l.SourceID, Missing: "title"}
	case company == "":
		return model.Job{}, &UnnormalizableError{SourceID: l.SourceID, Missing: "company"}
	case key == "":
		return model.Job{}, &UnnormalizableError{SourceID: l.SourceID, Missing: "source_native_key"}
	}

	location := strings.TrimSpace(l.Location)
	description := strings.TrimSpace(l.Description)

	return model.Job{
		Fingerprint:     Fingerprint(title, company, location, description),
		Title:           title,
		Company:         company,
		Location:        location,
		Description:     description,
		URL:             strings.TrimSpace(l.URL),
		JobType:         strings.ToLower(strings.TrimSpace(l.JobType)),
		IsRemote:        l.IsRemote,
		PostedAt:        l.PostedAt,
		SourceID:        l.SourceID,
		SourceNativeKey: key,
	}, nil
}
