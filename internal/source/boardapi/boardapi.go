// Package boardapi adapts job boards that expose a JSON search API. One
// Board instance wraps one endpoint; the wire format is the common
// results-array shape most board APIs share.
package boardapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonathan/jobscraper/internal/source"
)

const (
	defaultPageSize = 50
	maxPages        = 10
	httpTimeout     = 15 * time.Second
)

// Board fetches listings from one JSON job board API.
type Board struct {
	id       string
	baseURL  string
	apiKey   string
	pageSize int
	client   *http.Client
}

// Option configures a Board.
type Option func(*Board)

// WithAPIKey attaches a bearer token to every request.
func WithAPIKey(key string) Option {
	return func(b *Board) { b.apiKey = key }
}

// WithPageSize overrides the per-page result count.
func WithPageSize(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

// WithHTTPClient overrides the HTTP client, used in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Board) { b.client = c }
}

// New constructs a Board adapter for the given board ID and API base URL.
func New(id, baseURL string, opts ...Option) *Board {
	b := &Board{
		id:       id,
		baseURL:  baseURL,
		pageSize: defaultPageSize,
		client:   &http.Client{Timeout: httpTimeout},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID returns the stable board identifier.
func (b *Board) ID() string {
	return b.id
}

// apiResponse mirrors the top-level search response.
type apiResponse struct {
	Results []apiResult `json:"results"`
	Count   int         `json:"count"`
}

// apiResult mirrors a single listing.
type apiResult struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PostedAt    string `json:"posted_at"` // RFC 3339
	JobType     string `json:"job_type"`
	IsRemote    *bool  `json:"is_remote"`
}

// Fetch retrieves listings for the query, paging until ResultsWanted listings
// are collected or the board runs dry.
func (b *Board) Fetch(ctx context.Context, q source.Query) ([]source.RawListing, error) {
	wanted := q.ResultsWanted
	if wanted <= 0 {
		wanted = b.pageSize
	}

	var listings []source.RawListing
	for page := 1; page <= maxPages && len(listings) < wanted; page++ {
		batch, err := b.fetchPage(ctx, q, page)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		listings = append(listings, batch...)
		if len(batch) < b.pageSize {
			break
		}
	}

	if len(listings) > wanted {
		listings = listings[:wanted]
	}
	return listings, nil
}

func (b *Board) fetchPage(ctx context.Context, q source.Query, page int) ([]source.RawListing, error) {
	params := url.Values{}
	params.Set("q", q.SearchTerm)
	params.Set("location", q.Location)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(b.pageSize))
	if q.Distance > 0 {
		params.Set("distance", strconv.Itoa(q.Distance))
	}
	if q.JobType != "" {
		params.Set("job_type", q.JobType)
	}
	if q.IsRemote != nil {
		params.Set("remote", strconv.FormatBool(*q.IsRemote))
	}
	if q.HoursOld > 0 {
		params.Set("max_age_hours", strconv.Itoa(q.HoursOld))
	}
	if q.Offset > 0 && page == 1 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	reqURL := b.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &source.UnavailableError{SourceID: b.id, Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &source.UnavailableError{SourceID: b.id, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &source.UnavailableError{SourceID: b.id, Cause: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &source.RateLimitedError{SourceID: b.id}
	case resp.StatusCode >= 500:
		return nil, &source.UnavailableError{
			SourceID: b.id,
			Cause:    fmt.Errorf("board returned %d", resp.StatusCode),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &source.MalformedError{
			SourceID: b.id,
			Cause:    fmt.Errorf("board returned %d: %s", resp.StatusCode, string(body)),
		}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &source.MalformedError{SourceID: b.id, Cause: err}
	}

	listings := make([]source.RawListing, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		listing := source.RawListing{
			SourceID:        b.id,
			SourceNativeKey: r.ID,
			Title:           r.Title,
			Company:         r.Company,
			Location:        r.Location,
			Description:     r.Description,
			URL:             r.URL,
			JobType:         r.JobType,
			IsRemote:        r.IsRemote,
		}
		if r.PostedAt != "" {
			if ts, err := time.Parse(time.RFC3339, r.PostedAt); err == nil {
				listing.PostedAt = &ts
			}
		}
		listings = append(listings, listing)
	}
	return listings, nil
}
