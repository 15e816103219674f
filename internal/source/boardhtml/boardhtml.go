// Package boardhtml adapts job boards without a search API by scraping
// their HTML result pages. One Board instance wraps one site and the CSS
// selectors that locate listings on it.
package boardhtml

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/jobscraper/internal/fetch"
	"github.com/jonathan/jobscraper/internal/source"
)

const browserTimeout = 60 * time.Second

// Selectors locates listing fields inside one search result page. Listing
// scopes each posting; the rest are resolved relative to it.
type Selectors struct {
	Listing     string
	Title       string
	Company     string
	Location    string
	Description string
	Link        string // anchor element; href becomes the listing URL

	PostedAt       string
	PostedAtFormat string // time.Parse layout for the posted date text
}

// Board scrapes listings from one job board's HTML search pages.
type Board struct {
	id           string
	baseURL      string
	selectors    Selectors
	opts         *fetch.Options
	useBrowser   bool
	verbose      bool
	descriptions int
}

// Option configures a Board.
type Option func(*Board)

// WithBrowser enables the headless browser fallback for pages that render
// their listings with JavaScript.
func WithBrowser() Option {
	return func(b *Board) { b.useBrowser = true }
}

// WithVerbose enables debug logging during browser fetches.
func WithVerbose() Option {
	return func(b *Board) { b.verbose = true }
}

// WithFetchOptions overrides the HTTP fetch options.
func WithFetchOptions(opts *fetch.Options) Option {
	return func(b *Board) { b.opts = opts }
}

// WithDescriptions fetches up to n individual posting pages per run to fill
// in descriptions the result page does not carry. Zero disables enrichment.
func WithDescriptions(n int) Option {
	return func(b *Board) { b.descriptions = n }
}

// New constructs a Board adapter. baseURL is the search endpoint; query
// parameters are appended per request.
func New(id, baseURL string, selectors Selectors, opts ...Option) *Board {
	b := &Board{
		id:        id,
		baseURL:   baseURL,
		selectors: selectors,
		opts:      fetch.DefaultOptions(),
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

// Fetch retrieves one search page and extracts its listings. HTML boards
// paginate poorly and inconsistently, so a single page per run is fetched;
// ResultsWanted still truncates the extracted set.
func (b *Board) Fetch(ctx context.Context, q source.Query) ([]source.RawListing, error) {
	pageURL := b.searchURL(q)

	html, err := b.fetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	listings, err := b.extract(html)
	if err != nil {
		return nil, &source.MalformedError{SourceID: b.id, Cause: err}
	}

	// JS-heavy boards serve a near-empty shell to plain HTTP clients.
	if len(listings) == 0 && b.useBrowser {
		rendered, berr := fetch.WithBrowser(ctx, pageURL, browserTimeout, b.verbose)
		if berr != nil {
			return nil, &source.UnavailableError{SourceID: b.id, Cause: berr}
		}
		if listings, err = b.extract(rendered); err != nil {
			return nil, &source.MalformedError{SourceID: b.id, Cause: err}
		}
	}

	if q.ResultsWanted > 0 && len(listings) > q.ResultsWanted {
		listings = listings[:q.ResultsWanted]
	}

	b.enrichDescriptions(ctx, listings)
	return listings, nil
}

// enrichDescriptions fills in missing descriptions by fetching individual
// posting pages, up to the configured budget. Best-effort: a failed page
// fetch leaves the description empty rather than failing the run.
func (b *Board) enrichDescriptions(ctx context.Context, listings []source.RawListing) {
	if b.descriptions <= 0 {
		return
	}

	fetched := 0
	for i := range listings {
		if fetched >= b.descriptions || ctx.Err() != nil {
			return
		}
		if listings[i].Description != "" || listings[i].URL == "" {
			continue
		}
		fetched++

		res, _ := fetch.URL(ctx, listings[i].URL, b.opts)
		if res == nil || res.StatusCode != http.StatusOK {
			continue
		}

		text, err := fetch.ExtractText(res.Body, fetch.JobDescriptionSelectors()...)
		if err != nil {
			continue
		}
		if fetch.ShouldUseBrowser(text) && b.useBrowser {
			rendered, berr := fetch.WithBrowser(ctx, listings[i].URL, browserTimeout, b.verbose)
			if berr != nil {
				continue
			}
			if rt, rerr := fetch.ExtractText(rendered, fetch.JobDescriptionSelectors()...); rerr == nil {
				text = rt
			}
		}
		listings[i].Description = text
	}
}

func (b *Board) fetchHTML(ctx context.Context, pageURL string) (string, error) {
	res, err := fetch.URL(ctx, pageURL, b.opts)
	if res == nil {
		return "", &source.UnavailableError{SourceID: b.id, Cause: err}
	}

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return "", &source.RateLimitedError{SourceID: b.id}
	case res.StatusCode >= 500:
		return "", &source.UnavailableError{SourceID: b.id, Cause: err}
	case res.StatusCode != http.StatusOK:
		return "", &source.MalformedError{SourceID: b.id, Cause: err}
	}
	return res.Body, nil
}

// searchURL assembles the search page URL for the query.
func (b *Board) searchURL(q source.Query) string {
	params := url.Values{}
	if q.SearchTerm != "" {
		params.Set("q", q.SearchTerm)
	}
	if q.Location != "" {
		params.Set("location", q.Location)
	}
	if q.Distance > 0 {
		params.Set("radius", strconv.Itoa(q.Distance))
	}
	if q.Offset > 0 {
		params.Set("start", strconv.Itoa(q.Offset))
	}
	if len(params) == 0 {
		return b.baseURL
	}
	return b.baseURL + "?" + params.Encode()
}

// extract pulls listings out of a result page using the configured selectors.
func (b *Board) extract(html string) ([]source.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var listings []source.RawListing
	doc.Find(b.selectors.Listing).Each(func(_ int, sel *goquery.Selection) {
		listing := source.RawListing{
			SourceID: b.id,
			Title:    text(sel, b.selectors.Title),
			Company:  text(sel, b.selectors.Company),
			Location: text(sel, b.selectors.Location),
		}

		if b.selectors.Description != "" {
			listing.Description = fetch.CleanWhitespace(text(sel, b.selectors.Description))
		}

		if href, ok := sel.Find(b.selectors.Link).First().Attr("href"); ok {
			listing.URL = b.absoluteURL(href)
			listing.SourceNativeKey = nativeKey(listing.URL)
		}

		if b.selectors.PostedAt != "" {
			if raw := text(sel, b.selectors.PostedAt); raw != "" {
				if ts, perr := time.Parse(b.selectors.PostedAtFormat, raw); perr == nil {
					listing.PostedAt = &ts
				}
			}
		}

		listings = append(listings, listing)
	})
	return listings, nil
}

// absoluteURL resolves a possibly relative href against the board base URL.
func (b *Board) absoluteURL(href string) string {
	base, err := url.Parse(b.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// nativeKey derives the board's listing identifier from a listing URL.
// The last path segment is the most stable key HTML boards expose.
func nativeKey(listingURL string) string {
	u, err := url.Parse(listingURL)
	if err != nil {
		return listingURL
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return listingURL
	}
	segments := strings.Split(path, "/")
	return segments[len(segments)-1]
}

func text(sel *goquery.Selection, query string) string {
	if query == "" {
		return ""
	}
	return strings.TrimSpace(sel.Find(query).First().Text())
}
