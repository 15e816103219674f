package main

import (
	"os"

	"github.com/jonathan/jobscraper/internal/source"
	"github.com/jonathan/jobscraper/internal/source/boardapi"
	"github.com/jonathan/jobscraper/internal/source/boardhtml"
)

// buildRegistry wires the board adapters in deployment order. The order
// matters: earlier boards win deduplication tie-breaks. Base URLs are
// env-overridable so staging deployments can point at mirrors.
func buildRegistry(useBrowser bool) *source.Registry {
	var sources []source.Source

	// HTML boards rarely carry the full posting text on the result page;
	// allow a few posting-page fetches per run to fill descriptions in.
	htmlOpts := []boardhtml.Option{boardhtml.WithDescriptions(5)}
	if useBrowser {
		htmlOpts = append(htmlOpts, boardhtml.WithBrowser())
	}

	sources = append(sources, boardhtml.New("linkedin",
		boardURL("LINKEDIN_BASE_URL", "https://www.linkedin.com/jobs/search"),
		boardhtml.Selectors{
			Listing:        "div.base-search-card",
			Title:          "h3.base-search-card__title",
			Company:        "h4.base-search-card__subtitle",
			Location:       "span.job-search-card__location",
			Link:           "a.base-card__full-link",
			PostedAt:       "time.job-search-card__listdate",
			PostedAtFormat: "2006-01-02",
		},
		htmlOpts...,
	))

	sources = append(sources, boardhtml.New("indeed",
		boardURL("INDEED_BASE_URL", "https://www.indeed.com/jobs"),
		boardhtml.Selectors{
			Listing:     "div.job_seen_beacon",
			Title:       "h2.jobTitle span",
			Company:     "span.companyName",
			Location:    "div.companyLocation",
			Description: "div.job-snippet",
			Link:        "h2.jobTitle a",
		},
		htmlOpts...,
	))

	sources = append(sources, boardapi.New("zip_recruiter",
		boardURL("ZIP_RECRUITER_BASE_URL", "https://api.ziprecruiter.com/jobs/v1"),
		boardapi.WithAPIKey(os.Getenv("ZIP_RECRUITER_API_KEY")),
	))

	sources = append(sources, boardapi.New("glassdoor",
		boardURL("GLASSDOOR_BASE_URL", "https://api.glassdoor.com/v1/jobs"),
		boardapi.WithAPIKey(os.Getenv("GLASSDOOR_API_KEY")),
	))

	sources = append(sources, boardhtml.New("google",
		boardURL("GOOGLE_JOBS_BASE_URL", "https://www.google.com/search"),
		boardhtml.Selectors{
			Listing:  "div.iFjolb",
			Title:    "div.BjJfJf",
			Company:  "div.vNEEBe",
			Location: "div.Qk80Jf",
			Link:     "a",
		},
		htmlOpts...,
	))

	sources = append(sources, boardhtml.New("bayt",
		boardURL("BAYT_BASE_URL", "https://www.bayt.com/en/international/jobs"),
		boardhtml.Selectors{
			Listing:  "li.has-pointer-d",
			Title:    "h2 a",
			Company:  "b.jb-company",
			Location: "span.jb-loc",
			Link:     "h2 a",
		},
		htmlOpts...,
	))

	return source.NewRegistry(sources...)
}

func boardURL(envKey, defaultURL string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultURL
}
