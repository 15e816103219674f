package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobscraper/internal/config"
	"github.com/jonathan/jobscraper/internal/ingest"
	"github.com/jonathan/jobscraper/internal/retry"
	"github.com/jonathan/jobscraper/internal/scrape"
	"github.com/jonathan/jobscraper/internal/source"
	"github.com/jonathan/jobscraper/internal/store"
)

var (
	scrapeSites         string
	scrapeSearchTerm    string
	scrapeLocation      string
	scrapeDistance      int
	scrapeJobType       string
	scrapeResultsWanted int
	scrapeHoursOld      int
	scrapeRemote        bool
	scrapeCommit        bool
	scrapeTimeout       time.Duration
	scrapeUseBrowser    bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one scrape and print the results as JSON",
	Long:  `Run a single scrape against the configured job boards and print the deduplicated results to stdout. With --commit the results are also persisted to the database.`,
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeSites, "sites", "", "Comma-separated board IDs (default: all)")
	scrapeCmd.Flags().StringVarP(&scrapeSearchTerm, "search-term", "s", "", "Search term")
	scrapeCmd.Flags().StringVarP(&scrapeLocation, "location", "l", "", "Location")
	scrapeCmd.Flags().IntVar(&scrapeDistance, "distance", 0, "Search radius in miles")
	scrapeCmd.Flags().StringVar(&scrapeJobType, "job-type", "", "Job type (fulltime, parttime, internship, contract)")
	scrapeCmd.Flags().IntVar(&scrapeResultsWanted, "results-wanted", 100, "Maximum results per board")
	scrapeCmd.Flags().IntVar(&scrapeHoursOld, "hours-old", 0, "Only listings newer than this many hours")
	scrapeCmd.Flags().BoolVar(&scrapeRemote, "remote", false, "Remote positions only")
	scrapeCmd.Flags().BoolVar(&scrapeCommit, "commit", false, "Persist results to the database")
	scrapeCmd.Flags().DurationVar(&scrapeTimeout, "timeout", scrape.DefaultTimeout, "Deadline for the whole run")
	scrapeCmd.Flags().BoolVar(&scrapeUseBrowser, "use-browser", false, "Use headless browser for JS-heavy boards")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	if scrapeSearchTerm == "" && scrapeLocation == "" {
		return fmt.Errorf("at least one of --search-term or --location is required")
	}

	q := source.Query{
		SearchTerm:    scrapeSearchTerm,
		Location:      scrapeLocation,
		Distance:      scrapeDistance,
		JobType:       scrapeJobType,
		ResultsWanted: scrapeResultsWanted,
		HoursOld:      scrapeHoursOld,
	}
	if scrapeSites != "" {
		for _, site := range strings.Split(scrapeSites, ",") {
			if site = strings.TrimSpace(site); site != "" {
				q.Sites = append(q.Sites, site)
			}
		}
	}
	if cmd.Flags().Changed("remote") {
		q.IsRemote = &scrapeRemote
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	registry := buildRegistry(scrapeUseBrowser)
	orchestrator := scrape.New(registry, retry.New(retry.DefaultPolicy()), scrapeTimeout)

	result, err := orchestrator.Run(ctx, q)
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}

	if scrapeCommit {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		db, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}

		report := ingest.New(db, nil).Commit(ctx, result.Jobs)
		fmt.Fprintf(os.Stderr, "Committed %d job(s), %d failed\n", report.Committed, len(report.Failed))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
