package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobscraper/internal/cache"
	"github.com/jonathan/jobscraper/internal/config"
	"github.com/jonathan/jobscraper/internal/ingest"
	"github.com/jonathan/jobscraper/internal/retry"
	"github.com/jonathan/jobscraper/internal/scheduler"
	"github.com/jonathan/jobscraper/internal/scrape"
	"github.com/jonathan/jobscraper/internal/server"
	"github.com/jonathan/jobscraper/internal/source"
	"github.com/jonathan/jobscraper/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the scrape and stored-job endpoints, plus the background re-scrape scheduler when configured.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	c, err := cache.New(ctx, cfg.RedisURL, cfg.CacheTTL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer c.Close()

	registry := buildRegistry(cfg.UseBrowser)
	orchestrator := scrape.New(registry, retry.New(retry.DefaultPolicy()), cfg.ScrapeTimeout)

	if cfg.ScrapeIntervalHours > 0 {
		searches, err := config.LoadSavedSearches(cfg.SavedSearchesPath)
		if err != nil {
			return fmt.Errorf("failed to load saved searches: %w", err)
		}

		committer := ingest.New(db, nil)
		sched := scheduler.New(func(ctx context.Context, q source.Query) error {
			result, err := orchestrator.Run(ctx, q)
			if err != nil {
				return err
			}
			report := committer.Commit(ctx, result.Jobs)
			log.Printf("[scheduler] Committed %d job(s), %d failed", report.Committed, len(report.Failed))
			return nil
		}, searches, cfg.ScrapeIntervalHours)

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	srv := server.New(server.Config{
		Port:               cfg.Port,
		RateLimitEnabled:   cfg.RateLimitEnabled,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, db, orchestrator, c)
	return srv.Start()
}
