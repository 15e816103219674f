// Package main provides the entry point for the JobScraper HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jobscraper",
	Short: "Job board scraping and ingestion service",
	Long:  "JobScraper fans search queries out to multiple job boards concurrently, deduplicates the results by content fingerprint, and persists them behind a REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
