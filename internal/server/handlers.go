package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/jobscraper/internal/cache"
	"github.com/jonathan/jobscraper/internal/model"
	"github.com/jonathan/jobscraper/internal/scrape"
	"github.com/jonathan/jobscraper/internal/source"
	"github.com/jonathan/jobscraper/internal/store"
)

// ScrapeResponse represents the response for a live scrape run.
type ScrapeResponse struct {
	RunID         uuid.UUID                     `json:"run_id"`
	StartedAt     time.Time                     `json:"started_at"`
	Count         int                           `json:"count"`
	Jobs          []model.Job                   `json:"jobs"`
	Sources       map[string]model.SourceStatus `json:"sources"`
	SourceErrors  map[string]string             `json:"source_errors,omitempty"`
	Dropped       int                           `json:"dropped_listings"`
	Committed     int                           `json:"committed"`
	FailedCommits []string                      `json:"failed_commits,omitempty"`
	Cached        bool                          `json:"cached"`
}

// handleScrapeJobs runs a live scrape for the query parameters, commits the
// results, and returns them. Comma-separated search_term, location, and
// job_type values expand into one run per combination, with the results
// merged. Identical queries within the cache TTL are served from Redis
// without touching the boards.
func (s *Server) handleScrapeJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query, params, err := parseScrapeQuery(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	queries := expandScrapeQueries(query)
	for _, q := range queries {
		if err := s.validate.Struct(q); err != nil {
			s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
			return
		}
	}

	cacheKey := cache.Key(params)
	if body := s.cache.Get(ctx, cacheKey); body != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		w.WriteHeader(http.StatusOK)
		w.Write(body) //nolint:errcheck
		return
	}

	var (
		runID     uuid.UUID
		startedAt time.Time
		jobs      []model.Job
		seen      = make(map[string]bool)
		statuses  = make(map[string]model.SourceStatus)
		srcErrors = make(map[string]string)
		dropped   int
		exhausted int
	)

	for _, q := range queries {
		result, err := s.runner.Run(ctx, q)
		if err != nil {
			if err == scrape.ErrNoSourcesAvailable {
				exhausted++
				if result != nil {
					mergeSourceOutcomes(statuses, srcErrors, result)
				}
				continue
			}
			s.errorResponse(w, http.StatusInternalServerError, "Scrape failed: "+err.Error())
			return
		}

		if runID == uuid.Nil {
			runID = result.RunID
			startedAt = result.StartedAt
		}
		mergeSourceOutcomes(statuses, srcErrors, result)
		dropped += result.Dropped
		for _, job := range result.Jobs {
			if seen[job.Fingerprint] {
				continue
			}
			seen[job.Fingerprint] = true
			jobs = append(jobs, job)
		}
	}

	if exhausted == len(queries) {
		s.errorResponse(w, http.StatusServiceUnavailable,
			"All requested sources failed or timed out")
		return
	}

	report := s.committer.Commit(ctx, jobs)

	if len(srcErrors) == 0 {
		srcErrors = nil
	}
	response := ScrapeResponse{
		RunID:         runID,
		StartedAt:     startedAt,
		Count:         len(jobs),
		Jobs:          jobs,
		Sources:       statuses,
		SourceErrors:  srcErrors,
		Dropped:       dropped,
		Committed:     report.Committed,
		FailedCommits: report.Failed,
	}
	if response.Jobs == nil {
		response.Jobs = []model.Job{}
	}

	// Cache the marshaled body with Cached set, so replayed responses
	// identify themselves.
	cached := response
	cached.Cached = true
	if body, err := json.Marshal(cached); err == nil {
		s.cache.Set(ctx, cacheKey, body)
	}

	s.jsonResponse(w, http.StatusOK, response)
}

// ListStoredJobsResponse represents the response for listing persisted jobs.
type ListStoredJobsResponse struct {
	Jobs   []model.Job `json:"jobs"`
	Count  int         `json:"count"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// handleListStoredJobs lists persisted jobs with optional filters and pagination
func (s *Server) handleListStoredJobs(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 50, 200)
	offset := parseQueryInt(r, "offset", 0, 0)

	opts := store.ListJobsOptions{
		Search:   r.URL.Query().Get("search"),
		SourceID: r.URL.Query().Get("source"),
		Limit:    limit,
		Offset:   offset,
	}

	jobs, err := s.store.ListJobs(r.Context(), opts)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}

	s.jsonResponse(w, http.StatusOK, ListStoredJobsResponse{
		Jobs:   jobs,
		Count:  len(jobs),
		Limit:  limit,
		Offset: offset,
	})
}

// handleGetStoredJob retrieves one persisted job by its fingerprint
func (s *Server) handleGetStoredJob(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")

	job, err := s.store.GetJobByFingerprint(r.Context(), fingerprint)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if job == nil {
		s.errorResponse(w, http.StatusNotFound, "Job not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, job)
}

// handleListLogs lists persisted request logs with skip/limit pagination
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	skip := parseQueryInt(r, "skip", 0, 0)
	limit := parseQueryInt(r, "limit", 100, 500)

	logs, err := s.store.ListRequestLogs(r.Context(), skip, limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if logs == nil {
		logs = []store.RequestLog{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"count": len(logs),
		"skip":  skip,
		"limit": limit,
	})
}

// parseScrapeQuery builds a Query from request parameters. The raw parameter
// map is returned alongside for cache key construction.
func parseScrapeQuery(r *http.Request) (source.Query, map[string]string, error) {
	values := r.URL.Query()
	params := make(map[string]string)
	for key := range values {
		params[key] = values.Get(key)
	}

	q := source.Query{
		SearchTerm: strings.TrimSpace(values.Get("search_term")),
		Location:   strings.TrimSpace(values.Get("location")),
		JobType:    values.Get("job_type"),
	}

	if sites := values.Get("site_name"); sites != "" {
		for _, site := range strings.Split(sites, ",") {
			site = strings.ToLower(strings.TrimSpace(site))
			if site != "" {
				q.Sites = append(q.Sites, site)
			}
		}
	}

	var err error
	if q.Distance, err = parseIntParam(values.Get("distance"), 50); err != nil {
		return q, params, fmt.Errorf("invalid distance: %w", err)
	}
	if q.ResultsWanted, err = parseIntParam(values.Get("results_wanted"), 100); err != nil {
		return q, params, fmt.Errorf("invalid results_wanted: %w", err)
	}
	if q.Offset, err = parseIntParam(values.Get("offset"), 0); err != nil {
		return q, params, fmt.Errorf("invalid offset: %w", err)
	}
	if q.HoursOld, err = parseIntParam(values.Get("hours_old"), 0); err != nil {
		return q, params, fmt.Errorf("invalid hours_old: %w", err)
	}

	if remote := values.Get("is_remote"); remote != "" {
		b, err := strconv.ParseBool(remote)
		if err != nil {
			return q, params, fmt.Errorf("invalid is_remote: %w", err)
		}
		q.IsRemote = &b
	}

	return q, params, nil
}

// expandScrapeQueries splits comma-separated search_term, location, and
// job_type values and expands them into one query per combination.
func expandScrapeQueries(q source.Query) []source.Query {
	terms := splitMulti(q.SearchTerm)
	locations := splitMulti(q.Location)
	jobTypes := splitMulti(q.JobType)

	queries := make([]source.Query, 0, len(terms)*len(locations)*len(jobTypes))
	for _, term := range terms {
		for _, loc := range locations {
			for _, jt := range jobTypes {
				combo := q
				combo.SearchTerm = term
				combo.Location = loc
				combo.JobType = jt
				queries = append(queries, combo)
			}
		}
	}
	return queries
}

// splitMulti splits a comma-separated parameter value. An empty value yields
// a single empty entry so the field still participates in the expansion.
func splitMulti(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

// mergeSourceOutcomes folds one run's per-source outcomes into the
// aggregate. A failure recorded by any combination sticks, and the first
// error message per source wins.
func mergeSourceOutcomes(statuses map[string]model.SourceStatus, errs map[string]string, result *scrape.Result) {
	for id, status := range result.Sources {
		if current, ok := statuses[id]; !ok || current == model.StatusSucceeded {
			statuses[id] = status
		}
	}
	for id, msg := range result.Errors {
		if _, ok := errs[id]; !ok {
			errs[id] = msg
		}
	}
}

// parseIntParam parses an optional integer parameter.
func parseIntParam(value string, defaultValue int) (int, error) {
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

// parseQueryInt parses a bounded non-negative integer query parameter.
func parseQueryInt(r *http.Request, key string, defaultValue, maxValue int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		return defaultValue
	}
	if maxValue > 0 && val > maxValue {
		return maxValue
	}
	return val
}

// extractValidationErrors extracts validation error messages from validator errors.
func extractValidationErrors(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrors) > 0 {
			ve := validationErrors[0]
			return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
		}
	}
	return "validation error: invalid request"
}
