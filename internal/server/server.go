// Package server provides the HTTP REST API for the job scraper.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/jobscraper/internal/cache"
	"github.com/jonathan/jobscraper/internal/ingest"
	"github.com/jonathan/jobscraper/internal/model"
	"github.com/jonathan/jobscraper/internal/scrape"
	"github.com/jonathan/jobscraper/internal/server/ratelimit"
	"github.com/jonathan/jobscraper/internal/source"
	"github.com/jonathan/jobscraper/internal/store"
)

// Runner executes one scrape run end to end. Satisfied by
// scrape.Orchestrator; split out so handlers are testable without live
// boards.
type Runner interface {
	Run(ctx context.Context, q source.Query) (*scrape.Result, error)
}

// Store is the slice of the persistence layer the server needs.
type Store interface {
	UpsertJobByFingerprint(ctx context.Context, job model.Job, now time.Time) error
	GetJobByFingerprint(ctx context.Context, fingerprint string) (*model.Job, error)
	ListJobs(ctx context.Context, opts store.ListJobsOptions) ([]model.Job, error)
	InsertRequestLog(ctx context.Context, entry store.RequestLog) error
	ListRequestLogs(ctx context.Context, skip, limit int) ([]store.RequestLog, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	store       Store
	runner      Runner
	committer   *ingest.Committer
	cache       *cache.Cache
	rateLimiter *ratelimit.Limiter
	validate    *validator.Validate
}

// Config holds server configuration
type Config struct {
	Port               int
	RateLimitEnabled   bool
	RateLimitPerMinute int
}

// New creates a new server instance. cache may be nil (caching disabled).
func New(cfg Config, st Store, runner Runner, c *cache.Cache) *Server {
	s := &Server{
		store:     st,
		runner:    runner,
		committer: ingest.New(st, nil),
		cache:     c,
		validate:  validator.New(),
	}

	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig(cfg.RateLimitEnabled, cfg.RateLimitPerMinute))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/jobs", s.handleScrapeJobs)
	mux.HandleFunc("GET /api/v1/jobs/stored", s.handleListStoredJobs)
	mux.HandleFunc("GET /api/v1/jobs/stored/{fingerprint}", s.handleGetStoredJob)
	mux.HandleFunc("GET /api/v1/logs", s.handleListLogs)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second, // Bounds live scrape runs end to end
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for requests and blocks until SIGINT/SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// withLogging logs each request and persists an entry to the request log.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		log.Printf("[%s] %s %d completed in %v", r.Method, r.URL.Path, rec.status, elapsed)

		params := make(map[string]string)
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}

		entry := store.RequestLog{
			RequestID:   uuid.New(),
			Method:      r.Method,
			Path:        r.URL.Path,
			QueryParams: params,
			ClientIP:    s.extractClientID(r),
			Status:      rec.status,
			DurationMS:  float64(elapsed.Microseconds()) / 1000.0,
			UserAgent:   r.UserAgent(),
			CreatedAt:   start.UTC(),
		}

		// Persisting the log must not block or fail the response.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.store.InsertRequestLog(ctx, entry); err != nil {
				log.Printf("[server] failed to persist request log: %v", err)
			}
		}()
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier from the request.
// Uses the IP address from RemoteAddr; X-Forwarded-For is deliberately
// ignored since it is client-controlled.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
