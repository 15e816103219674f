package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/jobscraper/internal/model"
	"github.com/jonathan/jobscraper/internal/scrape"
	"github.com/jonathan/jobscraper/internal/source"
	"github.com/jonathan/jobscraper/internal/store"
)

// mockStore implements Store in memory.
type mockStore struct {
	mu       sync.Mutex
	jobs     map[string]model.Job
	logs     []store.RequestLog
	listErr  error
	upserted int
}

func newMockStore() *mockStore {
	return &mockStore{jobs: make(map[string]model.Job)}
}

func (m *mockStore) UpsertJobByFingerprint(_ context.Context, job model.Job, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.Fingerprint] = job
	m.upserted++
	return nil
}

func (m *mockStore) GetJobByFingerprint(_ context.Context, fingerprint string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[fingerprint]; ok {
		return &j, nil
	}
	return nil, nil
}

func (m *mockStore) ListJobs(_ context.Context, _ store.ListJobsOptions) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Job
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (m *mockStore) InsertRequestLog(_ context.Context, entry store.RequestLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *mockStore) ListRequestLogs(_ context.Context, _, _ int) ([]store.RequestLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.RequestLog(nil), m.logs...), nil
}

// mockRunner returns a canned result or error. runFunc, when set, decides
// the outcome per query.
type mockRunner struct {
	result  *scrape.Result
	err     error
	runFunc func(q source.Query) (*scrape.Result, error)
	gotQ    source.Query
	queries []source.Query
}

func (m *mockRunner) Run(_ context.Context, q source.Query) (*scrape.Result, error) {
	m.gotQ = q
	m.queries = append(m.queries, q)
	if m.runFunc != nil {
		return m.runFunc(q)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func newTestServer(runner Runner, st Store) *Server {
	return New(Config{Port: 0, RateLimitEnabled: true, RateLimitPerMinute: 60}, st, runner, nil)
}

func testResult(jobs ...model.Job) *scrape.Result {
	return &scrape.Result{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
		Jobs:      jobs,
		Sources:   map[string]model.SourceStatus{"indeed": model.StatusSucceeded},
	}
}

func TestHandleScrapeJobs(t *testing.T) {
	job := model.Job{
		Fingerprint: "abc123",
		Title:       "Go Engineer",
		Company:     "Acme",
		SourceID:    "indeed",
	}
	runner := &mockRunner{result: testResult(job)}
	st := newMockStore()
	srv := newTestServer(runner, st)

	req := httptest.NewRequest("GET", "/api/v1/jobs?search_term=golang&site_name=indeed", nil)
	req.RemoteAddr = "10.1.1.1:40000"
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ScrapeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Count != 1 || len(resp.Jobs) != 1 {
		t.Errorf("expected 1 job, got %+v", resp)
	}
	if resp.Committed != 1 {
		t.Errorf("expected 1 committed, got %d", resp.Committed)
	}
	if runner.gotQ.SearchTerm != "golang" {
		t.Errorf("search term not passed through: %+v", runner.gotQ)
	}
	if len(runner.gotQ.Sites) != 1 || runner.gotQ.Sites[0] != "indeed" {
		t.Errorf("sites not passed through: %+v", runner.gotQ)
	}
	if runner.gotQ.ResultsWanted != 100 {
		t.Errorf("expected default results_wanted 100, got %d", runner.gotQ.ResultsWanted)
	}
	if runner.gotQ.Distance != 50 {
		t.Errorf("expected default distance 50, got %d", runner.gotQ.Distance)
	}
}

func TestHandleScrapeJobsSiteNameCaseInsensitive(t *testing.T) {
	runner := &mockRunner{result: testResult()}
	srv := newTestServer(runner, newMockStore())

	req := httptest.NewRequest("GET", "/api/v1/jobs?search_term=golang&site_name=LinkedIn,%20INDEED", nil)
	req.RemoteAddr = "10.1.1.10:40000"
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(runner.gotQ.Sites) != 2 || runner.gotQ.Sites[0] != "linkedin" || runner.gotQ.Sites[1] != "indeed" {
		t.Errorf("sites not lower-cased: %+v", runner.gotQ.Sites)
	}
}

func TestHandleScrapeJobsMultiValueExpansion(t *testing.T) {
	runner := &mockRunner{
		runFunc: func(q source.Query) (*scrape.Result, error) {
			return testResult(
				model.Job{Fingerprint: q.SearchTerm + "|" + q.Location + "|" + q.JobType, SourceID: "indeed"},
				model.Job{Fingerprint: "shared", SourceID: "indeed"},
			), nil
		},
	}
	st := newMockStore()
	srv := newTestServer(runner, st)

	req := httptest.NewRequest("GET",
		"/api/v1/jobs?search_term=golang,python&location=Austin,Remote&job_type=fulltime,contract", nil)
	req.RemoteAddr = "10.1.1.11:40000"
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(runner.queries) != 8 {
		t.Fatalf("expected 8 combination runs, got %d", len(runner.queries))
	}

	combos := make(map[string]bool)
	for _, q := range runner.queries {
		combos[q.SearchTerm+"|"+q.Location+"|"+q.JobType] = true
	}
	for _, want := range []string{"golang|Austin|fulltime", "python|Remote|contract"} {
		if !combos[want] {
			t.Errorf("combination %q never ran; got %v", want, combos)
		}
	}

	var resp ScrapeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	// 8 combination-unique jobs plus "shared" deduplicated across runs.
	if resp.Count != 9 {
		t.Errorf("expected 9 merged jobs, got %d", resp.Count)
	}
	if resp.Committed != 9 {
		t.Errorf("expected 9 committed, got %d", resp.Committed)
	}
}

func TestHandleScrapeJobsMultiValuePartialFailure(t *testing.T) {
	runner := &mockRunner{
		runFunc: func(q source.Query) (*scrape.Result, error) {
			if q.SearchTerm == "cobol" {
				return nil, scrape.ErrNoSourcesAvailable
			}
			return testResult(model.Job{Fingerprint: "f-" + q.SearchTerm, SourceID: "indeed"}), nil
		},
	}
	srv := newTestServer(runner, newMockStore())

	req := httptest.NewRequest("GET", "/api/v1/jobs?search_term=golang,cobol", nil)
	req.RemoteAddr = "10.1.1.12:40000"
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when one combination succeeds, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ScrapeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("expected 1 job from the surviving combination, got %d", resp.Count)
	}
}

func TestHandleScrapeJobsMultiValueAllFailed(t *testing.T) {
	runner := &mockRunner{err: scrape.ErrNoSourcesAvailable}
	srv := newTestServer(runner, newMockStore())

	req := httptest.NewRequest("GET", "/api/v1/jobs?search_term=golang,python", nil)
	req.RemoteAddr = "10.1.1.13:40000"
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when every combination fails, got %d", rr.Code)
	}
	if len(runner.queries) != 2 {
		t.Errorf("expected both combinations attempted, got %d", len(runner.queries))
	}
}

func TestExpandScrapeQueries(t *testing.T) {
	tests := []struct {
		name  string
		query source.Query
		want  int
	}{
		{"single values", source.Query{SearchTerm: "golang", Location: "Austin"}, 1},
		{"multi term", source.Query{SearchTerm: "golang, python"}, 2},
		{"term and location", source.Query{SearchTerm: "a,b", Location: "x,y"}, 4},
		{"full cross product", source.Query{SearchTerm: "a,b", Location: "x,y", JobType: "fulltime,contract"}, 8},
		{"empty fields collapse", source.Query{Location: "Austin"}, 1},
		{"trailing comma ignored", source.Query{SearchTerm: "golang,"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandScrapeQueries(tt.query)
			if len(got) != tt.want {
				t.Errorf("expected %d queries, got %d: %+v", tt.want, len(got), got)
			}
			for _, q := range got {
				if q.SearchTerm == "" && q.Location == "" && tt.query.SearchTerm+tt.query.Location != "" {
					t.Errorf("expansion lost term and location: %+v", q)
				}
			}
		})
	}
}

func TestHandleScrapeJobsValidation(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"missing term and location", ""},
		{"unknown site", "site_name=monster&search_term=golang"},
		{"invalid job type", "search_term=golang&job_type=gig"},
		{"malformed results_wanted", "search_term=golang&results_wanted=lots"},
		{"malformed is_remote", "search_term=golang&is_remote=sometimes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{result: testResult()}
			srv := newTestServer(runner, newMockStore())

			req := httptest.NewRequest("GET", "/api/v1/jobs?"+tt.query, nil)
			req.RemoteAddr = "10.1.1.2:40000"
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHandleScrapeJobsAllSourcesFailed(t *testing.T) {
	runner := &mockRunner{err: scrape.ErrNoSourcesAvailable}
	srv := newTestServer(runner, newMockStore())

	req := httptest.NewRequest("GET", "/api/v1/jobs?search_term=golang", nil)
	req.RemoteAddr = "10.1.1.3:40000"
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleListStoredJobs(t *testing.T) {
	st := newMockStore()
	st.jobs["f1"] = model.Job{Fingerprint: "f1", Title: "Go Engineer"}
	srv := newTestServer(&mockRunner{}, st)

	req := httptest.NewRequest("GET", "/api/v1/jobs/stored?limit=10", nil)
	req.RemoteAddr = "10.1.1.4:40000"
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp ListStoredJobsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Count != 1 || resp.Limit != 10 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleGetStoredJob(t *testing.T) {
	st := newMockStore()
	st.jobs["f1"] = model.Job{Fingerprint: "f1", Title: "Go Engineer"}
	srv := newTestServer(&mockRunner{}, st)

	req := httptest.NewRequest("GET", "/api/v1/jobs/stored/f1", nil)
	req.RemoteAddr = "10.1.1.9:40000"
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var job model.Job
	if err := json.Unmarshal(rr.Body.Bytes(), &job); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if job.Fingerprint != "f1" {
		t.Errorf("unexpected job: %+v", job)
	}

	req = httptest.NewRequest("GET", "/api/v1/jobs/stored/missing", nil)
	req.RemoteAddr = "10.1.1.9:40000"
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown fingerprint, got %d", rr.Code)
	}
}

func TestHandleListLogs(t *testing.T) {
	st := newMockStore()
	st.logs = []store.RequestLog{{RequestID: uuid.New(), Method: "GET", Path: "/api/v1/jobs"}}
	srv := newTestServer(&mockRunner{}, st)

	req := httptest.NewRequest("GET", "/api/v1/logs", nil)
	req.RemoteAddr = "10.1.1.5:40000"
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Logs  []store.RequestLog `json:"logs"`
		Count int                `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("expected 1 log, got %+v", resp)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&mockRunner{}, newMockStore())

	req := httptest.NewRequest("GET", "/health", nil)
	req.RemoteAddr = "10.1.1.6:40000"
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
}

func TestRateLimitHeaders(t *testing.T) {
	srv := newTestServer(&mockRunner{result: testResult()}, newMockStore())

	req := httptest.NewRequest("GET", "/api/v1/jobs?search_term=golang", nil)
	req.RemoteAddr = "10.1.1.7:40000"
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("expected X-RateLimit-Limit header on metered endpoint")
	}
}

func TestRateLimitConfiguredPerMinute(t *testing.T) {
	srv := New(Config{Port: 0, RateLimitEnabled: true, RateLimitPerMinute: 2},
		newMockStore(), &mockRunner{result: testResult()}, nil)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/v1/jobs?search_term=golang", nil)
		req.RemoteAddr = "10.1.2.1:40000"
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		last = rr.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 once the configured budget is spent, got %d", last)
	}
}

func TestRateLimitDisabledByConfig(t *testing.T) {
	srv := New(Config{Port: 0, RateLimitEnabled: false, RateLimitPerMinute: 1},
		newMockStore(), &mockRunner{result: testResult()}, nil)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/v1/jobs?search_term=golang", nil)
		req.RemoteAddr = "10.1.2.2:40000"
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 with limiting disabled, got %d", rr.Code)
		}
	}
}

func TestServerWriteTimeout(t *testing.T) {
	srv := newTestServer(&mockRunner{}, newMockStore())

	if srv.httpServer.WriteTimeout != 60*time.Second {
		t.Errorf("expected 60s write timeout, got %v", srv.httpServer.WriteTimeout)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(&mockRunner{}, newMockStore())

	req := httptest.NewRequest("OPTIONS", "/api/v1/jobs", nil)
	req.RemoteAddr = "10.1.1.8:40000"
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS origin header")
	}
}
