package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apihandlers "github.com/anstrom/portward/internal/api/handlers"
	"github.com/anstrom/portward/internal/config"
	"github.com/anstrom/portward/internal/errors"
	"github.com/anstrom/portward/internal/jobs"
	"github.com/anstrom/portward/internal/metrics"
	"github.com/anstrom/portward/internal/scanning"
)

// MockDB provides a mock database for testing
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type stubJobs struct {
	mu   sync.Mutex
	jobs map[string]jobs.Snapshot
}

func newStubJobs() *stubJobs {
	return &stubJobs{jobs: make(map[string]jobs.Snapshot)}
}

func (s *stubJobs) Create(req scanning.ScanRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := "job-" + req.Target
	s.jobs[id] = jobs.Snapshot{ID: id, Target: req.Target, Status: jobs.StatusQueued}
	return id, nil
}

func (s *stubJobs) Status(id string) (jobs.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.jobs[id]
	if !ok {
		return jobs.Snapshot{}, errors.ErrJobNotFound(id)
	}
	return snap, nil
}

func (s *stubJobs) Cancel(id string) (jobs.Snapshot, error) {
	return s.Status(id)
}

func (s *stubJobs) List() []jobs.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]jobs.Snapshot, 0, len(s.jobs))
	for _, snap := range s.jobs {
		out = append(out, snap)
	}
	return out
}

func createTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, deps Dependencies) *Server {
	t.Helper()
	if deps.Jobs == nil {
		deps.Jobs = newStubJobs()
	}
	s, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.cancel()
		s.hub.Close()
	})
	return s
}

func do(s *Server, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNew(t *testing.T) {
	_, err := New(nil, Dependencies{Jobs: newStubJobs()})
	assert.Error(t, err)

	_, err = New(createTestConfig(), Dependencies{})
	assert.Error(t, err)

	s := newTestServer(t, createTestConfig(), Dependencies{})
	assert.Equal(t, "127.0.0.1:0", s.Address())
	assert.NotNil(t, s.Router())
}

func TestServerRoutes(t *testing.T) {
	database := &MockDB{}
	database.On("Ping", mock.Anything).Return(nil)
	s := newTestServer(t, createTestConfig(), Dependencies{
		Database: database,
		Build:    apihandlers.BuildInfo{Version: "v1.0.0", Commit: "abc"},
	})

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodGet, "/api/v1/liveness", http.StatusOK},
		{http.MethodGet, "/api/v1/status", http.StatusOK},
		{http.MethodGet, "/api/v1/version", http.StatusOK},
		{http.MethodGet, "/api/v1/scans", http.StatusOK},
		{http.MethodGet, "/api/v1/scans/nope", http.StatusNotFound},
		{http.MethodPost, "/api/v1/scans/nope/cancel", http.StatusNotFound},
		{http.MethodGet, "/api/v1/sessions", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/stats", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/ws", http.StatusBadRequest},
		{http.MethodGet, "/docs", http.StatusMovedPermanently},
		{http.MethodGet, "/metrics", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/scans", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(s, tt.method, tt.path, "", nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestServerCreateScan(t *testing.T) {
	s := newTestServer(t, createTestConfig(), Dependencies{})

	rec := do(s, http.MethodPost, "/api/v1/scans", `{"target":"127.0.0.1","start_port":1,"end_port":10}`,
		map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/api/v1/scans/job-127.0.0.1", rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(s, http.MethodGet, "/api/v1/scans/job-127.0.0.1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap jobs.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, jobs.StatusQueued, snap.Status)

	rec = do(s, http.MethodPost, "/api/v1/scans", `{"target":"127.0.0.1","start_port":10,"end_port":1}`,
		map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(errors.CodeInvalidRange))

	rec = do(s, http.MethodPost, "/api/v1/scans", "target=x", map[string]string{"Content-Type": "text/plain"})
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestServerRateLimit(t *testing.T) {
	cfg := createTestConfig()
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, BurstSize: 2}
	s := newTestServer(t, cfg, Dependencies{})

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/v1/liveness", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/v1/liveness", "", nil).Code)

	rec := do(s, http.MethodGet, "/api/v1/liveness", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), string(errors.CodeRateLimited))
}

func TestServerCORS(t *testing.T) {
	cfg := createTestConfig()
	cfg.Server.CORS.AllowedOrigins = []string{"https://ui.example.com"}
	s := newTestServer(t, cfg, Dependencies{})

	rec := do(s, http.MethodOptions, "/api/v1/scans", "", map[string]string{
		"Origin":                        "https://ui.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://ui.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(s, http.MethodGet, "/api/v1/liveness", "", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerMetricsAndDocs(t *testing.T) {
	s := newTestServer(t, createTestConfig(), Dependencies{Metrics: metrics.NewPrometheusMetrics()})

	require.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/v1/scans/missing", "", nil).Code)

	rec := do(s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `portward_api_requests_total{method="GET",path="/api/v1/scans/{id}",status="404"} 1`)

	rec = do(s, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/scans/{id}/cancel")
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestServerServeAndStop(t *testing.T) {
	s := newTestServer(t, createTestConfig(), Dependencies{})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	url := "http://" + listener.Addr().String() + "/api/v1/liveness"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestOriginChecker(t *testing.T) {
	assert.Nil(t, OriginChecker(nil))
	assert.Nil(t, OriginChecker([]string{"*"}))

	check := OriginChecker([]string{"https://ui.example.com"})
	require.NotNil(t, check)

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"", true},
		{"https://ui.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.allowed, check(req), tt.origin)
	}
}
