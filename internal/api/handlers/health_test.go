package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portward/internal/jobs"
)

// MockDB is a mock implementation of the database interface.
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type staticJobs []jobs.Snapshot

func (s staticJobs) List() []jobs.Snapshot { return s }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name           string
		pingErr        error
		withDB         bool
		expectedStatus int
		expectedHealth string
		expectedDB     string
	}{
		{"healthy database", nil, true, http.StatusOK, StatusHealthy, "ok"},
		{"database down", errors.New("connection refused"), true, http.StatusServiceUnavailable, StatusUnhealthy, "failed"},
		{"no database", nil, false, http.StatusOK, StatusHealthy, StatusNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var database DatabasePinger
			mockDB := &MockDB{}
			if tt.withDB {
				mockDB.On("Ping", mock.Anything).Return(tt.pingErr)
				database = mockDB
			}
			handler := NewHealthHandler(database, staticJobs{}, BuildInfo{}, createTestLogger())

			rec := httptest.NewRecorder()
			handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedHealth, resp.Status)
			assert.Equal(t, tt.expectedDB, resp.Checks["database"])
			assert.Equal(t, "ok", resp.Checks["registry"])
			assert.NotContains(t, rec.Body.String(), "connection refused")
			mockDB.AssertExpectations(t)
		})
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	handler := NewHealthHandler(nil, nil, BuildInfo{}, createTestLogger())

	rec := httptest.NewRecorder()
	handler.Liveness(rec, httptest.NewRequest(http.MethodGet, "/liveness", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.NotEmpty(t, resp.Uptime)
}

func TestHealthHandler_Status(t *testing.T) {
	list := staticJobs{
		{ID: "a", Status: jobs.StatusRunning},
		{ID: "b", Status: jobs.StatusCompleted},
		{ID: "c", Status: jobs.StatusCompleted},
	}
	handler := NewHealthHandler(nil, list, BuildInfo{Version: "1.2.3"}, createTestLogger())

	rec := httptest.NewRecorder()
	handler.Status(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "portward", resp.Service.Name)
	assert.Equal(t, "1.2.3", resp.Service.Version)
	assert.Equal(t, runtime.GOOS, resp.System.OS)
	assert.Equal(t, 3, resp.Jobs.Total)
	assert.Equal(t, 2, resp.Jobs.ByStatus[jobs.StatusCompleted])
	assert.Equal(t, 1, resp.Jobs.ByStatus[jobs.StatusRunning])
	assert.Equal(t, StatusNotConfigured, resp.Health.Checks["database"])
	assert.Equal(t, "ok", resp.Health.Checks["registry"])
}

func TestHealthHandler_Version(t *testing.T) {
	build := BuildInfo{Version: "v0.4.0", Commit: "abc123", BuildTime: "2026-01-02T03:04:05Z"}
	handler := NewHealthHandler(nil, nil, build, createTestLogger())

	rec := httptest.NewRecorder()
	handler.Version(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "v0.4.0", resp.Version)
	assert.Equal(t, "abc123", resp.Commit)
	assert.Equal(t, build.BuildTime, resp.BuildTime)
	assert.Equal(t, runtime.Version(), resp.GoVersion)
}
