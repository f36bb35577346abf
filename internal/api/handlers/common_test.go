package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portward/internal/errors"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", errors.NewScanError(errors.CodeValidation, "bad"), http.StatusBadRequest},
		{"invalid range", errors.ErrInvalidRange(10, 1), http.StatusBadRequest},
		{"invalid target", errors.ErrInvalidTarget("bad host"), http.StatusBadRequest},
		{"not found", errors.ErrJobNotFound("x"), http.StatusNotFound},
		{"conflict", errors.NewScanError(errors.CodeConflict, "dup"), http.StatusConflict},
		{"rate limited", errors.NewScanError(errors.CodeRateLimited, "slow down"), http.StatusTooManyRequests},
		{"queue full", errors.NewScanError(errors.CodeServiceUnavailable, "full"), http.StatusServiceUnavailable},
		{"database", errors.ErrDatabaseConnection(fmt.Errorf("refused")), http.StatusInternalServerError},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusForError(tt.err))
		})
	}
}

func TestHandleError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handleError(rec, req, errors.ErrDatabaseQuery("SELECT secret FROM sessions", fmt.Errorf("password=hunter2")),
		"list sessions", createTestLogger())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, errors.CodeDatabaseQuery, resp.Code)
	assert.Contains(t, resp.Message, "failed to list sessions")
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.NotContains(t, rec.Body.String(), "SELECT")
}

func TestHandleError_ClientErrorsPassThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handleError(rec, req, errors.ErrJobNotFound("abc"), "get scan", createTestLogger())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, errors.CodeNotFound, resp.Code)
	assert.Equal(t, "Not Found", resp.Error)
	assert.Contains(t, resp.Message, "abc")
}

func TestGetPaginationParams(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		expected  PaginationParams
		expectErr bool
	}{
		{"defaults", "", PaginationParams{Page: 1, PageSize: 50, Offset: 0}, false},
		{"second page", "page=2&page_size=10", PaginationParams{Page: 2, PageSize: 10, Offset: 10}, false},
		{"page below one", "page=0", PaginationParams{Page: 1, PageSize: 50, Offset: 0}, false},
		{"page size clamped", "page_size=10000", PaginationParams{Page: 1, PageSize: 500, Offset: 0}, false},
		{"negative page size", "page_size=-3", PaginationParams{Page: 1, PageSize: 50, Offset: 0}, false},
		{"bad page", "page=abc", PaginationParams{}, true},
		{"bad page size", "page_size=x", PaginationParams{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			params, err := getPaginationParams(req)
			if tt.expectErr {
				assert.True(t, errors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, params)
		})
	}
}

func TestGetQueryParamTime(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?since=2024-05-01T10:00:00Z&bad=yesterday", nil)

	since, err := getQueryParamTime(req, "since")
	require.NoError(t, err)
	require.NotNil(t, since)
	assert.Equal(t, 2024, since.Year())

	missing, err := getQueryParamTime(req, "until")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = getQueryParamTime(req, "bad")
	assert.True(t, errors.IsValidation(err))
}

func TestExtractUUIDFromPath(t *testing.T) {
	id := uuid.New()

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": id.String()})
	got, err := extractUUIDFromPath(req)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "nope"})
	_, err = extractUUIDFromPath(req)
	assert.True(t, errors.IsValidation(err))

	_, err = extractUUIDFromPath(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	type payload struct {
		Target string `json:"target"`
	}

	tests := []struct {
		name      string
		body      string
		maxSize   int64
		expectErr string
	}{
		{"valid", `{"target":"127.0.0.1"}`, 0, ""},
		{"empty", ``, 0, "empty"},
		{"malformed", `{"target":`, 0, "invalid JSON"},
		{"unknown field", `{"target":"x","extra":1}`, 0, "invalid JSON"},
		{"too large", `{"target":"` + strings.Repeat("a", 100) + `"}`, 32, "too large"},
		{"trailing object", `{"target":"a"}{"target":"b"}`, 0, "single JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := parseJSON(httptest.NewRecorder(), req, &p, tt.maxSize)
			if tt.expectErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "127.0.0.1", p.Target)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.expectErr)
		})
	}
}

func TestWritePaginatedResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	writePaginatedResponse(rec, req, []string{"a", "b"}, PaginationParams{Page: 1, PageSize: 2}, 5)

	var resp struct {
		Data       []string   `json:"data"`
		Pagination Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"a", "b"}, resp.Data)
	assert.Equal(t, 3, resp.Pagination.TotalPages)
	assert.Equal(t, int64(5), resp.Pagination.TotalItems)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
