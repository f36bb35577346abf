package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	apihandlers "github.com/anstrom/portward/internal/api/handlers"
	"github.com/anstrom/portward/internal/errors"
	"github.com/anstrom/portward/internal/jobs"
)

const apiBasePath = "/api/v1"

// APIClient talks to a running portward server.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// APIError represents an API error response
type APIError struct {
	StatusCode int
	Code       errors.ErrorCode
	Message    string
	RequestID  string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("API error (status %d, request %s): %s", e.StatusCode, e.RequestID, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// NewAPIClient creates a client for the server at server, which may be a
// bare host:port or a full URL.
func NewAPIClient(server string) *APIClient {
	base := strings.TrimRight(server, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if !strings.HasSuffix(base, apiBasePath) {
		base += apiBasePath
	}

	return &APIClient{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		userAgent: "portward-cli/" + version,
	}
}

// CreateScan submits a scan and returns the new job ID.
func (c *APIClient) CreateScan(ctx context.Context, req apihandlers.ScanRequest) (string, error) {
	var accepted apihandlers.ScanAccepted
	if err := c.request(ctx, http.MethodPost, "/scans", req, &accepted); err != nil {
		return "", err
	}
	return accepted.JobID, nil
}

// GetScan returns the current snapshot of a job.
func (c *APIClient) GetScan(ctx context.Context, id string) (jobs.Snapshot, error) {
	var snap jobs.Snapshot
	err := c.request(ctx, http.MethodGet, "/scans/"+url.PathEscape(id), nil, &snap)
	return snap, err
}

// CancelScan requests cancellation of a job.
func (c *APIClient) CancelScan(ctx context.Context, id string) (apihandlers.ScanAccepted, error) {
	var accepted apihandlers.ScanAccepted
	err := c.request(ctx, http.MethodPost, "/scans/"+url.PathEscape(id)+"/cancel", nil, &accepted)
	return accepted, err
}

// ListScans lists the jobs held by the server, optionally by status.
func (c *APIClient) ListScans(ctx context.Context, status string) ([]jobs.Snapshot, error) {
	endpoint := "/scans"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var list apihandlers.ScanListResponse
	if err := c.request(ctx, http.MethodGet, endpoint, nil, &list); err != nil {
		return nil, err
	}
	return list.Jobs, nil
}

// WaitScan polls a job until it reaches a terminal status, calling
// progress after every poll.
func (c *APIClient) WaitScan(ctx context.Context, id string, interval time.Duration,
	progress func(jobs.Snapshot)) (jobs.Snapshot, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := c.GetScan(ctx, id)
		if err != nil {
			return snap, err
		}
		if progress != nil {
			progress(snap)
		}
		if snap.Status.Terminal() {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *APIClient) request(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response, data []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-ID"),
	}

	var body apihandlers.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
		if body.RequestID != "" {
			apiErr.RequestID = body.RequestID
		}
	} else {
		// Not JSON, e.g. a proxy error page.
		apiErr.Message = strings.TrimSpace(string(data))
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("HTTP %d error", resp.StatusCode)
	}
	return apiErr
}

// handleAPIError prints a user-friendly description of err to stderr.
func handleAPIError(err error, operation string) {
	apiErr, ok := err.(*APIError)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: %s failed: %v\n", operation, err)
		return
	}

	switch apiErr.StatusCode {
	case http.StatusBadRequest:
		fmt.Fprintf(os.Stderr, "Error: Invalid request for %s: %s\n", operation, apiErr.Message)
	case http.StatusNotFound:
		fmt.Fprintf(os.Stderr, "Error: Resource not found for %s\n", operation)
	case http.StatusTooManyRequests:
		fmt.Fprintf(os.Stderr, "Error: Rate limit exceeded for %s\n", operation)
		fmt.Fprintf(os.Stderr, "Please wait a moment and try again.\n")
	case http.StatusServiceUnavailable:
		fmt.Fprintf(os.Stderr, "Error: Service unavailable for %s: %s\n", operation, apiErr.Message)
	case http.StatusInternalServerError:
		fmt.Fprintf(os.Stderr, "Error: Server error during %s\n", operation)
		if apiErr.RequestID != "" {
			fmt.Fprintf(os.Stderr, "Please report this issue with request ID: %s\n", apiErr.RequestID)
		}
	default:
		fmt.Fprintf(os.Stderr, "Error: %s failed: %s\n", operation, apiErr.Message)
	}
}

// withAPIClient runs fn with a client for server and reports API errors.
func withAPIClient(server, operation string, fn func(*APIClient) error) error {
	if err := fn(NewAPIClient(server)); err != nil {
		handleAPIError(err, operation)
		return err
	}
	return nil
}
