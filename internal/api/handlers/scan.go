// Package handlers provides HTTP request handlers for the portward API.
// This file implements the scan job endpoints: start, status, list and
// cancel.
package handlers

import (
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/anstrom/portward/internal/api/middleware"
	"github.com/anstrom/portward/internal/errors"
	"github.com/anstrom/portward/internal/jobs"
	"github.com/anstrom/portward/internal/scanning"
)

// JobService is the part of the job registry the scan endpoints use.
type JobService interface {
	Create(req scanning.ScanRequest) (string, error)
	Status(id string) (jobs.Snapshot, error)
	Cancel(id string) (jobs.Snapshot, error)
	List() []jobs.Snapshot
}

// ScanHandler handles scan job endpoints.
type ScanHandler struct {
	jobs           JobService
	logger         *slog.Logger
	maxRequestSize int64
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(service JobService, logger *slog.Logger, maxRequestSize int64) *ScanHandler {
	return &ScanHandler{
		jobs:           service,
		logger:         logger.With("handler", "scan"),
		maxRequestSize: maxRequestSize,
	}
}

// ScanRequest is the body of POST /scans. Omitted fields take the server
// defaults. The probe timeout may be given in seconds or milliseconds;
// timeout_ms wins when both are set.
type ScanRequest struct {
	Target      string  `json:"target" example:"scanme.example.com"`
	StartPort   int     `json:"start_port,omitempty" example:"1"`
	EndPort     int     `json:"end_port,omitempty" example:"1024"`
	Timeout     float64 `json:"timeout,omitempty" example:"1.0"`
	TimeoutMS   int64   `json:"timeout_ms,omitempty" example:"500"`
	Concurrency int     `json:"concurrency,omitempty" example:"200"`
}

// ScanAccepted is returned when a scan job has been queued.
type ScanAccepted struct {
	JobID           string      `json:"job_id"`
	Status          jobs.Status `json:"status"`
	CancelRequested bool        `json:"cancel_requested,omitempty"`
}

// ScanListResponse lists the jobs held in memory.
type ScanListResponse struct {
	Jobs  []jobs.Snapshot `json:"jobs"`
	Total int             `json:"total"`
}

func (req *ScanRequest) toScanRequest() (scanning.ScanRequest, error) {
	out := scanning.ScanRequest{
		Target:      req.Target,
		StartPort:   req.StartPort,
		EndPort:     req.EndPort,
		Concurrency: req.Concurrency,
	}

	switch {
	case req.TimeoutMS < 0 || req.Timeout < 0:
		return out, errors.NewScanError(errors.CodeValidation, "timeout cannot be negative")
	case req.TimeoutMS > 0:
		out.Timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	case req.Timeout > 0:
		if req.Timeout > math.MaxInt64/float64(time.Second) {
			return out, errors.NewScanError(errors.CodeValidation, "timeout is too large")
		}
		out.Timeout = time.Duration(req.Timeout * float64(time.Second))
	}

	if req.Concurrency < 0 {
		return out, errors.NewScanError(errors.CodeValidation, "concurrency cannot be negative")
	}
	return out, nil
}

// CreateScan godoc
// @Summary Start a scan
// @Description Validates the request and queues a scan job. Target resolution happens asynchronously.
// @Tags Scans
// @Accept json
// @Produce json
// @Param scan body ScanRequest true "Scan request"
// @Success 202 {object} ScanAccepted
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /scans [post]
func (h *ScanHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	var body ScanRequest
	if err := parseJSON(w, r, &body, h.maxRequestSize); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	req, err := body.toScanRequest()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	id, err := h.jobs.Create(req)
	if err != nil {
		handleError(w, r, err, "start scan", h.logger)
		return
	}

	h.logger.Info("Scan job accepted",
		"request_id", requestID,
		"job_id", id,
		"target", req.Target)

	w.Header().Set("Location", "/api/v1/scans/"+id)
	writeJSON(w, r, http.StatusAccepted, ScanAccepted{JobID: id, Status: jobs.StatusQueued})
}

// GetScan godoc
// @Summary Get scan status
// @Description Returns a snapshot of a scan job including open ports found so far.
// @Tags Scans
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} jobs.Snapshot
// @Failure 404 {object} ErrorResponse
// @Router /scans/{id} [get]
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	id, err := extractStringFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	snap, err := h.jobs.Status(id)
	if err != nil {
		handleError(w, r, err, "get scan", h.logger)
		return
	}
	writeJSON(w, r, http.StatusOK, snap)
}

// ListScans godoc
// @Summary List scans
// @Description Lists scan jobs held in memory, newest first, optionally filtered by status.
// @Tags Scans
// @Produce json
// @Param status query string false "Job status" Enums(queued, running, completed, cancelled, failed)
// @Success 200 {object} ScanListResponse
// @Failure 400 {object} ErrorResponse
// @Router /scans [get]
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	filter := jobs.Status(r.URL.Query().Get("status"))
	switch filter {
	case "", jobs.StatusQueued, jobs.StatusRunning, jobs.StatusCompleted, jobs.StatusCancelled, jobs.StatusFailed:
	default:
		writeError(w, r, http.StatusBadRequest,
			errors.NewScanError(errors.CodeValidation, "invalid status filter: "+string(filter)))
		return
	}

	all := h.jobs.List()
	out := make([]jobs.Snapshot, 0, len(all))
	for _, snap := range all {
		if filter == "" || snap.Status == filter {
			out = append(out, snap)
		}
	}
	writeJSON(w, r, http.StatusOK, ScanListResponse{Jobs: out, Total: len(out)})
}

// CancelScan godoc
// @Summary Cancel a scan
// @Description Requests cancellation. Cancelling a finished job changes nothing.
// @Tags Scans
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} ScanAccepted
// @Failure 404 {object} ErrorResponse
// @Router /scans/{id}/cancel [post]
func (h *ScanHandler) CancelScan(w http.ResponseWriter, r *http.Request) {
	id, err := extractStringFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	snap, err := h.jobs.Cancel(id)
	if err != nil {
		handleError(w, r, err, "cancel scan", h.logger)
		return
	}

	h.logger.Info("Scan cancellation requested",
		"request_id", middleware.GetRequestID(r),
		"job_id", id,
		"status", snap.Status)
	writeJSON(w, r, http.StatusOK, ScanAccepted{JobID: id, Status: snap.Status, CancelRequested: snap.Cancelled})
}
