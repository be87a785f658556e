// Package ipc provides the read-only HTTP diagnostics API over stored runs.
package ipc

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/store"
)

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	DB       *sql.DB
	Registry *action.Registry
	Version  string

	Runs        *store.RunRepo
	Counters    *store.CounterRepo
	ActionTimes *store.ActionTimeRepo
	Digests     *store.DigestRepo
	Optical     *store.OpticalRepo

	// PollInterval is the counter stream refresh period.
	PollInterval time.Duration
}

// NewHandler creates a Handler with every repo assigned.
func NewHandler(db *sql.DB, reg *action.Registry, version string) *Handler {
	return &Handler{
		DB:           db,
		Registry:     reg,
		Version:      version,
		Runs:         &store.RunRepo{},
		Counters:     &store.CounterRepo{},
		ActionTimes:  &store.ActionTimeRepo{},
		Digests:      &store.DigestRepo{},
		Optical:      &store.OpticalRepo{},
		PollInterval: 2 * time.Second,
	}
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ActionTimesResponse is the response for GET /api/v1/runs/{runID}/action-times.
type ActionTimesResponse struct {
	Streams []store.ActionTime `json:"streams"`
	Totals  map[string]float64 `json:"totals"`
}

// CompareResponse is the response for GET /api/v1/runs/{runID}/compare/{otherID}.
type CompareResponse struct {
	Match bool `json:"match"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := h.DB.PingContext(r.Context()); err != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: status, Version: h.Version})
}

// ListActions handles GET /api/v1/actions.
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	entries := []action.Entry{}
	if h.Registry != nil {
		entries = append(entries, h.Registry.Entries()...)
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListRuns handles GET /api/v1/runs?limit=N.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}
	runs, err := h.Runs.List(r.Context(), h.DB, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /api/v1/runs/{runID}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Runs.Get(r.Context(), h.DB, r.PathValue("runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListActionTimes handles GET /api/v1/runs/{runID}/action-times.
func (h *Handler) ListActionTimes(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")
	if _, err := h.Runs.Get(r.Context(), h.DB, runID); err != nil {
		writeError(w, err)
		return
	}
	times, err := h.ActionTimes.ListByRun(r.Context(), h.DB, runID)
	if err != nil {
		writeError(w, err)
		return
	}
	if times == nil {
		times = []store.ActionTime{}
	}
	writeJSON(w, http.StatusOK, ActionTimesResponse{Streams: times, Totals: store.Totals(times)})
}

// ListDigests handles GET /api/v1/runs/{runID}/digests.
func (h *Handler) ListDigests(w http.ResponseWriter, r *http.Request) {
	digests, err := h.Digests.ListByRun(r.Context(), h.DB, r.PathValue("runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if digests == nil {
		digests = []store.StateDigest{}
	}
	writeJSON(w, http.StatusOK, digests)
}

// ListOptical handles GET /api/v1/runs/{runID}/optical.
func (h *Handler) ListOptical(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Optical.ListByRun(r.Context(), h.DB, r.PathValue("runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if stats == nil {
		stats = []store.OpticalStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

// CompareRuns handles GET /api/v1/runs/{runID}/compare/{otherID}.
func (h *Handler) CompareRuns(w http.ResponseWriter, r *http.Request) {
	runID, otherID := r.PathValue("runID"), r.PathValue("otherID")
	for _, id := range []string{runID, otherID} {
		if _, err := h.Runs.Get(r.Context(), h.DB, id); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := h.Digests.Compare(r.Context(), h.DB, runID, otherID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CompareResponse{Match: true})
}

func streamParam(r *http.Request) (int, error) {
	stream, err := strconv.Atoi(r.PathValue("stream"))
	if err != nil || stream < 0 {
		return 0, domain.Validationf(domain.ErrStreamOutOfRange, "invalid stream %q", r.PathValue("stream"))
	}
	return stream, nil
}

// ListCounters handles GET /api/v1/runs/{runID}/streams/{stream}/counters?since_step=N.
func (h *Handler) ListCounters(w http.ResponseWriter, r *http.Request) {
	stream, err := streamParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sinceStep := 0
	if s := r.URL.Query().Get("since_step"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err == nil {
			sinceStep = parsed
		}
	}

	counters, err := h.Counters.ListByStream(r.Context(), h.DB, r.PathValue("runID"), stream, sinceStep)
	if err != nil {
		writeError(w, err)
		return
	}
	if counters == nil {
		counters = []store.StepCounters{}
	}
	writeJSON(w, http.StatusOK, counters)
}

// StreamCounters handles GET /api/v1/runs/{runID}/streams/{stream}/counters/stream (SSE).
func (h *Handler) StreamCounters(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")
	stream, err := streamParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, APIError{Code: 500, Message: "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send every step recorded so far.
	counters, err := h.Counters.ListByStream(r.Context(), h.DB, runID, stream, 0)
	if err != nil {
		writeSSEError(w, flusher, err)
		return
	}
	lastStep := 0
	for _, c := range counters {
		writeSSEEvent(w, flusher, c)
		lastStep = c.Step
	}

	ctx := r.Context()
	ticker := time.NewTicker(h.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next, err := h.Counters.ListByStream(ctx, h.DB, runID, stream, lastStep)
			if err != nil {
				return
			}
			for _, c := range next {
				writeSSEEvent(w, flusher, c)
				lastStep = c.Step
			}
			if h.finished(r, runID) {
				return
			}
		}
	}
}

// finished reports whether the run is no longer running.
func (h *Handler) finished(r *http.Request, runID string) bool {
	run, err := h.Runs.Get(r.Context(), h.DB, runID)
	return err != nil || run.Status != store.RunRunning
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var engErr *domain.EngineError
	if errors.As(err, &engErr) {
		status := http.StatusInternalServerError
		switch engErr.Code {
		case domain.ErrRunNotFound.Code:
			status = http.StatusNotFound
		case domain.ErrDigestMismatch.Code:
			status = http.StatusConflict
		case domain.ErrStreamOutOfRange.Code:
			status = http.StatusBadRequest
		}
		writeJSON(w, status, APIError{Code: engErr.Code, Message: engErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: domain.ErrStoreQuery.Code, Message: err.Error()})
}

func writeSSEEvent(w http.ResponseWriter, f http.Flusher, c store.StepCounters) {
	data, _ := json.Marshal(c)
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}

func writeSSEError(w http.ResponseWriter, f http.Flusher, err error) {
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
	f.Flush()
}
