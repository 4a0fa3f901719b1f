package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/auth"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/journal"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/queue"
	"github.com/Shenoy37/Voice-to-Text-sub002/internal/stats"
	"github.com/go-chi/chi/v5"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Scheduler is the job scheduler as seen by the HTTP layer.
type Scheduler interface {
	Enqueue(j job.Job) (job.Job, error)
	Inspect(id string) (job.Job, error)
	List(owner string, f queue.Filter) []job.Job
	UpdateProgress(id, requester string, req job.UpdateRequest) (job.Job, error)
	Cancel(id, requester string) error
	Stats(owner string) (stats.Global, stats.Owner)
	EstimatedWait(id string) (stats.Estimate, error)
	Backlog() int
	ActiveCount() int
	Hub() *queue.Hub
}

// History reads the transition journal. It may be nil.
type History interface {
	History(ctx context.Context, jobID string) ([]journal.Entry, error)
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	sched   Scheduler
	history History
	logger  *slog.Logger
}

func NewHandler(sched Scheduler, history History, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{sched: sched, history: history, logger: logger}
}

// CreateJob handles POST /api/v1/jobs and responds 202 with the queued job.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	owner := mustPrincipal(r)
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB max

	var req job.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	payload, err := req.Validate()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	rec, err := h.sched.Enqueue(job.Job{
		Kind:        req.Kind,
		Priority:    req.Priority,
		Owner:       owner,
		Payload:     payload,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, rec)
}

// ListJobs handles GET /api/v1/jobs?state=&kind=&limit= for the caller's jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := queue.Filter{
		State: job.State(q.Get("state")),
		Kind:  job.Kind(q.Get("kind")),
		Limit: parseIntParam(q.Get("limit"), defaultListLimit),
	}
	if f.State != "" && !f.State.Valid() {
		writeError(w, http.StatusBadRequest, "unknown state filter")
		return
	}
	if f.Kind != "" && !f.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown kind filter")
		return
	}
	f.Limit = min(max(f.Limit, 1), maxListLimit)

	jobs := h.sched.List(mustPrincipal(r), f)
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// parseIntParam parses a query string integer, returning the fallback on empty or invalid input.
func parseIntParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

// GetJob handles GET /api/v1/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, ok := h.ownedJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// WaitEstimate handles GET /api/v1/jobs/{id}/wait.
func (h *Handler) WaitEstimate(w http.ResponseWriter, r *http.Request) {
	j, ok := h.ownedJob(w, r)
	if !ok {
		return
	}
	est, err := h.sched.EstimatedWait(j.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":                 est.JobID,
		"ahead":                  est.Ahead,
		"estimated_wait_seconds": est.Wait.Seconds(),
	})
}

// UpdateJob handles PATCH /api/v1/jobs/{id} with externally reported progress.
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req job.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.sched.UpdateProgress(chi.URLParam(r, "id"), mustPrincipal(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteJob handles DELETE /api/v1/jobs/{id} and responds 204.
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.sched.Cancel(chi.URLParam(r, "id"), mustPrincipal(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JobHistory handles GET /api/v1/jobs/{id}/history.
func (h *Handler) JobHistory(w http.ResponseWriter, r *http.Request) {
	j, ok := h.ownedJob(w, r)
	if !ok {
		return
	}
	if h.history == nil {
		writeError(w, http.StatusNotFound, "job history is disabled")
		return
	}

	entries, err := h.history.History(r.Context(), j.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id": j.ID,
		"events": entries,
	})
}

type globalStats struct {
	stats.Global
	AverageWaitSeconds       float64 `json:"average_wait_seconds"`
	AverageProcessingSeconds float64 `json:"average_processing_seconds"`
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	g, o := h.sched.Stats(mustPrincipal(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"global": globalStats{
			Global:                   g,
			AverageWaitSeconds:       g.AverageWaitTime.Seconds(),
			AverageProcessingSeconds: g.AverageProcessingTime.Seconds(),
		},
		"owner": o,
	})
}

// ownedJob loads the {id} job and answers 404 unless the caller owns it.
func (h *Handler) ownedJob(w http.ResponseWriter, r *http.Request) (job.Job, bool) {
	j, err := h.sched.Inspect(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return job.Job{}, false
	}
	if j.Owner != mustPrincipal(r) {
		writeError(w, http.StatusNotFound, "job not found")
		return job.Job{}, false
	}
	return j, true
}

// mustPrincipal returns the caller set by the Auth middleware.
func mustPrincipal(r *http.Request) string {
	p, _ := auth.Principal(r.Context())
	return p
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, job.ErrQueueFull) && !errors.Is(err, job.ErrClosed) {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
