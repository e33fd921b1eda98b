package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pendocareer/ragpipeline/internal/core"
	"github.com/pendocareer/ragpipeline/internal/core/pipeline"
	"github.com/pendocareer/ragpipeline/internal/models"
)

// JobHandler exposes read-only views over the job queue.
type JobHandler struct {
	manager *pipeline.Manager
	log     *zap.Logger
}

func NewJobHandler(mgr *pipeline.Manager, log *zap.Logger) *JobHandler {
	return &JobHandler{manager: mgr, log: log}
}

// Status handles GET /api/status/{job_id}.
func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := h.manager.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error("job lookup failed", zap.String("job_id", jobID), zap.Error(err))
		http.Error(w, "failed to look up job", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// List handles GET /api/jobs?status=&limit=&offset=.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := core.JobFilter{
		State:  models.JobState(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	switch filter.State {
	case "", models.JobQueued, models.JobProcessing, models.JobCompleted, models.JobFailed:
	default:
		http.Error(w, "invalid status filter", http.StatusBadRequest)
		return
	}

	jobs, total, err := h.manager.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error("job list failed", zap.Error(err))
		http.Error(w, "failed to list jobs", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_count": total,
		"count":       len(jobs),
		"jobs":        jobs,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// HealthHandler answers liveness probes with a database reachability check.
type HealthHandler struct {
	dbclient core.DbClient
	workers  int
}

func NewHealthHandler(db core.DbClient, workers int) *HealthHandler {
	return &HealthHandler{dbclient: db, workers: workers}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.dbclient.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "database": "unreachable", "workers": h.workers})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "database": "up", "workers": h.workers})
}
