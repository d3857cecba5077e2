package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gwlsn/fetchray/internal/engine"
	"github.com/gwlsn/fetchray/internal/jobs"
	"github.com/gwlsn/fetchray/internal/logger"
	"github.com/gwlsn/fetchray/internal/store"
	"github.com/gwlsn/fetchray/internal/sweeper"
)

const defaultHistoryLimit = 50

// Handler provides HTTP API handlers
type Handler struct {
	manager  *jobs.Manager
	registry *jobs.Registry
	history  store.Store // nil when history is disabled
	sweeper  *sweeper.Sweeper
}

// NewHandler creates a new API handler
func NewHandler(manager *jobs.Manager, history store.Store, sw *sweeper.Sweeper) *Handler {
	return &Handler{
		manager:  manager,
		registry: manager.Registry(),
		history:  history,
		sweeper:  sw,
	}
}

var validate = newValidator()

// newValidator reports request fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// response helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind jobs.Kind) int {
	switch kind {
	case jobs.KindValidation:
		return http.StatusBadRequest
	case jobs.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := jobs.KindOf(err)
	if kind == jobs.KindInternal {
		logger.Error("Request failed", "error", err)
	}
	writeJSON(w, statusFor(kind), map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

// decodeBody reads a JSON body into dst and validates its struct tags.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", jobs.ErrValidation)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s is %s", jobs.ErrValidation, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", jobs.ErrValidation, err)
	}
	return nil
}

// InfoRequest is the request body for an info query
type InfoRequest struct {
	URL string `json:"url" validate:"required"`
}

// Info handles POST /api/info
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	var req InfoRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	info, err := h.manager.Probe(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, engine.Summarize(info))
}

// CreateJobRequest is the request body for creating a job
type CreateJobRequest struct {
	URL      string `json:"url" validate:"required"`
	FormatID string `json:"format_id" validate:"required"`
	Title    string `json:"title"`
}

// CreateJob handles POST /api/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := h.manager.Submit(r.Context(), jobs.SubmitRequest{
		URL:      req.URL,
		FormatID: req.FormatID,
		Title:    req.Title,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// client_id is what older clients poll with
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":    job.ID,
		"client_id": job.ID,
		"title":     job.Title,
		"status":    job.State,
	})
}

// ListJobs handles GET /api/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.registry.List(),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.registry.Job(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// ControlRequest is the request body for controlling a job
type ControlRequest struct {
	Action string `json:"action" validate:"required"`
}

// ControlJob handles POST /api/jobs/{id}/control
func (h *Handler) ControlJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Unknown job wins over a bad body
	if _, err := h.registry.Job(id); err != nil {
		writeError(w, err)
		return
	}

	var req ControlRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := h.manager.Control(id, req.Action)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": job.ID,
		"action": strings.ToLower(strings.TrimSpace(req.Action)),
		"status": job.State,
	})
}

// DownloadFile handles GET /api/jobs/{id}/file
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	path, name, err := h.manager.Artifact(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		// Swept between the check and the open
		writeError(w, jobs.ErrArtifactMissing)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, jobs.ErrArtifactMissing)
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// RemoveJob handles DELETE /api/jobs/{id}
func (h *Handler) RemoveJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.manager.Remove(id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "job_id": id})
}

// History handles GET /api/history?limit=N
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"enabled": false,
			"entries": []store.Entry{},
		})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("%w: limit must be a non-negative integer", jobs.ErrValidation))
			return
		}
		limit = n
	}

	entries, err := h.history.History(limit)
	if err != nil {
		writeError(w, fmt.Errorf("%w: read history: %v", jobs.ErrInternal, err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": true,
		"entries": entries,
	})
}

// Stats handles GET /api/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	byState := make(map[jobs.State]int)
	list := h.registry.List()
	for _, job := range list {
		byState[job.State]++
	}

	resp := map[string]interface{}{
		"jobs":     len(list),
		"by_state": byState,
	}
	if h.history != nil {
		stats, err := h.history.Stats()
		if err != nil {
			writeError(w, fmt.Errorf("%w: read stats: %v", jobs.ErrInternal, err))
			return
		}
		resp["history"] = stats
	}

	writeJSON(w, http.StatusOK, resp)
}

// ResetSession handles POST /api/stats/reset-session
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "history disabled"})
		return
	}
	if err := h.history.ResetSession(); err != nil {
		writeError(w, fmt.Errorf("%w: reset session: %v", jobs.ErrInternal, err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "session reset"})
}

// Sweep handles POST /api/sweep
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sweeper.Sweep())
}
