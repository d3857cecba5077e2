package api

import (
	"net/http"
)

// registerAPIRoutes registers all API endpoints on the given mux
func registerAPIRoutes(mux *http.ServeMux, h *Handler) {
	// Info and job management
	mux.HandleFunc("POST /api/info", h.Info)
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("POST /api/jobs", h.CreateJob)
	mux.HandleFunc("GET /api/jobs/stream", h.JobStream)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", h.RemoveJob)
	mux.HandleFunc("POST /api/jobs/{id}/control", h.ControlJob)
	mux.HandleFunc("GET /api/jobs/{id}/file", h.DownloadFile)
	mux.HandleFunc("GET /api/jobs/{id}/stream", h.WatchJob)

	// History and maintenance
	mux.HandleFunc("GET /api/history", h.History)
	mux.HandleFunc("GET /api/stats", h.Stats)
	mux.HandleFunc("POST /api/stats/reset-session", h.ResetSession)
	mux.HandleFunc("POST /api/sweep", h.Sweep)
}

// registerLegacyRoutes keeps the paths older frontends call
func registerLegacyRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("POST /get_info", h.Info)
	mux.HandleFunc("POST /download", h.CreateJob)
	mux.HandleFunc("GET /progress/{id}", h.GetJob)
	mux.HandleFunc("POST /control/{id}", h.ControlJob)
	mux.HandleFunc("GET /get_file/{id}", h.DownloadFile)
}

// NewRouter creates a new HTTP router with all API endpoints
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()

	registerAPIRoutes(mux, h)
	registerLegacyRoutes(mux, h)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Fetchray API"))
	})

	return withCORS(mux)
}

// withCORS allows any origin, answering preflight requests directly.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
