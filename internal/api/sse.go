package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// pollInterval re-reads a watched job in case an event was dropped by a
// full subscriber buffer.
var pollInterval = 2 * time.Second

func sseHeaders(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
	}
	return flusher, ok
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// JobStream handles GET /api/jobs/stream (SSE endpoint)
func (h *Handler) JobStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := sseHeaders(w)
	if !ok {
		return
	}

	// Subscribe before the snapshot so nothing falls in between
	eventCh := h.registry.Subscribe()
	defer h.registry.Unsubscribe(eventCh)

	writeEvent(w, flusher, map[string]interface{}{
		"type": "init",
		"jobs": h.registry.List(),
	})

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			writeEvent(w, flusher, event)
		}
	}
}

// WatchJob handles GET /api/jobs/{id}/stream. It sends the job's snapshot
// on every change and ends once the job reaches a terminal state.
func (h *Handler) WatchJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	eventCh := h.registry.Subscribe()
	defer h.registry.Unsubscribe(eventCh)

	job, err := h.registry.Job(id)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := sseHeaders(w)
	if !ok {
		return
	}

	writeEvent(w, flusher, job)
	if job.IsTerminal() {
		return
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if event.Job == nil || event.Job.ID != id {
				continue
			}
			writeEvent(w, flusher, event.Job)
			if event.Type == "removed" || event.Job.IsTerminal() {
				return
			}

		case <-ticker.C:
			current, err := h.registry.Job(id)
			if err != nil {
				return
			}
			if current.IsTerminal() {
				writeEvent(w, flusher, current)
				return
			}
		}
	}
}

