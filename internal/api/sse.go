package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/queue"
	"github.com/go-chi/chi/v5"
)

// StreamEvents handles GET /api/v1/jobs/{id}/events.
// It streams server-sent events for the job until it finishes, is removed,
// or the client disconnects.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	id := chi.URLParam(r, "id")
	hub := h.sched.Hub()

	// Subscribe before reading the record so a transition in between is not lost.
	ch := hub.Subscribe(id)
	defer hub.Unsubscribe(id, ch)

	j, ok := h.ownedJob(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if j.State.IsTerminal() {
		writeSSEEvent(w, flusher, queue.EventResult, j)
		return
	}

	// Send the current status so the client has an initial state.
	writeSSEEvent(w, flusher, queue.EventStatus, j)

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.Data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSEEvent serialises data as JSON and writes a single SSE event frame.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
