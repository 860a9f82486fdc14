// Package sse exposes a Bus over Server-Sent Events for the dashboard
// described in §4.6's subscriber list.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/forgebuild/forge/internal/events"
)

// Handler streams every event published to Bus to connected clients as
// text/event-stream, one JSON-encoded event per message.
type Handler struct {
	Bus    *events.Bus
	Logger *slog.Logger
}

// NewHandler returns a Handler over bus, logging with logger (or a default
// discard-free logger if nil).
func NewHandler(bus *events.Bus, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Bus: bus, Logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := h.Bus.Subscribe()
	defer h.Bus.Unsubscribe(id)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			line, err := json.Marshal(e)
			if err != nil {
				h.Logger.Error("marshaling event for SSE", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
