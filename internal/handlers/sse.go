package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/songify/reporter/internal/broker"
)

// heartbeatInterval keeps idle streams alive through proxies.
var heartbeatInterval = 30 * time.Second

// SSEHandler serves Server-Sent Events streams for real-time report updates.
type SSEHandler struct {
	broker *broker.Broker
}

// NewSSEHandler creates an SSEHandler backed by the given broker.
func NewSSEHandler(b *broker.Broker) *SSEHandler {
	return &SSEHandler{broker: b}
}

// Stream opens an SSE connection scoped to a project. It sends an initial
// "connected" event, then a "reports_changed" event carrying the action and
// report ID each time the project's reports change.
func (h *SSEHandler) Stream(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := h.broker.Subscribe(project)
	defer h.broker.Unsubscribe(project, ch)

	fmt.Fprintf(w, "event: connected\ndata: ok\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: reports_changed\ndata: %s\n\n", data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
