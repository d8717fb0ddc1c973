package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vidpress/internal/domain"
	"vidpress/internal/service"
)

type SSEHandler struct {
	eventBus *service.EventBus
	jobs     JobReader
	handlers *Handlers
}

func NewSSEHandler(eventBus *service.EventBus, jobs JobReader, handlers *Handlers) *SSEHandler {
	return &SSEHandler{
		eventBus: eventBus,
		jobs:     jobs,
		handlers: handlers,
	}
}

// sseWrite writes one SSE event with a JSON payload.
func sseWrite(w http.ResponseWriter, eventName string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName, data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func eventFromJob(j *domain.Job) service.Event {
	return service.Event{
		JobID:    j.ID,
		Status:   j.Status,
		Progress: j.Progress,
		Message:  j.ErrorMessage,
	}
}

// Events streams progress notifications for one job until it turns terminal.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, job, err := h.handlers.ownJob(r)
		if err != nil {
			h.handlers.writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		// Current state first, so late subscribers see something immediately.
		sseWrite(w, "progress", eventFromJob(job))
		if job.IsTerminal() {
			return
		}

		ch := h.eventBus.Subscribe(job.ID)
		defer h.eventBus.Unsubscribe(job.ID, ch)

		ctx := r.Context()
		keepAlive := time.NewTicker(15 * time.Second)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				sseWrite(w, "progress", event)
				if event.Status == domain.JobStatusCompleted || event.Status == domain.JobStatusFailed {
					return
				}
			}
		}
	}
}
