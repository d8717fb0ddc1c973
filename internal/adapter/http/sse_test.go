package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidpress/internal/domain"
	"vidpress/internal/service"
)

func submitOne(t *testing.T, api *testAPI, token string) int64 {
	t.Helper()
	rec := api.request(t, http.MethodPost, "/jobs", 100, token, submitRequest{
		SourceRef: "http://upstream/clip.mp4",
		Filename:  "clip.mp4",
		Size:      1024,
		Profile:   "720p",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Jobs []jobResponse `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Jobs, 1)
	return created.Jobs[0].ID
}

func TestEventsTerminalJobClosesImmediately(t *testing.T) {
	api := newTestAPI(t)
	token := api.registerUser(t, 100, false)
	id := submitOne(t, api, token)

	require.NoError(t, api.jobs.Fail(context.Background(), id, "encode failed"))

	rec := api.request(t, http.MethodGet, fmt.Sprintf("/jobs/%d/events", id), 100, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: progress")
	assert.Contains(t, body, `"status":"failed"`)
	assert.Contains(t, body, `"message":"encode failed"`)
}

func TestEventsStreamsUntilCompletion(t *testing.T) {
	api := newTestAPI(t)
	token := api.registerUser(t, 100, false)
	id := submitOne(t, api, token)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/jobs/%d/events", id), nil)
	req.Header.Set("X-User-ID", "100")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		api.server.ServeHTTP(rec, req)
	}()

	// Give the handler time to subscribe before publishing.
	time.Sleep(100 * time.Millisecond)
	api.events.Publish(service.Event{JobID: id, Status: domain.JobStatusProcessing, Progress: 50})
	api.events.Publish(service.Event{JobID: id, Status: domain.JobStatusCompleted, Progress: 100})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not terminate on completion")
	}

	events := strings.Count(rec.Body.String(), "event: progress")
	assert.Equal(t, 3, events)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)
}

func TestEventsUnknownJob(t *testing.T) {
	api := newTestAPI(t)
	token := api.registerUser(t, 100, false)

	rec := api.request(t, http.MethodGet, "/jobs/9999/events", 100, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
