package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vidpress/internal/domain"
	"vidpress/internal/service"
)

// JobReader is the read-side of the job store the API needs.
type JobReader interface {
	Get(ctx context.Context, id int64) (*domain.Job, error)
	ListForOwner(ctx context.Context, ownerID int64, limit int) ([]domain.Job, error)
	PositionInQueue(ctx context.Context, id int64) (position, total int, err error)
}

const listLimit = 20

type Handlers struct {
	authSvc      *service.AuthService
	admissionSvc *service.AdmissionService
	jobs         JobReader
	log          zerolog.Logger
}

func NewHandlers(authSvc *service.AuthService, admissionSvc *service.AdmissionService, jobs JobReader, log zerolog.Logger) *Handlers {
	return &Handlers{
		authSvc:      authSvc,
		admissionSvc: admissionSvc,
		jobs:         jobs,
		log:          log,
	}
}

type submitRequest struct {
	SourceRef string `json:"source_ref"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Profile   string `json:"profile"`
}

type jobResponse struct {
	ID            int64      `json:"id"`
	Profile       string     `json:"profile"`
	Status        string     `json:"status"`
	Progress      float64    `json:"progress"`
	ErrorReason   string     `json:"error_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	QueuePosition int        `json:"queue_position,omitempty"`
	QueueTotal    int        `json:"queue_total,omitempty"`
}

func toJobResponse(j *domain.Job) jobResponse {
	resp := jobResponse{
		ID:          j.ID,
		Profile:     j.Profile,
		Status:      string(j.Status),
		Progress:    j.Progress,
		ErrorReason: j.ErrorMessage,
		CreatedAt:   j.CreatedAt,
	}
	if j.StartedAt.Valid {
		t := j.StartedAt.Time
		resp.StartedAt = &t
	}
	if j.CompletedAt.Valid {
		t := j.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}

// authenticate resolves the caller from X-User-ID plus a bearer token.
func (h *Handlers) authenticate(r *http.Request) (*domain.User, error) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil {
		return nil, domain.ErrNotAuthorized
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil, domain.ErrNotAuthorized
	}
	return h.authSvc.Verify(r.Context(), id, token)
}

func (h *Handlers) SubmitJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := h.authenticate(r)
		if err != nil {
			h.writeError(w, err)
			return
		}

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.SourceRef == "" || req.Filename == "" || req.Profile == "" {
			http.Error(w, "source_ref, filename and profile are required", http.StatusBadRequest)
			return
		}

		jobs, err := h.admissionSvc.Admit(r.Context(), user.ID, req.SourceRef, req.Filename, req.Size, req.Profile)
		if err != nil {
			h.writeError(w, err)
			return
		}

		resp := make([]jobResponse, len(jobs))
		for i, j := range jobs {
			resp[i] = toJobResponse(j)
		}
		h.writeJSON(w, http.StatusCreated, map[string]any{"jobs": resp})
	}
}

func (h *Handlers) ListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := h.authenticate(r)
		if err != nil {
			h.writeError(w, err)
			return
		}

		jobs, err := h.jobs.ListForOwner(r.Context(), user.ID, listLimit)
		if err != nil {
			h.writeError(w, err)
			return
		}
		resp := make([]jobResponse, len(jobs))
		for i := range jobs {
			resp[i] = toJobResponse(&jobs[i])
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"jobs": resp})
	}
}

func (h *Handlers) JobStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, job, err := h.ownJob(r)
		if err != nil {
			h.writeError(w, err)
			return
		}
		_ = user

		resp := toJobResponse(job)
		if job.Status == domain.JobStatusPending {
			if pos, total, err := h.jobs.PositionInQueue(r.Context(), job.ID); err == nil {
				resp.QueuePosition = pos
				resp.QueueTotal = total
			}
		}
		h.writeJSON(w, http.StatusOK, resp)
	}
}

func (h *Handlers) IssueToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, err := h.authenticate(r)
		if err != nil || !admin.IsAdmin {
			h.writeError(w, domain.ErrNotAuthorized)
			return
		}

		targetID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}
		username := r.URL.Query().Get("username")

		token, err := h.authSvc.Register(r.Context(), targetID, username)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (h *Handlers) SetAuthorized(authorized bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, err := h.authenticate(r)
		if err != nil {
			h.writeError(w, err)
			return
		}

		targetID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		if err := h.authSvc.SetAuthorized(r.Context(), admin, targetID, authorized); err != nil {
			h.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ownJob authenticates the caller and loads a job they own.
func (h *Handlers) ownJob(r *http.Request) (*domain.User, *domain.Job, error) {
	user, err := h.authenticate(r)
	if err != nil {
		return nil, nil, err
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return nil, nil, domain.ErrNotFound
	}
	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	if job.OwnerID != user.ID && !user.IsAdmin {
		return nil, nil, domain.ErrNotFound
	}
	return user, job, nil
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("write response failed")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrQuotaExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnknownProfile),
		errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrFileTooLarge),
		errors.Is(err, domain.ErrDurationTooLong):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
