package http

import (
	"net/http"

	"github.com/rs/zerolog"

	"vidpress/internal/service"
)

// Server is the thin submit/introspection surface standing in for the
// external transport. All business rules live in the services.
type Server struct {
	mux        *http.ServeMux
	handlers   *Handlers
	sseHandler *SSEHandler
}

func NewServer(authSvc *service.AuthService, admissionSvc *service.AdmissionService, jobsSvc JobReader, eventBus *service.EventBus, log zerolog.Logger) *Server {
	mux := http.NewServeMux()
	handlers := NewHandlers(authSvc, admissionSvc, jobsSvc, log)
	sseHandler := NewSSEHandler(eventBus, jobsSvc, handlers)

	s := &Server{
		mux:        mux,
		handlers:   handlers,
		sseHandler: sseHandler,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /jobs", s.handlers.SubmitJob())
	s.mux.HandleFunc("GET /jobs", s.handlers.ListJobs())
	s.mux.HandleFunc("GET /jobs/{id}", s.handlers.JobStatus())
	s.mux.HandleFunc("GET /jobs/{id}/events", s.sseHandler.Events())

	s.mux.HandleFunc("POST /users/{id}/token", s.handlers.IssueToken())
	s.mux.HandleFunc("POST /users/{id}/authorize", s.handlers.SetAuthorized(true))
	s.mux.HandleFunc("POST /users/{id}/revoke", s.handlers.SetAuthorized(false))

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
