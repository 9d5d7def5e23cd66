// Package api exposes the job store over JSON/HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/blockscan/internal/core/domain"
	"github.com/vietddude/blockscan/internal/core/job"
	"github.com/vietddude/blockscan/internal/core/progress"
	"github.com/vietddude/blockscan/internal/scanning/health"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// JobService is the part of job.Store the API drives.
type JobService interface {
	Create(req job.CreateRequest) (domain.JobID, error)
	Pause(id domain.JobID) error
	Resume(id domain.JobID) error
	Finish(id domain.JobID) error
	Cancel(id domain.JobID) error
	Delete(id domain.JobID) error
	Get(id domain.JobID) (domain.Job, error)
	List() []domain.Job
	Networks() []domain.Network
}

// Server serves the job API, health endpoints and metrics.
type Server struct {
	jobs   JobService
	health *health.Handler
	clock  clockwork.Clock
	log    *slog.Logger
	server *http.Server
}

// NewServer creates a new API server listening on port. healthHandler may be nil.
func NewServer(jobs JobService, healthHandler *health.Handler, clock clockwork.Clock, port int) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Server{
		jobs:   jobs,
		health: healthHandler,
		clock:  clock,
		log:    slog.Default().With("component", "api"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes returns the chi router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.createJob)
		r.Get("/", s.listJobs)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Delete("/", s.deleteJob)
			r.Post("/pause", s.transition(s.jobs.Pause))
			r.Post("/resume", s.transition(s.jobs.Resume))
			r.Post("/finish", s.transition(s.jobs.Finish))
			r.Post("/cancel", s.transition(s.jobs.Cancel))
		})
	})
	r.Get("/networks", s.listNetworks)

	if s.health != nil {
		r.Get("/health", s.health.Health)
		r.Get("/health/detailed", s.health.Detailed)
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	s.log.Info("API listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// createJobRequest is the POST /jobs body.
type createJobRequest struct {
	Network    string `json:"network"`
	StartBlock int64  `json:"start_block"`
	EndBlock   *int64 `json:"end_block,omitempty"`
	Continuous bool   `json:"continuous"`
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	id, err := s.jobs.Create(job.CreateRequest{
		Network:    req.Network,
		StartBlock: req.StartBlock,
		EndBlock:   req.EndBlock,
		Continuous: req.Continuous,
	})
	if err != nil {
		s.writeJobError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]domain.JobID{"id": id})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	filter := domain.JobStatus(r.URL.Query().Get("status"))
	now := s.clock.Now()

	out := make([]progress.Snapshot, 0)
	for _, j := range s.jobs.List() {
		if filter != "" && j.Status != filter {
			continue
		}
		out = append(out, progress.Describe(j, now))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.Get(jobID(r))
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress.Describe(j, s.clock.Now()))
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Delete(jobID(r)); err != nil {
		s.writeJobError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transition wraps a status operation; on success it returns the new snapshot.
func (s *Server) transition(op func(domain.JobID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := jobID(r)
		if err := op(id); err != nil {
			s.writeJobError(w, err)
			return
		}
		s.getJob(w, r)
	}
}

func (s *Server) listNetworks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.Networks())
}

func jobID(r *http.Request) domain.JobID {
	return domain.JobID(chi.URLParam(r, "id"))
}

// writeJobError maps store errors onto status codes.
func (s *Server) writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, job.ErrInvalidRange), errors.Is(err, job.ErrUnknownNetwork):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, job.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, job.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err)
	default:
		s.log.Error("Unexpected job error", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
