package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"hashreview/internal/api"
	"hashreview/internal/config"
	"hashreview/internal/logging"
	"hashreview/internal/queue"
	"hashreview/internal/services"
)

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	cfg      *config.Config
	queueSvc *api.QueueService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:     bind,
		logger:   logger,
		daemon:   d,
		cfg:      cfg,
		queueSvc: api.NewQueueService(d.store),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/queues/config", srv.handleQueueConfig)
	mux.HandleFunc("/queues/stats", srv.handleQueueStats)
	mux.HandleFunc("/queues/next", srv.handleQueueNext)
	mux.HandleFunc("/queues/tasks", srv.handleTasks)
	mux.HandleFunc("/queues/tasks/", srv.handleTask)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		IndexDBPath:  status.IndexDBPath,
		LockFilePath: status.LockFilePath,
		TotalTasks:   status.TotalTasks,
	})
}

func (s *apiServer) handleQueueConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueConfig{
		HashAlgorithms:    s.cfg.Queues.HashAlgorithms,
		ContentCategories: s.cfg.Queues.ContentCategories,
		ConfidenceLevels:  s.cfg.Queues.ConfidenceLevels,
	})
}

func (s *apiServer) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := s.queueSvc.Stats(r.Context(), filtersFromQuery(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueStatsResponse{Queues: stats})
}

func (s *apiServer) handleQueueNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	task, err := s.queueSvc.Next(r.Context(), filtersFromQuery(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	// A null task means the queue is exhausted; not an error.
	s.writeJSON(w, http.StatusOK, api.TaskResponse{Task: task})
}

func (s *apiServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var statuses []queue.Status
		for _, value := range r.URL.Query()["status"] {
			if status, ok := queue.ParseStatus(value); ok {
				statuses = append(statuses, status)
			}
		}
		tasks, err := s.queueSvc.List(r.Context(), filtersFromQuery(r), statuses...)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.TaskListResponse{Tasks: tasks})
	case http.MethodPost:
		var payload struct {
			ImageID         string            `json:"imageId"`
			ContentCategory string            `json:"contentCategory"`
			HashAlgorithm   string            `json:"hashAlgorithm"`
			ConfidenceLevel string            `json:"confidenceLevel"`
			IsEscalated     bool              `json:"isEscalated"`
			Metadata        map[string]string `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		task, err := s.queueSvc.Submit(r.Context(), queue.NewTask{
			ImageID:         payload.ImageID,
			ContentCategory: payload.ContentCategory,
			HashAlgorithm:   payload.HashAlgorithm,
			ConfidenceLevel: payload.ConfidenceLevel,
			IsEscalated:     payload.IsEscalated,
			Metadata:        payload.Metadata,
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.TaskResponse{Task: task})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleTask(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/queues/tasks/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	if id, found := strings.CutSuffix(rest, "/complete"); found {
		s.handleTaskComplete(w, r, id)
		return
	}
	if strings.Contains(rest, "/") {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	task, err := s.queueSvc.Describe(r.Context(), rest)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if task == nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskResponse{Task: task})
}

func (s *apiServer) handleTaskComplete(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	result, ok := queue.ParseResult(r.PostFormValue("result"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "result must be approved, rejected, or escalated")
		return
	}
	task, err := s.queueSvc.Complete(r.Context(), id, result, r.PostFormValue("notes"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskResponse{Task: task})
}

func filtersFromQuery(r *http.Request) queue.Filters {
	query := r.URL.Query()
	escalated := query.Get("isEscalated")
	return queue.Filters{
		ContentCategory: query.Get("contentCategory"),
		HashAlgorithm:   query.Get("hashAlgorithm"),
		ConfidenceLevel: query.Get("confidenceLevel"),
		EscalatedOnly:   escalated == "1" || strings.EqualFold(escalated, "true"),
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUpstreamUnavailable):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
