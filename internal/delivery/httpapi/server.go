package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"auto_post_scheduler/config"
	"auto_post_scheduler/internal/domain"
	"auto_post_scheduler/internal/logger"
	"auto_post_scheduler/internal/storage"
	"auto_post_scheduler/internal/usecase"
)

// TickStats reports the most recent scheduler tick for the stats endpoint.
type TickStats interface {
	Snapshot() (usecase.MatchStats, time.Time)
}

// Server exposes a lightweight REST API for account management and queue
// visibility. Re-queueing a failed job is an explicit operator action here,
// never something the scheduler does on its own.
type Server struct {
	cfg       *config.Config
	accounts  domain.AccountRepository
	jobs      domain.JobRepository
	artifacts *storage.Manager
	stats     TickStats
	server    *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, accounts domain.AccountRepository, jobs domain.JobRepository, artifacts *storage.Manager, stats TickStats) *Server {
	s := &Server{
		cfg:       cfg,
		accounts:  accounts,
		jobs:      jobs,
		artifacts: artifacts,
		stats:     stats,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts", s.listAccounts).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts/{id}/clear-reauth", s.clearReauth).Methods(http.MethodPost)
	r.HandleFunc("/api/jobs", s.listJobs).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs", s.enqueueJob).Methods(http.MethodPost)
	r.HandleFunc("/api/jobs/{id}/requeue", s.requeueJob).Methods(http.MethodPost)
	r.Use(loggingMiddleware)

	s.server = &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}
	return s
}

// Start begins serving HTTP requests in a separate goroutine.
func (s *Server) Start() error {
	if s.cfg.ServerPort == "" {
		return fmt.Errorf("server port is not configured")
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Printf("http api server stopped with error: %v", err)
		}
	}()
	logger.Info().Printf("HTTP API server listening on %s", s.server.Addr)
	return nil
}

// Handler returns the router, exposed for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsView struct {
	LastTick        string `json:"last_tick,omitempty"`
	AccountsScanned int    `json:"accounts_scanned"`
	Dispatched      int    `json:"dispatched"`
	IdleSlots       int    `json:"idle_slots"`
	Skipped         int    `json:"skipped"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Errorf("scheduler is not running"))
		return
	}

	stats, lastTick := s.stats.Snapshot()
	view := statsView{
		AccountsScanned: stats.AccountsScanned,
		Dispatched:      stats.Dispatched,
		IdleSlots:       stats.IdleSlots,
		Skipped:         stats.Skipped,
	}
	if !lastTick.IsZero() {
		view.LastTick = lastTick.Format(time.RFC3339)
	}
	respondJSON(w, http.StatusOK, view)
}

type accountView struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DailyQuota  int    `json:"daily_quota"`
	IsActive    bool   `json:"is_active"`
	NeedsReauth bool   `json:"needs_reauth"`
	HasCookies  bool   `json:"has_cookies"`
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.GetAll()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{
			ID:          a.ID,
			Handle:      a.Handle,
			DailyQuota:  a.DailyQuota,
			IsActive:    a.IsActive,
			NeedsReauth: a.NeedsReauth,
			HasCookies:  len(a.CookieSet) > 0,
		})
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) clearReauth(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	account, err := s.accounts.GetByID(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if account == nil {
		respondError(w, http.StatusNotFound, fmt.Errorf("account %s not found", id))
		return
	}

	if err := s.accounts.SetNeedsReauth(id, false); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type jobView struct {
	ID           string `json:"id"`
	AccountID    string `json:"account_id,omitempty"`
	SourcePath   string `json:"source_path"`
	Caption      string `json:"caption,omitempty"`
	Audience     string `json:"audience,omitempty"`
	Status       string `json:"status"`
	Attempts     int    `json:"attempts"`
	LastStage    string `json:"last_stage,omitempty"`
	LastError    string `json:"last_error,omitempty"`
	FailureClass string `json:"failure_class,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	status := domain.JobStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.JobStatusPending
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	jobs, err := s.jobs.GetByStatus(status, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, jobView{
			ID:           j.ID,
			AccountID:    j.AccountID,
			SourcePath:   j.SourcePath,
			Caption:      j.Caption,
			Audience:     j.Audience,
			Status:       string(j.Status),
			Attempts:     j.Attempts,
			LastStage:    string(j.LastStage),
			LastError:    j.LastError,
			FailureClass: string(j.FailureClass),
			CreatedAt:    j.CreatedAt.Format(time.RFC3339),
		})
	}
	respondJSON(w, http.StatusOK, views)
}

type enqueueRequest struct {
	SourcePath string `json:"source_path"`
	Caption    string `json:"caption"`
	Audience   string `json:"audience"`
	AccountID  string `json:"account_id"`
}

func (s *Server) enqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.SourcePath == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("source_path is required"))
		return
	}
	if filepath.Ext(req.SourcePath) == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("source_path must reference a video file"))
		return
	}

	job := &domain.VideoJob{
		AccountID:  req.AccountID,
		SourcePath: req.SourcePath,
		Caption:    req.Caption,
		Audience:   req.Audience,
		Status:     domain.JobStatusPending,
	}
	if err := s.jobs.Save(job); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": job.ID})
}

func (s *Server) requeueJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := s.jobs.GetByID(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, fmt.Errorf("job %s not found", id))
		return
	}
	if job.Status != domain.JobStatusFailed {
		respondError(w, http.StatusConflict, fmt.Errorf("job %s is %s, only failed jobs can be requeued", id, job.Status))
		return
	}

	// Requeue restores the video file to the pending location before the
	// state write; a bare status flip would leave the file stranded in the
	// failed location.
	if err := s.artifacts.Requeue(job); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "requeued"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error().Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info().Printf("%s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}
