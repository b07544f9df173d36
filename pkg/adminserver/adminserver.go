// Package adminserver provides the HTTP admin interface for backup operations.
package adminserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/supporttools/JellyGuard/pkg/backup"
	"github.com/supporttools/JellyGuard/pkg/config"
	"github.com/supporttools/JellyGuard/pkg/dberrors"
	"github.com/supporttools/JellyGuard/pkg/scheduler"
	"github.com/supporttools/JellyGuard/pkg/version"
)

// Server is the admin HTTP server
type Server struct {
	cfg        *config.AppConfig
	backupMgr  *backup.Manager
	scheduler  *scheduler.Scheduler
	logger     *logrus.Logger
	httpServer *http.Server
}

// NewServer creates a new admin server instance
func NewServer(cfg *config.AppConfig, backupMgr *backup.Manager, sched *scheduler.Scheduler) *Server {
	logger := logrus.New()
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	return &Server{
		cfg:       cfg,
		backupMgr: backupMgr,
		scheduler: sched,
		logger:    logger,
	}
}

// Start starts the admin HTTP server
func (s *Server) Start() *http.Server {
	mux := http.NewServeMux()

	// Register routes
	s.registerRoutes(mux)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.cfg.Admin.Port),
		Handler:      s.logRequestMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Printf("Admin server running on port %s", s.cfg.Admin.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	return s.httpServer
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Standard endpoints
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.healthCheckHandler)

	// Backup operations
	mux.HandleFunc("/api/backups", s.listBackupsHandler)
	mux.HandleFunc("/api/backups/run", s.runBackupHandler)
	mux.HandleFunc("/api/backups/restore", s.restoreBackupHandler)
	mux.HandleFunc("/api/backups/delete", s.deleteBackupHandler)

	// Retention and scheduling
	mux.HandleFunc("/api/retention/run", s.runRetentionHandler)
	mux.HandleFunc("/api/schedule", s.updateScheduleHandler)
}

// healthCheckHandler returns a simple health status
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version.Version,
		"time":    time.Now().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("Error encoding health check response: %v", err)
	}
}

// backupResponse describes a backup artifact in API responses
type backupResponse struct {
	Identifier string    `json:"identifier"`
	SizeBytes  int64     `json:"sizeBytes"`
	Size       string    `json:"size"`
	CreatedAt  time.Time `json:"createdAt"`
}

// listBackupsHandler returns the backup artifacts currently on disk
func (s *Server) listBackupsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	artifacts, err := s.backupMgr.ListBackups()
	if err != nil {
		http.Error(w, "Failed to list backups: "+err.Error(), http.StatusInternalServerError)
		return
	}

	response := make([]backupResponse, 0, len(artifacts))
	for _, artifact := range artifacts {
		response = append(response, backupResponse{
			Identifier: artifact.Identifier,
			SizeBytes:  artifact.SizeBytes,
			Size:       humanize.Bytes(uint64(artifact.SizeBytes)),
			CreatedAt:  artifact.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// runBackupHandler triggers an immediate backup
func (s *Server) runBackupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identifier, err := s.backupMgr.RunBackup(r.Context())
	if err != nil {
		s.writeOperationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":     "success",
		"identifier": identifier,
	})
}

// identifierRequest is the request body for restore and delete operations
type identifierRequest struct {
	Identifier string `json:"identifier"`
}

// restoreBackupHandler restores a backup by identifier
func (s *Server) restoreBackupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req identifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" {
		http.Error(w, "Missing required field: identifier", http.StatusBadRequest)
		return
	}

	if err := s.backupMgr.RunRestore(r.Context(), req.Identifier); err != nil {
		s.writeOperationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":     "success",
		"identifier": req.Identifier,
	})
}

// deleteBackupHandler deletes a backup by identifier
func (s *Server) deleteBackupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req identifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" {
		http.Error(w, "Missing required field: identifier", http.StatusBadRequest)
		return
	}

	if err := s.backupMgr.DeleteBackup(r.Context(), req.Identifier); err != nil {
		s.writeOperationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":     "success",
		"identifier": req.Identifier,
	})
}

// runRetentionHandler triggers immediate retention enforcement
func (s *Server) runRetentionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.backupMgr.EnforceRetentionPolicies(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

// scheduleRequest is the request body for schedule updates
type scheduleRequest struct {
	Expression string `json:"expression"`
}

// updateScheduleHandler replaces the backup cron schedule
func (s *Server) updateScheduleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.scheduler.UpdateBackupSchedule(req.Expression); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":     "success",
		"expression": req.Expression,
	})
}

// writeOperationError maps provider errors to HTTP responses
func (s *Server) writeOperationError(w http.ResponseWriter, err error) {
	var unsupported *dberrors.UnsupportedOperation
	if errors.As(err, &unsupported) {
		http.Error(w, err.Error(), http.StatusNotImplemented)
		return
	}

	var toolFailure *dberrors.ExternalToolFailure
	if errors.As(err, &toolFailure) {
		s.logger.Errorf("External tool failure: %v", toolFailure)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// logRequestMiddleware logs incoming HTTP requests
func (s *Server) logRequestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugf("%s %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}
